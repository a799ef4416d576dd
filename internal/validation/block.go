// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package validation

import (
	"strings"

	"github.com/olegiv/blockpress/internal/model"
)

// checkBlock applies the per-type required and forbidden field rules.
func checkBlock(errs *Errors, path string, b model.Block) {
	field := func(name string) string { return path + "." + name }

	switch b.Type {
	case model.BlockParagraph, model.BlockHeading, model.BlockQuote:
		requireText(errs, field("content"), "Content", b.Content)

	case model.BlockCode:
		requireText(errs, field("content"), "Content", b.Content)
		requireText(errs, field("language"), "Language", b.Language)

	case model.BlockImage:
		requireURL(errs, field("url"), b.URL)
		requireText(errs, field("publicId"), "Public ID", b.PublicID)
		positive(errs, field("width"), "Width", b.Width)
		positive(errs, field("height"), "Height", b.Height)

	case model.BlockVideo:
		requireURL(errs, field("url"), b.URL)
		if b.EmbedType != "" && !b.EmbedType.Valid() {
			invalidEmbedType(errs, field("embedType"))
		}

	case model.BlockEmbed:
		requireURL(errs, field("url"), b.URL)
		switch {
		case b.EmbedType == "":
			errs.required(field("embedType"), "Embed type")
		case !b.EmbedType.Valid():
			invalidEmbedType(errs, field("embedType"))
		}

	case model.BlockDivider:
		if b.Content != "" {
			errs.add(field("content"), "Content is not allowed")
		}

	default:
		if b.Type == "" {
			errs.required(field("type"), "Content block type")
		} else {
			errs.add(field("type"), "Content block type must be one of %s", joinTypes())
		}
		return
	}

	if b.PublicID != "" && b.Type != model.BlockImage {
		errs.add(field("publicId"), "Public ID is not allowed")
	}
	// Dimensions only describe images.
	if b.Type != model.BlockImage {
		positive(errs, field("width"), "Width", b.Width)
		positive(errs, field("height"), "Height", b.Height)
	}
}

func requireText(errs *Errors, field, label, value string) {
	if strings.TrimSpace(value) == "" {
		errs.required(field, label)
	}
}

func requireURL(errs *Errors, field, value string) {
	switch {
	case value == "":
		errs.required(field, "URL")
	case !IsAbsoluteURL(value):
		errs.add(field, "URL must be a valid URL")
	}
}

func positive(errs *Errors, field, label string, v *int) {
	if v != nil && *v <= 0 {
		errs.add(field, "%s must be positive", label)
	}
}

func invalidEmbedType(errs *Errors, field string) {
	names := make([]string, 0, 3)
	for _, e := range model.EmbedTypes() {
		names = append(names, string(e))
	}
	errs.add(field, "Embed type must be one of %s", strings.Join(names, ", "))
}

func joinTypes() string {
	names := make([]string, 0, 8)
	for _, t := range model.BlockTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
