// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides general-purpose helpers: slug generation and
// validation, safe upload paths, and outbound URL checks.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// slugPattern is the accepted slug alphabet.
	slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	// slugStrip matches everything outside the slug alphabet
	slugStrip = regexp.MustCompile(`[^a-z0-9-]+`)
	// multipleHyphens matches multiple consecutive hyphens
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// Slugify converts a title to a URL-friendly slug. Non-Latin scripts are
// transliterated first, then accents are stripped.
func Slugify(s string) string {
	result := unidecode.Unidecode(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ = transform.String(t, result)

	result = strings.ToLower(strings.TrimSpace(result))
	result = strings.Join(strings.Fields(result), "-")
	result = slugStrip.ReplaceAllString(result, "")
	result = multipleHyphens.ReplaceAllString(result, "-")

	return strings.Trim(result, "-")
}

// IsValidSlug reports whether s only uses lowercase letters, digits and hyphens.
func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}
