// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"regexp"

	"github.com/olegiv/blockpress/internal/model"
)

var (
	youtubeID = regexp.MustCompile(`(?:youtube\.com/(?:.*v=|.*shorts/)|youtu\.be/)([^"&?/\s]{11})`)
	tiktokID  = regexp.MustCompile(`video/(\d+)`)
)

// EmbedURL derives the iframe URL for a media link. It returns false when
// the platform is unsupported or the link does not carry a video id.
func EmbedURL(embedType model.EmbedType, url string) (string, bool) {
	switch embedType {
	case model.EmbedYouTube:
		if m := youtubeID.FindStringSubmatch(url); m != nil {
			return "https://www.youtube.com/embed/" + m[1], true
		}
	case model.EmbedTikTok:
		if m := tiktokID.FindStringSubmatch(url); m != nil {
			return "https://www.tiktok.com/embed/v2/" + m[1], true
		}
	}
	return "", false
}
