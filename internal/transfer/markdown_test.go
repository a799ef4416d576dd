// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"errors"
	"testing"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/validation"
)

func convert(t *testing.T, src string, resolve ImageResolver) *Document {
	t.Helper()
	doc, err := NewMarkdownConverter(resolve).Convert([]byte(src))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	return doc
}

func TestConvert_Document(t *testing.T) {
	src := "# Hello World\n\n" +
		"Intro with **bold**, _italic_ and `code`.\n\n" +
		"## Section\n\n" +
		"> Quoted line\n\n" +
		"```go\nfmt.Println(\"hi\")\n```\n\n" +
		"---\n\n" +
		"    indented\n"

	doc := convert(t, src, nil)

	if doc.Title != "Hello World" {
		t.Errorf("Title = %q, want %q", doc.Title, "Hello World")
	}

	want := []model.Block{
		{Type: model.BlockParagraph, Content: "Intro with <b>bold</b>, <i>italic</i> and <code>code</code>."},
		{Type: model.BlockHeading, Content: "Section"},
		{Type: model.BlockQuote, Content: "Quoted line"},
		{Type: model.BlockCode, Content: "fmt.Println(\"hi\")", Language: "go"},
		{Type: model.BlockDivider},
		{Type: model.BlockCode, Content: "indented", Language: DefaultCodeLanguage},
	}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(doc.Blocks), len(want), doc.Blocks)
	}
	for i := range want {
		if doc.Blocks[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, doc.Blocks[i], want[i])
		}
	}

	if errs := validation.Blocks(doc.Blocks); len(errs) > 0 {
		t.Errorf("converted blocks should validate, got %v", errs)
	}
}

func TestConvert_OnlyFirstH1IsTitle(t *testing.T) {
	doc := convert(t, "# One\n\n# Two\n\ntext\n", nil)
	if doc.Title != "One" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Blocks[0].Type != model.BlockHeading || doc.Blocks[0].Content != "Two" {
		t.Errorf("second H1 should become a heading block, got %+v", doc.Blocks[0])
	}
}

func TestConvert_Images(t *testing.T) {
	const uploaded = "http://localhost:8080/uploads/drafts/u1/a.png"
	resolve := func(url string) string {
		if url == uploaded {
			return "pid-1"
		}
		return ""
	}

	doc := convert(t, "![A cat](http://localhost:8080/uploads/drafts/u1/a.png \"Caption\")\n\n![x](https://elsewhere.example/b.png)\n", resolve)

	if len(doc.Blocks) != 2 {
		t.Fatalf("got %d blocks", len(doc.Blocks))
	}
	img := doc.Blocks[0]
	if img.Type != model.BlockImage || img.URL != uploaded || img.PublicID != "pid-1" {
		t.Errorf("image block = %+v", img)
	}
	if img.AltText != "A cat" || img.Caption != "Caption" {
		t.Errorf("alt/caption = %q/%q", img.AltText, img.Caption)
	}

	errs := validation.Blocks(doc.Blocks)
	if !errs.Has("content.1.publicId") {
		t.Errorf("foreign image should fail validation on publicId, got %v", errs)
	}
	if errs.Has("content.0.publicId") {
		t.Errorf("uploaded image should validate, got %v", errs)
	}
}

func TestConvert_Embeds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want model.Block
	}{
		{
			"youtube link",
			"[watch](https://www.youtube.com/watch?v=dQw4w9WgXcQ)",
			model.Block{Type: model.BlockEmbed, URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", EmbedType: model.EmbedYouTube},
		},
		{
			"tiktok autolink",
			"<https://www.tiktok.com/@someone/video/7123456789>",
			model.Block{Type: model.BlockEmbed, URL: "https://www.tiktok.com/@someone/video/7123456789", EmbedType: model.EmbedTikTok},
		},
		{
			"ordinary link stays text",
			"[docs](https://example.com/docs)",
			model.Block{Type: model.BlockParagraph, Content: "docs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := convert(t, tt.src+"\n", nil)
			if len(doc.Blocks) != 1 || doc.Blocks[0] != tt.want {
				t.Errorf("blocks = %+v, want [%+v]", doc.Blocks, tt.want)
			}
		})
	}
}

func TestConvert_Lists(t *testing.T) {
	doc := convert(t, "- one\n- two\n\n3. three\n4. four\n", nil)

	want := []string{"• one", "• two", "3. three", "4. four"}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("got %d blocks: %+v", len(doc.Blocks), doc.Blocks)
	}
	for i, w := range want {
		if doc.Blocks[i].Type != model.BlockParagraph || doc.Blocks[i].Content != w {
			t.Errorf("block %d = %+v, want paragraph %q", i, doc.Blocks[i], w)
		}
	}
}

func TestConvert_LineBreaks(t *testing.T) {
	doc := convert(t, "soft\nwrap\n\nhard  \nbreak\n", nil)
	if got := doc.Blocks[0].Content; got != "soft wrap" {
		t.Errorf("soft break = %q", got)
	}
	if got := doc.Blocks[1].Content; got != "hard\nbreak" {
		t.Errorf("hard break = %q", got)
	}
}

func TestConvert_Empty(t *testing.T) {
	for _, src := range []string{"", "# Only a title\n", "<div>raw</div>\n"} {
		_, err := NewMarkdownConverter(nil).Convert([]byte(src))
		if !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("Convert(%q) error = %v, want ErrEmptyDocument", src, err)
		}
	}
}
