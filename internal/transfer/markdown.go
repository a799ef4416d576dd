// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/render"
)

// DefaultCodeLanguage is used for code blocks without an info string.
const DefaultCodeLanguage = "plaintext"

// ErrEmptyDocument is returned when markdown yields no blocks.
var ErrEmptyDocument = errors.New("markdown document has no content")

// ImageResolver maps an image URL to the publicId of an uploaded image.
// It returns "" for URLs that were not uploaded here.
type ImageResolver func(url string) string

// Document is the result of converting markdown into blocks.
type Document struct {
	Title  string        `json:"title"`
	Blocks []model.Block `json:"content"`
}

// MarkdownConverter turns markdown documents into content blocks.
type MarkdownConverter struct {
	md      goldmark.Markdown
	resolve ImageResolver
}

// NewMarkdownConverter creates a converter. resolve may be nil, in which
// case image blocks carry no publicId and fail validation on save.
func NewMarkdownConverter(resolve ImageResolver) *MarkdownConverter {
	return &MarkdownConverter{
		md:      goldmark.New(goldmark.WithExtensions(extension.Strikethrough)),
		resolve: resolve,
	}
}

// Convert parses src and returns its blocks. The first level-one heading
// becomes the document title and is not emitted as a block.
func (c *MarkdownConverter) Convert(src []byte) (*Document, error) {
	root := c.md.Parser().Parse(text.NewReader(src))

	doc := &Document{Blocks: []model.Block{}}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 && doc.Title == "" {
			doc.Title = strings.TrimSpace(inlineText(h, src))
			continue
		}
		doc.Blocks = append(doc.Blocks, c.blocks(n, src)...)
	}

	if len(doc.Blocks) == 0 {
		return nil, ErrEmptyDocument
	}
	return doc, nil
}

func (c *MarkdownConverter) blocks(n ast.Node, src []byte) []model.Block {
	switch node := n.(type) {
	case *ast.Heading:
		return textBlock(model.BlockHeading, inlineText(node, src))

	case *ast.Paragraph:
		if b, ok := c.mediaBlock(node, src); ok {
			return []model.Block{b}
		}
		return textBlock(model.BlockParagraph, inlineText(node, src))

	case *ast.TextBlock:
		return textBlock(model.BlockParagraph, inlineText(node, src))

	case *ast.FencedCodeBlock:
		lang := string(node.Language(src))
		if lang == "" {
			lang = DefaultCodeLanguage
		}
		return codeBlock(linesText(node, src), lang)

	case *ast.CodeBlock:
		return codeBlock(linesText(node, src), DefaultCodeLanguage)

	case *ast.Blockquote:
		var parts []string
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			if t := strings.TrimSpace(inlineText(child, src)); t != "" {
				parts = append(parts, t)
			}
		}
		return textBlock(model.BlockQuote, strings.Join(parts, "\n"))

	case *ast.ThematicBreak:
		return []model.Block{{Type: model.BlockDivider}}

	case *ast.List:
		var out []model.Block
		i := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "• "
			if node.IsOrdered() {
				marker = strconv.Itoa(i) + ". "
				i++
			}
			var parts []string
			for child := item.FirstChild(); child != nil; child = child.NextSibling() {
				if t := strings.TrimSpace(inlineText(child, src)); t != "" {
					parts = append(parts, t)
				}
			}
			out = append(out, textBlock(model.BlockParagraph, marker+strings.Join(parts, "\n"))...)
		}
		return out
	}

	// Raw HTML blocks and anything unknown are dropped.
	return nil
}

// mediaBlock recognises a paragraph holding nothing but an image or a link
// to a supported video platform.
func (c *MarkdownConverter) mediaBlock(p *ast.Paragraph, src []byte) (model.Block, bool) {
	only := p.FirstChild()
	if only == nil || only.NextSibling() != nil {
		return model.Block{}, false
	}

	switch node := only.(type) {
	case *ast.Image:
		url := string(node.Destination)
		b := model.Block{
			Type:    model.BlockImage,
			URL:     url,
			AltText: strings.TrimSpace(inlineText(node, src)),
			Caption: string(node.Title),
		}
		if c.resolve != nil {
			b.PublicID = c.resolve(url)
		}
		return b, true

	case *ast.Link:
		return embedBlock(string(node.Destination))

	case *ast.AutoLink:
		return embedBlock(string(node.URL(src)))
	}
	return model.Block{}, false
}

func embedBlock(url string) (model.Block, bool) {
	for _, et := range []model.EmbedType{model.EmbedYouTube, model.EmbedTikTok} {
		if _, ok := render.EmbedURL(et, url); ok {
			return model.Block{Type: model.BlockEmbed, URL: url, EmbedType: et}, true
		}
	}
	return model.Block{}, false
}

func textBlock(t model.BlockType, content string) []model.Block {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	return []model.Block{{Type: t, Content: content}}
}

func codeBlock(code, lang string) []model.Block {
	code = strings.TrimRight(code, "\n")
	if strings.TrimSpace(code) == "" {
		return nil
	}
	return []model.Block{{Type: model.BlockCode, Content: code, Language: lang}}
}

// linesText joins the raw lines of a block node.
func linesText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}

// inlineText flattens the inline children of n into authored text. Strong
// and emphasis become <b> and <i>, code spans become <code>. Everything else
// is kept as plain text and escaped later by the renderer.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	writeInline(&sb, n, src)
	return sb.String()
}

func writeInline(sb *strings.Builder, n ast.Node, src []byte) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			switch {
			case node.HardLineBreak():
				sb.WriteString("\n")
			case node.SoftLineBreak():
				sb.WriteString(" ")
			}

		case *ast.String:
			sb.Write(node.Value)

		case *ast.Emphasis:
			tag := "i"
			if node.Level >= 2 {
				tag = "b"
			}
			sb.WriteString("<" + tag + ">")
			writeInline(sb, node, src)
			sb.WriteString("</" + tag + ">")

		case *ast.CodeSpan:
			sb.WriteString("<code>")
			writeInline(sb, node, src)
			sb.WriteString("</code>")

		case *ast.AutoLink:
			sb.Write(node.URL(src))

		case *ast.RawHTML:
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				sb.Write(seg.Value(src))
			}

		default:
			// Links, images inside text and strikethrough keep their text.
			writeInline(sb, child, src)
		}
	}
}
