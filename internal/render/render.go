// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render turns validated content blocks into display nodes and
// HTML. Rendering is pure: unknown block types are skipped and malformed
// embeds become a placeholder instead of failing the whole post.
package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/blockpress/internal/model"
)

// Node is one rendered block.
type Node struct {
	Type      model.BlockType `json:"type"`
	HTML      template.HTML   `json:"html"`
	Text      template.HTML   `json:"text,omitempty"`
	Code      string          `json:"code,omitempty"`
	Language  string          `json:"language,omitempty"`
	URL       string          `json:"url,omitempty"`
	AltText   string          `json:"altText,omitempty"`
	Caption   string          `json:"caption,omitempty"`
	Author    string          `json:"author,omitempty"`
	Width     int             `json:"width,omitempty"`
	Height    int             `json:"height,omitempty"`
	EmbedType model.EmbedType `json:"embedType,omitempty"`
	EmbedURL  string          `json:"embedUrl,omitempty"`
	Invalid   bool            `json:"invalid,omitempty"`
}

const blockTemplates = `
{{define "paragraph"}}<p>{{.Text}}</p>{{end}}
{{define "heading"}}<h2>{{.Text}}</h2>{{end}}
{{define "quote"}}<blockquote><p>{{.Text}}</p>{{with .Author}}<cite>{{.}}</cite>{{end}}</blockquote>{{end}}
{{define "code"}}<figure class="code"><figcaption>{{.Language}}</figcaption><pre><code class="language-{{.Language}}">{{.Code}}</code></pre></figure>{{end}}
{{define "image"}}<figure><img src="{{.URL}}" alt="{{.AltText}}"{{with .Width}} width="{{.}}"{{end}}{{with .Height}} height="{{.}}"{{end}} loading="lazy">{{with .Caption}}<figcaption>{{.}}</figcaption>{{end}}</figure>{{end}}
{{define "embed"}}<figure class="embed embed-{{.EmbedType}}">{{if .Invalid}}<div class="embed-invalid">Invalid embed URL</div>{{else}}<iframe src="{{.EmbedURL}}" title="Embedded {{.EmbedType}} content" allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture; web-share" allowfullscreen></iframe>{{end}}{{with .Caption}}<figcaption>{{.}}</figcaption>{{end}}</figure>{{end}}
{{define "divider"}}<hr>{{end}}
`

// Renderer renders content blocks. It is safe for concurrent use.
type Renderer struct {
	inline    *bluemonday.Policy
	templates *template.Template
}

// New creates a Renderer.
func New() *Renderer {
	return &Renderer{
		inline:    newInlinePolicy(),
		templates: template.Must(template.New("blocks").Parse(blockTemplates)),
	}
}

// Block renders a single block. It returns false for block types it does
// not know, which callers skip.
func (r *Renderer) Block(b model.Block) (Node, bool) {
	n := Node{Type: b.Type}
	var tmpl string

	switch b.Type {
	case model.BlockParagraph, model.BlockHeading:
		n.Text = r.Inline(b.Content)
		tmpl = string(b.Type)
	case model.BlockQuote:
		n.Text = r.Inline(b.Content)
		n.Author = b.Author
		tmpl = "quote"
	case model.BlockCode:
		n.Code = b.Content
		n.Language = strings.TrimSpace(b.Language)
		tmpl = "code"
	case model.BlockImage:
		n.URL = b.URL
		n.AltText = b.AltText
		n.Caption = b.Caption
		if b.Width != nil {
			n.Width = *b.Width
		}
		if b.Height != nil {
			n.Height = *b.Height
		}
		tmpl = "image"
	case model.BlockVideo, model.BlockEmbed:
		n.URL = b.URL
		n.Caption = b.Caption
		n.EmbedType = b.EmbedType
		if n.EmbedType == "" {
			if b.Type == model.BlockVideo {
				n.EmbedType = model.DetectEmbedType(b.URL)
			} else {
				n.EmbedType = model.EmbedUnknown
			}
		}
		src := b.URL
		if src == "" {
			src = b.Content
		}
		url, ok := EmbedURL(n.EmbedType, src)
		n.EmbedURL = url
		n.Invalid = !ok
		tmpl = "embed"
	case model.BlockDivider:
		tmpl = "divider"
	default:
		return Node{}, false
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, tmpl, n); err != nil {
		return Node{}, false
	}
	n.HTML = template.HTML(buf.String())
	return n, true
}

// Post renders blocks in order, skipping unknown types.
func (r *Renderer) Post(blocks []model.Block) []Node {
	nodes := make([]Node, 0, len(blocks))
	for _, b := range blocks {
		if n, ok := r.Block(b); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// HTML renders blocks into a single HTML fragment.
func (r *Renderer) HTML(blocks []model.Block) template.HTML {
	var sb strings.Builder
	for _, n := range r.Post(blocks) {
		sb.WriteString(string(n.HTML))
		sb.WriteByte('\n')
	}
	return template.HTML(sb.String())
}
