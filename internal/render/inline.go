// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// inlineToken matches the allow-listed tags and every form of line break.
var inlineToken = regexp.MustCompile(`<(/?)(b|i|code)>|(?i:<br\s*/?>)|\r?\n`)

// inlineElements maps an authored tag to the element it renders as.
var inlineElements = map[string]string{
	"b":    "strong",
	"i":    "em",
	"code": "code",
}

type openTag struct {
	name string
	at   int
}

// newInlinePolicy returns the final sanitizer for inline text. It admits
// exactly the elements the inline transform can emit.
func newInlinePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("strong", "em", "code", "br")
	return p
}

// Inline renders authored text. All markup is escaped except properly
// nested <b>, <i> and <code> pairs, which become <strong>, <em> and <code>.
// Line breaks and literal <br> tags become <br>. A tag without a partner
// stays as escaped text.
func (r *Renderer) Inline(text string) template.HTML {
	if text == "" {
		return ""
	}

	var (
		out   []string
		stack []openTag
		last  int
	)
	for _, m := range inlineToken.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, html.EscapeString(text[last:m[0]]))
		last = m[1]
		tok := text[m[0]:m[1]]

		if m[4] < 0 {
			out = append(out, "<br>")
			continue
		}
		name := text[m[4]:m[5]]
		if m[3] == m[2] {
			stack = append(stack, openTag{name: name, at: len(out)})
			out = append(out, html.EscapeString(tok))
			continue
		}

		// Close the innermost matching open tag. Opens above it never
		// get a partner and stay escaped.
		i := len(stack) - 1
		for i >= 0 && stack[i].name != name {
			i--
		}
		if i < 0 {
			out = append(out, html.EscapeString(tok))
			continue
		}
		el := inlineElements[name]
		out[stack[i].at] = "<" + el + ">"
		out = append(out, "</"+el+">")
		stack = stack[:i]
	}
	out = append(out, html.EscapeString(text[last:]))

	return template.HTML(r.inline.Sanitize(strings.Join(out, "")))
}
