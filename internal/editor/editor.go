// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package editor holds the mutable working copy of a post while it is being
// written. Blocks carry stable ids so focus follows a block through inserts,
// removals and reorders. Nothing is validated until Submit.
package editor

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/util"
	"github.com/olegiv/blockpress/internal/validation"
)

// Editor errors
var (
	ErrIndexOutOfRange = errors.New("block index out of range")
	ErrUnknownType     = errors.New("unknown block type")
	ErrTitleTooLong    = fmt.Errorf("title cannot exceed %d characters", model.TitleMaxLength)
	ErrExcerptTooLong  = fmt.Errorf("excerpt cannot exceed %d characters", model.ExcerptMaxLength)
	ErrTagTooLong      = fmt.Errorf("tag cannot exceed %d characters", model.TagMaxLength)
	ErrTooManyTags     = fmt.Errorf("maximum %d tags allowed", model.MaxTags)
)

// DefaultCodeLanguage is the language given to new code blocks.
const DefaultCodeLanguage = "javascript"

// Item is a block with its editor-local identity.
type Item struct {
	ID    string
	Block model.Block
}

// Editor is a working copy of one post. It is not safe for concurrent use.
type Editor struct {
	postID     string
	title      string
	slug       string
	slugEdited bool
	excerpt    string
	coverImage string
	tags       []string
	items      []Item
	focused    string

	newID func() string
}

// New starts an editor. A nil initial post starts a new, empty draft.
func New(initial *model.Post) *Editor {
	e := &Editor{newID: uuid.NewString}
	if initial == nil {
		return e
	}

	e.postID = initial.ID
	e.title = initial.Title
	e.slug = initial.Slug
	e.slugEdited = true
	e.excerpt = initial.Excerpt
	e.coverImage = initial.CoverImage
	e.tags = slices.Clone(initial.Tags)
	for _, b := range initial.Content {
		e.items = append(e.items, Item{ID: e.newID(), Block: b})
	}
	return e
}

// PostID returns the id of the post being edited, or "" for a new post.
func (e *Editor) PostID() string { return e.postID }

// IsNew reports whether the editor started from an empty draft.
func (e *Editor) IsNew() bool { return e.postID == "" }

// Title returns the working title.
func (e *Editor) Title() string { return e.title }

// Slug returns the working slug.
func (e *Editor) Slug() string { return e.slug }

// Tags returns a copy of the working tags.
func (e *Editor) Tags() []string { return slices.Clone(e.tags) }

// Len returns the number of blocks.
func (e *Editor) Len() int { return len(e.items) }

// Items returns a copy of the blocks with their ids.
func (e *Editor) Items() []Item { return slices.Clone(e.items) }

// Blocks returns a copy of the blocks in order.
func (e *Editor) Blocks() []model.Block {
	out := make([]model.Block, len(e.items))
	for i, it := range e.items {
		out[i] = it.Block
	}
	return out
}

// SetTitle changes the title. New posts derive their slug from the title
// until the slug is edited by hand.
func (e *Editor) SetTitle(title string) error {
	if utf8.RuneCountInString(title) > model.TitleMaxLength {
		return ErrTitleTooLong
	}
	e.title = title
	if e.IsNew() && !e.slugEdited {
		e.slug = util.Slugify(title)
	}
	return nil
}

// SetSlug overrides the slug.
func (e *Editor) SetSlug(slug string) {
	e.slug = slug
	e.slugEdited = true
}

// SetExcerpt changes the excerpt.
func (e *Editor) SetExcerpt(excerpt string) error {
	if utf8.RuneCountInString(excerpt) > model.ExcerptMaxLength {
		return ErrExcerptTooLong
	}
	e.excerpt = excerpt
	return nil
}

// SetCoverImage changes the cover image URL. An empty URL removes it.
func (e *Editor) SetCoverImage(url string) { e.coverImage = url }

// AddTag adds a lower-cased tag. Adding an existing tag is a no-op.
func (e *Editor) AddTag(tag string) error {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" || slices.Contains(e.tags, tag) {
		return nil
	}
	if utf8.RuneCountInString(tag) > model.TagMaxLength {
		return ErrTagTooLong
	}
	if len(e.tags) >= model.MaxTags {
		return ErrTooManyTags
	}
	e.tags = append(e.tags, tag)
	return nil
}

// RemoveTag drops a tag if present.
func (e *Editor) RemoveTag(tag string) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	e.tags = slices.DeleteFunc(e.tags, func(t string) bool { return t == tag })
}

// newBlock returns a block of type t with editor defaults filled in.
func newBlock(t model.BlockType) model.Block {
	b := model.Block{Type: t}
	switch t {
	case model.BlockCode:
		b.Language = DefaultCodeLanguage
	case model.BlockEmbed:
		b.EmbedType = model.EmbedYouTube
	}
	return b
}

// Append adds a new block of type t at the end and focuses it.
func (e *Editor) Append(t model.BlockType) (string, error) {
	return e.insertAt(len(e.items), t)
}

// InsertAfter adds a new block of type t right after index and focuses it.
func (e *Editor) InsertAfter(index int, t model.BlockType) (string, error) {
	if index < 0 || index >= len(e.items) {
		return "", ErrIndexOutOfRange
	}
	return e.insertAt(index+1, t)
}

func (e *Editor) insertAt(pos int, t model.BlockType) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	it := Item{ID: e.newID(), Block: newBlock(t)}
	e.items = slices.Insert(e.items, pos, it)
	e.focused = it.ID
	return it.ID, nil
}

// Patch is a shallow update of block fields. Nil fields are left unchanged.
type Patch struct {
	Content   *string
	URL       *string
	PublicID  *string
	AltText   *string
	Caption   *string
	Width     *int
	Height    *int
	Language  *string
	Author    *string
	EmbedType *model.EmbedType
}

// Update merges p into the block at index. It does not validate.
func (e *Editor) Update(index int, p Patch) error {
	if index < 0 || index >= len(e.items) {
		return ErrIndexOutOfRange
	}
	b := &e.items[index].Block
	setIf(&b.Content, p.Content)
	setIf(&b.URL, p.URL)
	setIf(&b.PublicID, p.PublicID)
	setIf(&b.AltText, p.AltText)
	setIf(&b.Caption, p.Caption)
	setIf(&b.Language, p.Language)
	setIf(&b.Author, p.Author)
	setIf(&b.EmbedType, p.EmbedType)
	if p.Width != nil {
		w := *p.Width
		b.Width = &w
	}
	if p.Height != nil {
		h := *p.Height
		b.Height = &h
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Remove deletes the block at index. If it was focused, focus moves to the
// block before it, or to the first block.
func (e *Editor) Remove(index int) error {
	if index < 0 || index >= len(e.items) {
		return ErrIndexOutOfRange
	}
	wasFocused := e.items[index].ID == e.focused
	e.items = slices.Delete(e.items, index, index+1)

	if wasFocused {
		e.focused = ""
		if len(e.items) > 0 {
			e.focused = e.items[max(0, index-1)].ID
		}
	}
	return nil
}

// Reorder moves the block at from to position to. Other blocks keep their
// relative order and focus stays on the same block.
func (e *Editor) Reorder(from, to int) error {
	if from < 0 || from >= len(e.items) || to < 0 || to >= len(e.items) {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	it := e.items[from]
	e.items = slices.Delete(e.items, from, from+1)
	e.items = slices.Insert(e.items, to, it)
	return nil
}

// Focus focuses the block at index.
func (e *Editor) Focus(index int) error {
	if index < 0 || index >= len(e.items) {
		return ErrIndexOutOfRange
	}
	e.focused = e.items[index].ID
	return nil
}

// Blur clears focus.
func (e *Editor) Blur() { e.focused = "" }

// FocusedID returns the id of the focused block.
func (e *Editor) FocusedID() (string, bool) {
	return e.focused, e.focused != ""
}

// FocusedIndex returns the current position of the focused block.
func (e *Editor) FocusedIndex() (int, bool) {
	if e.focused == "" {
		return -1, false
	}
	i := slices.IndexFunc(e.items, func(it Item) bool { return it.ID == e.focused })
	return i, i >= 0
}

// SubmitError reports the first problem that blocks submission. Index is
// the offending block, or -1 for post-level fields.
type SubmitError struct {
	Index   int
	Field   string
	Message string
}

func (e *SubmitError) Error() string {
	if e.Index < 0 {
		return e.Message
	}
	return fmt.Sprintf("block %d: %s", e.Index+1, e.Message)
}

// precheck runs the checks the editor can make without the server.
func (e *Editor) precheck() error {
	if strings.TrimSpace(e.title) == "" {
		return &SubmitError{Index: -1, Field: "title", Message: "Title is required"}
	}
	if strings.TrimSpace(e.slug) == "" {
		return &SubmitError{Index: -1, Field: "slug", Message: "Slug is required"}
	}

	for i, it := range e.items {
		b := it.Block
		var se *SubmitError
		switch {
		case b.Type.RequiresURL() && strings.TrimSpace(b.URL) == "":
			se = &SubmitError{Index: i, Field: "url", Message: fmt.Sprintf("Block %d (%s) requires a URL", i+1, b.Type)}
		case b.Type == model.BlockCode && strings.TrimSpace(b.Language) == "":
			se = &SubmitError{Index: i, Field: "language", Message: fmt.Sprintf("Code block %d requires a language", i+1)}
		case b.Type == model.BlockEmbed && b.EmbedType == "":
			se = &SubmitError{Index: i, Field: "embedType", Message: fmt.Sprintf("Embed block %d requires an embed type", i+1)}
		}
		if se != nil {
			e.focused = it.ID
			return se
		}
	}
	return nil
}

// Submit checks the working copy and returns the create request for it.
// publish drives the published flag.
func (e *Editor) Submit(publish bool) (model.PostInput, error) {
	if err := e.precheck(); err != nil {
		return model.PostInput{}, err
	}
	return model.PostInput{
		Title:      strings.TrimSpace(e.title),
		Slug:       strings.TrimSpace(e.slug),
		Content:    e.Blocks(),
		Excerpt:    e.excerpt,
		CoverImage: e.coverImage,
		Tags:       validation.NormalizeTags(e.tags),
		Published:  publish,
	}, nil
}

// SubmitUpdate checks the working copy and returns a full-replacement
// update request for an existing post.
func (e *Editor) SubmitUpdate(publish bool) (model.PostUpdate, error) {
	in, err := e.Submit(publish)
	if err != nil {
		return model.PostUpdate{}, err
	}
	return model.PostUpdate{
		Title:      &in.Title,
		Slug:       &in.Slug,
		Content:    in.Content,
		Excerpt:    &in.Excerpt,
		CoverImage: &in.CoverImage,
		Tags:       &in.Tags,
		Published:  &publish,
	}, nil
}
