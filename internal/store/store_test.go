// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/query"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "blockpress-test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(t.Context(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *sql.DB, id, email string) *model.User {
	t.Helper()
	now := time.Now()
	u := &model.User{
		ID:           id,
		Email:        email,
		Name:         "User " + id,
		PasswordHash: "hash",
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := NewUserStore(db).Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return u
}

func newTestPost(id, authorID, title string, published bool, publishedAt time.Time, tags ...string) *model.Post {
	p := &model.Post{
		ID:        id,
		AuthorID:  authorID,
		Title:     title,
		Slug:      "slug-" + id,
		Excerpt:   "excerpt " + id,
		Tags:      tags,
		CreatedAt: publishedAt,
		UpdatedAt: publishedAt,
	}
	p.ApplyContent([]model.Block{{Type: model.BlockParagraph, Content: "hello " + title}})
	p.SetPublished(published, publishedAt)
	return p
}

func TestNewDBOptions(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "opts.db"), WithMaxOpenConns(1))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer func() { _ = db.Close() }()

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("reading pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)
	if err := Migrate(t.Context(), db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestUserStore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	users := NewUserStore(db)

	created := createTestUser(t, db, "u1", "  Test@Example.com ")
	if created.Email != "test@example.com" {
		t.Errorf("Email = %q, want lower-cased", created.Email)
	}

	got, err := users.GetByEmail(ctx, "TEST@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != "u1" || got.Name != "User u1" {
		t.Errorf("got %+v", got)
	}

	if _, err := users.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}

	dup := *created
	dup.ID = "u2"
	if err := users.Create(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email error = %v, want ErrDuplicate", err)
	}

	n, err := users.CountAdmins(ctx)
	if err != nil {
		t.Fatalf("CountAdmins: %v", err)
	}
	if n != 0 {
		t.Errorf("CountAdmins = %d, want 0", n)
	}
}

func TestPostStoreCreateAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	createTestUser(t, db, "u1", "a@example.com")
	posts := NewPostStore(db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPost("p1", "u1", "First", true, now, "go", "web")
	p.Content = append(p.Content, model.Block{
		Type: model.BlockImage, URL: "https://cdn.example.com/a.png", PublicID: "abc",
	})
	if err := posts.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := posts.GetBySlug(ctx, "slug-p1")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if got.Author.Name != "User u1" || got.Author.ID != "u1" {
		t.Errorf("Author = %+v", got.Author)
	}
	if len(got.Content) != 2 || got.Content[1].PublicID != "abc" {
		t.Errorf("Content = %+v", got.Content)
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(now) {
		t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, now)
	}
	if len(got.Tags) != 2 {
		t.Errorf("Tags = %v", got.Tags)
	}

	dup := newTestPost("p2", "u1", "Second", false, now)
	dup.Slug = "slug-p1"
	if err := posts.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate slug error = %v, want ErrDuplicate", err)
	}

	taken, err := posts.SlugTaken(ctx, "slug-p1", "p1")
	if err != nil {
		t.Fatalf("SlugTaken: %v", err)
	}
	if taken {
		t.Error("slug should not count as taken by its own post")
	}
	taken, _ = posts.SlugTaken(ctx, "slug-p1", "other")
	if !taken {
		t.Error("slug should be taken for another post")
	}
}

func TestPostStoreUpdateAndDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	createTestUser(t, db, "u1", "a@example.com")
	posts := NewPostStore(db)

	p := newTestPost("p1", "u1", "Draft", false, time.Now())
	if err := posts.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	p.Title = "Renamed"
	p.SetPublished(true, time.Now())
	if err := posts.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := posts.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Renamed" || !got.Published || got.PublishedAt == nil {
		t.Errorf("got %+v", got)
	}

	missing := newTestPost("nope", "u1", "x", false, time.Now())
	if err := posts.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	if err := posts.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := posts.Delete(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestPostStoreListPublished(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	createTestUser(t, db, "u1", "a@example.com")
	posts := NewPostStore(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []*model.Post{
		newTestPost("p1", "u1", "Oldest Go post", true, base, "go"),
		newTestPost("p2", "u1", "Über Rust", true, base.Add(time.Hour), "rust"),
		newTestPost("p3", "u1", "Draft Go post", false, base.Add(2*time.Hour), "go"),
		newTestPost("p4", "u1", "Newest Go post", true, base.Add(3*time.Hour), "go", "web"),
	}
	for _, p := range seed {
		if err := posts.Create(ctx, p); err != nil {
			t.Fatalf("Create %s: %v", p.ID, err)
		}
	}

	tests := []struct {
		name    string
		params  query.Params
		wantIDs []string
		total   int
	}{
		{"all published newest first", query.Params{Page: 1, Limit: 10}, []string{"p4", "p2", "p1"}, 3},
		{"tag filter ignores case", query.Params{Page: 1, Limit: 10, Tag: "GO"}, []string{"p4", "p1"}, 2},
		{"search title", query.Params{Page: 1, Limit: 10, Search: "newest"}, []string{"p4"}, 1},
		{"search non-ascii case", query.Params{Page: 1, Limit: 10, Search: "ÜBER"}, []string{"p2"}, 1},
		{"search tags", query.Params{Page: 1, Limit: 10, Search: "web"}, []string{"p4"}, 1},
		{"search excerpt", query.Params{Page: 1, Limit: 10, Search: "excerpt p1"}, []string{"p1"}, 1},
		{"second page", query.Params{Page: 2, Limit: 2}, []string{"p1"}, 3},
		{"page past end", query.Params{Page: 5, Limit: 2}, nil, 3},
		{"no match", query.Params{Page: 1, Limit: 10, Tag: "python"}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := posts.ListPublished(ctx, tt.params)
			if err != nil {
				t.Fatalf("ListPublished: %v", err)
			}
			if total != tt.total {
				t.Errorf("total = %d, want %d", total, tt.total)
			}
			var ids []string
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			if fmt.Sprint(ids) != fmt.Sprint(tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestPostStoreListMatchesInMemoryQuery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	createTestUser(t, db, "u1", "a@example.com")
	posts := NewPostStore(db)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var all []model.Post
	for i := 0; i < 23; i++ {
		tag := []string{"even", "odd"}[i%2]
		p := newTestPost(fmt.Sprintf("p%02d", i), "u1", fmt.Sprintf("Post %d", i), i%5 != 0,
			base.Add(time.Duration(i%7)*time.Hour), tag)
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := posts.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
		all = append(all, *p)
	}

	for _, params := range []query.Params{
		{Page: 1, Limit: 5},
		{Page: 3, Limit: 5},
		{Page: 1, Limit: 50, Tag: "odd"},
		{Page: 2, Limit: 3, Search: "post 1"},
	} {
		want := query.Apply(all, params)
		got, total, err := posts.ListPublished(ctx, params)
		if err != nil {
			t.Fatalf("ListPublished: %v", err)
		}
		if total != want.Pagination.Total {
			t.Errorf("%+v: total = %d, want %d", params, total, want.Pagination.Total)
		}
		if len(got) != len(want.Data) {
			t.Fatalf("%+v: got %d posts, want %d", params, len(got), len(want.Data))
		}
		for i := range got {
			if got[i].ID != want.Data[i].ID {
				t.Errorf("%+v: [%d] = %s, want %s", params, i, got[i].ID, want.Data[i].ID)
			}
		}
	}
}

func TestPostStoreImageURLs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	createTestUser(t, db, "u1", "a@example.com")
	posts := NewPostStore(db)

	p := newTestPost("p1", "u1", "Pics", false, time.Now())
	p.CoverImage = "https://cdn.example.com/cover.png"
	p.Content = append(p.Content, model.Block{Type: model.BlockImage, URL: "https://cdn.example.com/a.png", PublicID: "a"})
	if err := posts.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	urls, err := posts.ImageURLs(ctx)
	if err != nil {
		t.Fatalf("ImageURLs: %v", err)
	}
	for _, u := range []string{"https://cdn.example.com/cover.png", "https://cdn.example.com/a.png"} {
		if _, ok := urls[u]; !ok {
			t.Errorf("missing %s", u)
		}
	}
	if len(urls) != 2 {
		t.Errorf("len = %d, want 2", len(urls))
	}
}

func TestImageStore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	images := NewImageStore(db)

	old := time.Now().Add(-10 * 24 * time.Hour)
	for _, img := range []*model.Image{
		{PublicID: "old", OwnerID: "u1", Filename: "old.png", MimeType: model.MimeTypePNG, URL: "/uploads/drafts/u1/old.png", Draft: true, CreatedAt: old},
		{PublicID: "new", OwnerID: "u1", Filename: "new.png", MimeType: model.MimeTypePNG, URL: "/uploads/drafts/u1/new.png", Draft: true, CreatedAt: time.Now()},
	} {
		if err := images.Create(ctx, img); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	drafts, err := images.ListDrafts(ctx, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("ListDrafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].PublicID != "old" {
		t.Errorf("ListDrafts = %+v", drafts)
	}

	if err := images.MarkPromoted(ctx, "old", "/uploads/posts/u1/old.png"); err != nil {
		t.Fatalf("MarkPromoted: %v", err)
	}
	got, err := images.GetByURL(ctx, "/uploads/posts/u1/old.png")
	if err != nil {
		t.Fatalf("GetByURL: %v", err)
	}
	if got.Draft {
		t.Error("promoted image should not be a draft")
	}

	if err := images.Delete(ctx, "new"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := images.Get(ctx, "new"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
}

func TestEventStore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	events := NewEventStore(db)

	now := time.Now()
	for i, level := range []string{model.EventLevelInfo, model.EventLevelWarning, model.EventLevelError} {
		e := &model.Event{Level: level, Category: model.EventCategorySystem, Message: level, CreatedAt: now.Add(time.Duration(i) * time.Second)}
		if err := events.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if e.ID == 0 {
			t.Error("ID should be set")
		}
	}

	all, total, err := events.List(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || all[0].Level != model.EventLevelError {
		t.Errorf("List = %d events, first %q", total, all[0].Level)
	}
	if all[0].Metadata != "{}" {
		t.Errorf("Metadata = %q, want {}", all[0].Metadata)
	}

	warnings, total, err := events.List(ctx, model.EventLevelWarning, 10, 0)
	if err != nil {
		t.Fatalf("List warnings: %v", err)
	}
	if total != 1 || len(warnings) != 1 {
		t.Errorf("warnings = %d", total)
	}

	n, err := events.DeleteBefore(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}
}
