// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/store"
)

// recordingWriter keeps events in memory.
type recordingWriter struct {
	mu     sync.Mutex
	events []model.Event
}

func (w *recordingWriter) Create(_ context.Context, e *model.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, *e)
	return nil
}

func (w *recordingWriter) last(t *testing.T) model.Event {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.events) == 0 {
		t.Fatal("no events recorded")
	}
	return w.events[len(w.events)-1]
}

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func newTestLogger() (*slog.Logger, *recordingWriter) {
	w := &recordingWriter{}
	return slog.New(NewEventLogHandler(discardHandler{}, w)), w
}

func TestEventLogHandler_Levels(t *testing.T) {
	tests := []struct {
		name      string
		log       func(*slog.Logger)
		wantCount int
		wantLevel string
	}{
		{"error", func(l *slog.Logger) { l.Error("boom") }, 1, model.EventLevelError},
		{"warn", func(l *slog.Logger) { l.Warn("careful") }, 1, model.EventLevelWarning},
		{"info", func(l *slog.Logger) { l.Info("hello") }, 0, ""},
		{"debug", func(l *slog.Logger) { l.Debug("noise") }, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, w := newTestLogger()
			tt.log(logger)

			if len(w.events) != tt.wantCount {
				t.Fatalf("recorded %d events, want %d", len(w.events), tt.wantCount)
			}
			if tt.wantCount > 0 && w.events[0].Level != tt.wantLevel {
				t.Errorf("level = %q, want %q", w.events[0].Level, tt.wantLevel)
			}
		})
	}
}

func TestEventLogHandler_CustomLevel(t *testing.T) {
	w := &recordingWriter{}
	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, w, slog.LevelInfo))

	logger.Info("post published")
	if got := w.last(t); got.Level != model.EventLevelInfo {
		t.Errorf("level = %q, want info", got.Level)
	}
}

func TestEventLogHandler_Category(t *testing.T) {
	tests := []struct {
		message string
		attrs   []any
		want    string
	}{
		{"login failed", nil, model.EventCategoryAuth},
		{"invalid token presented", nil, model.EventCategoryAuth},
		{"post update failed", nil, model.EventCategoryPost},
		{"image upload failed", nil, model.EventCategoryMedia},
		{"cache unavailable", nil, model.EventCategoryCache},
		{"disk nearly full", nil, model.EventCategorySystem},
		{"anything", []any{"category", "custom"}, "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			logger, w := newTestLogger()
			logger.Warn(tt.message, tt.attrs...)
			if got := w.last(t).Category; got != tt.want {
				t.Errorf("category = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventLogHandler_Metadata(t *testing.T) {
	logger, w := newTestLogger()
	logger.With("request_id", "r-1").WithGroup("req").Error("failed", "path", `/a"b`, "category", "system")

	var meta map[string]string
	if err := json.Unmarshal([]byte(w.last(t).Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["request_id"] != "r-1" {
		t.Errorf("request_id = %q, want r-1", meta["request_id"])
	}
	if meta["req.path"] != `/a"b` {
		t.Errorf("req.path = %q", meta["req.path"])
	}
	if _, ok := meta["category"]; ok {
		t.Error("category should not be repeated in metadata")
	}
}

func TestEventLogHandler_EmptyMetadata(t *testing.T) {
	logger, w := newTestLogger()
	logger.Warn("plain")
	if got := w.last(t).Metadata; got != "{}" {
		t.Errorf("metadata = %q, want {}", got)
	}
}

func TestEventLogHandler_ForwardsToInner(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewEventLogHandler(inner, &recordingWriter{}))

	logger.Info("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("inner handler did not receive record: %q", buf.String())
	}
}

func TestEventLogHandler_SQLiteStore(t *testing.T) {
	db, err := store.NewDB(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(t.Context(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	events := store.NewEventStore(db)
	logger := slog.New(NewEventLogHandler(discardHandler{}, events))
	logger.Error("image cleanup failed", "publicId", "abc")
	logger.Warn("slow query")

	list, total, err := events.List(context.Background(), "", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("total = %d, len = %d; want 2", total, len(list))
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_Format(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", false).Info("json please")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("production logger should emit JSON, got %q", buf.String())
	}

	buf.Reset()
	New(&buf, "info", true).Info("text please")
	if !strings.Contains(buf.String(), "msg=\"text please\"") {
		t.Errorf("development logger should emit text, got %q", buf.String())
	}
}

func TestSlogLevelToEventLevel(t *testing.T) {
	if slogLevelToEventLevel(slog.LevelError+4) != model.EventLevelError {
		t.Error("levels above error should map to error")
	}
	if slogLevelToEventLevel(slog.LevelInfo) != model.EventLevelInfo {
		t.Error("info should map to info")
	}
}
