// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestGenerateSignature(t *testing.T) {
	payload := []byte(`{"type":"post.created"}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))

	got := GenerateSignature(payload, "secret")
	if got != want {
		t.Errorf("GenerateSignature() = %q, want %q", got, want)
	}
	if len(got) != 64 {
		t.Errorf("signature length = %d, want 64", len(got))
	}
	if GenerateSignature(payload, "other") == got {
		t.Error("different secrets produced the same signature")
	}
}


func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{5, 16 * time.Minute},
		{20, MaxBackoff},
		{200, MaxBackoff},
	}

	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, InitialBackoff, MaxBackoff); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.MaxAttempts != MaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, MaxAttempts)
	}
}

func TestDispatcher_DeliversSignedPayload(t *testing.T) {
	type received struct {
		body      []byte
		signature string
		event     string
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, signature: r.Header.Get(SignatureHeader), event: r.Header.Get("X-Blockpress-Event")}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDispatcher([]string{srv.URL}, "hook-secret", testLogger(), Config{Workers: 1})
	d.Start(context.Background())
	defer d.Stop()

	data := PostEventData{ID: "p1", Title: "Hello", Slug: "hello", Published: true}
	if err := d.DispatchEvent(context.Background(), EventPostCreated, data); err != nil {
		t.Fatalf("DispatchEvent: %v", err)
	}

	select {
	case r := <-got:
		if r.event != EventPostCreated {
			t.Errorf("event header = %q, want %q", r.event, EventPostCreated)
		}
		if r.signature != SignaturePrefix+GenerateSignature(r.body, "hook-secret") {
			t.Errorf("signature %q does not verify", r.signature)
		}
		var ev struct {
			Type string        `json:"type"`
			Data PostEventData `json:"data"`
		}
		if err := json.Unmarshal(r.body, &ev); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		if ev.Type != EventPostCreated || ev.Data.Slug != "hello" {
			t.Errorf("payload = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestDispatcher_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]string{srv.URL}, "", testLogger(), Config{
		Workers:        1,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	})
	d.Start(context.Background())
	defer d.Stop()

	_ = d.DispatchEvent(context.Background(), EventPostDeleted, PostEventData{ID: "p1"})
	waitFor(t, 2*time.Second, func() bool { return hits.Load() == 3 })
}

func TestDispatcher_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewDispatcher([]string{srv.URL}, "", testLogger(), Config{
		Workers:        1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
	d.Start(context.Background())
	defer d.Stop()

	_ = d.DispatchEvent(context.Background(), EventPostDeleted, PostEventData{ID: "p1"})
	waitFor(t, 2*time.Second, func() bool { return hits.Load() >= 1 })
	time.Sleep(50 * time.Millisecond)
	if n := hits.Load(); n != 1 {
		t.Errorf("hits = %d, want 1", n)
	}
}

func TestDispatcher_NotRunning(t *testing.T) {
	d := NewDispatcher([]string{"http://127.0.0.1:1"}, "", testLogger(), DefaultConfig())
	if err := d.DispatchEvent(context.Background(), EventPostCreated, nil); err != nil {
		t.Errorf("DispatchEvent on stopped dispatcher = %v, want nil", err)
	}
}

func TestNewDispatcher_SkipsBlankURLs(t *testing.T) {
	d := NewDispatcher([]string{" ", "", "http://example.com/hook "}, "", testLogger(), Config{})
	if len(d.urls) != 1 || d.urls[0] != "http://example.com/hook" {
		t.Errorf("urls = %q", d.urls)
	}
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func TestNATSPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "blockpress.events", testLogger())

	ev := NewEvent(EventImageUploaded, ImageEventData{PublicID: "abc", OwnerID: "u1"})
	if err := p.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(conn.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(conn.msgs))
	}
	msg := conn.msgs[0]
	if msg.Subject != "blockpress.events.image.uploaded" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if msg.Header.Get("X-Blockpress-Event") != EventImageUploaded {
		t.Errorf("event header = %q", msg.Header.Get("X-Blockpress-Event"))
	}
	var decoded Event
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != EventImageUploaded {
		t.Errorf("type = %q", decoded.Type)
	}
}

func TestNATSPublisher_Error(t *testing.T) {
	conn := &fakeConn{err: nats.ErrConnectionClosed}
	p := NewNATSPublisher(conn, "", testLogger())
	err := p.Dispatch(context.Background(), NewEvent(EventPostDeleted, nil))
	if !errors.Is(err, nats.ErrConnectionClosed) {
		t.Errorf("Dispatch error = %v, want ErrConnectionClosed", err)
	}
	if p.Subject(EventPostDeleted) != EventPostDeleted {
		t.Errorf("empty prefix subject = %q", p.Subject(EventPostDeleted))
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (r *recordingSink) Dispatch(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBus_FansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingSink{}
	bad := &recordingSink{err: boom}
	bus := NewBus(testLogger(), ok, nil, bad)

	if bus.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", bus.Len())
	}
	err := bus.DispatchEvent(context.Background(), EventPostCreated, PostEventData{ID: "p1"})
	if !errors.Is(err, boom) {
		t.Errorf("Dispatch error = %v, want boom", err)
	}
	if ok.count() != 1 || bad.count() != 1 {
		t.Errorf("sink counts = %d, %d; want 1, 1", ok.count(), bad.count())
	}
}

func TestEventKey(t *testing.T) {
	tests := []struct {
		name  string
		event *Event
		want  string
	}{
		{"post updated", NewEvent(EventPostUpdated, PostEventData{ID: "p1"}), "post.updated:p1"},
		{"post updated pointer", NewEvent(EventPostUpdated, &PostEventData{ID: "p2"}), "post.updated:p2"},
		{"post created passes through", NewEvent(EventPostCreated, PostEventData{ID: "p1"}), ""},
		{"unknown data", NewEvent(EventPostUpdated, "x"), ""},
		{"nil pointer", NewEvent(EventPostUpdated, (*PostEventData)(nil)), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventKey(tt.event); got != tt.want {
				t.Errorf("eventKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDebouncer_CoalescesUpdates(t *testing.T) {
	sink := &recordingSink{}
	d := NewDebouncer(sink, DebounceConfig{Interval: 30 * time.Millisecond, MaxWait: time.Second}, testLogger())
	defer d.Stop()

	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		_ = d.Dispatch(ctx, NewEvent(EventPostUpdated, PostEventData{ID: "p1", Title: title}))
	}
	if n := d.pendingLen(); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}

	waitFor(t, 2*time.Second, func() bool { return sink.count() == 1 })

	sink.mu.Lock()
	last := sink.events[0].Data.(PostEventData)
	sink.mu.Unlock()
	if last.Title != "c" {
		t.Errorf("delivered title = %q, want the latest (c)", last.Title)
	}
}

func TestDebouncer_PassesOtherEventsThrough(t *testing.T) {
	sink := &recordingSink{}
	d := NewDebouncer(sink, DefaultDebounceConfig(), testLogger())
	defer d.Stop()

	_ = d.Dispatch(context.Background(), NewEvent(EventPostCreated, PostEventData{ID: "p1"}))
	if sink.count() != 1 {
		t.Errorf("post.created should be forwarded synchronously, got %d events", sink.count())
	}
	if n := d.pendingLen(); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
}

func TestDebouncer_DeleteDropsPendingUpdate(t *testing.T) {
	sink := &recordingSink{}
	d := NewDebouncer(sink, DebounceConfig{Interval: 100 * time.Millisecond, MaxWait: time.Second}, testLogger())
	defer d.Stop()

	ctx := context.Background()
	_ = d.Dispatch(ctx, NewEvent(EventPostUpdated, PostEventData{ID: "p1"}))
	_ = d.Dispatch(ctx, NewEvent(EventPostUpdated, PostEventData{ID: "p2"}))
	if err := d.Dispatch(ctx, NewEvent(EventPostDeleted, PostEventData{ID: "p1"})); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// p2's update still arrives after its own interval.
	waitFor(t, 2*time.Second, func() bool { return sink.count() == 2 })
	time.Sleep(50 * time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("delivered %d events, want 2", len(sink.events))
	}
	if sink.events[0].Type != EventPostDeleted {
		t.Errorf("first event = %s, want %s", sink.events[0].Type, EventPostDeleted)
	}
	for _, e := range sink.events {
		if e.Type == EventPostUpdated && postID(e) == "p1" {
			t.Error("update for the deleted post was delivered")
		}
	}
}

func TestDebouncer_PendingUpdateGoesFirst(t *testing.T) {
	sink := &recordingSink{}
	d := NewDebouncer(sink, DebounceConfig{Interval: time.Hour, MaxWait: time.Hour}, testLogger())
	defer d.Stop()

	ctx := context.Background()
	_ = d.Dispatch(ctx, NewEvent(EventPostUpdated, PostEventData{ID: "p1", Title: "draft"}))
	_ = d.Dispatch(ctx, NewEvent(EventPostCreated, PostEventData{ID: "p1"}))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("delivered %d events, want 2", len(sink.events))
	}
	if sink.events[0].Type != EventPostUpdated || sink.events[1].Type != EventPostCreated {
		t.Errorf("order = [%s %s], want [post.updated post.created]", sink.events[0].Type, sink.events[1].Type)
	}
}

func TestDebouncer_StopFlushes(t *testing.T) {
	sink := &recordingSink{}
	d := NewDebouncer(sink, DebounceConfig{Interval: time.Hour, MaxWait: time.Hour}, testLogger())

	_ = d.Dispatch(context.Background(), NewEvent(EventPostUpdated, PostEventData{ID: "p1"}))
	_ = d.Dispatch(context.Background(), NewEvent(EventPostUpdated, PostEventData{ID: "p2"}))
	d.Stop()

	if sink.count() != 2 {
		t.Errorf("flushed %d events, want 2", sink.count())
	}
}
