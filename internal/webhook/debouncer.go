// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DebounceConfig holds debouncer configuration.
type DebounceConfig struct {
	// Interval is the debounce window duration.
	// Events within this window will be coalesced into a single event.
	Interval time.Duration
	// MaxWait is the maximum time to wait before dispatching.
	// Even if events keep coming, dispatch after this time.
	MaxWait time.Duration
}

// DefaultDebounceConfig returns default debounce configuration.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Interval: 1 * time.Second,
		MaxWait:  5 * time.Second,
	}
}

// pendingEvent tracks a debounced event.
type pendingEvent struct {
	event     *Event
	timer     *time.Timer
	firstSeen time.Time
}

// Debouncer coalesces repeated post.updated events for the same post, so an
// author saving several times in a row produces one notification. Every other
// event passes straight through.
//
// Events for one post keep their order: a pending update is delivered before
// any later event for the same post, and is dropped when the post is deleted.
type Debouncer struct {
	next    Sink
	config  DebounceConfig
	logger  *slog.Logger
	pending map[string]*pendingEvent
	mu      sync.Mutex

	// deliverMu serializes deliveries of post events. It is taken before mu.
	deliverMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDebouncer creates a debouncer in front of next.
func NewDebouncer(next Sink, config DebounceConfig, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		next:    next,
		config:  config,
		logger:  logger,
		pending: make(map[string]*pendingEvent),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// postID returns the ID of the post an event is about, or "".
func postID(event *Event) string {
	switch data := event.Data.(type) {
	case PostEventData:
		return data.ID
	case *PostEventData:
		if data != nil {
			return data.ID
		}
	}
	return ""
}

func updateKey(id string) string {
	return EventPostUpdated + ":" + id
}

// eventKey returns the coalescing key, or "" if the event is not debounced.
func eventKey(event *Event) string {
	if event.Type != EventPostUpdated {
		return ""
	}
	if id := postID(event); id != "" {
		return updateKey(id)
	}
	return ""
}

// Dispatch queues a post.updated event for debounced delivery, replacing any
// pending event for the same post. Other events are forwarded immediately,
// after any update still pending for the same post.
func (d *Debouncer) Dispatch(ctx context.Context, event *Event) error {
	key := eventKey(event)
	if key == "" {
		return d.forward(ctx, event)
	}
	now := time.Now()

	d.mu.Lock()
	existing, ok := d.pending[key]
	if !ok {
		pe := &pendingEvent{event: event, firstSeen: now}
		pe.timer = time.AfterFunc(d.config.Interval, func() { d.deliverPending(key) })
		d.pending[key] = pe
		d.mu.Unlock()
		d.logger.Debug("debounced event queued", "key", key)
		return nil
	}

	existing.event = event
	if now.Sub(existing.firstSeen) < d.config.MaxWait {
		existing.timer.Reset(d.config.Interval)
		d.mu.Unlock()
		d.logger.Debug("debounced event updated", "key", key)
		return nil
	}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliverPending(key)
	}()
	return nil
}

// forward hands a non-debounced event on. For post events the pending
// update of the same post goes first, or is dropped if the post is gone.
func (d *Debouncer) forward(ctx context.Context, event *Event) error {
	id := postID(event)
	if id == "" {
		return d.next.Dispatch(ctx, event)
	}

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	if stale := d.take(updateKey(id)); stale != nil {
		if event.Type == EventPostDeleted {
			d.logger.Debug("pending update dropped for deleted post", "post_id", id)
		} else {
			d.send(stale)
		}
	}
	return d.next.Dispatch(ctx, event)
}

// take removes and returns the pending event for key, or nil.
func (d *Debouncer) take(key string) *Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	pe, ok := d.pending[key]
	if !ok {
		return nil
	}
	pe.timer.Stop()
	delete(d.pending, key)
	return pe.event
}

// deliverPending sends the pending event for key, if it is still pending.
func (d *Debouncer) deliverPending(key string) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	if event := d.take(key); event != nil {
		d.send(event)
	}
}

func (d *Debouncer) send(event *Event) {
	if err := d.next.Dispatch(d.ctx, event); err != nil {
		d.logger.Error("failed to dispatch debounced event", "error", err, "event_type", event.Type)
	}
}

// Flush immediately dispatches all pending events.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for key := range d.pending {
		keys = append(keys, key)
	}
	d.mu.Unlock()

	for _, key := range keys {
		d.deliverPending(key)
	}
}

// Stop flushes pending events and waits for them to be handed on.
func (d *Debouncer) Stop() {
	if n := d.pendingLen(); n > 0 {
		d.logger.Info("flushing debounced events", "count", n)
	}
	d.Flush()
	d.wg.Wait()

	// Wait out a timer delivery already in progress.
	d.deliverMu.Lock()
	d.deliverMu.Unlock()
	d.cancel()
}

func (d *Debouncer) pendingLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
