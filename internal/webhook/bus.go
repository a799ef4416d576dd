// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"errors"
	"log/slog"
)

// Bus fans an event out to every sink. A failing sink does not stop the others.
type Bus struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewBus creates a bus over the non-nil sinks.
func NewBus(logger *slog.Logger, sinks ...Sink) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{logger: logger}
	for _, s := range sinks {
		if s != nil {
			b.sinks = append(b.sinks, s)
		}
	}
	return b
}

// Len returns the number of sinks.
func (b *Bus) Len() int { return len(b.sinks) }

// Dispatch sends the event to every sink and joins their errors.
func (b *Bus) Dispatch(ctx context.Context, event *Event) error {
	var errs []error
	for _, s := range b.sinks {
		if err := s.Dispatch(ctx, event); err != nil {
			b.logger.Error("event sink failed", "event_type", event.Type, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatchEvent dispatches an event with the given type and data.
func (b *Bus) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return b.Dispatch(ctx, NewEvent(eventType, data))
}
