// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// MsgPublisher is the part of *nats.Conn the publisher needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes events on "<subject>.<event type>".
type NATSPublisher struct {
	conn    MsgPublisher
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(conn MsgPublisher, subject string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

// ConnectNATS dials the server at url.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("blockpress"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return nc, nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	if p.subject == "" {
		return eventType
	}
	return p.subject + "." + eventType
}

// Dispatch publishes the event as JSON.
func (p *NATSPublisher) Dispatch(_ context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.Subject(event.Type),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("X-Blockpress-Event", event.Type)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", msg.Subject, err)
	}
	p.logger.Debug("event published", "subject", msg.Subject)
	return nil
}
