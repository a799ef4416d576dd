// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives events. Dispatcher, NATSPublisher, Debouncer and Bus are sinks.
type Sink interface {
	Dispatch(ctx context.Context, event *Event) error
}

// Dispatcher delivers events to a fixed set of webhook URLs. Deliveries are
// queued and processed by a pool of workers with exponential retry.
type Dispatcher struct {
	urls    []string
	secret  string
	client  *http.Client
	logger  *slog.Logger
	cfg     Config
	queue   chan *QueuedDelivery
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
	nextID  atomic.Int64
}

// QueuedDelivery represents a delivery queued for processing.
type QueuedDelivery struct {
	DeliveryID int64
	Event      string
	Payload    []byte
	URL        string
	Attempts   int
}

// Config holds dispatcher configuration.
type Config struct {
	Workers        int           // Number of concurrent delivery workers
	QueueSize      int           // Buffered deliveries before new ones are dropped
	MaxAttempts    int           // Attempts before a delivery is given up
	InitialBackoff time.Duration // Delay before the first retry
	MaxBackoff     time.Duration // Upper bound for retry delay
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        3,
		QueueSize:      100,
		MaxAttempts:    MaxAttempts,
		InitialBackoff: InitialBackoff,
		MaxBackoff:     MaxBackoff,
	}
}

// NewDispatcher creates a dispatcher for the given URLs. Payloads are signed
// with secret when it is non-empty.
func NewDispatcher(urls []string, secret string, logger *slog.Logger, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	var clean []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}

	return &Dispatcher{
		urls:   clean,
		secret: secret,
		client: httpClient,
		logger: logger,
		cfg:    cfg,
		queue:  make(chan *QueuedDelivery, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start starts the dispatcher workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.cfg.Workers, "targets", len(d.urls))

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the dispatcher and waits for workers to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

// worker processes queued deliveries.
func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			d.logger.Debug("webhook worker stopping", "worker_id", id)
			return
		case <-ctx.Done():
			d.logger.Debug("webhook worker context cancelled", "worker_id", id)
			return
		case delivery := <-d.queue:
			d.processDelivery(ctx, delivery)
		}
	}
}

// Dispatch queues the event for every configured URL.
func (d *Dispatcher) Dispatch(_ context.Context, event *Event) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		d.logger.Warn("dispatcher not running, cannot dispatch event", "event_type", event.Type)
		return nil
	}
	if len(d.urls) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal event payload", "error", err, "event_type", event.Type)
		return err
	}

	for _, url := range d.urls {
		qd := &QueuedDelivery{
			DeliveryID: d.nextID.Add(1),
			Event:      event.Type,
			Payload:    payload,
			URL:        url,
		}
		d.enqueue(qd)
	}
	return nil
}

// enqueue hands a delivery to the workers without blocking the caller.
func (d *Dispatcher) enqueue(qd *QueuedDelivery) {
	select {
	case <-d.done:
		d.logger.Warn("dispatcher stopped, delivery dropped", "delivery_id", qd.DeliveryID)
	case d.queue <- qd:
		d.logger.Debug("delivery queued", "delivery_id", qd.DeliveryID, "url", qd.URL)
	default:
		d.logger.Warn("delivery queue full, delivery dropped", "delivery_id", qd.DeliveryID, "url", qd.URL)
	}
}

// DispatchEvent is a convenience method to dispatch an event with the given type and data.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
