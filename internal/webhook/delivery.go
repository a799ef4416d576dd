// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Delivery configuration constants
const (
	MaxAttempts     = 5                  // Maximum number of delivery attempts
	InitialBackoff  = 1 * time.Minute    // Initial backoff delay
	MaxBackoff      = 24 * time.Hour     // Maximum backoff delay
	RequestTimeout  = 30 * time.Second   // HTTP request timeout
	MaxResponseLen  = 10 * 1024          // Maximum response body kept for logs (10KB)
	UserAgent       = "blockpress/1.0"   // User-Agent header value
	SignatureHeader = "X-Blockpress-Signature"
	SignaturePrefix = "sha256="
)

// DeliveryResult represents the result of a delivery attempt.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        error
	ShouldRetry  bool
}

// httpClient is the shared HTTP client with appropriate timeouts.
var httpClient = &http.Client{
	Timeout: RequestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// processDelivery attempts a delivery and schedules a retry on retryable failures.
func (d *Dispatcher) processDelivery(ctx context.Context, delivery *QueuedDelivery) {
	result := d.attemptDelivery(ctx, delivery)
	delivery.Attempts++

	if result.Success {
		d.logger.Info("webhook delivered successfully",
			"delivery_id", delivery.DeliveryID,
			"event", delivery.Event,
			"status_code", result.StatusCode)
		return
	}

	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}

	if !result.ShouldRetry || delivery.Attempts >= d.cfg.MaxAttempts {
		d.logger.Warn("webhook delivery abandoned",
			"delivery_id", delivery.DeliveryID,
			"url", delivery.URL,
			"attempts", delivery.Attempts,
			"reason", errMsg)
		return
	}

	backoff := calculateBackoff(delivery.Attempts, d.cfg.InitialBackoff, d.cfg.MaxBackoff)
	d.logger.Info("webhook delivery scheduled for retry",
		"delivery_id", delivery.DeliveryID,
		"attempt", delivery.Attempts,
		"backoff", backoff.String(),
		"reason", errMsg)

	time.AfterFunc(backoff, func() { d.enqueue(delivery) })
}

// attemptDelivery performs the actual HTTP POST request.
func (d *Dispatcher) attemptDelivery(ctx context.Context, delivery *QueuedDelivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return DeliveryResult{
			Success:     false,
			Error:       fmt.Errorf("failed to create request: %w", err),
			ShouldRetry: false, // Bad URL, don't retry
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Blockpress-Event", delivery.Event)
	req.Header.Set("X-Blockpress-Delivery", strconv.FormatInt(delivery.DeliveryID, 10))
	if d.secret != "" {
		req.Header.Set(SignatureHeader, SignaturePrefix+GenerateSignature(delivery.Payload, d.secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{
			Success:     false,
			Error:       fmt.Errorf("request failed: %w", err),
			ShouldRetry: true, // Network error, retry
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	responseBody := string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return DeliveryResult{
			Success:      true,
			StatusCode:   resp.StatusCode,
			ResponseBody: responseBody,
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// Client error - don't retry (except for 408 Request Timeout and 429 Too Many Requests)
		shouldRetry := resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests
		return DeliveryResult{
			Success:      false,
			StatusCode:   resp.StatusCode,
			ResponseBody: responseBody,
			Error:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			ShouldRetry:  shouldRetry,
		}
	}

	return DeliveryResult{
		Success:      false,
		StatusCode:   resp.StatusCode,
		ResponseBody: responseBody,
		Error:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		ShouldRetry:  true,
	}
}

// calculateBackoff returns initial * 2^(attempt-1), capped at limit.
func calculateBackoff(attempt int, initial, limit time.Duration) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	backoff := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if backoff > limit || backoff <= 0 {
		backoff = limit
	}
	return backoff
}
