// Package webhook posts session payloads to the configured HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ccollicutt/falllog/pkg/config"
	"github.com/ccollicutt/falllog/pkg/output"
)

// Headers set on every delivery.
const (
	HeaderSession = "X-Falllog-Session"
	HeaderEvent   = "X-Falllog-Event"
	HeaderFalls   = "X-Falllog-Falls"
)

const userAgent = "falllog-webhook"

// maxResponseBody bounds how much of a receiver's reply is read.
const maxResponseBody = 64 * 1024

// Client delivers session payloads to a fixed set of webhooks.
type Client struct {
	httpClient *http.Client
	hooks      []config.WebhookConfig
	logger     *slog.Logger
}

// NewClient creates a client for hooks.
func NewClient(hooks []config.WebhookConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		hooks:      hooks,
		logger:     logger,
	}
}

// Delivery is the outcome of one webhook for one session.
type Delivery struct {
	Hook       string
	Skipped    bool
	StatusCode int
	Duration   time.Duration
	Err        error
}

// OK reports whether the receiver accepted the payload.
func (d Delivery) OK() bool {
	return !d.Skipped && d.Err == nil
}

// ShouldFire reports whether hook fires for report. Unset triggers behave
// like on_data.
func (c *Client) ShouldFire(hook config.WebhookConfig, report *output.Report) bool {
	switch hook.Trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return report.HasData()
	}
}

// Dispatch sends report to every hook whose trigger matches. A failed
// delivery is logged and never stops the others.
func (c *Client) Dispatch(ctx context.Context, report *output.Report) []Delivery {
	deliveries := make([]Delivery, 0, len(c.hooks))

	payload := NewPayload(report)
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("webhook payload not encodable", "session", payload.Session.ID, "error", err)
		return deliveries
	}

	for _, hook := range c.hooks {
		name := hook.Name
		if name == "" {
			name = hook.URL
		}

		if !c.ShouldFire(hook, report) {
			c.logger.Debug("webhook skipped", "webhook", name, "trigger", hook.Trigger, "event", payload.Event)
			deliveries = append(deliveries, Delivery{Hook: name, Skipped: true})
			continue
		}

		d := c.deliver(ctx, hook, payload, body)
		d.Hook = name
		if d.OK() {
			c.logger.Info("webhook sent", "webhook", name, "event", payload.Event, "status", d.StatusCode, "duration", d.Duration)
		} else {
			c.logger.Warn("webhook failed", "webhook", name, "event", payload.Event, "error", d.Err)
		}
		deliveries = append(deliveries, d)
	}

	return deliveries
}

func (c *Client) deliver(ctx context.Context, hook config.WebhookConfig, payload *Payload, body []byte) Delivery {
	start := time.Now()
	var d Delivery

	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		d.Err = fmt.Errorf("building request: %w", err)
		d.Duration = time.Since(start)
		return d
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderSession, payload.Session.ID)
	req.Header.Set(HeaderEvent, payload.Event)
	req.Header.Set(HeaderFalls, strconv.Itoa(len(payload.Falls)))
	if hook.Token != "" {
		req.Header.Set("Authorization", "Bearer "+hook.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		d.Err = fmt.Errorf("posting to %s: %w", hook.URL, err)
		d.Duration = time.Since(start)
		return d
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	d.StatusCode = resp.StatusCode
	d.Duration = time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.Err = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return d
}
