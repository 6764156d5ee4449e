// Package notify delivers created alerts to an operator webhook. Delivery is
// fire-and-forget: failures are logged and never propagated, and a slow
// endpoint cannot stall alert creation or the simulation loop.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/steelstack/millwatch/internal/models"
)

// queueSize bounds pending deliveries. Alerts are edge-triggered and rare, so
// a small buffer absorbs bursts; beyond it new alerts are dropped with a log
// line rather than blocking the caller.
const queueSize = 64

// Notifier posts each created alert to a single webhook URL. It satisfies
// alerts.Sink.
type Notifier struct {
	log    *slog.Logger
	url    string
	client *http.Client
	queue  chan models.Alert
}

// NewNotifier builds a Notifier for url. timeout bounds each delivery
// attempt.
func NewNotifier(log *slog.Logger, url string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		log:    log,
		url:    url,
		client: &http.Client{Timeout: timeout},
		queue:  make(chan models.Alert, queueSize),
	}
}

// AlertCreated enqueues an alert for delivery. It never blocks: when the
// queue is full the alert is dropped and logged.
func (n *Notifier) AlertCreated(alert models.Alert) {
	if n.url == "" {
		return
	}
	select {
	case n.queue <- alert:
	default:
		n.log.Warn("webhook queue full, dropping alert", "alert_id", alert.ID)
	}
}

// Run drains the queue until ctx is cancelled. Pending alerts at shutdown are
// abandoned; the webhook is a courtesy channel, not a system of record.
func (n *Notifier) Run(ctx context.Context) {
	n.log.Info("webhook notifier started", "url", n.url)
	for {
		select {
		case <-ctx.Done():
			n.log.Info("webhook notifier stopped")
			return
		case alert := <-n.queue:
			if err := n.send(ctx, alert); err != nil {
				n.log.Error("webhook delivery failed", "alert_id", alert.ID, "error", err)
			} else {
				n.log.Debug("webhook delivered", "alert_id", alert.ID, "severity", alert.Severity)
			}
		}
	}
}

func (n *Notifier) send(ctx context.Context, alert models.Alert) error {
	body, err := json.Marshal(map[string]any{"alert": alert})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
