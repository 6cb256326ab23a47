// Package notify delivers quality and pipeline alerts to an incoming
// webhook. Without a configured URL the payload is only logged.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vanshika/quickpay/internal/analytics"
	"github.com/vanshika/quickpay/internal/config"
	"github.com/vanshika/quickpay/internal/metrics"
	"github.com/vanshika/quickpay/internal/quality"
)

// ErrDelivery is returned when the webhook answers with a non-2xx status.
var ErrDelivery = errors.New("webhook delivery failed")

// Notification kinds, used as the metrics label.
const (
	KindQuality = "quality"
	KindAnomaly = "anomaly"
	KindFlow    = "flow"
)

// Notifier posts payloads to a webhook.
type Notifier struct {
	url         string
	reportURL   string
	environment string
	client      *http.Client
	logger      *slog.Logger
	metrics     *metrics.Collectors
	now         func() time.Time
}

// Option customises a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithMetrics counts deliveries by kind and outcome.
func WithMetrics(m *metrics.Collectors) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithClock overrides the time source used in alert texts.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// New returns a Notifier for cfg. environment is shown in quality reports.
func New(cfg config.WebhookConfig, environment string, logger *slog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		url:         cfg.URL,
		reportURL:   cfg.ReportURL,
		environment: environment,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool { return n.url != "" }

// QualityReport sends the quality report message.
func (n *Notifier) QualityReport(ctx context.Context, report quality.Report) error {
	return n.send(ctx, KindQuality, QualityPayload(report, n.environment, n.reportURL))
}

// Anomaly sends a metric anomaly alert.
func (n *Notifier) Anomaly(ctx context.Context, metric string, a analytics.Anomaly) error {
	return n.send(ctx, KindAnomaly, AnomalyPayload(metric, a, n.now()))
}

// Text sends a plain message, used for flow outcomes.
func (n *Notifier) Text(ctx context.Context, text string) error {
	return n.send(ctx, KindFlow, Payload{Text: text})
}

func (n *Notifier) send(ctx context.Context, kind string, payload Payload) (err error) {
	defer func() { n.metrics.Notification(kind, err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}

	if !n.Enabled() {
		n.logger.Info("webhook not configured, payload preview",
			slog.String("kind", kind),
			slog.String("payload", string(body)))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s notification: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s", ErrDelivery, resp.Status, bytes.TrimSpace(msg))
	}
	n.logger.Info("notification sent", slog.String("kind", kind))
	return nil
}
