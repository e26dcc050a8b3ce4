// Package webhook delivers fraud alerts to merchant callback URLs.
//
// Delivery is fire-and-forget: each notification runs in its own goroutine
// with a bounded timeout, and a failed delivery is logged and counted but
// never affects the analysis response. Two kinds of targets exist: the
// merchant's own webhook URL (fired on HIGH-level analyses) and standalone
// registered webhooks (fired when the score meets their threshold).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"sentinel/risk-api/internal/domain"
	"sentinel/risk-api/internal/metrics"
	"sentinel/risk-api/internal/store"
)

const (
	eventAnalysisCompleted = "fraud.analysis.completed"
	deliveryTimeout        = 5 * time.Second
)

// Notifier sends analysis alerts to configured webhook URLs.
type Notifier struct {
	store  *store.Store
	client *http.Client
}

// New creates a Notifier with the standard delivery timeout.
func New(s *store.Store) *Notifier {
	return &Notifier{
		store:  s,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

// NotifyAsync fans the analysis out to every matching target without
// blocking the caller: the merchant's webhook URL when the analysis is
// HIGH-level, and every active registered webhook whose threshold the score
// meets. The merchant may be nil (e.g. the merchant record was deleted
// between scoring and delivery).
func (n *Notifier) NotifyAsync(merchant *domain.Merchant, analysis *domain.RiskAnalysis) {
	if merchant != nil && merchant.WebhookURL != "" && analysis.RiskLevel == domain.RiskHigh {
		go n.deliver(merchant.WebhookURL, analysis)
	}

	for _, wh := range n.store.ListActiveWebhooks() {
		if analysis.RiskScore >= wh.Threshold {
			go n.deliver(wh.URL, analysis)
		}
	}
}

func (n *Notifier) deliver(url string, analysis *domain.RiskAnalysis) {
	payload := domain.WebhookPayload{
		Event:       eventAnalysisCompleted,
		TriggeredAt: time.Now().UTC(),
		Analysis:    *analysis,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("webhook payload marshal failed", "error", err)
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook request build failed", "url", url, "error", err)
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sentinel-Event", eventAnalysisCompleted)

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Warn("webhook delivery failed",
			"url", url,
			"transaction_id", analysis.TransactionID,
			"error", err,
		)
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Warn("webhook delivery rejected",
			"url", url,
			"transaction_id", analysis.TransactionID,
			"status", resp.StatusCode,
		)
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		return
	}

	slog.Info("webhook delivered",
		"url", url,
		"transaction_id", analysis.TransactionID,
		"risk_level", analysis.RiskLevel,
	)
	metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
}
