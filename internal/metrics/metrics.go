// Package metrics exposes the Prometheus instrumentation for the fraud API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sentinel/risk-api/internal/domain"
)

var (
	// AnalysesTotal counts completed risk analyses by resulting level.
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "fraud",
		Name:      "analyses_total",
		Help:      "Completed risk analyses by risk level.",
	}, []string{"risk_level"})

	// AnalysisDuration tracks end-to-end scoring latency.
	AnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sentinel",
		Subsystem: "fraud",
		Name:      "analysis_duration_seconds",
		Help:      "Time spent scoring a single transaction.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	// FlagsRaised counts individual heuristic flags across analyses.
	FlagsRaised = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "fraud",
		Name:      "flags_raised_total",
		Help:      "Heuristic flags raised, by flag name.",
	}, []string{"flag"})

	// WebhookDeliveries counts webhook delivery attempts by outcome.
	WebhookDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "fraud",
		Name:      "webhook_deliveries_total",
		Help:      "Webhook delivery attempts by outcome (delivered, failed).",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		AnalysesTotal,
		AnalysisDuration,
		FlagsRaised,
		WebhookDeliveries,
	)
}

// ObserveAnalysis records one completed analysis.
func ObserveAnalysis(a *domain.RiskAnalysis, elapsed time.Duration) {
	AnalysesTotal.WithLabelValues(a.RiskLevel).Inc()
	AnalysisDuration.Observe(elapsed.Seconds())
	for _, flag := range a.Flags {
		FlagsRaised.WithLabelValues(flag).Inc()
	}
}
