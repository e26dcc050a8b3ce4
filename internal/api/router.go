package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the HTTP-layer settings.
type RouterConfig struct {
	JWTSecret  string
	RateLimit  int
	RateWindow time.Duration
}

// NewRouter builds the full route tree. /health and /metrics are open;
// merchant registration and login are open; everything else under /api/v1
// requires merchant credentials.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(newRateLimiter(cfg.RateLimit, cfg.RateWindow).middleware)

		r.Post("/merchants/register", h.registerMerchant)
		r.Post("/merchants/login", h.loginMerchant)

		r.Group(func(r chi.Router) {
			r.Use(requireMerchant(h.store, cfg.JWTSecret))

			r.Post("/fraud/analyze", h.analyzeTransaction)
			r.Post("/fraud/batch-analyze", h.batchAnalyze)
			r.Get("/fraud/score/{transactionID}", h.getScore)
			r.Get("/fraud/analysis/{transactionID}", h.getAnalysis)
			r.Get("/fraud/analyses", h.listAnalyses)

			r.Get("/merchants/profile", h.merchantProfile)

			r.Post("/webhooks", h.createWebhook)
			r.Get("/webhooks", h.listWebhooks)
			r.Delete("/webhooks/{webhookID}", h.deleteWebhook)

			r.Post("/verification/send", h.sendVerification)
			r.Post("/verification/verify", h.verifyCode)
			r.Get("/verification/status/{transactionID}", h.verificationStatus)

			r.Get("/dashboard", h.dashboard)
		})
	})

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
