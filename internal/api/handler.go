// Package api exposes the fraud engine over HTTP: analysis endpoints,
// merchant onboarding, webhook management, email verification, and an
// operations dashboard. Responses use a uniform {data, error} envelope.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sentinel/risk-api/internal/domain"
	"sentinel/risk-api/internal/metrics"
	"sentinel/risk-api/internal/scoring"
	"sentinel/risk-api/internal/store"
	"sentinel/risk-api/internal/verification"
	"sentinel/risk-api/internal/webhook"
)

const maxBatchSize = 100

// Handler wires the HTTP layer to the engine, store, and side services.
type Handler struct {
	store     *store.Store
	engine    *scoring.Engine
	notifier  *webhook.Notifier
	verifier  *verification.Service
	jwtSecret string
}

// NewHandler assembles the handler.
func NewHandler(s *store.Store, e *scoring.Engine, n *webhook.Notifier, v *verification.Service, jwtSecret string) *Handler {
	return &Handler{store: s, engine: e, notifier: n, verifier: v, jwtSecret: jwtSecret}
}

// ─── Fraud analysis ───────────────────────────────────────────────────────────

func (h *Handler) analyzeTransaction(w http.ResponseWriter, r *http.Request) {
	var tc domain.TransactionContext
	if err := json.NewDecoder(r.Body).Decode(&tc); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	merchant, _ := merchantFrom(r.Context())
	if tc.MerchantID == "" && merchant != nil {
		tc.MerchantID = merchant.ID
	}

	analysis, err := h.runAnalysis(&tc)
	if err != nil {
		var verr *scoring.ValidationError
		if errors.As(err, &verr) {
			badRequest(w, "invalid transaction context", verr.Error())
			return
		}
		slog.Error("analysis failed", "error", err)
		internalError(w)
		return
	}

	h.notifier.NotifyAsync(merchant, analysis)
	ok(w, analysis)
}

func (h *Handler) batchAnalyze(w http.ResponseWriter, r *http.Request) {
	var contexts []domain.TransactionContext
	if err := json.NewDecoder(r.Body).Decode(&contexts); err != nil {
		badRequest(w, "invalid JSON body: expected an array of transaction contexts")
		return
	}
	if len(contexts) == 0 {
		badRequest(w, "empty batch")
		return
	}
	if len(contexts) > maxBatchSize {
		badRequest(w, "batch too large: at most 100 transactions per request")
		return
	}

	merchant, _ := merchantFrom(r.Context())

	type batchResult struct {
		Analysis *domain.RiskAnalysis `json:"analysis,omitempty"`
		Error    string               `json:"error,omitempty"`
	}

	results := make([]batchResult, len(contexts))
	for i := range contexts {
		tc := &contexts[i]
		if tc.MerchantID == "" && merchant != nil {
			tc.MerchantID = merchant.ID
		}
		analysis, err := h.runAnalysis(tc)
		if err != nil {
			results[i] = batchResult{Error: err.Error()}
			continue
		}
		h.notifier.NotifyAsync(merchant, analysis)
		results[i] = batchResult{Analysis: analysis}
	}

	ok(w, results)
}

// runAnalysis scores, records metrics, and persists. Persisting after
// scoring keeps the transaction out of its own history.
func (h *Handler) runAnalysis(tc *domain.TransactionContext) (*domain.RiskAnalysis, error) {
	start := time.Now()
	analysis, err := h.engine.Analyze(tc)
	if err != nil {
		return nil, err
	}
	metrics.ObserveAnalysis(analysis, time.Since(start))

	if err := h.store.SaveAnalysis(analysis, tc); err != nil {
		// Transaction IDs are random; a collision here is effectively
		// impossible, but losing the analysis would be worse than a log line.
		slog.Error("analysis save failed", "transaction_id", analysis.TransactionID, "error", err)
	}
	return analysis, nil
}

func (h *Handler) getScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")
	analysis, found := h.store.GetAnalysis(id)
	if !found {
		notFound(w, "no analysis for transaction "+id)
		return
	}
	ok(w, map[string]any{
		"transaction_id":  analysis.TransactionID,
		"risk_score":      analysis.RiskScore,
		"risk_level":      analysis.RiskLevel,
		"recommendations": analysis.Recommendations,
		"flags":           analysis.Flags,
	})
}

func (h *Handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")
	analysis, found := h.store.GetAnalysis(id)
	if !found {
		notFound(w, "no analysis for transaction "+id)
		return
	}
	ok(w, analysis)
}

func (h *Handler) listAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses := h.store.AllAnalyses()
	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].Timestamp.After(analyses[j].Timestamp)
	})

	if level := r.URL.Query().Get("risk_level"); level != "" {
		filtered := analyses[:0]
		for _, a := range analyses {
			if a.RiskLevel == level {
				filtered = append(filtered, a)
			}
		}
		analyses = filtered
	}

	ok(w, map[string]any{
		"count":    len(analyses),
		"analyses": analyses,
	})
}

// ─── Merchants ────────────────────────────────────────────────────────────────

type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	WebhookURL  string `json:"webhook_url"`
	Description string `json:"description"`
}

func (h *Handler) registerMerchant(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Email == "" {
		badRequest(w, "name and email are required")
		return
	}

	m := &domain.Merchant{
		ID:          "mer_" + uuid.NewString(),
		Name:        req.Name,
		Email:       req.Email,
		Website:     req.Website,
		WebhookURL:  req.WebhookURL,
		Description: req.Description,
		APIKey:      "sk_" + uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
	}
	if err := h.store.SaveMerchant(m); err != nil {
		conflict(w, "a merchant with this email is already registered")
		return
	}

	slog.Info("merchant registered", "merchant_id", m.ID, "email", m.Email)
	created(w, m)
}

type loginRequest struct {
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
}

func (h *Handler) loginMerchant(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	m, found := h.store.GetMerchantByEmail(req.Email)
	if !found || m.APIKey != req.APIKey || !m.IsActive {
		unauthorized(w, "invalid email or API key")
		return
	}

	token, err := issueToken(m.ID, h.jwtSecret)
	if err != nil {
		slog.Error("token issue failed", "merchant_id", m.ID, "error", err)
		internalError(w)
		return
	}

	ok(w, map[string]any{
		"token":       token,
		"merchant_id": m.ID,
		"expires_in":  int((24 * time.Hour).Seconds()),
	})
}

func (h *Handler) merchantProfile(w http.ResponseWriter, r *http.Request) {
	m, found := merchantFrom(r.Context())
	if !found {
		unauthorized(w, "not authenticated")
		return
	}
	ok(w, m)
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

type webhookRequest struct {
	URL       string   `json:"url"`
	Threshold *float64 `json:"threshold"`
}

func (h *Handler) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.URL == "" {
		badRequest(w, "url is required")
		return
	}
	threshold := 0.7
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			badRequest(w, "threshold must be within [0, 1]")
			return
		}
		threshold = *req.Threshold
	}

	wh := &domain.WebhookConfig{
		ID:        "wh_" + uuid.NewString(),
		URL:       req.URL,
		Threshold: threshold,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
	h.store.SaveWebhook(wh)
	created(w, wh)
}

func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	ok(w, h.store.ListActiveWebhooks())
}

func (h *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "webhookID")
	if !h.store.DeleteWebhook(id) {
		notFound(w, "no webhook "+id)
		return
	}
	noContent(w)
}

// ─── Email verification ───────────────────────────────────────────────────────

type sendVerificationRequest struct {
	Email         string  `json:"email"`
	TransactionID string  `json:"transaction_id"`
	RiskScore     float64 `json:"risk_score"`
}

func (h *Handler) sendVerification(w http.ResponseWriter, r *http.Request) {
	var req sendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.TransactionID == "" {
		badRequest(w, "email and transaction_id are required")
		return
	}

	vc, err := h.verifier.Send(req.Email, req.TransactionID, req.RiskScore)
	if err != nil {
		slog.Error("verification send failed", "transaction_id", req.TransactionID, "error", err)
		internalError(w)
		return
	}
	ok(w, vc)
}

type verifyCodeRequest struct {
	TransactionID string `json:"transaction_id"`
	Code          string `json:"code"`
}

func (h *Handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	err := h.verifier.Verify(req.TransactionID, req.Code)
	switch {
	case err == nil:
		ok(w, map[string]any{"verified": true, "transaction_id": req.TransactionID})
	case errors.Is(err, verification.ErrNotFound):
		notFound(w, "no pending verification for transaction "+req.TransactionID)
	case errors.Is(err, verification.ErrTooManyAttempts):
		writeJSON(w, http.StatusTooManyRequests, envelope{Error: &apiError{
			Code: "too_many_attempts", Message: "verification destroyed after too many failed attempts",
		}})
	default:
		var wrong *verification.WrongCodeError
		if errors.As(err, &wrong) {
			writeJSON(w, http.StatusUnprocessableEntity, envelope{Error: &apiError{
				Code:    "invalid_code",
				Message: wrong.Error(),
			}})
			return
		}
		internalError(w)
	}
}

func (h *Handler) verificationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")
	vc, found := h.verifier.Status(id)
	if !found {
		notFound(w, "no pending verification for transaction "+id)
		return
	}
	ok(w, vc)
}

// ─── Dashboard ────────────────────────────────────────────────────────────────

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	analyses := h.store.AllAnalyses()
	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].Timestamp.After(analyses[j].Timestamp)
	})

	var overview domain.DashboardOverview
	overview.TotalAnalyses = len(analyses)
	flagCounts := make(map[string]int)
	var scoreSum float64
	for _, a := range analyses {
		scoreSum += a.RiskScore
		switch a.RiskLevel {
		case domain.RiskHigh:
			overview.HighRiskCount++
		case domain.RiskMedium:
			overview.MediumRiskCount++
		default:
			overview.LowRiskCount++
		}
		for _, f := range a.Flags {
			flagCounts[f]++
		}
	}
	if overview.TotalAnalyses > 0 {
		overview.AvgRiskScore = scoreSum / float64(overview.TotalAnalyses)
		overview.FraudRate = float64(overview.HighRiskCount) / float64(overview.TotalAnalyses) * 100
	}

	topFlags := make([]domain.FlagCount, 0, len(flagCounts))
	for flag, count := range flagCounts {
		topFlags = append(topFlags, domain.FlagCount{Flag: flag, Count: count})
	}
	sort.Slice(topFlags, func(i, j int) bool {
		if topFlags[i].Count != topFlags[j].Count {
			return topFlags[i].Count > topFlags[j].Count
		}
		return topFlags[i].Flag < topFlags[j].Flag
	})
	if len(topFlags) > 5 {
		topFlags = topFlags[:5]
	}

	recent := analyses
	if len(recent) > 10 {
		recent = recent[:10]
	}
	recentValues := make([]domain.RiskAnalysis, len(recent))
	for i, a := range recent {
		recentValues[i] = *a
	}

	merchants := h.store.ListMerchants()
	summaries := make([]domain.MerchantSummary, 0, len(merchants))
	for _, m := range merchants {
		summaries = append(summaries, domain.MerchantSummary{
			ID:        m.ID,
			Name:      m.Name,
			Email:     m.Email,
			Website:   m.Website,
			CreatedAt: m.CreatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].CreatedAt.Before(summaries[j].CreatedAt) })

	ok(w, domain.Dashboard{
		Overview:       overview,
		RecentAnalyses: recentValues,
		Merchants:      summaries,
		TopFlags:       topFlags,
		GeneratedAt:    time.Now().UTC(),
	})
}

// ─── Health ───────────────────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}
