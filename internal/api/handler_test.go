package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sentinel/risk-api/internal/providers"
	"sentinel/risk-api/internal/scoring"
	"sentinel/risk-api/internal/store"
	"sentinel/risk-api/internal/verification"
	"sentinel/risk-api/internal/webhook"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, rateLimit int) (*httptest.Server, *store.Store) {
	t.Helper()

	st := store.New()
	engine := scoring.New(providers.NewDeterministicSet(st))
	h := NewHandler(st, engine, webhook.New(st), verification.New(st), testSecret)

	srv := httptest.NewServer(NewRouter(h, RouterConfig{
		JWTSecret:  testSecret,
		RateLimit:  rateLimit,
		RateWindow: time.Minute,
	}))
	t.Cleanup(srv.Close)
	return srv, st
}

type testEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, testEnvelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	var env testEnvelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, env
}

func registerMerchant(t *testing.T, srv *httptest.Server) (id, apiKey string) {
	t.Helper()

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/merchants/register", map[string]any{
		"name":  "Acme Shop",
		"email": "ops@acme.example",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	var m struct {
		ID     string `json:"id"`
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(env.Data, &m); err != nil {
		t.Fatalf("decode merchant: %v", err)
	}
	if m.ID == "" || m.APIKey == "" {
		t.Fatalf("merchant incomplete: %+v", m)
	}
	return m.ID, m.APIKey
}

func benignTransaction() map[string]any {
	return map[string]any{
		"amount":      49.99,
		"currency":    "USD",
		"customer_id": "cust_1",
		"device_fingerprint": map[string]any{
			"user_agent":        "Mozilla/5.0 Chrome/120.0",
			"screen_resolution": "1920x1080",
			"timezone":          "America/New_York",
			"language":          "en-US",
			"platform":          "Win32",
			"plugins":           []string{"PDF Viewer"},
			"languages":         []string{"en-US"},
		},
		"behavior_data": map[string]any{
			"clicks":             12,
			"keystrokes":         40,
			"scrolls":            5,
			"mouse_movements":    200,
			"session_duration":   90000,
			"actions_per_minute": 22,
		},
	}
}

func TestHealthIsOpen(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	if env.Error != nil {
		t.Errorf("health error = %v", env.Error)
	}
}

func TestAnalyzeRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/fraud/analyze", benignTransaction(), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "unauthorized" {
		t.Errorf("error = %v", env.Error)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/fraud/analyze", benignTransaction(),
		map[string]string{"X-API-Key": "sk_bogus"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bogus key status = %d, want 401", resp.StatusCode)
	}
}

func TestAnalyzeAndRetrieve(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	merchantID, apiKey := registerMerchant(t, srv)
	auth := map[string]string{"X-API-Key": apiKey}

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/fraud/analyze", benignTransaction(), auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze status = %d (%v)", resp.StatusCode, env.Error)
	}

	var analysis struct {
		TransactionID string  `json:"transaction_id"`
		MerchantID    string  `json:"merchant_id"`
		RiskScore     float64 `json:"risk_score"`
		RiskLevel     string  `json:"risk_level"`
	}
	if err := json.Unmarshal(env.Data, &analysis); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if analysis.TransactionID == "" {
		t.Fatal("no transaction ID assigned")
	}
	// Merchant ID is filled in from the credentials when absent.
	if analysis.MerchantID != merchantID {
		t.Errorf("merchant_id = %q, want %q", analysis.MerchantID, merchantID)
	}
	if analysis.RiskLevel == "" {
		t.Error("no risk level assigned")
	}

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/fraud/score/"+analysis.TransactionID, nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("score status = %d", resp.StatusCode)
	}
	var score struct {
		TransactionID string  `json:"transaction_id"`
		RiskScore     float64 `json:"risk_score"`
		RiskLevel     string  `json:"risk_level"`
	}
	if err := json.Unmarshal(env.Data, &score); err != nil {
		t.Fatalf("decode score: %v", err)
	}
	if score.TransactionID != analysis.TransactionID || score.RiskLevel != analysis.RiskLevel {
		t.Errorf("score = %+v, analysis = %+v", score, analysis)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/fraud/analysis/"+analysis.TransactionID, nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analysis status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/fraud/analysis/txn_missing", nil, auth)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing analysis status = %d, want 404", resp.StatusCode)
	}
}

func TestAnalyzeRejectsInvalidContext(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	_, apiKey := registerMerchant(t, srv)

	bad := benignTransaction()
	bad["amount"] = -5
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/fraud/analyze", bad,
		map[string]string{"X-API-Key": apiKey})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || len(env.Error.Details) == 0 {
		t.Errorf("expected validation details, got %v", env.Error)
	}
}

func TestBatchAnalyze(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	_, apiKey := registerMerchant(t, srv)
	auth := map[string]string{"X-API-Key": apiKey}

	bad := benignTransaction()
	bad["currency"] = "NOPE-"
	batch := []map[string]any{benignTransaction(), bad, benignTransaction()}

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/fraud/batch-analyze", batch, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("batch status = %d (%v)", resp.StatusCode, env.Error)
	}

	var results []struct {
		Analysis *struct {
			TransactionID string `json:"transaction_id"`
		} `json:"analysis"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(env.Data, &results); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("batch results = %d, want 3", len(results))
	}
	if results[0].Analysis == nil || results[0].Error != "" {
		t.Errorf("result[0] = %+v", results[0])
	}
	if results[1].Analysis != nil || results[1].Error == "" {
		t.Errorf("result[1] = %+v", results[1])
	}
	if results[2].Analysis == nil {
		t.Errorf("result[2] = %+v", results[2])
	}

	// Oversized batches are rejected outright.
	big := make([]map[string]any, maxBatchSize+1)
	for i := range big {
		big[i] = benignTransaction()
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/fraud/batch-analyze", big, auth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized batch status = %d, want 400", resp.StatusCode)
	}
}

func TestLoginAndBearerAuth(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	merchantID, apiKey := registerMerchant(t, srv)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/merchants/login", map[string]any{
		"email":   "ops@acme.example",
		"api_key": apiKey,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d (%v)", resp.StatusCode, env.Error)
	}
	var login struct {
		Token      string `json:"token"`
		MerchantID string `json:"merchant_id"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" || login.MerchantID != merchantID {
		t.Fatalf("login = %+v", login)
	}

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/merchants/profile", nil,
		map[string]string{"Authorization": "Bearer " + login.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d (%v)", resp.StatusCode, env.Error)
	}
	var profile struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.ID != merchantID {
		t.Errorf("profile ID = %q, want %q", profile.ID, merchantID)
	}

	// Wrong credentials never mint a token.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/merchants/login", map[string]any{
		"email":   "ops@acme.example",
		"api_key": "sk_wrong",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/merchants/profile", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", resp.StatusCode)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	registerMerchant(t, srv)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/merchants/register", map[string]any{
		"name":  "Acme Again",
		"email": "ops@acme.example",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "conflict" {
		t.Errorf("error = %v", env.Error)
	}
}

func TestWebhookEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	_, apiKey := registerMerchant(t, srv)
	auth := map[string]string{"X-API-Key": apiKey}

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/webhooks", map[string]any{
		"url":       "https://alerts.acme.example/fraud",
		"threshold": 0.5,
	}, auth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d (%v)", resp.StatusCode, env.Error)
	}
	var wh struct {
		ID        string  `json:"id"`
		Threshold float64 `json:"threshold"`
	}
	if err := json.Unmarshal(env.Data, &wh); err != nil {
		t.Fatalf("decode webhook: %v", err)
	}
	if wh.Threshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", wh.Threshold)
	}

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/webhooks", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != wh.ID {
		t.Fatalf("list = %v", list)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/webhooks/"+wh.ID, nil, auth)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/webhooks/"+wh.ID, nil, auth)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("re-delete status = %d, want 404", resp.StatusCode)
	}

	// Threshold outside [0, 1] is rejected.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/webhooks", map[string]any{
		"url":       "https://alerts.acme.example/fraud",
		"threshold": 1.5,
	}, auth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad threshold status = %d, want 400", resp.StatusCode)
	}
}

func TestVerificationFlow(t *testing.T) {
	srv, st := newTestServer(t, 0)
	_, apiKey := registerMerchant(t, srv)
	auth := map[string]string{"X-API-Key": apiKey}

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/verification/send", map[string]any{
		"email":          "shopper@example.com",
		"transaction_id": "txn_42",
		"risk_score":     0.55,
	}, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send status = %d (%v)", resp.StatusCode, env.Error)
	}
	// The code must never appear in the response body.
	if bytes.Contains(env.Data, []byte(`"code"`)) {
		t.Error("verification code leaked in response")
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/verification/status/txn_42", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status status = %d", resp.StatusCode)
	}

	vc, ok := st.GetVerificationCode("txn_42")
	if !ok {
		t.Fatal("code not stored")
	}

	wrong := "000000"
	if wrong == vc.Code {
		wrong = "000001"
	}
	resp, env = doJSON(t, http.MethodPost, srv.URL+"/api/v1/verification/verify", map[string]any{
		"transaction_id": "txn_42",
		"code":           wrong,
	}, auth)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("wrong code status = %d (%v)", resp.StatusCode, env.Error)
	}

	resp, env = doJSON(t, http.MethodPost, srv.URL+"/api/v1/verification/verify", map[string]any{
		"transaction_id": "txn_42",
		"code":           vc.Code,
	}, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d (%v)", resp.StatusCode, env.Error)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/verification/status/txn_42", nil, auth)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("consumed status = %d, want 404", resp.StatusCode)
	}
}

func TestDashboard(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	_, apiKey := registerMerchant(t, srv)
	auth := map[string]string{"X-API-Key": apiKey}

	for i := 0; i < 3; i++ {
		tc := benignTransaction()
		tc["customer_id"] = "cust_dash"
		resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/fraud/analyze", tc, auth)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("analyze status = %d (%v)", resp.StatusCode, env.Error)
		}
	}

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/dashboard", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d (%v)", resp.StatusCode, env.Error)
	}

	var dash struct {
		Overview struct {
			TotalAnalyses int     `json:"total_analyses"`
			AvgRiskScore  float64 `json:"avg_risk_score"`
		} `json:"overview"`
		RecentAnalyses []json.RawMessage `json:"recent_analyses"`
		Merchants      []struct {
			APIKey string `json:"api_key"`
		} `json:"merchants"`
	}
	if err := json.Unmarshal(env.Data, &dash); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dash.Overview.TotalAnalyses != 3 {
		t.Errorf("total analyses = %d, want 3", dash.Overview.TotalAnalyses)
	}
	if len(dash.RecentAnalyses) != 3 {
		t.Errorf("recent analyses = %d, want 3", len(dash.RecentAnalyses))
	}
	// Merchant summaries never expose API keys.
	for _, m := range dash.Merchants {
		if m.APIKey != "" {
			t.Error("dashboard leaked an API key")
		}
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, 2)
	_, apiKey := registerMerchant(t, srv)
	auth := map[string]string{"X-API-Key": apiKey}

	// Buckets are keyed by API key, so registration (no key) did not touch
	// this bucket. Two requests pass, the third is limited.
	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/merchants/profile", nil, auth)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d", i, resp.StatusCode)
		}
	}
	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/merchants/profile", nil, auth)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "rate_limited" {
		t.Errorf("error = %v", env.Error)
	}
}
