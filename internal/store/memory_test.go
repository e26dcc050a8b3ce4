package store

import (
	"errors"
	"testing"
	"time"

	"sentinel/risk-api/internal/domain"
)

func analysis(id, customer, merchant string, amount float64, ts time.Time) *domain.RiskAnalysis {
	return &domain.RiskAnalysis{
		TransactionID: id,
		Timestamp:     ts,
		CustomerID:    customer,
		MerchantID:    merchant,
		Amount:        amount,
		Currency:      "USD",
		RiskScore:     0.1,
		RiskLevel:     domain.RiskLow,
	}
}

func TestSaveAnalysisAndLookup(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	a := analysis("txn_1", "cust_1", "mer_1", 100, now)
	if err := s.SaveAnalysis(a, nil); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	got, ok := s.GetAnalysis("txn_1")
	if !ok || got.TransactionID != "txn_1" {
		t.Fatalf("GetAnalysis = %v, %v", got, ok)
	}
	if _, ok := s.GetAnalysis("txn_missing"); ok {
		t.Error("unexpected hit for missing ID")
	}

	if err := s.SaveAnalysis(a, nil); !errors.Is(err, ErrDuplicateAnalysis) {
		t.Errorf("duplicate save error = %v", err)
	}
}

func TestSaveAnalysisLearnsProfile(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	fp := &domain.DeviceFingerprint{
		UserAgent:        "Mozilla/5.0 Chrome/120.0",
		ScreenResolution: "1920x1080",
		Timezone:         "Europe/London",
		Platform:         "Win32",
	}
	tc := &domain.TransactionContext{
		Amount:            100,
		Currency:          "USD",
		CustomerID:        "cust_1",
		MerchantID:        "mer_1",
		DeviceFingerprint: fp,
		LocationData:      &domain.LocationData{Latitude: 51.5, Longitude: -0.12},
		NetworkData:       &domain.NetworkData{EffectiveType: "4g", Downlink: 10},
	}

	if err := s.SaveAnalysis(analysis("txn_1", "cust_1", "mer_1", 100, now), tc); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	if !s.HasSeenDevice("cust_1", fp.Hash()) {
		t.Error("device not learned")
	}
	if s.HasSeenDevice("cust_other", fp.Hash()) {
		t.Error("device leaked across customers")
	}
	if !s.HasSeenNetwork("cust_1", "4g") {
		t.Error("network not learned")
	}

	loc := s.LastLocation("cust_1")
	if loc == nil || loc.Latitude != 51.5 {
		t.Fatalf("LastLocation = %v", loc)
	}
	// The context had no location timestamp; the analysis time is adopted.
	if !loc.Timestamp.Equal(now) {
		t.Errorf("location timestamp = %v, want %v", loc.Timestamp, now)
	}
	if s.LastLocation("cust_other") != nil {
		t.Error("location leaked across customers")
	}
}

func TestCustomerHistoryQueries(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	amounts := []float64{100, 200, 300}
	for i, amt := range amounts {
		a := analysis("txn_"+string(rune('a'+i)), "cust_1", "mer_1", amt, base.Add(time.Duration(i)*time.Minute))
		if err := s.SaveAnalysis(a, nil); err != nil {
			t.Fatalf("SaveAnalysis: %v", err)
		}
	}

	got := s.AmountsByCustomer("cust_1")
	if len(got) != 3 || got[0] != 100 || got[2] != 300 {
		t.Errorf("AmountsByCustomer = %v", got)
	}
	if len(s.AmountsByCustomer("cust_other")) != 0 {
		t.Error("history leaked across customers")
	}

	if n := s.CountAnalysesSince("cust_1", base.Add(time.Minute)); n != 2 {
		t.Errorf("CountAnalysesSince = %d, want 2", n)
	}
	if n := s.CountAnalysesSince("cust_1", base.Add(time.Hour)); n != 0 {
		t.Errorf("CountAnalysesSince(future) = %d, want 0", n)
	}

	if avg := s.MerchantAvgAmount("mer_1"); avg != 200 {
		t.Errorf("MerchantAvgAmount = %v, want 200", avg)
	}
	if avg := s.MerchantAvgAmount("mer_none"); avg != 0 {
		t.Errorf("MerchantAvgAmount(empty) = %v, want 0", avg)
	}
}

func TestMerchantRegistry(t *testing.T) {
	s := New()

	m := &domain.Merchant{
		ID:     "mer_1",
		Name:   "Acme Shop",
		Email:  "ops@acme.example",
		APIKey: "sk_test",
	}
	if err := s.SaveMerchant(m); err != nil {
		t.Fatalf("SaveMerchant: %v", err)
	}
	if err := s.SaveMerchant(m); !errors.Is(err, ErrDuplicateMerchant) {
		t.Errorf("duplicate merchant error = %v", err)
	}

	if got, ok := s.GetMerchantByEmail("ops@acme.example"); !ok || got.ID != "mer_1" {
		t.Errorf("GetMerchantByEmail = %v, %v", got, ok)
	}
	if got, ok := s.GetMerchantByID("mer_1"); !ok || got.Email != "ops@acme.example" {
		t.Errorf("GetMerchantByID = %v, %v", got, ok)
	}
	if got, ok := s.GetMerchantByAPIKey("sk_test"); !ok || got.ID != "mer_1" {
		t.Errorf("GetMerchantByAPIKey = %v, %v", got, ok)
	}
	if _, ok := s.GetMerchantByAPIKey("sk_wrong"); ok {
		t.Error("unexpected hit for wrong API key")
	}
	if got := s.ListMerchants(); len(got) != 1 {
		t.Errorf("ListMerchants = %d entries", len(got))
	}
}

func TestWebhookLifecycle(t *testing.T) {
	s := New()

	s.SaveWebhook(&domain.WebhookConfig{ID: "wh_1", URL: "https://a.example", Threshold: 0.7, Active: true})
	s.SaveWebhook(&domain.WebhookConfig{ID: "wh_2", URL: "https://b.example", Threshold: 0.5, Active: false})

	active := s.ListActiveWebhooks()
	if len(active) != 1 || active[0].ID != "wh_1" {
		t.Fatalf("ListActiveWebhooks = %v", active)
	}

	if !s.DeleteWebhook("wh_1") {
		t.Error("delete reported missing for existing webhook")
	}
	if s.DeleteWebhook("wh_1") {
		t.Error("delete reported success for removed webhook")
	}
	if len(s.ListActiveWebhooks()) != 0 {
		t.Error("webhook survived deletion")
	}
}

func TestVerificationCodeExpiry(t *testing.T) {
	s := New()

	s.SaveVerificationCode(&domain.VerificationCode{
		TransactionID: "txn_1",
		Code:          "123456",
		ExpiresAt:     time.Now().Add(10 * time.Minute),
	})
	if _, ok := s.GetVerificationCode("txn_1"); !ok {
		t.Fatal("live code not found")
	}

	s.SaveVerificationCode(&domain.VerificationCode{
		TransactionID: "txn_2",
		Code:          "654321",
		ExpiresAt:     time.Now().Add(-time.Second),
	})
	if _, ok := s.GetVerificationCode("txn_2"); ok {
		t.Error("expired code still served")
	}
	// Expired entries are purged on read.
	s.mu.RLock()
	_, still := s.codes["txn_2"]
	s.mu.RUnlock()
	if still {
		t.Error("expired code not purged")
	}

	s.DeleteVerificationCode("txn_1")
	if _, ok := s.GetVerificationCode("txn_1"); ok {
		t.Error("deleted code still served")
	}
}
