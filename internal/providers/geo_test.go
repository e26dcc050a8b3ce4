package providers

import (
	"testing"

	"sentinel/risk-api/internal/domain"
	"sentinel/risk-api/internal/store"
)

func TestGeocoderResolvesNearestCity(t *testing.T) {
	g := NewGeocoder(nil)

	tests := []struct {
		name     string
		lat, lng float64
		wantCity string
	}{
		{"manhattan", 40.75, -73.99, "New York"},
		{"westminster", 51.50, -0.13, "London"},
		{"shinjuku", 35.69, 139.70, "Tokyo"},
		{"red square", 55.754, 37.62, "Moscow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			place, err := g.Resolve(tt.lat, tt.lng)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if place.City != tt.wantCity {
				t.Errorf("city = %q, want %q", place.City, tt.wantCity)
			}
		})
	}
}

func TestCountryRiskTable(t *testing.T) {
	table := CountryRiskTable{}

	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"moscow", 55.7558, 37.6176, true},
		{"beijing area", 36.0, 104.0, true},
		{"delhi area", 21.0, 78.5, true},
		{"new york", 40.7128, -74.0060, false},
		{"london", 51.5074, -0.1278, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.IsHighRisk(tt.lat, tt.lng)
			if err != nil {
				t.Fatalf("IsHighRisk: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsHighRisk = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStoreProvidersDeviceReputation(t *testing.T) {
	s := store.New()
	sp := NewStoreProviders(s)

	fp := &domain.DeviceFingerprint{
		UserAgent:        "Mozilla/5.0 Chrome/120.0",
		ScreenResolution: "1920x1080",
	}

	known, err := sp.IsKnownDevice(fp, "cust_1")
	if err != nil || known {
		t.Fatalf("fresh device: known=%v err=%v", known, err)
	}

	tc := &domain.TransactionContext{
		Amount: 100, Currency: "USD", CustomerID: "cust_1", MerchantID: "mer_1",
		DeviceFingerprint: fp,
	}
	if err := s.SaveAnalysis(&domain.RiskAnalysis{
		TransactionID: "txn_1", CustomerID: "cust_1", MerchantID: "mer_1",
	}, tc); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	known, err = sp.IsKnownDevice(fp, "cust_1")
	if err != nil || !known {
		t.Fatalf("seen device: known=%v err=%v", known, err)
	}

	// Automation tooling is never trusted, even after being recorded.
	bot := &domain.DeviceFingerprint{UserAgent: "HeadlessChrome/120.0", WebDriver: true}
	botCtx := &domain.TransactionContext{
		Amount: 100, Currency: "USD", CustomerID: "cust_1", MerchantID: "mer_1",
		DeviceFingerprint: bot,
	}
	if err := s.SaveAnalysis(&domain.RiskAnalysis{
		TransactionID: "txn_2", CustomerID: "cust_1", MerchantID: "mer_1",
	}, botCtx); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	known, err = sp.IsKnownDevice(bot, "cust_1")
	if err != nil || known {
		t.Errorf("automation device treated as known: known=%v err=%v", known, err)
	}
}

func TestDeterministicSetHasNoVPNDetector(t *testing.T) {
	caps := NewDeterministicSet(store.New())
	if caps.VPN != nil {
		t.Error("deterministic set should not include VPN detection")
	}
	if caps.Location == nil || caps.CountryRisk == nil || caps.Devices == nil {
		t.Error("deterministic set missing core providers")
	}
}

func TestDemoSetIsSeedStable(t *testing.T) {
	s := store.New()
	a := NewDemoSet(s, 7)
	b := NewDemoSet(s, 7)

	// Same seed, same jitter decisions.
	for i := 0; i < 20; i++ {
		pa, errA := a.Location.Resolve(40.7128, -74.0060)
		pb, errB := b.Location.Resolve(40.7128, -74.0060)
		if errA != nil || errB != nil {
			t.Fatalf("Resolve: %v %v", errA, errB)
		}
		if pa != pb {
			t.Fatalf("iteration %d diverged: %v vs %v", i, pa, pb)
		}
	}
}
