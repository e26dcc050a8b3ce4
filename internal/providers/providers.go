// Package providers ships the capability implementations the demo server
// injects into the risk engine: deterministic store-backed reputation and
// history lookups, a centroid-based geocoder, and a seeded VPN mock.
//
// The engine only requires that capabilities be pluggable. Everything here
// except the VPN mock is deterministic; a real deployment would replace the
// geocoder and VPN detector with actual services behind the same
// interfaces.
package providers

import (
	"math/rand"
	"strings"
	"time"

	"sentinel/risk-api/internal/domain"
	"sentinel/risk-api/internal/scoring"
	"sentinel/risk-api/internal/store"
)

// StoreProviders implements the reputation and history capabilities on top
// of the in-memory store: a device or network is "known" once a saved
// analysis has recorded it for the customer, and spending/velocity lookups
// read the customer's saved analyses.
type StoreProviders struct {
	store *store.Store
}

// NewStoreProviders wraps a store.
func NewStoreProviders(s *store.Store) *StoreProviders {
	return &StoreProviders{store: s}
}

// IsKnownDevice reports whether this fingerprint was recorded for the
// customer before. Automation tooling is never trusted as known, whatever
// the store says.
func (p *StoreProviders) IsKnownDevice(fp *domain.DeviceFingerprint, customerID string) (bool, error) {
	if fp.WebDriver ||
		strings.Contains(fp.UserAgent, "HeadlessChrome") ||
		strings.Contains(fp.UserAgent, "Bot") {
		return false, nil
	}
	return p.store.HasSeenDevice(customerID, fp.Hash()), nil
}

// IsKnownNetwork reports whether the customer has transacted over this
// connection type before.
func (p *StoreProviders) IsKnownNetwork(nd *domain.NetworkData, customerID string) (bool, error) {
	return p.store.HasSeenNetwork(customerID, nd.EffectiveType), nil
}

// LastKnownLocation returns the customer's previous location fix.
func (p *StoreProviders) LastKnownLocation(customerID string) (*domain.LocationData, error) {
	return p.store.LastLocation(customerID), nil
}

// RecentTransactionCount counts the customer's analyses inside the window.
func (p *StoreProviders) RecentTransactionCount(customerID string, window time.Duration) (int, error) {
	return p.store.CountAnalysesSince(customerID, time.Now().UTC().Add(-window)), nil
}

// SpendingHistory returns the customer's historical amounts.
func (p *StoreProviders) SpendingHistory(customerID string) ([]float64, error) {
	return p.store.AmountsByCustomer(customerID), nil
}

// MerchantAvgAmount returns the merchant's average transaction amount.
func (p *StoreProviders) MerchantAvgAmount(merchantID string) (float64, error) {
	return p.store.MerchantAvgAmount(merchantID), nil
}

// NewDemoSet assembles the capability set used by the demo server:
// store-backed lookups, the reference geocoder with demo jitter, the
// centroid country-risk table, and a seeded VPN mock.
func NewDemoSet(s *store.Store, seed int64) scoring.CapabilitySet {
	sp := NewStoreProviders(s)
	rng := rand.New(rand.NewSource(seed))
	return scoring.CapabilitySet{
		Location:     NewGeocoder(rng),
		CountryRisk:  CountryRiskTable{},
		VPN:          NewDemoVPNDetector(rng, 0.1),
		LastLocation: sp,
		Devices:      sp,
		Networks:     sp,
		RecentTxns:   sp,
		Spending:     sp,
		Merchants:    sp,
	}
}

// NewDeterministicSet assembles a fully deterministic capability set:
// store-backed lookups, the reference geocoder without jitter, and no VPN
// detection. Suitable for tests and reproducible demos.
func NewDeterministicSet(s *store.Store) scoring.CapabilitySet {
	sp := NewStoreProviders(s)
	return scoring.CapabilitySet{
		Location:     NewGeocoder(nil),
		CountryRisk:  CountryRiskTable{},
		LastLocation: sp,
		Devices:      sp,
		Networks:     sp,
		RecentTxns:   sp,
		Spending:     sp,
		Merchants:    sp,
	}
}
