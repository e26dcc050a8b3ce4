package scoring

import (
	"time"

	"sentinel/risk-api/internal/domain"
)

// ─── Capability interfaces ────────────────────────────────────────────────────
//
// Capabilities are the lookups the engine depends on but does not implement:
// reputation, history, and geocoding providers. Real implementations live
// with the caller (internal/providers ships store-backed ones); tests inject
// deterministic doubles via the *Func adapters below.
//
// Every capability may fail. The engine recovers each failure locally by
// substituting the provider's documented default — fail open toward
// "unknown", never toward "safe" — so a single lookup failure can never
// abort an analysis.

// LocationResolver maps coordinates to a human-readable place.
// Default on absence/failure: empty Place (no city/country details).
type LocationResolver interface {
	Resolve(lat, lng float64) (domain.Place, error)
}

// CountryRiskLookup reports whether coordinates fall in a flagged region.
// Default on absence/failure: false.
type CountryRiskLookup interface {
	IsHighRisk(lat, lng float64) (bool, error)
}

// VPNDetector reports whether the connection appears to be a VPN or proxy.
// Default on absence/failure: false.
type VPNDetector interface {
	IsVPN(loc *domain.LocationData) (bool, error)
}

// LastKnownLocation returns the customer's previous location fix, or nil
// when none is recorded. Default on absence/failure: nil (no velocity check).
type LastKnownLocation interface {
	LastKnownLocation(customerID string) (*domain.LocationData, error)
}

// DeviceReputation reports whether a fingerprint has been seen for this
// customer before. Default on absence/failure: false (unknown device).
type DeviceReputation interface {
	IsKnownDevice(fp *domain.DeviceFingerprint, customerID string) (bool, error)
}

// NetworkReputation reports whether the network profile has been seen for
// this customer before. Default on absence/failure: false (unknown network).
type NetworkReputation interface {
	IsKnownNetwork(nd *domain.NetworkData, customerID string) (bool, error)
}

// RecentTransactionCount counts the customer's transactions inside the
// trailing window. Default on absence/failure: 0.
type RecentTransactionCount interface {
	RecentTransactionCount(customerID string, window time.Duration) (int, error)
}

// SpendingHistory returns the customer's historical transaction amounts.
// Default on absence/failure: empty.
type SpendingHistory interface {
	SpendingHistory(customerID string) ([]float64, error)
}

// MerchantStats returns the merchant's average transaction amount, or 0
// when unknown. Default on absence/failure: 0.
type MerchantStats interface {
	MerchantAvgAmount(merchantID string) (float64, error)
}

// CapabilitySet bundles all providers. Any nil field means "no provider";
// the engine then uses that capability's documented default.
type CapabilitySet struct {
	Location     LocationResolver
	CountryRisk  CountryRiskLookup
	VPN          VPNDetector
	LastLocation LastKnownLocation
	Devices      DeviceReputation
	Networks     NetworkReputation
	RecentTxns   RecentTransactionCount
	Spending     SpendingHistory
	Merchants    MerchantStats
}

// ─── Func adapters ────────────────────────────────────────────────────────────

// LocationResolverFunc adapts a function to the LocationResolver interface.
type LocationResolverFunc func(lat, lng float64) (domain.Place, error)

func (f LocationResolverFunc) Resolve(lat, lng float64) (domain.Place, error) { return f(lat, lng) }

// CountryRiskLookupFunc adapts a function to the CountryRiskLookup interface.
type CountryRiskLookupFunc func(lat, lng float64) (bool, error)

func (f CountryRiskLookupFunc) IsHighRisk(lat, lng float64) (bool, error) { return f(lat, lng) }

// VPNDetectorFunc adapts a function to the VPNDetector interface.
type VPNDetectorFunc func(loc *domain.LocationData) (bool, error)

func (f VPNDetectorFunc) IsVPN(loc *domain.LocationData) (bool, error) { return f(loc) }

// LastKnownLocationFunc adapts a function to the LastKnownLocation interface.
type LastKnownLocationFunc func(customerID string) (*domain.LocationData, error)

func (f LastKnownLocationFunc) LastKnownLocation(customerID string) (*domain.LocationData, error) {
	return f(customerID)
}

// DeviceReputationFunc adapts a function to the DeviceReputation interface.
type DeviceReputationFunc func(fp *domain.DeviceFingerprint, customerID string) (bool, error)

func (f DeviceReputationFunc) IsKnownDevice(fp *domain.DeviceFingerprint, customerID string) (bool, error) {
	return f(fp, customerID)
}

// NetworkReputationFunc adapts a function to the NetworkReputation interface.
type NetworkReputationFunc func(nd *domain.NetworkData, customerID string) (bool, error)

func (f NetworkReputationFunc) IsKnownNetwork(nd *domain.NetworkData, customerID string) (bool, error) {
	return f(nd, customerID)
}

// RecentTransactionCountFunc adapts a function to the RecentTransactionCount interface.
type RecentTransactionCountFunc func(customerID string, window time.Duration) (int, error)

func (f RecentTransactionCountFunc) RecentTransactionCount(customerID string, window time.Duration) (int, error) {
	return f(customerID, window)
}

// SpendingHistoryFunc adapts a function to the SpendingHistory interface.
type SpendingHistoryFunc func(customerID string) ([]float64, error)

func (f SpendingHistoryFunc) SpendingHistory(customerID string) ([]float64, error) {
	return f(customerID)
}

// MerchantStatsFunc adapts a function to the MerchantStats interface.
type MerchantStatsFunc func(merchantID string) (float64, error)

func (f MerchantStatsFunc) MerchantAvgAmount(merchantID string) (float64, error) {
	return f(merchantID)
}
