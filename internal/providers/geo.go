package providers

import (
	"math/rand"

	"sentinel/risk-api/internal/domain"
	"sentinel/risk-api/internal/scoring"
)

// ─── Geocoder ─────────────────────────────────────────────────────────────────

type centroid struct {
	lat, lng float64
	place    domain.Place
}

// referenceCities is the small reference table the geocoder matches
// against. A production implementation would use a real geocoding service.
var referenceCities = []centroid{
	{40.7128, -74.0060, domain.Place{City: "New York", Country: "United States", CountryCode: "US"}},
	{34.0522, -118.2437, domain.Place{City: "Los Angeles", Country: "United States", CountryCode: "US"}},
	{51.5074, -0.1278, domain.Place{City: "London", Country: "United Kingdom", CountryCode: "GB"}},
	{48.8566, 2.3522, domain.Place{City: "Paris", Country: "France", CountryCode: "FR"}},
	{35.6762, 139.6503, domain.Place{City: "Tokyo", Country: "Japan", CountryCode: "JP"}},
	{55.7558, 37.6176, domain.Place{City: "Moscow", Country: "Russia", CountryCode: "RU"}},
	{39.9042, 116.4074, domain.Place{City: "Beijing", Country: "China", CountryCode: "CN"}},
	{19.4326, -99.1332, domain.Place{City: "Mexico City", Country: "Mexico", CountryCode: "MX"}},
	{-33.8688, 151.2093, domain.Place{City: "Sydney", Country: "Australia", CountryCode: "AU"}},
	{43.6532, -79.3832, domain.Place{City: "Toronto", Country: "Canada", CountryCode: "CA"}},
}

// demoVariations are substituted for a fraction of lookups when jitter is
// enabled, purely for demo variety.
var demoVariations = []domain.Place{
	{City: "San Francisco", Country: "United States", CountryCode: "US"},
	{City: "Chicago", Country: "United States", CountryCode: "US"},
	{City: "Miami", Country: "United States", CountryCode: "US"},
	{City: "Berlin", Country: "Germany", CountryCode: "DE"},
	{City: "Madrid", Country: "Spain", CountryCode: "ES"},
	{City: "Rome", Country: "Italy", CountryCode: "IT"},
	{City: "Amsterdam", Country: "Netherlands", CountryCode: "NL"},
	{City: "Stockholm", Country: "Sweden", CountryCode: "SE"},
}

// Geocoder resolves coordinates to the nearest reference city.
type Geocoder struct {
	// rng, when non-nil, substitutes a random variation for ~20% of
	// lookups. Nil means fully deterministic nearest-centroid matching.
	rng *rand.Rand
}

// NewGeocoder creates a geocoder; pass nil for deterministic resolution.
func NewGeocoder(rng *rand.Rand) *Geocoder {
	return &Geocoder{rng: rng}
}

// Resolve returns the reference city closest to the coordinates.
func (g *Geocoder) Resolve(lat, lng float64) (domain.Place, error) {
	if g.rng != nil && g.rng.Float64() < 0.2 {
		return demoVariations[g.rng.Intn(len(demoVariations))], nil
	}

	best := referenceCities[0]
	bestDist := scoring.HaversineKm(lat, lng, best.lat, best.lng)
	for _, c := range referenceCities[1:] {
		if d := scoring.HaversineKm(lat, lng, c.lat, c.lng); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best.place, nil
}

// ─── Country risk ─────────────────────────────────────────────────────────────

type riskRegion struct {
	lat, lng, radiusKm float64
}

// highRiskRegions are flagged country centroids; coordinates within the
// radius are treated as high-risk origins.
var highRiskRegions = []riskRegion{
	{35.8617, 104.1954, 1000}, // China
	{55.7558, 37.6176, 1000},  // Russia
	{20.5937, 78.9629, 1000},  // India
}

// CountryRiskTable answers country-risk lookups from the fixed centroid
// table.
type CountryRiskTable struct{}

// IsHighRisk reports whether the coordinates fall inside any flagged
// region.
func (CountryRiskTable) IsHighRisk(lat, lng float64) (bool, error) {
	for _, r := range highRiskRegions {
		if scoring.HaversineKm(lat, lng, r.lat, r.lng) < r.radiusKm {
			return true, nil
		}
	}
	return false, nil
}

// ─── VPN detection ────────────────────────────────────────────────────────────

// DemoVPNDetector is a demo stand-in that flags a fixed fraction of
// connections. Replace with a real detection service in production.
type DemoVPNDetector struct {
	rng  *rand.Rand
	rate float64
}

// NewDemoVPNDetector creates a detector flagging `rate` of lookups.
func NewDemoVPNDetector(rng *rand.Rand, rate float64) *DemoVPNDetector {
	return &DemoVPNDetector{rng: rng, rate: rate}
}

// IsVPN flags the configured fraction of connections.
func (d *DemoVPNDetector) IsVPN(*domain.LocationData) (bool, error) {
	return d.rng.Float64() < d.rate, nil
}
