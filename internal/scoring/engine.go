// Package scoring implements Sentinel's transaction risk engine.
//
// Architecture:
//   The engine is purely computational over one transaction context at a
//   time. It holds no mutable state, so concurrent Analyze calls need no
//   locking. The only points that may touch I/O are the injected capability
//   providers (reputation, history, and geocoding lookups); the engine
//   treats each as a black box and substitutes its documented default if it
//   fails, so a single lookup failure can never abort an analysis.
//
// Scoring philosophy:
//   Six independent factor analyzers (location, device, behavior, network,
//   timing, amount) each produce a score in [0, 1] built from a small base
//   plus additive heuristic deltas, clamped. The aggregate is a weighted
//   average over the factors present, escalated by a flat boost when two or
//   more factors are independently high — several weak signals compounding
//   are more conclusive than one strong signal alone.
//
// The weights and thresholds are tuned empirically, not derived from a
// model; they live in Config so deployments can adjust them without code
// changes.
package scoring

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentinel/risk-api/internal/domain"
)

// Config carries the engine's tunable constants.
type Config struct {
	// Weights per factor name, normalised over the factors present.
	Weights map[string]float64

	// MultiFactorBoost is added flat to the aggregate when at least two
	// factors exceed HighFactorThreshold.
	MultiFactorBoost    float64
	HighFactorThreshold float64

	// Risk level boundaries: score < MediumLevelMin → LOW,
	// score < HighLevelMin → MEDIUM, else HIGH.
	MediumLevelMin float64
	HighLevelMin   float64

	// Recommendation buckets; only the highest matching bucket applies.
	BlockThreshold float64 // > this → BLOCK_TRANSACTION + REQUIRE_MANUAL_REVIEW
	TwoFAThreshold float64 // > this → REQUIRE_2FA + SEND_SMS_VERIFICATION
	EmailThreshold float64 // > this → REQUIRE_EMAIL_VERIFICATION

	// ImpossibleVelocityKmh is the travel speed above which a location jump
	// between two transactions is treated as physically implausible.
	ImpossibleVelocityKmh float64

	// RecentTxnWindow is the look-back window for the rapid-transactions check.
	RecentTxnWindow time.Duration
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Weights: map[string]float64{
			domain.FactorLocation: 0.20,
			domain.FactorDevice:   0.30,
			domain.FactorBehavior: 0.30,
			domain.FactorNetwork:  0.10,
			domain.FactorTiming:   0.05,
			domain.FactorAmount:   0.05,
		},
		MultiFactorBoost:      0.2,
		HighFactorThreshold:   0.7,
		MediumLevelMin:        0.4,
		HighLevelMin:          0.7,
		BlockThreshold:        0.8,
		TwoFAThreshold:        0.6,
		EmailThreshold:        0.4,
		ImpossibleVelocityKmh: 500,
		RecentTxnWindow:       time.Hour,
	}
}

// factorOrder fixes the iteration order over factors so aggregation and flag
// collection are deterministic.
var factorOrder = []string{
	domain.FactorLocation,
	domain.FactorDevice,
	domain.FactorBehavior,
	domain.FactorNetwork,
	domain.FactorTiming,
	domain.FactorAmount,
}

// Engine is the stateless risk engine.
type Engine struct {
	caps CapabilitySet
	cfg  Config
}

// New creates an engine with the default tuning.
func New(caps CapabilitySet) *Engine {
	return NewWithConfig(caps, DefaultConfig())
}

// NewWithConfig creates an engine with custom tuning.
func NewWithConfig(caps CapabilitySet, cfg Config) *Engine {
	return &Engine{caps: caps, cfg: cfg}
}

// ─── Public API ───────────────────────────────────────────────────────────────

// Analyze scores one transaction context and returns a fresh RiskAnalysis.
//
// Only invalid input produces an error, and then no partial analysis is
// returned. Capability failures are recovered internally. The method does
// NOT persist the analysis; that is the caller's responsibility, and doing
// it after scoring keeps the current transaction out of its own history.
func (e *Engine) Analyze(tc *domain.TransactionContext) (*domain.RiskAnalysis, error) {
	if err := ValidateContext(tc); err != nil {
		return nil, err
	}

	ts := tc.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	analysis := &domain.RiskAnalysis{
		TransactionID: newTransactionID(),
		Timestamp:     ts,
		MerchantID:    tc.MerchantID,
		CustomerID:    tc.CustomerID,
		Amount:        tc.Amount,
		Currency:      tc.Currency,
		RiskFactors:   make(map[string]domain.RiskFactorResult),
	}

	// Forced-score override: callers exercising downstream behaviour skip
	// factor computation and get canned factors for the requested scenario.
	if tc.ForcedRiskScore != nil {
		analysis.RiskScore = *tc.ForcedRiskScore
		analysis.RiskLevel = e.riskLevel(analysis.RiskScore)
		analysis.RiskFactors = scenarioFactors(tc.Scenario)
		analysis.Recommendations = e.recommendations(analysis.RiskScore, analysis.RiskFactors)
		analysis.Flags = collectFlags(analysis.RiskFactors)
		return analysis, nil
	}

	analysis.RiskFactors[domain.FactorLocation] = e.analyzeLocation(tc.LocationData, tc.CustomerID)
	analysis.RiskFactors[domain.FactorDevice] = e.analyzeDevice(tc.DeviceFingerprint, tc.CustomerID)
	analysis.RiskFactors[domain.FactorBehavior] = e.analyzeBehavior(tc.BehaviorData)
	analysis.RiskFactors[domain.FactorNetwork] = e.analyzeNetwork(tc.NetworkData, tc.CustomerID)
	analysis.RiskFactors[domain.FactorTiming] = e.analyzeTiming(ts, tc.CustomerID)
	analysis.RiskFactors[domain.FactorAmount] = e.analyzeAmount(tc.Amount, tc.CustomerID, tc.MerchantID)

	analysis.RiskScore = e.aggregate(analysis.RiskFactors)
	analysis.RiskLevel = e.riskLevel(analysis.RiskScore)
	analysis.Recommendations = e.recommendations(analysis.RiskScore, analysis.RiskFactors)
	analysis.Flags = collectFlags(analysis.RiskFactors)

	return analysis, nil
}

// ─── Aggregation ──────────────────────────────────────────────────────────────

// aggregate combines the factor scores into one overall score: a weighted
// average over the factors present, plus a flat boost when several factors
// are independently high, clamped to [0, 1].
func (e *Engine) aggregate(factors map[string]domain.RiskFactorResult) float64 {
	var sum, weight float64
	for _, name := range factorOrder {
		f, ok := factors[name]
		if !ok {
			continue
		}
		w := e.cfg.Weights[name]
		sum += f.Score * w
		weight += w
	}

	// All factors missing: neutral default rather than a division by zero.
	if weight == 0 {
		return 0.5
	}
	score := sum / weight

	high := 0
	for _, f := range factors {
		if f.Score > e.cfg.HighFactorThreshold {
			high++
		}
	}
	if high >= 2 {
		score += e.cfg.MultiFactorBoost
	}

	return clamp01(score)
}

// riskLevel discretises a score into a level bucket.
func (e *Engine) riskLevel(score float64) string {
	switch {
	case score < e.cfg.MediumLevelMin:
		return domain.RiskLow
	case score < e.cfg.HighLevelMin:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// recommendations derives action codes for the caller. Only the highest
// matching score bucket applies; the per-factor verification codes are
// appended independently.
func (e *Engine) recommendations(score float64, factors map[string]domain.RiskFactorResult) []string {
	recs := []string{}

	switch {
	case score > e.cfg.BlockThreshold:
		recs = append(recs, domain.RecBlockTransaction, domain.RecRequireManualReview)
	case score > e.cfg.TwoFAThreshold:
		recs = append(recs, domain.RecRequire2FA, domain.RecSendSMSVerification)
	case score > e.cfg.EmailThreshold:
		recs = append(recs, domain.RecRequireEmailVerify)
	}

	if f, ok := factors[domain.FactorDevice]; ok && f.Score > e.cfg.HighFactorThreshold {
		recs = append(recs, domain.RecVerifyDevice)
	}
	if f, ok := factors[domain.FactorLocation]; ok && f.Score > e.cfg.HighFactorThreshold {
		recs = append(recs, domain.RecVerifyLocation)
	}

	return recs
}

// collectFlags unions every factor's flags, deduplicated, in factor order.
func collectFlags(factors map[string]domain.RiskFactorResult) []string {
	flags := []string{}
	seen := make(map[string]bool)
	for _, name := range factorOrder {
		f, ok := factors[name]
		if !ok || f.Details == nil {
			continue
		}
		fs, ok := f.Details["flags"].([]string)
		if !ok {
			continue
		}
		for _, flag := range fs {
			if !seen[flag] {
				seen[flag] = true
				flags = append(flags, flag)
			}
		}
	}
	return flags
}

// ─── Forced-score scenarios ───────────────────────────────────────────────────

// scenarioFactors returns the canned factor table for a demo scenario.
// Unrecognised or "normal" scenarios get no factors at all.
func scenarioFactors(scenario string) map[string]domain.RiskFactorResult {
	switch scenario {
	case domain.ScenarioSuspicious:
		return map[string]domain.RiskFactorResult{
			domain.FactorLocation: {Score: 0.3, Reason: "Suspicious location detected"},
			domain.FactorDevice:   {Score: 0.2, Reason: "Device appears normal"},
			domain.FactorBehavior: {Score: 0.4, Reason: "Suspicious behavior patterns"},
			domain.FactorNetwork:  {Score: 0.1, Reason: "Network appears normal"},
			domain.FactorTiming:   {Score: 0.2, Reason: "Unusual transaction timing"},
			domain.FactorAmount:   {Score: 0.3, Reason: "Above average transaction amount"},
		}
	case domain.ScenarioFraudulent:
		return map[string]domain.RiskFactorResult{
			domain.FactorLocation: {Score: 0.5, Reason: "High-risk location detected"},
			domain.FactorDevice:   {Score: 0.4, Reason: "Suspicious device characteristics"},
			domain.FactorBehavior: {Score: 0.6, Reason: "Automated behavior detected"},
			domain.FactorNetwork:  {Score: 0.3, Reason: "Suspicious network patterns"},
			domain.FactorTiming:   {Score: 0.4, Reason: "Highly unusual transaction timing"},
			domain.FactorAmount:   {Score: 0.5, Reason: "Extremely high transaction amount"},
		}
	default:
		return map[string]domain.RiskFactorResult{}
	}
}

// ─── Capability access ────────────────────────────────────────────────────────
//
// Each helper recovers a missing or failing provider by substituting that
// capability's documented default, logging the failure so operators can see
// degraded lookups without any analysis being aborted.

func (e *Engine) resolvePlace(lat, lng float64) domain.Place {
	if e.caps.Location == nil {
		return domain.Place{}
	}
	p, err := e.caps.Location.Resolve(lat, lng)
	if err != nil {
		slog.Warn("capability degraded", "capability", "location_resolver", "error", err)
		return domain.Place{}
	}
	return p
}

func (e *Engine) isHighRiskCountry(lat, lng float64) bool {
	if e.caps.CountryRisk == nil {
		return false
	}
	v, err := e.caps.CountryRisk.IsHighRisk(lat, lng)
	if err != nil {
		slog.Warn("capability degraded", "capability", "country_risk", "error", err)
		return false
	}
	return v
}

func (e *Engine) isVPN(loc *domain.LocationData) bool {
	if e.caps.VPN == nil {
		return false
	}
	v, err := e.caps.VPN.IsVPN(loc)
	if err != nil {
		slog.Warn("capability degraded", "capability", "vpn_detector", "error", err)
		return false
	}
	return v
}

func (e *Engine) lastKnownLocation(customerID string) *domain.LocationData {
	if e.caps.LastLocation == nil {
		return nil
	}
	loc, err := e.caps.LastLocation.LastKnownLocation(customerID)
	if err != nil {
		slog.Warn("capability degraded", "capability", "last_known_location", "error", err)
		return nil
	}
	return loc
}

func (e *Engine) isKnownDevice(fp *domain.DeviceFingerprint, customerID string) bool {
	if e.caps.Devices == nil {
		return false
	}
	v, err := e.caps.Devices.IsKnownDevice(fp, customerID)
	if err != nil {
		// Fail open toward "unknown device", never toward low-risk.
		slog.Warn("capability degraded", "capability", "device_reputation", "error", err)
		return false
	}
	return v
}

func (e *Engine) isKnownNetwork(nd *domain.NetworkData, customerID string) bool {
	if e.caps.Networks == nil {
		return false
	}
	v, err := e.caps.Networks.IsKnownNetwork(nd, customerID)
	if err != nil {
		slog.Warn("capability degraded", "capability", "network_reputation", "error", err)
		return false
	}
	return v
}

func (e *Engine) recentTransactionCount(customerID string) int {
	if e.caps.RecentTxns == nil {
		return 0
	}
	n, err := e.caps.RecentTxns.RecentTransactionCount(customerID, e.cfg.RecentTxnWindow)
	if err != nil {
		slog.Warn("capability degraded", "capability", "recent_transaction_count", "error", err)
		return 0
	}
	return n
}

func (e *Engine) spendingHistory(customerID string) []float64 {
	if e.caps.Spending == nil {
		return nil
	}
	h, err := e.caps.Spending.SpendingHistory(customerID)
	if err != nil {
		slog.Warn("capability degraded", "capability", "spending_history", "error", err)
		return nil
	}
	return h
}

func (e *Engine) merchantAvgAmount(merchantID string) float64 {
	if e.caps.Merchants == nil {
		return 0
	}
	avg, err := e.caps.Merchants.MerchantAvgAmount(merchantID)
	if err != nil {
		slog.Warn("capability degraded", "capability", "merchant_stats", "error", err)
		return 0
	}
	return avg
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func newTransactionID() string {
	return "txn_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// joinReasons formats the triggered sub-conditions of a factor, or the
// fallback when none triggered.
func joinReasons(reasons []string, fallback string) string {
	if len(reasons) == 0 {
		return fallback
	}
	return strings.Join(reasons, ", ")
}

// flagReason builds the standard "<Factor> flags: a, b" reason string.
func flagReason(prefix string, flags []string, fallback string) string {
	if len(flags) == 0 {
		return fallback
	}
	return fmt.Sprintf("%s flags: %s", prefix, strings.Join(flags, ", "))
}
