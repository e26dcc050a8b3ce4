package scoring

import (
	"math"
	"strings"
	"time"

	"sentinel/risk-api/internal/domain"
)

// Factor analyzers. Each is independent and side-effect-free apart from its
// capability lookups, returns a score clamped to [0, 1], and degrades to a
// documented default when its optional input is absent. Base scores and
// deltas are additive.

// ─── Location ─────────────────────────────────────────────────────────────────

func (e *Engine) analyzeLocation(loc *domain.LocationData, customerID string) domain.RiskFactorResult {
	if loc == nil {
		return domain.RiskFactorResult{Score: 0.5, Reason: "no location data provided"}
	}

	highRisk := e.isHighRiskCountry(loc.Latitude, loc.Longitude)
	vpn := e.isVPN(loc)
	velocityAnomaly := e.isVelocityAnomaly(loc, customerID)
	place := e.resolvePlace(loc.Latitude, loc.Longitude)

	score := 0.1
	var reasons []string
	if highRisk {
		score += 0.4
		reasons = append(reasons, "high-risk country")
	}
	if vpn {
		score += 0.3
		reasons = append(reasons, "VPN detected")
	}
	if velocityAnomaly {
		score += 0.2
		reasons = append(reasons, "impossible travel velocity")
	}
	if loc.Accuracy > 1000 {
		score += 0.1 // low-accuracy fix
	}

	return domain.RiskFactorResult{
		Score:  clamp01(score),
		Reason: joinReasons(reasons, "location appears normal"),
		Details: map[string]any{
			"is_high_risk_country": highRisk,
			"is_vpn":               vpn,
			"is_velocity_anomaly":  velocityAnomaly,
			"accuracy":             loc.Accuracy,
			"city":                 place.City,
			"country":              place.Country,
			"country_code":         place.CountryCode,
		},
	}
}

// isVelocityAnomaly checks whether the customer moved between this location
// and their last known one faster than is physically plausible.
func (e *Engine) isVelocityAnomaly(loc *domain.LocationData, customerID string) bool {
	last := e.lastKnownLocation(customerID)
	if last == nil || loc.Timestamp.IsZero() || last.Timestamp.IsZero() {
		return false
	}

	elapsed := loc.Timestamp.Sub(last.Timestamp).Hours()
	if elapsed <= 0 {
		return false
	}

	distance := HaversineKm(loc.Latitude, loc.Longitude, last.Latitude, last.Longitude)
	return distance/elapsed > e.cfg.ImpossibleVelocityKmh
}

// ─── Device ───────────────────────────────────────────────────────────────────

// headlessMarkers are user-agent substrings left by browser automation
// frameworks.
var headlessMarkers = []string{"HeadlessChrome", "PhantomJS", "Selenium", "Puppeteer"}

func (e *Engine) analyzeDevice(fp *domain.DeviceFingerprint, customerID string) domain.RiskFactorResult {
	if fp == nil {
		return domain.RiskFactorResult{Score: 0.6, Reason: "no device data provided"}
	}

	score := 0.1
	flags := []string{}

	headless := isHeadlessBrowser(fp)
	if headless {
		score += 0.7
		flags = append(flags, domain.FlagHeadlessBrowser)
	}

	known := e.isKnownDevice(fp, customerID)
	if !known {
		score += 0.4
		flags = append(flags, domain.FlagUnknownDevice)
	}

	if isSuspiciousConfiguration(fp) {
		score += 0.3
		flags = append(flags, domain.FlagSuspiciousConfig)
	}

	return domain.RiskFactorResult{
		Score:  clamp01(score),
		Reason: flagReason("Device", flags, "device appears normal"),
		Details: map[string]any{
			"is_known_device": known,
			"is_headless":     headless,
			"flags":           flags,
		},
	}
}

func isHeadlessBrowser(fp *domain.DeviceFingerprint) bool {
	if fp.WebDriver {
		return true
	}
	for _, marker := range headlessMarkers {
		if strings.Contains(fp.UserAgent, marker) {
			return true
		}
	}
	return false
}

// isSuspiciousConfiguration flags fingerprints whose reported environment is
// implausibly bare: an explicitly empty plugin or language list, or no
// screen resolution at all.
func isSuspiciousConfiguration(fp *domain.DeviceFingerprint) bool {
	return (fp.Plugins != nil && len(fp.Plugins) == 0) ||
		(fp.Languages != nil && len(fp.Languages) == 0) ||
		fp.ScreenResolution == ""
}

// ─── Behavior ─────────────────────────────────────────────────────────────────

func (e *Engine) analyzeBehavior(bd *domain.BehaviorData) domain.RiskFactorResult {
	if bd == nil {
		return domain.RiskFactorResult{Score: 0.5, Reason: "no behavior data provided"}
	}

	score := 0.1
	flags := []string{}

	if isAutomatedBehavior(bd) {
		score += 0.8
		flags = append(flags, domain.FlagAutomatedBehavior)
	}

	if isSuspiciousTyping(bd.TypingPatterns) {
		score += 0.5
		flags = append(flags, domain.FlagSuspiciousTyping)
	}

	// Action velocity: mutually exclusive, only one bound can apply.
	if bd.ActionsPerMinute > 50 {
		score += 0.4
		flags = append(flags, domain.FlagTooFast)
	} else if bd.ActionsPerMinute < 5 {
		score += 0.3
		flags = append(flags, domain.FlagTooSlow)
	}

	if !isHumanLikeBehavior(bd) {
		score += 0.5
		flags = append(flags, domain.FlagNonHumanBehavior)
	}

	return domain.RiskFactorResult{
		Score:  clamp01(score),
		Reason: flagReason("Behavior", flags, "behavior appears normal"),
		Details: map[string]any{
			"actions_per_minute": bd.ActionsPerMinute,
			"session_duration":   bd.SessionDuration,
			"flags":              flags,
		},
	}
}

func isAutomatedBehavior(bd *domain.BehaviorData) bool {
	return bd.ActionsPerMinute > 50 ||
		(bd.Clicks == 0 && bd.Keystrokes == 0) ||
		(bd.Clicks == 0 && bd.MouseMovements == 0) ||
		(bd.SessionDuration < 2000 && bd.Clicks == 0)
}

// isSuspiciousTyping flags typing whose inter-keystroke intervals vary too
// much: a coefficient of variation above 0.5 over at least 5 samples is
// typical of scripted input replaying recorded keys.
func isSuspiciousTyping(patterns []domain.TypingPattern) bool {
	if len(patterns) < 5 {
		return false
	}

	var sum float64
	for _, p := range patterns {
		sum += p.TimeSinceLastKey
	}
	mean := sum / float64(len(patterns))
	if mean == 0 {
		return false
	}

	var variance float64
	for _, p := range patterns {
		d := p.TimeSinceLastKey - mean
		variance += d * d
	}
	variance /= float64(len(patterns))

	return math.Sqrt(variance)/mean > 0.5
}

func isHumanLikeBehavior(bd *domain.BehaviorData) bool {
	return bd.Clicks > 0 &&
		bd.Keystrokes > 0 &&
		bd.Scrolls > 0 &&
		bd.MouseMovements > 0 &&
		bd.Clicks < 1000
}

// ─── Network ──────────────────────────────────────────────────────────────────

func (e *Engine) analyzeNetwork(nd *domain.NetworkData, customerID string) domain.RiskFactorResult {
	if nd == nil {
		return domain.RiskFactorResult{Score: 0.3, Reason: "no network data provided"}
	}

	score := 0.1
	flags := []string{}

	known := e.isKnownNetwork(nd, customerID)
	if !known {
		score += 0.3
		flags = append(flags, domain.FlagUnknownNetwork)
	}

	if nd.EffectiveType == "slow-2g" || nd.EffectiveType == "2g" {
		score += 0.1
		flags = append(flags, domain.FlagSlowConnection)
	}

	// 4g with sub-1Mbps downlink is the typical mobile hotspot signature.
	if nd.EffectiveType == "4g" && nd.Downlink < 1 {
		score += 0.2
		flags = append(flags, domain.FlagMobileHotspot)
	}

	return domain.RiskFactorResult{
		Score:  clamp01(score),
		Reason: flagReason("Network", flags, "network appears normal"),
		Details: map[string]any{
			"is_known_network": known,
			"effective_type":   nd.EffectiveType,
			"flags":            flags,
		},
	}
}

// ─── Timing ───────────────────────────────────────────────────────────────────

func (e *Engine) analyzeTiming(ts time.Time, customerID string) domain.RiskFactorResult {
	score := 0.1
	flags := []string{}

	// Fraud bots favour the small hours when operations teams are offline.
	hour := ts.Hour()
	if hour >= 2 && hour <= 5 {
		score += 0.2
		flags = append(flags, domain.FlagUnusualTime)
	}

	recent := e.recentTransactionCount(customerID)
	if recent > 5 {
		score += 0.3
		flags = append(flags, domain.FlagRapidTransactions)
	}

	return domain.RiskFactorResult{
		Score:  clamp01(score),
		Reason: flagReason("Timing", flags, "timing appears normal"),
		Details: map[string]any{
			"hour":                     hour,
			"recent_transaction_count": recent,
			"flags":                    flags,
		},
	}
}

// ─── Amount ───────────────────────────────────────────────────────────────────

func (e *Engine) analyzeAmount(amount float64, customerID, merchantID string) domain.RiskFactorResult {
	score := 0.1
	flags := []string{}

	history := e.spendingHistory(customerID)
	var customerAvg float64
	if len(history) > 0 {
		var sum float64
		for _, a := range history {
			sum += a
		}
		customerAvg = sum / float64(len(history))
	}

	if customerAvg > 0 && amount > customerAvg*5 {
		score += 0.4
		flags = append(flags, domain.FlagUnusuallyLargeAmount)
	}

	// Exact round amounts above 1000 are a classic card-testing pattern.
	if math.Mod(amount, 100) == 0 && amount > 1000 {
		score += 0.1
		flags = append(flags, domain.FlagRoundNumber)
	}

	merchantAvg := e.merchantAvgAmount(merchantID)
	if merchantAvg > 0 && amount > merchantAvg*3 {
		score += 0.2
		flags = append(flags, domain.FlagAboveMerchantAvg)
	}

	return domain.RiskFactorResult{
		Score:  clamp01(score),
		Reason: flagReason("Amount", flags, "amount appears normal"),
		Details: map[string]any{
			"amount":              amount,
			"customer_avg_amount": customerAvg,
			"merchant_avg_amount": merchantAvg,
			"flags":               flags,
		},
	}
}
