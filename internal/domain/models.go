// Package domain contains all core types used across the application.
// Keeping domain types in one place makes the risk engine easy to reason about.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ─── Constants ───────────────────────────────────────────────────────────────

// Risk level labels derived from the aggregated risk score.
const (
	RiskLow    = "LOW"    // score < 0.4
	RiskMedium = "MEDIUM" // 0.4 <= score < 0.7
	RiskHigh   = "HIGH"   // score >= 0.7
)

// Recommendation codes returned to callers. Callers act on these; the engine
// never blocks or contacts anyone itself.
const (
	RecBlockTransaction    = "BLOCK_TRANSACTION"
	RecRequireManualReview = "REQUIRE_MANUAL_REVIEW"
	RecRequire2FA          = "REQUIRE_2FA"
	RecSendSMSVerification = "SEND_SMS_VERIFICATION"
	RecRequireEmailVerify  = "REQUIRE_EMAIL_VERIFICATION"
	RecVerifyDevice        = "VERIFY_DEVICE"
	RecVerifyLocation      = "VERIFY_LOCATION"
)

// Factor names — keys of RiskAnalysis.RiskFactors.
const (
	FactorLocation = "location"
	FactorDevice   = "device"
	FactorBehavior = "behavior"
	FactorNetwork  = "network"
	FactorTiming   = "timing"
	FactorAmount   = "amount"
)

// Flags — machine-readable markers for individual triggered heuristics.
const (
	FlagHeadlessBrowser      = "headless_browser"
	FlagUnknownDevice        = "unknown_device"
	FlagSuspiciousConfig     = "suspicious_config"
	FlagAutomatedBehavior    = "automated_behavior"
	FlagSuspiciousTyping     = "suspicious_typing"
	FlagTooFast              = "too_fast"
	FlagTooSlow              = "too_slow"
	FlagNonHumanBehavior     = "non_human_behavior"
	FlagUnknownNetwork       = "unknown_network"
	FlagSlowConnection       = "slow_connection"
	FlagMobileHotspot        = "mobile_hotspot"
	FlagUnusualTime          = "unusual_time"
	FlagRapidTransactions    = "rapid_transactions"
	FlagUnusuallyLargeAmount = "unusually_large_amount"
	FlagRoundNumber          = "round_number"
	FlagAboveMerchantAvg     = "above_merchant_average"
)

// Demo scenarios accepted on the forced-score override path.
const (
	ScenarioNormal     = "normal"
	ScenarioSuspicious = "suspicious"
	ScenarioFraudulent = "fraudulent"
)

// ─── Transaction context (engine input) ──────────────────────────────────────

// DeviceFingerprint is the client-side device profile collected at checkout.
type DeviceFingerprint struct {
	UserAgent         string   `json:"user_agent"`
	ScreenResolution  string   `json:"screen_resolution"`
	Timezone          string   `json:"timezone"`
	Language          string   `json:"language"`
	Platform          string   `json:"platform"`
	WebGLVendor       string   `json:"webgl_vendor,omitempty"`
	WebGLRenderer     string   `json:"webgl_renderer,omitempty"`
	CanvasFingerprint string   `json:"canvas_fingerprint,omitempty"`
	WebDriver         bool     `json:"webdriver,omitempty"`
	Plugins           []string `json:"plugins,omitempty"`
	Languages         []string `json:"languages,omitempty"`
}

// Hash returns a stable identifier for the fingerprint, used by
// device-reputation lookups. Canvas and WebGL values are included because
// they differentiate otherwise identical browser installs.
func (fp *DeviceFingerprint) Hash() string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		fp.UserAgent,
		fp.ScreenResolution,
		fp.Timezone,
		fp.Platform,
		fp.WebGLVendor,
		fp.WebGLRenderer,
		fp.CanvasFingerprint,
	}, "|")))
	return hex.EncodeToString(h[:16])
}

// LocationData is a GPS fix reported by the client.
type LocationData struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"` // metres
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// TypingPattern is one inter-keystroke sample.
type TypingPattern struct {
	Timestamp        time.Time `json:"timestamp,omitempty"`
	Key              string    `json:"key,omitempty"`
	TimeSinceLastKey float64   `json:"time_since_last_key"` // milliseconds
}

// BehaviorData summarises session interaction telemetry.
type BehaviorData struct {
	Clicks           int             `json:"clicks"`
	Keystrokes       int             `json:"keystrokes"`
	Scrolls          int             `json:"scrolls"`
	MouseMovements   int             `json:"mouse_movements"`
	TypingPatterns   []TypingPattern `json:"typing_patterns,omitempty"`
	SessionDuration  float64         `json:"session_duration"` // milliseconds
	ActionsPerMinute float64         `json:"actions_per_minute"`
}

// NetworkData is the connection profile reported by the client.
type NetworkData struct {
	EffectiveType string  `json:"effective_type"` // slow-2g | 2g | 3g | 4g
	Downlink      float64 `json:"downlink"`       // Mbps
	RTT           float64 `json:"rtt"`            // milliseconds
	SaveData      bool    `json:"save_data"`
}

// TransactionContext is the full input to one risk analysis. It is treated
// as immutable for the duration of the call; every optional field may be
// absent and each analyzer degrades to a documented default.
type TransactionContext struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	CustomerID string  `json:"customer_id"`
	MerchantID string  `json:"merchant_id"`

	DeviceFingerprint *DeviceFingerprint `json:"device_fingerprint,omitempty"`
	LocationData      *LocationData      `json:"location_data,omitempty"`
	BehaviorData      *BehaviorData      `json:"behavior_data,omitempty"`
	NetworkData       *NetworkData       `json:"network_data,omitempty"`

	// Timestamp is the analysis time; zero means "now".
	Timestamp time.Time `json:"timestamp,omitempty"`

	// ForcedRiskScore and Scenario bypass factor computation entirely so
	// callers can exercise downstream behaviour deterministically.
	ForcedRiskScore *float64 `json:"forced_risk_score,omitempty"`
	Scenario        string   `json:"scenario,omitempty"`
}

// ─── Risk analysis (engine output) ───────────────────────────────────────────

// RiskFactorResult is the outcome of one independent factor analyzer.
// Never mutated after creation.
type RiskFactorResult struct {
	Score   float64        `json:"score"` // always within [0, 1]
	Reason  string         `json:"reason"`
	Details map[string]any `json:"details,omitempty"`
}

// RiskAnalysis is the full result of one analysis call. It is created fresh
// per call and owned by the caller afterwards; persistence is the caller's
// responsibility.
type RiskAnalysis struct {
	TransactionID   string                      `json:"transaction_id"`
	Timestamp       time.Time                   `json:"timestamp"`
	MerchantID      string                      `json:"merchant_id"`
	CustomerID      string                      `json:"customer_id"`
	Amount          float64                     `json:"amount"`
	Currency        string                      `json:"currency"`
	RiskFactors     map[string]RiskFactorResult `json:"risk_factors"`
	RiskScore       float64                     `json:"risk_score"`
	RiskLevel       string                      `json:"risk_level"`
	Recommendations []string                    `json:"recommendations"`
	Flags           []string                    `json:"flags"`
}

// Place is a resolved human-readable location.
type Place struct {
	City        string `json:"city"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

// ─── Merchants ────────────────────────────────────────────────────────────────

// Merchant is a registered API consumer. The API key authenticates fraud
// endpoints; the webhook URL receives high-risk alerts when set.
type Merchant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Website     string    `json:"website"`
	WebhookURL  string    `json:"webhook_url,omitempty"`
	Description string    `json:"description,omitempty"`
	APIKey      string    `json:"api_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active"`
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// WebhookConfig is an extra registered callback, fired when an analysis
// score meets its threshold. Merchant webhook URLs fire independently on
// HIGH-level analyses.
type WebhookConfig struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Threshold float64   `json:"threshold"` // fire when risk_score >= this value
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// WebhookPayload is the body sent to webhook URLs.
type WebhookPayload struct {
	Event       string       `json:"event"` // always "fraud.analysis.completed"
	TriggeredAt time.Time    `json:"triggered_at"`
	Analysis    RiskAnalysis `json:"analysis"`
}

// ─── Email verification ───────────────────────────────────────────────────────

// VerificationCode is a pending email verification challenge for one
// transaction, created when a caller follows the REQUIRE_EMAIL_VERIFICATION
// recommendation.
type VerificationCode struct {
	TransactionID string    `json:"transaction_id"`
	Email         string    `json:"email"`
	Code          string    `json:"-"` // never serialised to clients
	RiskScore     float64   `json:"risk_score"`
	ExpiresAt     time.Time `json:"expires_at"`
	Attempts      int       `json:"attempts"`
}

// ─── Dashboard ────────────────────────────────────────────────────────────────

// DashboardOverview holds headline metrics for the operations dashboard.
type DashboardOverview struct {
	TotalAnalyses   int     `json:"total_analyses"`
	HighRiskCount   int     `json:"high_risk_count"`
	MediumRiskCount int     `json:"medium_risk_count"`
	LowRiskCount    int     `json:"low_risk_count"`
	AvgRiskScore    float64 `json:"avg_risk_score"`
	FraudRate       float64 `json:"fraud_rate"` // percentage of HIGH analyses
}

// FlagCount is one entry of the "top flags" dashboard widget.
type FlagCount struct {
	Flag  string `json:"flag"`
	Count int    `json:"count"`
}

// MerchantSummary is the public subset of a merchant record shown on the
// dashboard.
type MerchantSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Website   string    `json:"website"`
	CreatedAt time.Time `json:"created_at"`
}

// Dashboard is the aggregated operations view.
type Dashboard struct {
	Overview       DashboardOverview `json:"overview"`
	RecentAnalyses []RiskAnalysis    `json:"recent_analyses"`
	Merchants      []MerchantSummary `json:"merchants"`
	TopFlags       []FlagCount       `json:"top_flags"`
	GeneratedAt    time.Time         `json:"generated_at"`
}
