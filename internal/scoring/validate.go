package scoring

import (
	"fmt"
	"unicode"

	"sentinel/risk-api/internal/domain"
)

// ValidationError reports one invalid input field. Validation fails
// atomically: no partial analysis is ever produced for invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Message)
}

// ValidateContext checks a transaction context before analysis begins.
// Optional fields are only validated when present.
func ValidateContext(tc *domain.TransactionContext) error {
	if tc == nil {
		return &ValidationError{Field: "context", Message: "is required"}
	}
	if tc.Amount <= 0 {
		return &ValidationError{Field: "amount", Message: "must be greater than 0"}
	}
	if !isCurrencyCode(tc.Currency) {
		return &ValidationError{Field: "currency", Message: "must be a 3-letter code"}
	}
	if tc.CustomerID == "" {
		return &ValidationError{Field: "customer_id", Message: "is required"}
	}
	if tc.MerchantID == "" {
		return &ValidationError{Field: "merchant_id", Message: "is required"}
	}

	if loc := tc.LocationData; loc != nil {
		if loc.Latitude < -90 || loc.Latitude > 90 {
			return &ValidationError{Field: "location_data.latitude", Message: "must be within [-90, 90]"}
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			return &ValidationError{Field: "location_data.longitude", Message: "must be within [-180, 180]"}
		}
	}

	if tc.ForcedRiskScore != nil && (*tc.ForcedRiskScore < 0 || *tc.ForcedRiskScore > 1) {
		return &ValidationError{Field: "forced_risk_score", Message: "must be within [0, 1]"}
	}
	switch tc.Scenario {
	case "", domain.ScenarioNormal, domain.ScenarioSuspicious, domain.ScenarioFraudulent:
	default:
		return &ValidationError{Field: "scenario", Message: "must be one of: normal, suspicious, fraudulent"}
	}

	return nil
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
