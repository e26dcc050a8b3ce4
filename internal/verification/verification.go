// Package verification manages email verification challenges for flagged
// transactions: a caller acting on a REQUIRE_EMAIL_VERIFICATION
// recommendation requests a code, the customer submits it back, and the
// code is consumed on success.
//
// Codes are 6 digits, expire after 10 minutes, and allow 3 attempts.
// Actual email delivery is out of scope; the issued code is logged the way
// the demo environment expects.
package verification

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"sentinel/risk-api/internal/domain"
	"sentinel/risk-api/internal/store"
)

var (
	// ErrNotFound means no pending (non-expired) code exists for the
	// transaction.
	ErrNotFound = errors.New("no pending verification for transaction")

	// ErrTooManyAttempts means the challenge was consumed by failed
	// attempts; the caller must request a new code.
	ErrTooManyAttempts = errors.New("too many failed attempts")
)

// WrongCodeError reports a failed attempt and how many remain.
type WrongCodeError struct {
	AttemptsRemaining int
}

func (e *WrongCodeError) Error() string {
	return fmt.Sprintf("invalid verification code (%d attempts remaining)", e.AttemptsRemaining)
}

// Service issues and checks verification codes backed by the store.
type Service struct {
	store       *store.Store
	ttl         time.Duration
	maxAttempts int
}

// New creates a Service with the standard 10-minute TTL and 3-attempt limit.
func New(s *store.Store) *Service {
	return &Service{store: s, ttl: 10 * time.Minute, maxAttempts: 3}
}

// Send issues a fresh code for the transaction, replacing any pending one.
func (s *Service) Send(email, transactionID string, riskScore float64) (*domain.VerificationCode, error) {
	code, err := sixDigitCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	vc := &domain.VerificationCode{
		TransactionID: transactionID,
		Email:         email,
		Code:          code,
		RiskScore:     riskScore,
		ExpiresAt:     time.Now().Add(s.ttl),
		Attempts:      0,
	}
	s.store.SaveVerificationCode(vc)

	// Email transport is out of scope; log the code for the demo flow.
	slog.Info("verification code issued",
		"transaction_id", transactionID,
		"email", email,
		"expires_at", vc.ExpiresAt,
	)

	return vc, nil
}

// Verify checks a submitted code. On success the challenge is consumed; on
// a wrong code the attempt is counted and WrongCodeError returned; after
// the attempt limit the challenge is destroyed and ErrTooManyAttempts
// returned.
func (s *Service) Verify(transactionID, code string) error {
	vc, ok := s.store.GetVerificationCode(transactionID)
	if !ok {
		return ErrNotFound
	}

	if vc.Attempts >= s.maxAttempts {
		s.store.DeleteVerificationCode(transactionID)
		return ErrTooManyAttempts
	}

	if vc.Code != code {
		vc.Attempts++
		s.store.SaveVerificationCode(vc)
		return &WrongCodeError{AttemptsRemaining: s.maxAttempts - vc.Attempts}
	}

	s.store.DeleteVerificationCode(transactionID)
	return nil
}

// Status returns the pending challenge for a transaction, if any.
func (s *Service) Status(transactionID string) (*domain.VerificationCode, bool) {
	return s.store.GetVerificationCode(transactionID)
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
