// Package store provides thread-safe, in-memory storage for the fraud API.
//
// Design rationale: analyses, merchant records, webhook configs, and
// verification codes all fit comfortably in process memory for demo and
// small-scale production loads. The secondary indexes (byCustomer,
// byMerchant) give O(1) entity lookups, and the per-customer profile maps
// (last location, seen devices, seen networks) are what back the engine's
// reputation and history capabilities. A production deployment would swap
// this for Redis or Postgres behind the same method set.
package store

import (
	"errors"
	"sync"
	"time"

	"sentinel/risk-api/internal/domain"
)

// ErrDuplicateAnalysis is returned when an analysis ID is saved twice.
var ErrDuplicateAnalysis = errors.New("analysis already exists")

// ErrDuplicateMerchant is returned when a merchant email is already registered.
var ErrDuplicateMerchant = errors.New("merchant already exists")

// Store is a thread-safe in-memory data store.
type Store struct {
	mu sync.RWMutex

	analyses   map[string]*domain.RiskAnalysis
	byCustomer map[string][]string // customer ID → analysis IDs
	byMerchant map[string][]string // merchant ID → analysis IDs

	// Customer profile data, maintained on every save. These back the
	// engine's reputation and history capabilities.
	lastLocation map[string]*domain.LocationData
	seenDevices  map[string]map[string]bool // customer ID → fingerprint hash set
	seenNetworks map[string]map[string]bool // customer ID → effective type set

	merchants     map[string]*domain.Merchant // keyed by email
	merchantsByID map[string]*domain.Merchant
	apiKeys       map[string]*domain.Merchant

	webhooks map[string]*domain.WebhookConfig
	codes    map[string]*domain.VerificationCode // keyed by transaction ID
}

// New creates an empty, ready-to-use Store.
func New() *Store {
	return &Store{
		analyses:      make(map[string]*domain.RiskAnalysis),
		byCustomer:    make(map[string][]string),
		byMerchant:    make(map[string][]string),
		lastLocation:  make(map[string]*domain.LocationData),
		seenDevices:   make(map[string]map[string]bool),
		seenNetworks:  make(map[string]map[string]bool),
		merchants:     make(map[string]*domain.Merchant),
		merchantsByID: make(map[string]*domain.Merchant),
		apiKeys:       make(map[string]*domain.Merchant),
		webhooks:      make(map[string]*domain.WebhookConfig),
		codes:         make(map[string]*domain.VerificationCode),
	}
}

// ─── Analyses ─────────────────────────────────────────────────────────────────

// SaveAnalysis persists an analysis, updates the secondary indexes, and
// folds the raw context into the customer's profile so future reputation
// and history lookups see this transaction. The context may be nil (e.g.
// when replaying stored analyses); profile learning is then skipped.
// Returns ErrDuplicateAnalysis if the ID already exists.
func (s *Store) SaveAnalysis(a *domain.RiskAnalysis, tc *domain.TransactionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.analyses[a.TransactionID]; exists {
		return ErrDuplicateAnalysis
	}

	s.analyses[a.TransactionID] = a
	s.byCustomer[a.CustomerID] = append(s.byCustomer[a.CustomerID], a.TransactionID)
	s.byMerchant[a.MerchantID] = append(s.byMerchant[a.MerchantID], a.TransactionID)

	if tc == nil {
		return nil
	}

	if loc := tc.LocationData; loc != nil {
		saved := *loc
		if saved.Timestamp.IsZero() {
			saved.Timestamp = a.Timestamp
		}
		s.lastLocation[a.CustomerID] = &saved
	}
	if fp := tc.DeviceFingerprint; fp != nil {
		if s.seenDevices[a.CustomerID] == nil {
			s.seenDevices[a.CustomerID] = make(map[string]bool)
		}
		s.seenDevices[a.CustomerID][fp.Hash()] = true
	}
	if nd := tc.NetworkData; nd != nil && nd.EffectiveType != "" {
		if s.seenNetworks[a.CustomerID] == nil {
			s.seenNetworks[a.CustomerID] = make(map[string]bool)
		}
		s.seenNetworks[a.CustomerID][nd.EffectiveType] = true
	}

	return nil
}

// GetAnalysis retrieves a single analysis by transaction ID.
func (s *Store) GetAnalysis(id string) (*domain.RiskAnalysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.analyses[id]
	return a, ok
}

// AllAnalyses returns every stored analysis in arbitrary order.
func (s *Store) AllAnalyses() []*domain.RiskAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RiskAnalysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		result = append(result, a)
	}
	return result
}

// CountAnalysesSince returns how many analyses the customer has at or after
// `since`.
func (s *Store) CountAnalysesSince(customerID string, since time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.byCustomer[customerID] {
		if a, ok := s.analyses[id]; ok && !a.Timestamp.Before(since) {
			count++
		}
	}
	return count
}

// AmountsByCustomer returns the customer's historical transaction amounts in
// save order.
func (s *Store) AmountsByCustomer(customerID string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byCustomer[customerID]
	amounts := make([]float64, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.analyses[id]; ok {
			amounts = append(amounts, a.Amount)
		}
	}
	return amounts
}

// MerchantAvgAmount returns the merchant's average transaction amount, or 0
// when the merchant has no history.
func (s *Store) MerchantAvgAmount(merchantID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byMerchant[merchantID]
	if len(ids) == 0 {
		return 0
	}
	var sum float64
	n := 0
	for _, id := range ids {
		if a, ok := s.analyses[id]; ok {
			sum += a.Amount
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// LastLocation returns the customer's most recently saved location fix, or
// nil when none is recorded.
func (s *Store) LastLocation(customerID string) *domain.LocationData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLocation[customerID]
}

// HasSeenDevice reports whether the fingerprint hash has been saved for
// this customer before.
func (s *Store) HasSeenDevice(customerID, fingerprintHash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seenDevices[customerID][fingerprintHash]
}

// HasSeenNetwork reports whether the customer has transacted over this
// effective connection type before.
func (s *Store) HasSeenNetwork(customerID, effectiveType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seenNetworks[customerID][effectiveType]
}

// ─── Merchants ────────────────────────────────────────────────────────────────

// SaveMerchant registers a merchant and indexes its API key.
// Returns ErrDuplicateMerchant if the email is already registered.
func (s *Store) SaveMerchant(m *domain.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.merchants[m.Email]; exists {
		return ErrDuplicateMerchant
	}
	s.merchants[m.Email] = m
	s.merchantsByID[m.ID] = m
	s.apiKeys[m.APIKey] = m
	return nil
}

// GetMerchantByEmail looks a merchant up by registration email.
func (s *Store) GetMerchantByEmail(email string) (*domain.Merchant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.merchants[email]
	return m, ok
}

// GetMerchantByID looks a merchant up by ID.
func (s *Store) GetMerchantByID(id string) (*domain.Merchant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.merchantsByID[id]
	return m, ok
}

// GetMerchantByAPIKey resolves an API key to its merchant.
func (s *Store) GetMerchantByAPIKey(apiKey string) (*domain.Merchant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.apiKeys[apiKey]
	return m, ok
}

// ListMerchants returns all registered merchants in arbitrary order.
func (s *Store) ListMerchants() []*domain.Merchant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Merchant, 0, len(s.merchants))
	for _, m := range s.merchants {
		result = append(result, m)
	}
	return result
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// SaveWebhook persists a webhook configuration.
func (s *Store) SaveWebhook(wh *domain.WebhookConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[wh.ID] = wh
}

// DeleteWebhook removes a webhook by ID. Returns false if not found.
func (s *Store) DeleteWebhook(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.webhooks[id]
	if exists {
		delete(s.webhooks, id)
	}
	return exists
}

// ListActiveWebhooks returns all webhooks that are currently active.
func (s *Store) ListActiveWebhooks() []*domain.WebhookConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WebhookConfig
	for _, wh := range s.webhooks {
		if wh.Active {
			result = append(result, wh)
		}
	}
	return result
}

// ─── Verification codes ───────────────────────────────────────────────────────

// SaveVerificationCode upserts the pending code for a transaction.
func (s *Store) SaveVerificationCode(vc *domain.VerificationCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[vc.TransactionID] = vc
}

// GetVerificationCode returns the pending code for a transaction. Expired
// codes are deleted and reported as absent.
func (s *Store) GetVerificationCode(transactionID string) (*domain.VerificationCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vc, ok := s.codes[transactionID]
	if !ok {
		return nil, false
	}
	if time.Now().After(vc.ExpiresAt) {
		delete(s.codes, transactionID)
		return nil, false
	}
	return vc, true
}

// DeleteVerificationCode removes the pending code for a transaction.
func (s *Store) DeleteVerificationCode(transactionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, transactionID)
}
