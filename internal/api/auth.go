package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sentinel/risk-api/internal/domain"
	"sentinel/risk-api/internal/store"
)

type contextKey string

const merchantKey contextKey = "merchant"

// merchantFrom extracts the authenticated merchant from the request context.
func merchantFrom(ctx context.Context) (*domain.Merchant, bool) {
	m, ok := ctx.Value(merchantKey).(*domain.Merchant)
	return m, ok
}

// requireMerchant authenticates the request by API key (X-API-Key header) or
// by bearer JWT issued at login, and stores the merchant in the context.
func requireMerchant(s *store.Store, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" {
				m, found := s.GetMerchantByAPIKey(key)
				if !found || !m.IsActive {
					unauthorized(w, "invalid API key")
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), merchantKey, m)))
				return
			}

			auth := r.Header.Get("Authorization")
			if token, found := strings.CutPrefix(auth, "Bearer "); found {
				merchantID, err := parseToken(token, jwtSecret)
				if err != nil {
					unauthorized(w, "invalid or expired token")
					return
				}
				m, found := s.GetMerchantByID(merchantID)
				if !found || !m.IsActive {
					unauthorized(w, "unknown merchant")
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), merchantKey, m)))
				return
			}

			unauthorized(w, "missing credentials: provide X-API-Key or a bearer token")
		})
	}
}

// issueToken mints a 24-hour JWT for the merchant.
func issueToken(merchantID, secret string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   merchantID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
	})
	return token.SignedString([]byte(secret))
}

func parseToken(tokenString, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", err
	}
	claims := token.Claims.(*jwt.RegisteredClaims)
	return claims.Subject, nil
}
