// Package admission implements the Admission Gate (spec §4.8): bearer
// verification, source-address allow-listing, and per-principal rate
// limiting, applied in that order to every call on the network transport.
package admission

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
)

// BearerVerifier checks a request's Authorization header against a
// symmetric HMAC-SHA256 signing key, per spec §4.8's rule 1.
type BearerVerifier struct {
	signingKey  []byte
	maxLifetime time.Duration
}

// NewBearerVerifier constructs a BearerVerifier. maxLifetime is the
// Open-Question ceiling (DESIGN.md decision 1): tokens whose exp-iat span
// exceeds this are rejected even if otherwise well-formed.
func NewBearerVerifier(signingKey []byte, maxLifetime time.Duration) *BearerVerifier {
	return &BearerVerifier{signingKey: signingKey, maxLifetime: maxLifetime}
}

// Verify extracts and validates the bearer from authHeader, returning the
// token's subject claim on success. Any failure mode named in spec
// §4.8 — missing, malformed, bad signature, expired, not-yet-valid —
// produces an unauthorised error.
func (v *BearerVerifier) Verify(authHeader string) (string, error) {
	raw, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || raw == "" {
		return "", errors.NewUnauthorised("missing bearer token")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil || !token.Valid {
		return "", errors.NewUnauthorised("invalid bearer token")
	}

	if err := v.checkLifetime(claims); err != nil {
		return "", err
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return "", errors.NewUnauthorised("bearer token missing subject claim")
	}
	return subject, nil
}

// checkLifetime enforces the configured expiry ceiling (DESIGN.md Open
// Question decision 1): exp minus iat must not exceed maxLifetime. A
// token without an iat claim cannot be checked and is rejected, since the
// signing policy is expected to always set one.
func (v *BearerVerifier) checkLifetime(claims jwt.MapClaims) error {
	if v.maxLifetime <= 0 {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return errors.NewUnauthorised("bearer token missing exp claim")
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return errors.NewUnauthorised("bearer token missing iat claim")
	}
	if exp.Sub(iat.Time) > v.maxLifetime {
		return errors.NewUnauthorised("bearer token lifetime exceeds the configured ceiling")
	}
	return nil
}
