package admission

import (
	"context"
	"net"
	"net/http"
)

// Gate runs the three checks of spec §4.8 in order, each terminal on
// failure: bearer verification first, so the rate-limit principal is the
// stable token subject whenever possible; then the address allow-list;
// then the rate limit itself.
type Gate struct {
	bearer    *BearerVerifier
	allowList *AllowList
	rateLimit *RateLimiter
}

// New builds a Gate from its three checks.
func New(bearer *BearerVerifier, allowList *AllowList, rateLimit *RateLimiter) *Gate {
	return &Gate{bearer: bearer, allowList: allowList, rateLimit: rateLimit}
}

// Admit runs all three checks against r and returns the resolved
// principal (the verified subject, or the peer address if bearer
// verification is skipped) on success.
func (g *Gate) Admit(ctx context.Context, r *http.Request) (string, error) {
	subject, err := g.bearer.Verify(r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}

	peer := peerAddress(r)
	if err := g.allowList.Check(peer); err != nil {
		return "", err
	}

	principal := subject
	if principal == "" {
		principal = peer
	}
	if err := g.rateLimit.Allow(ctx, principal); err != nil {
		return "", err
	}
	return principal, nil
}

// peerAddress extracts the host portion of r.RemoteAddr, falling back to
// the raw value if it isn't a host:port pair (e.g. the test sentinel).
func peerAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
