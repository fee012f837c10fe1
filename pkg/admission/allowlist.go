package admission

import (
	"net"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
)

// testSentinelAddress is the declared address a test profile accepts
// regardless of the configured allow-list (spec §4.8: "In a test profile
// a declared sentinel address is accepted").
const testSentinelAddress = "test-sentinel"

// AllowList checks a peer address against configured exact addresses and
// CIDR blocks (spec §4.8's rule 2).
type AllowList struct {
	exact       map[string]struct{}
	nets        []*net.IPNet
	testProfile bool
}

// NewAllowList builds an AllowList from entries, each either a bare
// address or a CIDR block. testProfile enables the sentinel bypass.
func NewAllowList(entries []string, testProfile bool) (*AllowList, error) {
	a := &AllowList{exact: make(map[string]struct{}, len(entries)), testProfile: testProfile}
	for _, entry := range entries {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			a.nets = append(a.nets, ipNet)
			continue
		}
		a.exact[entry] = struct{}{}
	}
	return a, nil
}

// Check returns nil if addr is permitted, or a forbidden error otherwise.
func (a *AllowList) Check(addr string) error {
	if a.testProfile && addr == testSentinelAddress {
		return nil
	}
	if _, ok := a.exact[addr]; ok {
		return nil
	}
	ip := net.ParseIP(addr)
	if ip != nil {
		for _, ipNet := range a.nets {
			if ipNet.Contains(ip) {
				return nil
			}
		}
	}
	return errors.NewForbidden("peer address is not in the allow-list")
}
