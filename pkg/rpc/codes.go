package rpc

import "github.com/zohobridge/mcp-gateway/pkg/errors"

// Standard JSON-RPC 2.0 reserved codes, used for framework-level faults
// that never reach pkg/errors (malformed envelope). An unknown method is
// reported by route as invalid-params (-32602); codeMethodNotFound is
// not used.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// errorCodes assigns each domain error kind a stable code in the
// implementation-defined server range (-32000 to -32099), per spec §7's
// "each with a stable numeric code".
var errorCodes = map[errors.Type]int{
	errors.ErrInvalidParams:         -32602, // reuses JSON-RPC's own Invalid params code
	errors.ErrUnauthorised:          -32001,
	errors.ErrForbidden:             -32002,
	errors.ErrRateLimited:           -32003,
	errors.ErrNotFound:              -32004,
	errors.ErrConflict:              -32005,
	errors.ErrUpstreamUnavailable:   -32006,
	errors.ErrUpstreamRejected:      -32007,
	errors.ErrCredentialUnavailable: -32008,
	errors.ErrTimeout:               -32009,
	errors.ErrInternal:              codeInternalError,
}

func codeFor(t errors.Type) int {
	if code, ok := errorCodes[t]; ok {
		return code
	}
	return codeInternalError
}
