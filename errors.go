// ABOUTME: Error taxonomy for the update pipeline, one Kind per DynDNS2 failure class.
// ABOUTME: Errors without a Kind are internal failures and map to the 911 response.

package dyndns53

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind uint8

const (
	// KindInternal is any failure without a protocol meaning (backend errors,
	// ambiguous record state, broken adapters). It is the zero value.
	KindInternal Kind = iota
	KindAuthorizationMissing
	KindAuthorization
	KindHostname
	KindFQDN
	KindBadAgent
	KindAbuse
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindAuthorizationMissing:
		return "authorization-missing"
	case KindAuthorization:
		return "authorization"
	case KindHostname:
		return "hostname"
	case KindFQDN:
		return "fqdn"
	case KindBadAgent:
		return "badagent"
	case KindAbuse:
		return "abuse"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Error is a classified pipeline failure. Msg is the diagnostic meant for
// logs, never for the client.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
