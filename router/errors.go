package router

import (
	"errors"
	"fmt"
)

// ErrMalformedAction is wrapped by oracles whose reply cannot be read as an
// Action. The router records it as a failed step and asks again.
var ErrMalformedAction = errors.New("malformed oracle action")

// RoutingError is returned when the oracle names a tool that is not registered.
type RoutingError struct {
	Tool string
	Err  error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing failed: unknown tool %q", e.Tool)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// OracleError carries an oracle failure that ends the turn, such as a
// network or authentication error from the provider.
type OracleError struct {
	Err error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle failed: %v", e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// UnavailableAnswer is shown to users in place of raw error text.
const UnavailableAnswer = "Sorry, I could not obtain the requested information."

// UserFacingError returns the sentence shown to a user for an error from
// Handle, or "" when err is nil.
func UserFacingError(err error) string {
	if err == nil {
		return ""
	}
	return UnavailableAnswer
}
