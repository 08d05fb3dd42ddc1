package engine

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrNotOwner rejects any entry point invoked by anyone but the owner.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrReentrant rejects a top-level invocation started while another is
	// already on the call stack.
	ErrReentrant = errors.New("execution already in progress")

	// ErrUnexpectedCaller rejects a callback from any address other than the
	// one external party the engine just invoked.
	ErrUnexpectedCaller = errors.New("callback from unexpected caller")

	// ErrBadInitiator rejects a pooled loan requested on the engine's behalf
	// by a third party.
	ErrBadInitiator = errors.New("loan not initiated by this engine")

	// ErrRouteTerminal rejects a route whose final asset is not the borrowed
	// asset. The engine never sells back into the borrowed asset on its own.
	ErrRouteTerminal = errors.New("route does not terminate in the borrowed asset")

	// ErrUnknownVenue rejects a route step naming an unregistered venue.
	ErrUnknownVenue = errors.New("venue not registered")

	// ErrNoLender means no registered funding source can cover the request.
	ErrNoLender = errors.New("no funding source can fund the request")
)

// SolvencyError reports a post-route balance short of debt plus the minimum
// profit threshold. Required and Actual carry the exact amounts.
type SolvencyError struct {
	Required *big.Int
	Actual   *big.Int
}

func (e *SolvencyError) Error() string {
	return fmt.Sprintf("insufficient profit: balance %s, required %s (short %s)",
		e.Actual, e.Required, e.Shortfall())
}

// Shortfall returns Required - Actual.
func (e *SolvencyError) Shortfall() *big.Int {
	return new(big.Int).Sub(e.Required, e.Actual)
}

// failureLabel maps an error to its taxonomy case for metrics.
func failureLabel(err error) string {
	var solvency *SolvencyError
	switch {
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrUnexpectedCaller), errors.Is(err, ErrBadInitiator):
		return "authorization"
	case errors.Is(err, ErrReentrant):
		return "concurrency"
	case errors.Is(err, ErrRouteTerminal), errors.Is(err, ErrUnknownVenue):
		return "route"
	case errors.As(err, &solvency):
		return "solvency"
	default:
		return "external"
	}
}
