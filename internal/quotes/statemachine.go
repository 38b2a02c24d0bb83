package quotes

import "fmt"

// transitions is the legal lifecycle: a draft is sent to the client, a
// pending quote receives exactly one client decision. Terminal states have
// no outgoing edges. Operator overrides bypass this table on purpose and
// are journaled separately (see Service.OverrideStatus).
var transitions = map[QuoteStatus][]QuoteStatus{
	StatusDraft:    {StatusPending},
	StatusPending:  {StatusAccepted, StatusRefused},
	StatusAccepted: {},
	StatusRefused:  {},
}

// CanTransition reports whether the lifecycle permits from → to.
func CanTransition(from, to QuoteStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns ErrInvalidTransition when from → to is not a
// legal lifecycle edge.
func EnsureTransition(from, to QuoteStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: unknown status %q -> %q", ErrInvalidTransition, from, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
