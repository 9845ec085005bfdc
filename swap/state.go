package swap

import "github.com/flowswap/flowswap-engine/swaperr"

// transitions whitelists every legal (from, to) state move. Anything
// absent from this table is rejected with ErrInvalidTransition,
// including every move out of a terminal state and every attempt to
// skip a step.
var transitions = map[State]map[State]bool{
	AwaitingDeposit: {
		DepositSeen: true,
		Expired:     true,
		Failed:      true,
	},
	DepositSeen: {
		DepositConfirmed: true,
		Expired:          true,
		Failed:           true,
	},
	DepositConfirmed: {
		CounterLocked: true,
		Refunded:      true,
		Expired:       true,
		Failed:        true,
	},
	CounterLocked: {
		ClaimedDownstream: true,
		Refunded:          true,
		Expired:           true,
		Failed:            true,
	},
	ClaimedDownstream: {
		Completing: true,
		Failed:     true,
	},
	Completing: {
		Completed: true,
		Failed:    true, // only after OperatorAlert is raised, never silently
	},

	// Completed, Refunded, Expired, Failed are terminal: no entry means
	// no outbound transition is legal.
}

// CanTransition reports whether moving a swap from `from` to `to` is a
// whitelisted edge.
func CanTransition(from, to State) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Transition advances s.State to to, or returns ErrInvalidTransition
// without mutating s. A completing swap moves to failed only once its
// OperatorAlert is set. Callers hold the orchestrator's lock; this
// function does no locking of its own.
func (s *Swap) Transition(to State) error {
	if !CanTransition(s.State, to) {
		return swaperr.ErrInvalidTransition
	}
	if s.State == Completing && to == Failed && !s.OperatorAlert {
		return swaperr.ErrInvalidTransition
	}
	s.State = to
	return nil
}
