package state

import "errors"

type Phase string

const (
	PhaseAwaitingID               Phase = "AWAITING_ID"
	PhaseAwaitingPreference       Phase = "AWAITING_PREFERENCE"
	PhaseRecommending             Phase = "RECOMMENDING"
	PhaseOfferingCrossSell        Phase = "OFFERING_CROSS_SELL"
	PhaseAwaitingCrossSellOutcome Phase = "AWAITING_CROSS_SELL_OUTCOME"
	PhaseCheckout                 Phase = "CHECKOUT"
)

var ErrInvalidTransition = errors.New("invalid phase transition")

var phaseRank = map[Phase]int{
	PhaseAwaitingID:               0,
	PhaseAwaitingPreference:       1,
	PhaseRecommending:             2,
	PhaseOfferingCrossSell:        3,
	PhaseAwaitingCrossSellOutcome: 4,
	PhaseCheckout:                 5,
}

// Edges of the business sequence. CHECKOUT loops back into a new recommendation cycle.
var transitions = map[Phase][]Phase{
	PhaseAwaitingID:               {PhaseAwaitingPreference},
	PhaseAwaitingPreference:       {PhaseRecommending, PhaseOfferingCrossSell},
	PhaseRecommending:             {PhaseOfferingCrossSell},
	PhaseOfferingCrossSell:        {PhaseAwaitingCrossSellOutcome},
	PhaseAwaitingCrossSellOutcome: {PhaseCheckout},
	PhaseCheckout:                 {PhaseRecommending, PhaseOfferingCrossSell},
}

func (p Phase) Valid() bool {
	_, ok := phaseRank[p]
	return ok
}

// Rank is the position of p in the business sequence.
func (p Phase) Rank() int {
	r, ok := phaseRank[p]
	if !ok {
		return -1
	}
	return r
}

func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Progress orders (cycle, phase) pairs; it never decreases across committed turns.
func Progress(cycle int, p Phase) int {
	return cycle*len(phaseRank) + p.Rank()
}
