package audit

import "fmt"

// State identifies a stage of the audit workflow.
type State string

const (
	StateRetrieve State = "RETRIEVE"
	StateDraft    State = "DRAFT"
	StateVerify   State = "VERIFY"
	StateRefine   State = "REFINE"
	StateScore    State = "SCORE"
	StateFinalize State = "FINALIZE"
	StateDone     State = "DONE"
	StateFailed   State = "FAILED"
)

// Event is an outcome that moves the workflow between states.
type Event string

const (
	EventEvidenceFound   Event = "EVIDENCE_FOUND"
	EventNoEvidence      Event = "NO_EVIDENCE"
	EventDrafted         Event = "DRAFTED"
	EventVerifiedClean   Event = "VERIFIED_CLEAN"
	EventHallucination   Event = "HALLUCINATION"
	EventBudgetExhausted Event = "BUDGET_EXHAUSTED"
	EventRefined         Event = "REFINED"
	EventScored          Event = "SCORED"
	EventFinalized       Event = "FINALIZED"
	EventError           Event = "ERROR"
)

// transitions is the complete legal edge set of the workflow. A
// hallucination verdict routes back through REFINE until the draft
// budget runs out, at which point the flawed draft proceeds to scoring
// and the low score reflects it.
var transitions = map[State]map[Event]State{
	StateRetrieve: {
		EventEvidenceFound: StateDraft,
		EventNoEvidence:    StateFailed,
	},
	StateDraft: {
		EventDrafted: StateVerify,
	},
	StateVerify: {
		EventVerifiedClean:   StateScore,
		EventHallucination:   StateRefine,
		EventBudgetExhausted: StateScore,
	},
	StateRefine: {
		EventRefined: StateVerify,
	},
	StateScore: {
		EventScored: StateFinalize,
	},
	StateFinalize: {
		EventFinalized: StateDone,
	},
}

// Transition returns the state that follows applying event in state.
// It is pure: the same inputs always produce the same output, and an
// edge not in the table is an error rather than a silent no-op.
func Transition(state State, event Event) (State, error) {
	if event == EventError {
		return StateFailed, nil
	}
	next, ok := transitions[state][event]
	if !ok {
		return StateFailed, fmt.Errorf("illegal transition: %s + %s", state, event)
	}
	return next, nil
}
