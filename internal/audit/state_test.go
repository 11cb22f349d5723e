package audit

import "testing"

func TestTransition_LegalEdges(t *testing.T) {
	tests := []struct {
		state State
		event Event
		want  State
	}{
		{StateRetrieve, EventEvidenceFound, StateDraft},
		{StateRetrieve, EventNoEvidence, StateFailed},
		{StateDraft, EventDrafted, StateVerify},
		{StateVerify, EventVerifiedClean, StateScore},
		{StateVerify, EventHallucination, StateRefine},
		{StateVerify, EventBudgetExhausted, StateScore},
		{StateRefine, EventRefined, StateVerify},
		{StateScore, EventScored, StateFinalize},
		{StateFinalize, EventFinalized, StateDone},
	}

	for _, tt := range tests {
		got, err := Transition(tt.state, tt.event)
		if err != nil {
			t.Errorf("Transition(%s, %s): unexpected error %v", tt.state, tt.event, err)
		}
		if got != tt.want {
			t.Errorf("Transition(%s, %s) = %s, want %s", tt.state, tt.event, got, tt.want)
		}
	}
}

func TestTransition_IllegalEdgeFails(t *testing.T) {
	tests := []struct {
		state State
		event Event
	}{
		{StateRetrieve, EventDrafted},
		{StateDraft, EventVerifiedClean},
		{StateScore, EventHallucination},
		{StateDone, EventDrafted},
		{StateFailed, EventScored},
	}

	for _, tt := range tests {
		got, err := Transition(tt.state, tt.event)
		if err == nil {
			t.Errorf("Transition(%s, %s): expected error, got %s", tt.state, tt.event, got)
		}
		if got != StateFailed {
			t.Errorf("Transition(%s, %s): expected StateFailed, got %s", tt.state, tt.event, got)
		}
	}
}

func TestTransition_ErrorAlwaysFails(t *testing.T) {
	for _, state := range []State{StateRetrieve, StateDraft, StateVerify, StateRefine, StateScore, StateFinalize} {
		got, err := Transition(state, EventError)
		if err != nil {
			t.Errorf("Transition(%s, ERROR): unexpected error %v", state, err)
		}
		if got != StateFailed {
			t.Errorf("Transition(%s, ERROR) = %s, want FAILED", state, got)
		}
	}
}
