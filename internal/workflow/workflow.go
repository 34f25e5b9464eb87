// Package workflow holds the transition tables for artifacts, rental requests
// and museums. The tables are pure: they never touch storage or check roles.
package workflow

import (
	"fmt"
	"strings"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// Machine names a state machine.
type Machine string

const (
	MachineArtifact Machine = "artifact"
	MachineRental   Machine = "rental"
	MachineMuseum   Machine = "museum"
)

// Event is an input to one of the machines.
type Event string

const (
	EventSubmit           Event = "submit"
	EventMuseumApprove    Event = "museum_approve"
	EventMuseumReject     Event = "museum_reject"
	EventFinalApprove     Event = "final_approve"
	EventFinalReject      Event = "final_reject"
	EventResubmit         Event = "resubmit"
	EventPaymentCompleted Event = "payment_completed"
	EventPeriodEnded      Event = "period_ended"
	EventApprove          Event = "approve"
	EventReject           Event = "reject"
)

// ReviewLevel tags review records by tier.
type ReviewLevel string

const (
	LevelNone        ReviewLevel = ""
	LevelMuseumAdmin ReviewLevel = "museum_admin"
	LevelFinal       ReviewLevel = "final"
)

// Decision is the reviewer's verdict recorded with a review.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseEvent normalises a client supplied event name.
func ParseEvent(raw string) (Event, error) {
	ev := Event(strings.ToLower(strings.TrimSpace(raw)))
	switch ev {
	case EventSubmit, EventMuseumApprove, EventMuseumReject, EventFinalApprove, EventFinalReject,
		EventResubmit, EventPaymentCompleted, EventPeriodEnded, EventApprove, EventReject:
		return ev, nil
	}
	return "", fmt.Errorf("%w: unknown event %q", shared.ErrValidation, raw)
}

// TransitionError reports a rejected transition together with the state it was attempted from.
type TransitionError struct {
	Machine Machine
	From    string
	Event   Event
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow: %s cannot apply %s from %s: %v", e.Machine, e.Event, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

func invalid(m Machine, from string, ev Event) error {
	return &TransitionError{Machine: m, From: from, Event: ev, Err: shared.ErrInvalidTransition}
}
