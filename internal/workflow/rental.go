package workflow

import (
	"fmt"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// RentalStatus is the lifecycle state of a rental request.
type RentalStatus string

const (
	RentalPendingReview  RentalStatus = "pending_review"
	RentalRejected       RentalStatus = "rejected"
	RentalPaymentPending RentalStatus = "payment_pending"
	RentalActive         RentalStatus = "active"
	RentalCompleted      RentalStatus = "completed"
)

// SlotStatus is the state of one approval slot.
type SlotStatus string

const (
	SlotPending  SlotStatus = "pending"
	SlotApproved SlotStatus = "approved"
	SlotRejected SlotStatus = "rejected"
)

// RentalState is the part of a rental the machine reads and writes.
type RentalState struct {
	Status      RentalStatus
	MuseumAdmin SlotStatus
	SuperAdmin  SlotStatus
}

// NewRentalState is the initial state of every rental request.
func NewRentalState() RentalState {
	return RentalState{Status: RentalPendingReview, MuseumAdmin: SlotPending, SuperAdmin: SlotPending}
}

// Label renders the state for audit records; slot changes show up even when the status does not move.
func (s RentalState) Label() string {
	return fmt.Sprintf("%s/museum_admin:%s/super_admin:%s", s.Status, s.slot(s.MuseumAdmin), s.slot(s.SuperAdmin))
}

func (s RentalState) slot(v SlotStatus) SlotStatus {
	if v == "" {
		return SlotPending
	}
	return v
}

// RentalTransition is the computed effect of an event on a rental.
type RentalTransition struct {
	From     RentalState
	Event    Event
	To       RentalState
	Level    ReviewLevel
	Decision Decision
}

// NextRental computes the effect of ev on from. Final-level events require an
// approved museum slot and otherwise fail with an out-of-order error.
func NextRental(from RentalState, ev Event) (RentalTransition, error) {
	from.MuseumAdmin = from.slot(from.MuseumAdmin)
	from.SuperAdmin = from.slot(from.SuperAdmin)
	to := from
	t := RentalTransition{From: from, Event: ev}

	switch ev {
	case EventMuseumApprove, EventMuseumReject:
		if from.Status != RentalPendingReview || from.MuseumAdmin != SlotPending {
			return RentalTransition{}, invalid(MachineRental, from.Label(), ev)
		}
		t.Level = LevelMuseumAdmin
		if ev == EventMuseumApprove {
			to.MuseumAdmin = SlotApproved
			t.Decision = DecisionApproved
		} else {
			to.MuseumAdmin = SlotRejected
			to.Status = RentalRejected
			t.Decision = DecisionRejected
		}
	case EventFinalApprove, EventFinalReject:
		if from.MuseumAdmin != SlotApproved {
			return RentalTransition{}, &TransitionError{Machine: MachineRental, From: from.Label(), Event: ev, Err: shared.ErrOutOfOrderApproval}
		}
		if from.Status != RentalPendingReview || from.SuperAdmin != SlotPending {
			return RentalTransition{}, invalid(MachineRental, from.Label(), ev)
		}
		t.Level = LevelFinal
		if ev == EventFinalApprove {
			to.SuperAdmin = SlotApproved
			to.Status = RentalPaymentPending
			t.Decision = DecisionApproved
		} else {
			to.SuperAdmin = SlotRejected
			to.Status = RentalRejected
			t.Decision = DecisionRejected
		}
	case EventPaymentCompleted:
		if from.Status != RentalPaymentPending {
			return RentalTransition{}, invalid(MachineRental, from.Label(), ev)
		}
		to.Status = RentalActive
	case EventPeriodEnded:
		if from.Status != RentalActive {
			return RentalTransition{}, invalid(MachineRental, from.Label(), ev)
		}
		to.Status = RentalCompleted
	default:
		return RentalTransition{}, invalid(MachineRental, from.Label(), ev)
	}
	t.To = to
	return t, nil
}

// RentalEvents lists the events the rental machine understands.
func RentalEvents() []Event {
	return []Event{EventMuseumApprove, EventMuseumReject, EventFinalApprove, EventFinalReject, EventPaymentCompleted, EventPeriodEnded}
}
