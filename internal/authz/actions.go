package authz

import (
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/ownership"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

// Action names an operation guarded by the gate.
type Action string

const (
	ActionArtifactCreate        Action = "artifact.create"
	ActionArtifactRead          Action = "artifact.read"
	ActionArtifactSubmit        Action = "artifact.submit"
	ActionArtifactMuseumApprove Action = "artifact.museum_approve"
	ActionArtifactMuseumReject  Action = "artifact.museum_reject"
	ActionArtifactFinalApprove  Action = "artifact.final_approve"
	ActionArtifactFinalReject   Action = "artifact.final_reject"
	ActionArtifactResubmit      Action = "artifact.resubmit"

	ActionRentalRequest          Action = "rental.request"
	ActionRentalRead             Action = "rental.read"
	ActionRentalMuseumApprove    Action = "rental.museum_approve"
	ActionRentalMuseumReject     Action = "rental.museum_reject"
	ActionRentalFinalApprove     Action = "rental.final_approve"
	ActionRentalFinalReject      Action = "rental.final_reject"
	ActionRentalPaymentCompleted Action = "rental.payment_completed"
	ActionRentalPeriodEnded      Action = "rental.period_ended"

	ActionMuseumRead    Action = "museum.read"
	ActionMuseumApprove Action = "museum.approve"
	ActionMuseumReject  Action = "museum.reject"

	ActionAuditList      Action = "audit.list"
	ActionUserChangeRole Action = "user.change_role"
)

// Requirement describes what an action demands of the actor and the target.
type Requirement struct {
	Resource ownership.ResourceType
	// AnyOf lists capabilities of which the actor needs one. Empty means none needed.
	AnyOf []identity.Capability
	// Scoped actions consult the ownership resolver.
	Scoped bool
	// Machine and Event are set for state transitions.
	Machine workflow.Machine
	Event   workflow.Event
	// System actions may only be raised by the system actor.
	System bool
}

// Transition reports whether the action drives a state machine.
func (r Requirement) Transition() bool { return r.Machine != "" }

func caps(c ...identity.Capability) []identity.Capability { return c }

var requirements = map[Action]Requirement{
	ActionArtifactCreate:        {Resource: ownership.ResourceArtifact, AnyOf: caps(identity.CapSubmitArtifact), Scoped: true},
	ActionArtifactRead:          {Resource: ownership.ResourceArtifact, Scoped: true},
	ActionArtifactSubmit:        {Resource: ownership.ResourceArtifact, AnyOf: caps(identity.CapSubmitArtifact), Scoped: true, Machine: workflow.MachineArtifact, Event: workflow.EventSubmit},
	ActionArtifactMuseumApprove: {Resource: ownership.ResourceArtifact, AnyOf: caps(identity.CapFirstApproveArtifact), Scoped: true, Machine: workflow.MachineArtifact, Event: workflow.EventMuseumApprove},
	ActionArtifactMuseumReject:  {Resource: ownership.ResourceArtifact, AnyOf: caps(identity.CapFirstApproveArtifact), Scoped: true, Machine: workflow.MachineArtifact, Event: workflow.EventMuseumReject},
	ActionArtifactFinalApprove:  {Resource: ownership.ResourceArtifact, AnyOf: caps(identity.CapFinalApproveArtifact), Machine: workflow.MachineArtifact, Event: workflow.EventFinalApprove},
	ActionArtifactFinalReject:   {Resource: ownership.ResourceArtifact, AnyOf: caps(identity.CapFinalApproveArtifact), Machine: workflow.MachineArtifact, Event: workflow.EventFinalReject},
	ActionArtifactResubmit:      {Resource: ownership.ResourceArtifact, AnyOf: caps(identity.CapSubmitArtifact), Scoped: true, Machine: workflow.MachineArtifact, Event: workflow.EventResubmit},

	ActionRentalRequest:          {Resource: ownership.ResourceRental, AnyOf: caps(identity.CapRequestRental)},
	ActionRentalRead:             {Resource: ownership.ResourceRental, Scoped: true},
	ActionRentalMuseumApprove:    {Resource: ownership.ResourceRental, AnyOf: caps(identity.CapManageOwnMuseum), Scoped: true, Machine: workflow.MachineRental, Event: workflow.EventMuseumApprove},
	ActionRentalMuseumReject:     {Resource: ownership.ResourceRental, AnyOf: caps(identity.CapManageOwnMuseum), Scoped: true, Machine: workflow.MachineRental, Event: workflow.EventMuseumReject},
	ActionRentalFinalApprove:     {Resource: ownership.ResourceRental, AnyOf: caps(identity.CapFinalApproveArtifact), Machine: workflow.MachineRental, Event: workflow.EventFinalApprove},
	ActionRentalFinalReject:      {Resource: ownership.ResourceRental, AnyOf: caps(identity.CapFinalApproveArtifact), Machine: workflow.MachineRental, Event: workflow.EventFinalReject},
	ActionRentalPaymentCompleted: {Resource: ownership.ResourceRental, System: true, Machine: workflow.MachineRental, Event: workflow.EventPaymentCompleted},
	ActionRentalPeriodEnded:      {Resource: ownership.ResourceRental, System: true, Machine: workflow.MachineRental, Event: workflow.EventPeriodEnded},

	ActionMuseumRead:    {Resource: ownership.ResourceMuseum, AnyOf: caps(identity.CapManageAllMuseums, identity.CapManageOwnMuseum), Scoped: true},
	ActionMuseumApprove: {Resource: ownership.ResourceMuseum, AnyOf: caps(identity.CapManageAllMuseums), Machine: workflow.MachineMuseum, Event: workflow.EventApprove},
	ActionMuseumReject:  {Resource: ownership.ResourceMuseum, AnyOf: caps(identity.CapManageAllMuseums), Machine: workflow.MachineMuseum, Event: workflow.EventReject},

	ActionAuditList:      {Resource: ownership.ResourceAudit, AnyOf: caps(identity.CapManageAllMuseums, identity.CapManageOwnMuseum), Scoped: true},
	ActionUserChangeRole: {Resource: ownership.ResourceActor, AnyOf: caps(identity.CapManageAllUsers)},
}

// RequirementOf returns the requirement registered for action.
func RequirementOf(action Action) (Requirement, bool) {
	r, ok := requirements[action]
	return r, ok
}

// ArtifactAction maps an artifact event to its action.
func ArtifactAction(ev workflow.Event) (Action, bool) {
	return actionFor(workflow.MachineArtifact, ev)
}

// RentalAction maps a rental event to its action.
func RentalAction(ev workflow.Event) (Action, bool) {
	return actionFor(workflow.MachineRental, ev)
}

// MuseumAction maps a museum event to its action.
func MuseumAction(ev workflow.Event) (Action, bool) {
	return actionFor(workflow.MachineMuseum, ev)
}

func actionFor(m workflow.Machine, ev workflow.Event) (Action, bool) {
	for action, req := range requirements {
		if req.Machine == m && req.Event == ev {
			return action, true
		}
	}
	return "", false
}
