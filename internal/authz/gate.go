// Package authz composes the role model, the ownership resolver and the
// transition tables into a single allow/deny decision.
package authz

import (
	"errors"
	"fmt"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/ownership"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

// Reason explains a denial.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInsufficientRole   Reason = "insufficient_role"
	ReasonNotOwner           Reason = "not_owner"
	ReasonInvalidTransition  Reason = "invalid_transition"
	ReasonOutOfOrderApproval Reason = "out_of_order_approval"
	ReasonStaleState         Reason = "stale_state"
	ReasonResourceNotFound   Reason = "resource_not_found"
	ReasonStorageUnavailable Reason = "storage_unavailable"
	ReasonValidation         Reason = "validation"
)

// Target is what the gate knows about the resource being acted on.
type Target struct {
	ownership.Resource
	Artifact workflow.ArtifactStatus
	Rental   workflow.RentalState
	Museum   workflow.MuseumStatus
}

// Decision is the gate's verdict. Transition holds the table row that applies
// when the action is a state transition and the decision allows it.
type Decision struct {
	Allowed      bool                `json:"allowed"`
	Action       Action              `json:"action"`
	Reason       Reason              `json:"reason,omitempty"`
	Capability   identity.Capability `json:"required_capability,omitempty"`
	CurrentState string              `json:"current_state,omitempty"`
	Event        workflow.Event      `json:"event,omitempty"`
	NextState    string              `json:"next_state,omitempty"`

	Artifact *workflow.ArtifactTransition `json:"-"`
	Rental   *workflow.RentalTransition   `json:"-"`
	Museum   *workflow.MuseumTransition   `json:"-"`

	cause error
}

// Err returns nil for allowed decisions and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Decision: d}
}

// DenialObserver receives every denial, typically a metrics counter.
type DenialObserver interface {
	ObserveDenial(resource string, reason string)
}

// Gate evaluates actions. It holds no state besides its observer, so repeated
// calls with the same inputs return the same decision.
type Gate struct {
	observer DenialObserver
}

// NewGate constructs a gate. observer may be nil.
func NewGate(observer DenialObserver) *Gate {
	return &Gate{observer: observer}
}

// Authorize checks capability, then ownership, then the transition table.
func (g *Gate) Authorize(actor identity.Actor, action Action, target Target) Decision {
	d := g.evaluate(actor, action, target)
	if !d.Allowed && g != nil && g.observer != nil {
		req, _ := RequirementOf(action)
		g.observer.ObserveDenial(string(req.Resource), string(d.Reason))
	}
	return d
}

func (g *Gate) evaluate(actor identity.Actor, action Action, target Target) Decision {
	d := Decision{Action: action}
	req, ok := RequirementOf(action)
	if !ok {
		d.Reason = ReasonInsufficientRole
		d.cause = fmt.Errorf("%w: unknown action %s", shared.ErrInsufficientRole, action)
		return d
	}
	if len(req.AnyOf) > 0 {
		d.Capability = req.AnyOf[0]
	}
	if req.Transition() {
		d.Event = req.Event
		d.CurrentState = currentState(req.Machine, target)
	}

	if !capable(actor, req) {
		d.Reason = ReasonInsufficientRole
		d.cause = shared.ErrInsufficientRole
		return d
	}
	if req.Scoped && !ownership.InScope(actor, target.Resource) {
		d.Reason = ReasonNotOwner
		d.cause = shared.ErrNotOwner
		return d
	}
	if !req.Transition() {
		d.Allowed = true
		return d
	}

	var err error
	switch req.Machine {
	case workflow.MachineArtifact:
		var row workflow.ArtifactTransition
		if row, err = workflow.NextArtifact(target.Artifact, req.Event); err == nil {
			d.Artifact = &row
			d.NextState = string(row.To)
		}
	case workflow.MachineRental:
		var row workflow.RentalTransition
		if row, err = workflow.NextRental(target.Rental, req.Event); err == nil {
			d.Rental = &row
			d.NextState = row.To.Label()
		}
	case workflow.MachineMuseum:
		var row workflow.MuseumTransition
		if row, err = workflow.NextMuseum(target.Museum, req.Event); err == nil {
			d.Museum = &row
			d.NextState = string(row.To)
		}
	}
	if err != nil {
		d.Reason = ReasonFor(err)
		d.cause = err
		return d
	}
	d.Allowed = true
	return d
}

func capable(actor identity.Actor, req Requirement) bool {
	if req.System {
		return actor.IsSystem()
	}
	if !actor.IsActive || actor.IsSystem() {
		return false
	}
	if len(req.AnyOf) == 0 {
		return actor.Role.Valid()
	}
	held := actor.Capabilities()
	for _, c := range req.AnyOf {
		if held.Has(c) {
			return true
		}
	}
	return false
}

func currentState(m workflow.Machine, target Target) string {
	switch m {
	case workflow.MachineArtifact:
		return string(target.Artifact)
	case workflow.MachineRental:
		return target.Rental.Label()
	case workflow.MachineMuseum:
		return string(target.Museum)
	}
	return ""
}

// ReasonFor classifies an error from the gate, the machines or the stores.
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, shared.ErrInsufficientRole):
		return ReasonInsufficientRole
	case errors.Is(err, shared.ErrNotOwner):
		return ReasonNotOwner
	case errors.Is(err, shared.ErrOutOfOrderApproval):
		return ReasonOutOfOrderApproval
	case errors.Is(err, shared.ErrInvalidTransition):
		return ReasonInvalidTransition
	case errors.Is(err, shared.ErrStaleState):
		return ReasonStaleState
	case errors.Is(err, shared.ErrNotFound):
		return ReasonResourceNotFound
	case errors.Is(err, shared.ErrValidation):
		return ReasonValidation
	}
	return ReasonStorageUnavailable
}
