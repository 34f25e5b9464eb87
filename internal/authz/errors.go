package authz

import (
	"fmt"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// DeniedError carries a denied decision through error returns.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	d := e.Decision
	msg := fmt.Sprintf("authz: %s denied: %s", d.Action, d.Reason)
	if d.CurrentState != "" {
		msg += fmt.Sprintf(" (state %s, event %s)", d.CurrentState, d.Event)
	}
	if d.Reason == ReasonInsufficientRole && d.Capability != "" {
		msg += fmt.Sprintf(" (requires %s)", d.Capability)
	}
	return msg
}

// Unwrap exposes the underlying sentinel or transition error.
func (e *DeniedError) Unwrap() error {
	if e.Decision.cause != nil {
		return e.Decision.cause
	}
	return sentinelFor(e.Decision.Reason)
}

func sentinelFor(r Reason) error {
	switch r {
	case ReasonInsufficientRole:
		return shared.ErrInsufficientRole
	case ReasonNotOwner:
		return shared.ErrNotOwner
	case ReasonInvalidTransition:
		return shared.ErrInvalidTransition
	case ReasonOutOfOrderApproval:
		return shared.ErrOutOfOrderApproval
	case ReasonStaleState:
		return shared.ErrStaleState
	case ReasonResourceNotFound:
		return shared.ErrNotFound
	case ReasonValidation:
		return shared.ErrValidation
	}
	return shared.ErrStorageUnavailable
}

// ProblemDetails exposes the decision to HTTP clients.
func (e *DeniedError) ProblemDetails() map[string]string {
	d := e.Decision
	out := map[string]string{"reason": string(d.Reason), "action": string(d.Action)}
	if d.Capability != "" && d.Reason == ReasonInsufficientRole {
		out["required_capability"] = string(d.Capability)
	}
	if d.CurrentState != "" {
		out["current_state"] = d.CurrentState
	}
	if d.Event != "" {
		out["event"] = string(d.Event)
	}
	return out
}
