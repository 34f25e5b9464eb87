package identity

import (
	"errors"
	"time"
)

// SystemActorID identifies automated callers (payment callbacks, scheduled jobs) in audit records.
const SystemActorID int64 = 0

// Actor is an authenticated party performing an action.
type Actor struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	MuseumID int64  `json:"museum_id,omitempty"`
	IsActive bool   `json:"is_active"`
}

// SystemActor is the actor used for events raised by payment callbacks and scheduled jobs.
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Name: "system", IsActive: true}
}

// IsSystem reports whether a is the system actor.
func (a Actor) IsSystem() bool {
	return a.ID == SystemActorID && a.Role == ""
}

// Capabilities returns the actor's capability set.
func (a Actor) Capabilities() CapabilitySet {
	return CapabilitiesOf(a.Role)
}

// Can reports whether the actor holds capability c.
func (a Actor) Can(c Capability) bool {
	return a.Capabilities().Has(c)
}

// Validate checks the role/museum anchoring invariant.
func (a Actor) Validate() error {
	if !a.Role.Valid() {
		return ErrUnknownRole
	}
	if a.Role.MuseumAnchored() && a.MuseumID == 0 {
		return ErrMissingMuseum
	}
	if !a.Role.MuseumAnchored() && a.MuseumID != 0 {
		return ErrUnexpectedMuseum
	}
	return nil
}

// Credentials is the login view of an actor.
type Credentials struct {
	Actor        Actor
	PasswordHash string
}

// RoleChange describes an applied role mutation.
type RoleChange struct {
	TargetID         int64
	PreviousRole     Role
	PreviousMuseumID int64
	NewRole          Role
	NewMuseumID      int64
	ChangedBy        int64
	ChangedAt        time.Time
}

var (
	// ErrActorNotFound indicates the actor id is unknown.
	ErrActorNotFound = errors.New("identity: actor not found")
	// ErrUnknownRole indicates a role outside the four known roles.
	ErrUnknownRole = errors.New("identity: unknown role")
	// ErrMissingMuseum indicates a museum scoped role without museum.
	ErrMissingMuseum = errors.New("identity: museum required for role")
	// ErrUnexpectedMuseum indicates a museum on a role that is not museum scoped.
	ErrUnexpectedMuseum = errors.New("identity: museum not allowed for role")
)
