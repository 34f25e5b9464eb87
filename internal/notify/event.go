// Package notify defines workflow events and the sinks that relay them to
// connected clients.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the workflow.
const (
	TypeArtifactSubmitted      = "artifact.submitted"
	TypeArtifactMuseumApproved = "artifact.museum_approved"
	TypeArtifactMuseumRejected = "artifact.museum_rejected"
	TypeArtifactPublished      = "artifact.published"
	TypeArtifactFinalRejected  = "artifact.final_rejected"
	TypeArtifactResubmitted    = "artifact.resubmitted"
	TypeRentalRequested        = "rental.requested"
	TypeRentalMuseumApproved   = "rental.museum_approved"
	TypeRentalMuseumRejected   = "rental.museum_rejected"
	TypeRentalApproved         = "rental.approved"
	TypeRentalFinalRejected    = "rental.final_rejected"
	TypeRentalActivated        = "rental.activated"
	TypeRentalCompleted        = "rental.completed"
	TypeMuseumApproved         = "museum.approved"
	TypeMuseumRejected         = "museum.rejected"
	TypeActorRoleChanged       = "actor.role_changed"
)

// Event is a workflow notification. It carries no payload beyond identifiers and
// states; consumers fetch details through the API.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	ResourceType  string    `json:"resource_type"`
	ResourceID    int64     `json:"resource_id"`
	MuseumID      int64     `json:"museum_id,omitempty"`
	ActorID       int64     `json:"actor_id"`
	PreviousState string    `json:"previous_state,omitempty"`
	NewState      string    `json:"new_state,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	At            time.Time `json:"at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType, resourceType string, resourceID int64) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		At:           time.Now().UTC(),
	}
}

// Emitter receives events after the transition that produced them committed.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(context.Context, Event) error { return nil }

// Multi fans an event out to several emitters and joins their errors.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger writes events to a structured log, useful in development.
type Logger struct {
	Log *slog.Logger
}

// Emit implements Emitter.
func (l Logger) Emit(_ context.Context, ev Event) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("workflow event",
		slog.String("event_id", ev.ID),
		slog.String("type", ev.Type),
		slog.String("resource_type", ev.ResourceType),
		slog.Int64("resource_id", ev.ResourceID),
		slog.String("new_state", ev.NewState))
	return nil
}

// Safe emits ev and only logs failures, so callers never fail a committed transition.
func Safe(ctx context.Context, emitter Emitter, logger *slog.Logger, ev Event) {
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, ev); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("emit workflow event",
			slog.String("type", ev.Type),
			slog.Int64("resource_id", ev.ResourceID),
			slog.Any("error", err))
	}
}
