package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/ownership"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// RepositoryPort defines data access methods for actors.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetActor(ctx context.Context, id int64) (identity.Actor, error)
	ListActors(ctx context.Context, f ListFilter) ([]identity.Actor, error)
}

// TxRepository exposes the writes performed inside one transaction.
type TxRepository interface {
	// CompareAndSetRole rebinds the actor only if its role and museum still match from.
	CompareAndSetRole(ctx context.Context, change identity.RoleChange) error
	InsertAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// CacheInvalidator drops cached actor records.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, id int64) error
}

// Service handles actor management.
type Service struct {
	repo    RepositoryPort
	gate    *authz.Gate
	cache   CacheInvalidator
	emitter notify.Emitter
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service instance. cache and emitter may be nil.
func NewService(repo RepositoryPort, gate *authz.Gate, cache CacheInvalidator, emitter notify.Emitter, logger *slog.Logger) *Service {
	if gate == nil {
		gate = authz.NewGate(nil)
	}
	if emitter == nil {
		emitter = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, gate: gate, cache: cache, emitter: emitter, logger: logger, now: time.Now}
}

// Profile returns the actor with its capability list.
func (s *Service) Profile(actor identity.Actor) Profile {
	return Profile{Actor: actor, Capabilities: actor.Capabilities().Sorted()}
}

// ListActors returns actors. Only user administrators may list.
func (s *Service) ListActors(ctx context.Context, actor identity.Actor, f ListFilter) ([]identity.Actor, error) {
	if !actor.IsActive || !actor.Can(identity.CapManageAllUsers) {
		return nil, shared.ErrInsufficientRole
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListActors(ctx, f)
}

// ChangeRole rebinds target to a new role. The update and its audit entry
// commit together.
func (s *Service) ChangeRole(ctx context.Context, actor identity.Actor, targetID int64, input ChangeRoleInput) (RoleChangeResult, error) {
	decision := s.gate.Authorize(actor, authz.ActionUserChangeRole, authz.Target{
		Resource: ownership.Resource{Type: ownership.ResourceActor, ID: targetID},
	})
	if !decision.Allowed {
		return RoleChangeResult{}, decision.Err()
	}
	target, err := s.repo.GetActor(ctx, targetID)
	if err != nil {
		if errors.Is(err, identity.ErrActorNotFound) {
			return RoleChangeResult{}, shared.ErrNotFound
		}
		return RoleChangeResult{}, err
	}

	next := target
	next.Role = input.Role
	next.MuseumID = input.MuseumID
	if err := next.Validate(); err != nil {
		return RoleChangeResult{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	previous := roleLabel(target.Role, target.MuseumID)
	current := roleLabel(next.Role, next.MuseumID)
	if previous == current {
		return RoleChangeResult{}, fmt.Errorf("%w: actor %d already has role %s", shared.ErrValidation, targetID, current)
	}

	now := s.now().UTC()
	change := identity.RoleChange{
		TargetID:         targetID,
		PreviousRole:     target.Role,
		PreviousMuseumID: target.MuseumID,
		NewRole:          next.Role,
		NewMuseumID:      next.MuseumID,
		ChangedBy:        actor.ID,
		ChangedAt:        now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CompareAndSetRole(ctx, change); err != nil {
			return err
		}
		_, err := tx.InsertAudit(ctx, audit.Entry{
			ActorID:       actor.ID,
			Action:        string(authz.ActionUserChangeRole),
			ResourceType:  string(ownership.ResourceActor),
			ResourceID:    targetID,
			MuseumID:      next.MuseumID,
			PreviousState: previous,
			NewState:      current,
			At:            now,
		})
		return err
	})
	if err != nil {
		return RoleChangeResult{}, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, targetID); err != nil {
			s.logger.Warn("invalidate actor cache", slog.Int64("actor_id", targetID), slog.Any("error", err))
		}
	}
	ev := notify.NewEvent(notify.TypeActorRoleChanged, string(ownership.ResourceActor), targetID)
	ev.ActorID = actor.ID
	ev.MuseumID = next.MuseumID
	ev.PreviousState = previous
	ev.NewState = current
	notify.Safe(ctx, s.emitter, s.logger, ev)

	return RoleChangeResult{Actor: next, Previous: previous, Current: current, ChangedAt: now}, nil
}
