package rentals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/artifacts"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/ownership"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

const (
	paymentScope    = "rental.payment"
	maxRentalPeriod = 366 * 24 * time.Hour
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Rental, error)
	List(ctx context.Context, f ListFilter) ([]Rental, error)
	// ListExpired returns active rentals whose end date is before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Rental, error)
}

// TxRepository exposes the writes performed inside one transaction.
type TxRepository interface {
	Create(ctx context.Context, r Rental) (Rental, error)
	// CompareAndSet stores next only if the persisted state still equals from; otherwise shared.ErrStaleState.
	CompareAndSet(ctx context.Context, from workflow.RentalState, next Rental) error
	InsertAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
	// ClaimKey records key under scope; shared.ErrIdempotencyConflict when already claimed.
	ClaimKey(ctx context.Context, scope, key string) error
}

// ArtifactReader loads the artifact a rental refers to.
type ArtifactReader interface {
	Get(ctx context.Context, id int64) (artifacts.Artifact, error)
}

// Locker serialises work on one resource across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Metrics receives transition counts.
type Metrics interface {
	ObserveTransition(resource, event string)
}

// Options wires optional collaborators.
type Options struct {
	Locker  Locker
	Emitter notify.Emitter
	Metrics Metrics
	Logger  *slog.Logger
}

// Service orchestrates rental requests and their approval.
type Service struct {
	repo      RepositoryPort
	artifacts ArtifactReader
	gate      *authz.Gate
	locker    Locker
	emitter   notify.Emitter
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the rental service.
func NewService(repo RepositoryPort, artifactReader ArtifactReader, gate *authz.Gate, opts Options) *Service {
	if gate == nil {
		gate = authz.NewGate(nil)
	}
	if opts.Emitter == nil {
		opts.Emitter = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		artifacts: artifactReader,
		gate:      gate,
		locker:    opts.Locker,
		emitter:   opts.Emitter,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Request creates a rental for a published artifact on behalf of a visitor.
func (s *Service) Request(ctx context.Context, actor identity.Actor, input RequestInput) (Rental, error) {
	input.Purpose = strings.TrimSpace(input.Purpose)
	if err := validateRequest(input); err != nil {
		return Rental{}, err
	}
	art, err := s.artifacts.Get(ctx, input.ArtifactID)
	if err != nil {
		return Rental{}, err
	}
	target := authz.Target{Resource: ownership.Resource{Type: ownership.ResourceRental, MuseumID: art.MuseumID, OwnerID: actor.ID}}
	if err := s.gate.Authorize(actor, authz.ActionRentalRequest, target).Err(); err != nil {
		return Rental{}, err
	}
	if art.Status != workflow.ArtifactPublished {
		return Rental{}, fmt.Errorf("%w: artifact %d is not available for rental", shared.ErrValidation, art.ID)
	}

	now := s.now().UTC()
	state := workflow.NewRentalState()
	rental := Rental{
		ArtifactID: art.ID,
		MuseumID:   art.MuseumID,
		RenterID:   actor.ID,
		Status:     state.Status,
		Approvals: Approvals{
			MuseumAdmin: Slot{Status: state.MuseumAdmin},
			SuperAdmin:  Slot{Status: state.SuperAdmin},
		},
		StartDate: input.StartDate.UTC(),
		EndDate:   input.EndDate.UTC(),
		Purpose:   input.Purpose,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rental, err = tx.Create(ctx, rental)
		if err != nil {
			return err
		}
		_, err = tx.InsertAudit(ctx, audit.Entry{
			ActorID:      actor.ID,
			Action:       string(authz.ActionRentalRequest),
			ResourceType: string(ownership.ResourceRental),
			ResourceID:   rental.ID,
			MuseumID:     rental.MuseumID,
			NewState:     state.Label(),
			At:           now,
		})
		return err
	})
	if err != nil {
		return Rental{}, err
	}

	ev := notify.NewEvent(notify.TypeRentalRequested, string(ownership.ResourceRental), rental.ID)
	ev.MuseumID = rental.MuseumID
	ev.ActorID = actor.ID
	ev.NewState = state.Label()
	notify.Safe(ctx, s.emitter, s.logger, ev)
	return rental, nil
}

func validateRequest(input RequestInput) error {
	switch {
	case input.ArtifactID <= 0:
		return fmt.Errorf("%w: artifact required", shared.ErrValidation)
	case input.Purpose == "":
		return fmt.Errorf("%w: purpose required", shared.ErrValidation)
	case input.StartDate.IsZero() || input.EndDate.IsZero():
		return fmt.Errorf("%w: rental period required", shared.ErrValidation)
	case !input.EndDate.After(input.StartDate):
		return fmt.Errorf("%w: end date must be after start date", shared.ErrValidation)
	case input.EndDate.Sub(input.StartDate) > maxRentalPeriod:
		return fmt.Errorf("%w: rental period exceeds one year", shared.ErrValidation)
	}
	return nil
}

// Get returns a rental visible to actor.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id int64) (Rental, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Rental{}, err
	}
	if err := s.gate.Authorize(actor, authz.ActionRentalRead, r.Target()).Err(); err != nil {
		return Rental{}, err
	}
	return r, nil
}

// List returns rentals in the actor's scope: all for super admins, the museum's
// for museum roles and the actor's own requests otherwise.
func (s *Service) List(ctx context.Context, actor identity.Actor, f ListFilter) ([]Rental, error) {
	switch {
	case actor.Role == identity.RoleSuperAdmin:
	case actor.Role.MuseumAnchored():
		if f.MuseumID != 0 && f.MuseumID != actor.MuseumID {
			return nil, shared.ErrNotOwner
		}
		f.MuseumID = actor.MuseumID
	default:
		f.RenterID = actor.ID
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Authorize evaluates ev on the rental without applying it.
func (s *Service) Authorize(ctx context.Context, actor identity.Actor, id int64, ev workflow.Event) (authz.Decision, error) {
	action, ok := authz.RentalAction(ev)
	if !ok {
		return authz.Decision{}, fmt.Errorf("%w: event %s does not apply to rentals", shared.ErrValidation, ev)
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return authz.Decision{Action: action, Reason: authz.ReasonResourceNotFound}, nil
		}
		return authz.Decision{}, err
	}
	return s.gate.Authorize(actor, action, r.Target()), nil
}

// Apply runs a review event on behalf of actor.
func (s *Service) Apply(ctx context.Context, actor identity.Actor, id int64, ev workflow.Event, comments string) (TransitionResult, error) {
	comments = strings.TrimSpace(comments)
	if (ev == workflow.EventMuseumReject || ev == workflow.EventFinalReject) && comments == "" {
		return TransitionResult{}, fmt.Errorf("%w: comments required when rejecting", shared.ErrValidation)
	}
	return s.apply(ctx, actor, id, ev, comments, "")
}

// CompletePayment activates a rental once its payment cleared. The payment
// reference is claimed in the same transaction as the activation, so it binds to
// one rental. Replays against that rental return it unchanged.
func (s *Service) CompletePayment(ctx context.Context, id int64, paymentRef string) (TransitionResult, error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return TransitionResult{}, fmt.Errorf("%w: payment reference required", shared.ErrValidation)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	if paidWith(current, paymentRef) {
		return TransitionResult{Rental: current, Replayed: true}, nil
	}
	res, err := s.apply(ctx, identity.SystemActor(), id, workflow.EventPaymentCompleted, "", paymentRef)
	if !errors.Is(err, shared.ErrIdempotencyConflict) {
		return res, err
	}
	if current, getErr := s.repo.Get(ctx, id); getErr == nil && paidWith(current, paymentRef) {
		return TransitionResult{Rental: current, Replayed: true}, nil
	}
	return TransitionResult{}, fmt.Errorf("%w: payment reference %s already settled another rental", shared.ErrValidation, paymentRef)
}

func paidWith(r Rental, paymentRef string) bool {
	if r.PaymentRef != paymentRef {
		return false
	}
	return r.Status == workflow.RentalActive || r.Status == workflow.RentalCompleted
}

// CompletePeriod closes an active rental whose period has ended.
func (s *Service) CompletePeriod(ctx context.Context, id int64) (TransitionResult, error) {
	return s.apply(ctx, identity.SystemActor(), id, workflow.EventPeriodEnded, "", "")
}

// Expired returns ids of active rentals whose end date passed.
func (s *Service) Expired(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	items, err := s.repo.ListExpired(ctx, s.now().UTC(), limit)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, r := range items {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *Service) apply(ctx context.Context, actor identity.Actor, id int64, ev workflow.Event, comments, paymentRef string) (TransitionResult, error) {
	action, ok := authz.RentalAction(ev)
	if !ok {
		return TransitionResult{}, fmt.Errorf("%w: event %s does not apply to rentals", shared.ErrValidation, ev)
	}
	release, err := s.acquire(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	defer release()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	decision := s.gate.Authorize(actor, action, current.Target())
	if !decision.Allowed {
		return TransitionResult{}, decision.Err()
	}
	row := *decision.Rental
	now := s.now().UTC()

	next := current
	next.Status = row.To.Status
	next.Approvals.MuseumAdmin.Status = row.To.MuseumAdmin
	next.Approvals.SuperAdmin.Status = row.To.SuperAdmin
	next.UpdatedAt = now
	switch row.Level {
	case workflow.LevelMuseumAdmin:
		next.Approvals.MuseumAdmin = signed(next.Approvals.MuseumAdmin, actor.ID, now, comments)
	case workflow.LevelFinal:
		next.Approvals.SuperAdmin = signed(next.Approvals.SuperAdmin, actor.ID, now, comments)
	}
	if paymentRef != "" {
		next.PaymentRef = paymentRef
	}

	var entry audit.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if paymentRef != "" {
			if err := tx.ClaimKey(ctx, paymentScope, paymentRef); err != nil {
				return err
			}
		}
		if err := tx.CompareAndSet(ctx, row.From, next); err != nil {
			return err
		}
		var err error
		entry, err = tx.InsertAudit(ctx, audit.Entry{
			ActorID:       actor.ID,
			Action:        string(action),
			ResourceType:  string(ownership.ResourceRental),
			ResourceID:    current.ID,
			MuseumID:      current.MuseumID,
			PreviousState: row.From.Label(),
			NewState:      row.To.Label(),
			At:            now,
		})
		return err
	})
	if err != nil {
		return TransitionResult{}, err
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(string(ownership.ResourceRental), string(ev))
	}
	event := notify.NewEvent(eventType(ev), string(ownership.ResourceRental), current.ID)
	event.MuseumID = current.MuseumID
	event.ActorID = actor.ID
	event.PreviousState = row.From.Label()
	event.NewState = row.To.Label()
	event.Comment = comments
	notify.Safe(ctx, s.emitter, s.logger, event)

	return TransitionResult{Rental: next, Audit: &entry}, nil
}

func signed(slot Slot, by int64, at time.Time, comments string) Slot {
	slot.ApprovedBy = &by
	slot.ApprovedAt = &at
	slot.Comments = comments
	return slot
}

func (s *Service) acquire(ctx context.Context, id int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, shared.ResourceLockKey(string(ownership.ResourceRental), id))
	if err != nil {
		if errors.Is(err, shared.ErrLockHeld) {
			return nil, fmt.Errorf("%w: rental %d is being modified", shared.ErrStaleState, id)
		}
		return nil, err
	}
	return release, nil
}
