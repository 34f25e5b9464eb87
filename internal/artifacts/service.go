package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/ownership"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Artifact, error)
	List(ctx context.Context, f ListFilter) ([]Artifact, error)
}

// TxRepository exposes the writes performed inside one transaction.
type TxRepository interface {
	Create(ctx context.Context, a Artifact) (Artifact, error)
	// CompareAndSetStatus moves the artifact only if it is still in from; otherwise shared.ErrStaleState.
	CompareAndSetStatus(ctx context.Context, id int64, from, to workflow.ArtifactStatus, at time.Time) error
	MarkSubmitted(ctx context.Context, id int64, at time.Time) error
	AppendReview(ctx context.Context, review Review) (Review, error)
	InsertAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Locker serialises work on one resource across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Metrics receives transition counts.
type Metrics interface {
	ObserveTransition(resource, event string)
}

// Service orchestrates artifact authoring and review.
type Service struct {
	repo    RepositoryPort
	gate    *authz.Gate
	locker  Locker
	emitter notify.Emitter
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the artifact service. locker, emitter and metrics may be nil.
func NewService(repo RepositoryPort, gate *authz.Gate, locker Locker, emitter notify.Emitter, metrics Metrics, logger *slog.Logger) *Service {
	if gate == nil {
		gate = authz.NewGate(nil)
	}
	if emitter == nil {
		emitter = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, gate: gate, locker: locker, emitter: emitter, metrics: metrics, logger: logger, now: time.Now}
}

// Create stores a new draft for the actor's museum.
func (s *Service) Create(ctx context.Context, actor identity.Actor, input CreateInput) (Artifact, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Artifact{}, fmt.Errorf("%w: title required", shared.ErrValidation)
	}
	if input.MuseumID == 0 {
		input.MuseumID = actor.MuseumID
	}
	target := authz.Target{Resource: ownership.Resource{Type: ownership.ResourceArtifact, MuseumID: input.MuseumID, OwnerID: actor.ID}}
	if err := s.gate.Authorize(actor, authz.ActionArtifactCreate, target).Err(); err != nil {
		return Artifact{}, err
	}
	now := s.now().UTC()
	draft := Artifact{
		MuseumID:    input.MuseumID,
		CreatedBy:   actor.ID,
		Title:       input.Title,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Period:      strings.TrimSpace(input.Period),
		Status:      workflow.ArtifactDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var created Artifact
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Create(ctx, draft)
		if err != nil {
			return err
		}
		_, err = tx.InsertAudit(ctx, audit.Entry{
			ActorID:      actor.ID,
			Action:       string(authz.ActionArtifactCreate),
			ResourceType: string(ownership.ResourceArtifact),
			ResourceID:   created.ID,
			MuseumID:     created.MuseumID,
			NewState:     string(created.Status),
			At:           now,
		})
		return err
	})
	if err != nil {
		return Artifact{}, err
	}
	if created.Reviews == nil {
		created.Reviews = []Review{}
	}
	return created, nil
}

// Get returns an artifact. Published artifacts are visible to everyone.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id int64) (Artifact, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	if a.Status == workflow.ArtifactPublished {
		return a, nil
	}
	if err := s.gate.Authorize(actor, authz.ActionArtifactRead, a.Target()).Err(); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// List returns artifacts visible to actor. Museum roles only see their museum and
// visitors only see published items.
func (s *Service) List(ctx context.Context, actor identity.Actor, f ListFilter) ([]Artifact, error) {
	switch {
	case actor.Role == identity.RoleSuperAdmin:
	case actor.Role.MuseumAnchored():
		if f.MuseumID != 0 && f.MuseumID != actor.MuseumID {
			return nil, shared.ErrNotOwner
		}
		f.MuseumID = actor.MuseumID
	default:
		if f.Status != "" && f.Status != workflow.ArtifactPublished {
			return nil, shared.ErrInsufficientRole
		}
		f.Status = workflow.ArtifactPublished
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Authorize evaluates ev on the artifact without applying it.
func (s *Service) Authorize(ctx context.Context, actor identity.Actor, id int64, ev workflow.Event) (authz.Decision, error) {
	action, ok := authz.ArtifactAction(ev)
	if !ok {
		return authz.Decision{}, fmt.Errorf("%w: event %s does not apply to artifacts", shared.ErrValidation, ev)
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return authz.Decision{Action: action, Reason: authz.ReasonResourceNotFound}, nil
		}
		return authz.Decision{}, err
	}
	return s.gate.Authorize(actor, action, a.Target()), nil
}

// Apply runs ev against the artifact on behalf of actor. The status change, the
// review record and the audit entry are committed together; the event is
// emitted after commit.
func (s *Service) Apply(ctx context.Context, actor identity.Actor, id int64, ev workflow.Event, feedback string) (TransitionResult, error) {
	action, ok := authz.ArtifactAction(ev)
	if !ok {
		return TransitionResult{}, fmt.Errorf("%w: event %s does not apply to artifacts", shared.ErrValidation, ev)
	}
	feedback = strings.TrimSpace(feedback)
	if (ev == workflow.EventMuseumReject || ev == workflow.EventFinalReject) && feedback == "" {
		return TransitionResult{}, fmt.Errorf("%w: feedback required when rejecting", shared.ErrValidation)
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	defer release()

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	decision := s.gate.Authorize(actor, action, a.Target())
	if !decision.Allowed {
		return TransitionResult{}, decision.Err()
	}
	row := *decision.Artifact
	now := s.now().UTC()

	var (
		entry  *audit.Entry
		review *Review
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if !row.ChangesState() {
			return tx.MarkSubmitted(ctx, a.ID, now)
		}
		if err := tx.CompareAndSetStatus(ctx, a.ID, row.From, row.To, now); err != nil {
			return err
		}
		if row.Reviewed() {
			stored, err := tx.AppendReview(ctx, Review{
				ArtifactID: a.ID,
				ReviewerID: actor.ID,
				Decision:   row.Decision,
				Feedback:   feedback,
				Level:      row.Level,
				At:         now,
			})
			if err != nil {
				return err
			}
			review = &stored
		}
		stored, err := tx.InsertAudit(ctx, audit.Entry{
			ActorID:       actor.ID,
			Action:        string(action),
			ResourceType:  string(ownership.ResourceArtifact),
			ResourceID:    a.ID,
			MuseumID:      a.MuseumID,
			PreviousState: string(row.From),
			NewState:      string(row.To),
			At:            now,
		})
		if err != nil {
			return err
		}
		entry = &stored
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	if row.ChangesState() {
		a.Status = row.To
	} else {
		a.SubmittedAt = &now
	}
	a.UpdatedAt = now
	if review != nil {
		a.Reviews = append(a.Reviews, *review)
	}
	if a.Reviews == nil {
		a.Reviews = []Review{}
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(string(ownership.ResourceArtifact), string(ev))
	}
	event := notify.NewEvent(eventType(ev), string(ownership.ResourceArtifact), a.ID)
	event.MuseumID = a.MuseumID
	event.ActorID = actor.ID
	event.PreviousState = string(row.From)
	event.NewState = string(row.To)
	event.Comment = feedback
	notify.Safe(ctx, s.emitter, s.logger, event)

	return TransitionResult{Artifact: a, Audit: entry}, nil
}

// ApplyBulk applies every item independently and reports per-item outcomes.
// Unknown events, denials and conflicts fail only their item. Cancellation
// stops the batch and returns the partial report with the context error.
func (s *Service) ApplyBulk(ctx context.Context, actor identity.Actor, items []BulkItem) (BulkReport, error) {
	report := BulkReport{Items: make([]BulkOutcome, 0, len(items))}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			report.Incomplete = true
			return report, err
		}
		outcome := BulkOutcome{ArtifactID: item.ArtifactID, Event: item.Event}
		res, err := s.applyItem(ctx, actor, item)
		if err != nil {
			outcome.Reason = authz.ReasonFor(err)
			outcome.Message = shared.UserSafeMessage(err)
			report.Failed++
			if outcome.Reason == authz.ReasonStorageUnavailable {
				s.logger.Error("bulk artifact transition", slog.Int64("artifact_id", item.ArtifactID), slog.Any("error", err))
			}
		} else {
			outcome.Applied = true
			outcome.Status = res.Artifact.Status
			report.Applied++
		}
		report.Items = append(report.Items, outcome)
	}
	return report, nil
}

func (s *Service) applyItem(ctx context.Context, actor identity.Actor, item BulkItem) (TransitionResult, error) {
	ev, err := workflow.ParseEvent(string(item.Event))
	if err != nil {
		return TransitionResult{}, err
	}
	return s.Apply(ctx, actor, item.ArtifactID, ev, item.Feedback)
}

func (s *Service) acquire(ctx context.Context, id int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, shared.ResourceLockKey(string(ownership.ResourceArtifact), id))
	if err != nil {
		if errors.Is(err, shared.ErrLockHeld) {
			return nil, fmt.Errorf("%w: artifact %d is being modified", shared.ErrStaleState, id)
		}
		return nil, err
	}
	return release, nil
}
