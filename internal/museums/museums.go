// Package museums handles registration review of partner museums.
package museums

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/ownership"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/db"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

// Museum is a registered institution.
type Museum struct {
	ID        int64                 `json:"id"`
	Name      string                `json:"name"`
	AdminID   int64                 `json:"admin_id"`
	Verified  bool                  `json:"verified"`
	Status    workflow.MuseumStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Target returns the gate's view of the museum.
func (m Museum) Target() authz.Target {
	return authz.Target{
		Resource: ownership.Resource{Type: ownership.ResourceMuseum, ID: m.ID, MuseumID: m.ID, OwnerID: m.AdminID},
		Museum:   m.Status,
	}
}

// TransitionResult is returned by Apply.
type TransitionResult struct {
	Museum Museum      `json:"museum"`
	Audit  audit.Entry `json:"audit_entry"`
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Museum, error)
	List(ctx context.Context, status workflow.MuseumStatus) ([]Museum, error)
}

// TxRepository exposes the writes performed inside one transaction.
type TxRepository interface {
	CompareAndSetStatus(ctx context.Context, id int64, from, to workflow.MuseumStatus, verified bool, at time.Time) error
	InsertAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Service decides museum registrations.
type Service struct {
	repo    RepositoryPort
	gate    *authz.Gate
	emitter notify.Emitter
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the museum service.
func NewService(repo RepositoryPort, gate *authz.Gate, emitter notify.Emitter, logger *slog.Logger) *Service {
	if gate == nil {
		gate = authz.NewGate(nil)
	}
	if emitter == nil {
		emitter = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, gate: gate, emitter: emitter, logger: logger, now: time.Now}
}

// Get returns a museum in the actor's scope.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id int64) (Museum, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Museum{}, err
	}
	if err := s.gate.Authorize(actor, authz.ActionMuseumRead, m.Target()).Err(); err != nil {
		return Museum{}, err
	}
	return m, nil
}

// List returns museums filtered by status. Only platform administrators list museums.
func (s *Service) List(ctx context.Context, actor identity.Actor, status workflow.MuseumStatus) ([]Museum, error) {
	if !actor.IsActive || !actor.Can(identity.CapManageAllMuseums) {
		return nil, shared.ErrInsufficientRole
	}
	return s.repo.List(ctx, status)
}

// Apply approves or rejects a pending museum.
func (s *Service) Apply(ctx context.Context, actor identity.Actor, id int64, ev workflow.Event, comments string) (TransitionResult, error) {
	action, ok := authz.MuseumAction(ev)
	if !ok {
		return TransitionResult{}, fmt.Errorf("%w: event %s does not apply to museums", shared.ErrValidation, ev)
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	decision := s.gate.Authorize(actor, action, m.Target())
	if !decision.Allowed {
		return TransitionResult{}, decision.Err()
	}
	row := *decision.Museum
	now := s.now().UTC()

	var entry audit.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CompareAndSetStatus(ctx, m.ID, row.From, row.To, row.Verified, now); err != nil {
			return err
		}
		var err error
		entry, err = tx.InsertAudit(ctx, audit.Entry{
			ActorID:       actor.ID,
			Action:        string(action),
			ResourceType:  string(ownership.ResourceMuseum),
			ResourceID:    m.ID,
			MuseumID:      m.ID,
			PreviousState: string(row.From),
			NewState:      string(row.To),
			At:            now,
		})
		return err
	})
	if err != nil {
		return TransitionResult{}, err
	}
	m.Status = row.To
	m.Verified = row.Verified
	m.UpdatedAt = now

	eventType := notify.TypeMuseumApproved
	if row.To == workflow.MuseumRejected {
		eventType = notify.TypeMuseumRejected
	}
	event := notify.NewEvent(eventType, string(ownership.ResourceMuseum), m.ID)
	event.MuseumID = m.ID
	event.ActorID = actor.ID
	event.PreviousState = string(row.From)
	event.NewState = string(row.To)
	event.Comment = strings.TrimSpace(comments)
	notify.Safe(ctx, s.emitter, s.logger, event)

	return TransitionResult{Museum: m, Audit: entry}, nil
}

// Repository provides PostgreSQL backed persistence for museums.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const museumColumns = `id, name, COALESCE(admin_id, 0), verified, status, created_at, updated_at`

func scanMuseum(row pgx.Row) (Museum, error) {
	var m Museum
	var status string
	if err := row.Scan(&m.ID, &m.Name, &m.AdminID, &m.Verified, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Museum{}, err
	}
	m.Status = workflow.MuseumStatus(status)
	return m, nil
}

// Get loads one museum.
func (r *Repository) Get(ctx context.Context, id int64) (Museum, error) {
	m, err := scanMuseum(r.pool.QueryRow(ctx, `SELECT `+museumColumns+` FROM museums WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Museum{}, shared.ErrNotFound
		}
		return Museum{}, db.Classify(err)
	}
	return m, nil
}

// List returns museums, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status workflow.MuseumStatus) ([]Museum, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+museumColumns+` FROM museums
		WHERE ($1 = '' OR status = $1) ORDER BY name, id`, string(status))
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	out := []Museum{}
	for rows.Next() {
		m, err := scanMuseum(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, m)
	}
	return out, db.Classify(rows.Err())
}

func (t *txRepo) CompareAndSetStatus(ctx context.Context, id int64, from, to workflow.MuseumStatus, verified bool, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE museums SET status = $3, verified = $4, updated_at = $5 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), verified, at)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: museum %d is no longer %s", shared.ErrStaleState, id, from)
	}
	return nil
}

func (t *txRepo) InsertAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	return audit.Insert(ctx, t.tx, entry)
}

var _ RepositoryPort = (*Repository)(nil)
