package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/db"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

// Repository provides PostgreSQL backed persistence. No method updates museum_id.
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

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const artifactColumns = `id, museum_id, created_by, title, description, category, period, status, submitted_at, created_at, updated_at`

func scanArtifact(row pgx.Row) (Artifact, error) {
	var a Artifact
	var status string
	if err := row.Scan(&a.ID, &a.MuseumID, &a.CreatedBy, &a.Title, &a.Description, &a.Category, &a.Period, &status, &a.SubmittedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Artifact{}, err
	}
	a.Status = workflow.ArtifactStatus(status)
	return a, nil
}

// Get returns the artifact with its review history.
func (r *Repository) Get(ctx context.Context, id int64) (Artifact, error) {
	a, err := scanArtifact(r.pool.QueryRow(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Artifact{}, shared.ErrNotFound
		}
		return Artifact{}, db.Classify(err)
	}
	reviews, err := r.reviews(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	a.Reviews = reviews
	return a, nil
}

func (r *Repository) reviews(ctx context.Context, artifactID int64) ([]Review, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, artifact_id, reviewer_id, decision, feedback, level, created_at
		FROM artifact_reviews WHERE artifact_id = $1 ORDER BY id`, artifactID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	reviews := []Review{}
	for rows.Next() {
		var rv Review
		var decision, level string
		if err := rows.Scan(&rv.ID, &rv.ArtifactID, &rv.ReviewerID, &decision, &rv.Feedback, &level, &rv.At); err != nil {
			return nil, db.Classify(err)
		}
		rv.Decision = workflow.Decision(decision)
		rv.Level = workflow.ReviewLevel(level)
		reviews = append(reviews, rv)
	}
	return reviews, db.Classify(rows.Err())
}

// List returns artifacts without their reviews, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Artifact, error) {
	var (
		where []string
		args  []any
	)
	if f.MuseumID > 0 {
		args = append(args, f.MuseumID)
		where = append(where, fmt.Sprintf("museum_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + artifactColumns + ` FROM artifacts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	out := []Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, a)
	}
	return out, db.Classify(rows.Err())
}

func (t *txRepo) Create(ctx context.Context, a Artifact) (Artifact, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO artifacts (museum_id, created_by, title, description, category, period, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		a.MuseumID, a.CreatedBy, a.Title, a.Description, a.Category, a.Period, string(a.Status), a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return Artifact{}, db.Classify(err)
	}
	return a, nil
}

func (t *txRepo) CompareAndSetStatus(ctx context.Context, id int64, from, to workflow.ArtifactStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE artifacts SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`, id, string(from), string(to), at)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: artifact %d is no longer %s", shared.ErrStaleState, id, from)
	}
	return nil
}

func (t *txRepo) MarkSubmitted(ctx context.Context, id int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE artifacts SET submitted_at = $2, updated_at = $2 WHERE id = $1 AND status = $3`, id, at, string(workflow.ArtifactDraft))
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: artifact %d is no longer a draft", shared.ErrStaleState, id)
	}
	return nil
}

func (t *txRepo) AppendReview(ctx context.Context, rv Review) (Review, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO artifact_reviews (artifact_id, reviewer_id, decision, feedback, level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rv.ArtifactID, rv.ReviewerID, string(rv.Decision), rv.Feedback, string(rv.Level), rv.At,
	).Scan(&rv.ID)
	if err != nil {
		return Review{}, db.Classify(err)
	}
	return rv, nil
}

func (t *txRepo) InsertAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	return audit.Insert(ctx, t.tx, entry)
}

var _ RepositoryPort = (*Repository)(nil)
