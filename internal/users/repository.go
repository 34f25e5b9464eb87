package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/db"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
	*identity.Repository
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, Repository: identity.NewRepository(pool)}
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

// ListActors returns actors ordered by id.
func (r *Repository) ListActors(ctx context.Context, f ListFilter) ([]identity.Actor, error) {
	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		args = append(args, string(f.Role))
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.MuseumID > 0 {
		args = append(args, f.MuseumID)
		where = append(where, fmt.Sprintf("museum_id = $%d", len(args)))
	}
	query := `SELECT id, email, name, role, COALESCE(museum_id, 0), is_active FROM actors`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	out := []identity.Actor{}
	for rows.Next() {
		var a identity.Actor
		var role string
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &role, &a.MuseumID, &a.IsActive); err != nil {
			return nil, db.Classify(err)
		}
		a.Role = identity.Role(role)
		out = append(out, a)
	}
	return out, db.Classify(rows.Err())
}

func (t *txRepo) CompareAndSetRole(ctx context.Context, c identity.RoleChange) error {
	tag, err := t.tx.Exec(ctx, `UPDATE actors SET role = $4, museum_id = NULLIF($5, 0), updated_at = $6
		WHERE id = $1 AND role = $2 AND COALESCE(museum_id, 0) = $3`,
		c.TargetID, string(c.PreviousRole), c.PreviousMuseumID, string(c.NewRole), c.NewMuseumID, c.ChangedAt)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: actor %d role changed concurrently", shared.ErrStaleState, c.TargetID)
	}
	return nil
}

func (t *txRepo) InsertAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	return audit.Insert(ctx, t.tx, entry)
}

var _ RepositoryPort = (*Repository)(nil)
