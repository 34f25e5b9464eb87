package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/db"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// Insert appends e through q, which is normally the transaction that applied the mutation.
func Insert(ctx context.Context, q db.Querier, e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	err := q.QueryRow(ctx, `INSERT INTO audit_entries
		(actor_id, action, resource_type, resource_id, museum_id, previous_state, new_state, at)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, $7, $8)
		RETURNING id`,
		e.ActorID, e.Action, e.ResourceType, e.ResourceID, e.MuseumID, e.PreviousState, e.NewState, e.At,
	).Scan(&e.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: insert audit entry: %v", shared.ErrStorageUnavailable, err)
	}
	return e, nil
}

// Store reads audit entries from PostgreSQL. Rows are never updated or deleted.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// List returns entries matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	query, args := buildListQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list audit entries: %v", shared.ErrStorageUnavailable, err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.ResourceType, &e.ResourceID, &e.MuseumID, &e.PreviousState, &e.NewState, &e.At); err != nil {
			return nil, fmt.Errorf("%w: scan audit entry: %v", shared.ErrStorageUnavailable, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate audit entries: %v", shared.ErrStorageUnavailable, err)
	}
	return out, nil
}

func buildListQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ActorID != nil {
		add("actor_id = $%d", *f.ActorID)
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.ResourceID > 0 {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.MuseumID > 0 {
		add("museum_id = $%d", f.MuseumID)
	}
	if !f.From.IsZero() {
		add("at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("at <= $%d", f.To)
	}

	var b strings.Builder
	b.WriteString(`SELECT id, actor_id, action, resource_type, resource_id, COALESCE(museum_id, 0), previous_state, new_state, at FROM audit_entries`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY at DESC, id DESC")
	args = append(args, f.Limit)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))
	args = append(args, f.Offset)
	fmt.Fprintf(&b, " OFFSET $%d", len(args))
	return b.String(), args
}
