package rentals

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

// Repository provides PostgreSQL backed persistence for rentals.
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

const rentalColumns = `id, artifact_id, museum_id, renter_id, status,
	museum_admin_status, museum_admin_by, museum_admin_at, museum_admin_comments,
	super_admin_status, super_admin_by, super_admin_at, super_admin_comments,
	start_date, end_date, purpose, payment_ref, created_at, updated_at`

func scanRental(row pgx.Row) (Rental, error) {
	var r Rental
	var status, museumSlot, superSlot string
	err := row.Scan(&r.ID, &r.ArtifactID, &r.MuseumID, &r.RenterID, &status,
		&museumSlot, &r.Approvals.MuseumAdmin.ApprovedBy, &r.Approvals.MuseumAdmin.ApprovedAt, &r.Approvals.MuseumAdmin.Comments,
		&superSlot, &r.Approvals.SuperAdmin.ApprovedBy, &r.Approvals.SuperAdmin.ApprovedAt, &r.Approvals.SuperAdmin.Comments,
		&r.StartDate, &r.EndDate, &r.Purpose, &r.PaymentRef, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Rental{}, err
	}
	r.Status = workflow.RentalStatus(status)
	r.Approvals.MuseumAdmin.Status = workflow.SlotStatus(museumSlot)
	r.Approvals.SuperAdmin.Status = workflow.SlotStatus(superSlot)
	return r, nil
}

// Get loads one rental.
func (r *Repository) Get(ctx context.Context, id int64) (Rental, error) {
	rental, err := scanRental(r.pool.QueryRow(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rental{}, shared.ErrNotFound
		}
		return Rental{}, db.Classify(err)
	}
	return rental, nil
}

// List returns rentals matching f, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Rental, error) {
	var (
		where []string
		args  []any
	)
	if f.MuseumID > 0 {
		args = append(args, f.MuseumID)
		where = append(where, fmt.Sprintf("museum_id = $%d", len(args)))
	}
	if f.RenterID > 0 {
		args = append(args, f.RenterID)
		where = append(where, fmt.Sprintf("renter_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + rentalColumns + ` FROM rentals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return r.query(ctx, query, args...)
}

// ListExpired returns active rentals whose end date is before now, oldest first.
func (r *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]Rental, error) {
	return r.query(ctx, `SELECT `+rentalColumns+` FROM rentals
		WHERE status = $1 AND end_date < $2 ORDER BY end_date, id LIMIT $3`,
		string(workflow.RentalActive), now, limit)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]Rental, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	out := []Rental{}
	for rows.Next() {
		rental, err := scanRental(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, rental)
	}
	return out, db.Classify(rows.Err())
}

func (t *txRepo) Create(ctx context.Context, r Rental) (Rental, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO rentals (artifact_id, museum_id, renter_id, status,
		museum_admin_status, super_admin_status, start_date, end_date, purpose, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) RETURNING id`,
		r.ArtifactID, r.MuseumID, r.RenterID, string(r.Status),
		string(r.Approvals.MuseumAdmin.Status), string(r.Approvals.SuperAdmin.Status),
		r.StartDate, r.EndDate, r.Purpose, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return Rental{}, db.Classify(err)
	}
	return r, nil
}

func (t *txRepo) CompareAndSet(ctx context.Context, from workflow.RentalState, next Rental) error {
	tag, err := t.tx.Exec(ctx, `UPDATE rentals SET
		status = $5,
		museum_admin_status = $6, museum_admin_by = $7, museum_admin_at = $8, museum_admin_comments = $9,
		super_admin_status = $10, super_admin_by = $11, super_admin_at = $12, super_admin_comments = $13,
		payment_ref = $14, updated_at = $15
		WHERE id = $1 AND status = $2 AND museum_admin_status = $3 AND super_admin_status = $4`,
		next.ID, string(from.Status), string(from.MuseumAdmin), string(from.SuperAdmin),
		string(next.Status),
		string(next.Approvals.MuseumAdmin.Status), next.Approvals.MuseumAdmin.ApprovedBy, next.Approvals.MuseumAdmin.ApprovedAt, next.Approvals.MuseumAdmin.Comments,
		string(next.Approvals.SuperAdmin.Status), next.Approvals.SuperAdmin.ApprovedBy, next.Approvals.SuperAdmin.ApprovedAt, next.Approvals.SuperAdmin.Comments,
		next.PaymentRef, next.UpdatedAt,
	)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rental %d is no longer %s", shared.ErrStaleState, next.ID, from.Label())
	}
	return nil
}

func (t *txRepo) ClaimKey(ctx context.Context, scope, key string) error {
	return shared.ClaimKey(ctx, t.tx, scope, key)
}

func (t *txRepo) InsertAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	return audit.Insert(ctx, t.tx, entry)
}

var _ RepositoryPort = (*Repository)(nil)
