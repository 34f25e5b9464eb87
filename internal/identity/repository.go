package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// Store resolves actors by id.
type Store interface {
	GetActor(ctx context.Context, id int64) (Actor, error)
}

// Repository implements Store using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const actorColumns = `id, email, name, role, COALESCE(museum_id, 0), is_active`

// GetActor fetches an actor by id.
func (r *Repository) GetActor(ctx context.Context, id int64) (Actor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = $1`, id)
	actor, err := scanActor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, ErrActorNotFound
		}
		return Actor{}, fmt.Errorf("%w: get actor: %v", shared.ErrStorageUnavailable, err)
	}
	return actor, nil
}

// FindCredentials loads the actor and password hash for login.
func (r *Repository) FindCredentials(ctx context.Context, email string) (Credentials, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+actorColumns+`, password_hash FROM actors WHERE lower(email) = lower($1)`, email)
	var creds Credentials
	var role string
	err := row.Scan(&creds.Actor.ID, &creds.Actor.Email, &creds.Actor.Name, &role, &creds.Actor.MuseumID, &creds.Actor.IsActive, &creds.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, ErrActorNotFound
		}
		return Credentials{}, fmt.Errorf("%w: find credentials: %v", shared.ErrStorageUnavailable, err)
	}
	creds.Actor.Role = Role(role)
	return creds, nil
}

func scanActor(row pgx.Row) (Actor, error) {
	var a Actor
	var role string
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &role, &a.MuseumID, &a.IsActive); err != nil {
		return Actor{}, err
	}
	a.Role = Role(role)
	return a, nil
}

var _ Store = (*Repository)(nil)
