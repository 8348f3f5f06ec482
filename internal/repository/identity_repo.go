package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"astral-auth/internal/domain"
)

// IdentityRepository persiste las identidades del credential store local.
type IdentityRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)
	CreateIfAbsent(ctx context.Context, email string) (domain.Identity, error)
	TouchSignIn(ctx context.Context, id string, at time.Time) error
}

// PgIdentityRepository implementa IdentityRepository usando pgx.
type PgIdentityRepository struct {
	db DBTX
}

func NewPgIdentityRepository(db DBTX) *PgIdentityRepository {
	return &PgIdentityRepository{db: db}
}

func (r *PgIdentityRepository) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	const query = `
		SELECT id, email, user_metadata, last_sign_in_at, created_at
		FROM identities
		WHERE email = $1
	`
	var i domain.Identity
	err := r.db.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(
		&i.ID,
		&i.Email,
		&i.UserMetadata,
		&i.LastSignInAt,
		&i.CreatedAt,
	)
	if err != nil {
		return domain.Identity{}, err
	}
	return i, nil
}

// CreateIfAbsent inserta la identidad o devuelve la existente para el email.
func (r *PgIdentityRepository) CreateIfAbsent(ctx context.Context, email string) (domain.Identity, error) {
	const query = `
		INSERT INTO identities (id, email, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, user_metadata, last_sign_in_at, created_at
	`
	var i domain.Identity
	err := r.db.QueryRow(ctx, query,
		uuid.NewString(),
		strings.ToLower(strings.TrimSpace(email)),
		time.Now().UTC(),
	).Scan(
		&i.ID,
		&i.Email,
		&i.UserMetadata,
		&i.LastSignInAt,
		&i.CreatedAt,
	)
	if err != nil {
		return domain.Identity{}, err
	}
	return i, nil
}

func (r *PgIdentityRepository) TouchSignIn(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE identities SET last_sign_in_at = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, at)
	return err
}
