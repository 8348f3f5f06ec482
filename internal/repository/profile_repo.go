package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"astral-auth/internal/domain"
)

// ErrProfileExists indica que ya existe un perfil para el email.
var ErrProfileExists = errors.New("profile already exists")

// ProfileRepository define el contrato de persistencia para perfiles.
// FindByEmail devuelve pgx.ErrNoRows cuando no hay perfil.
type ProfileRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.Profile, error)
	Create(ctx context.Context, profile domain.NewProfile) (domain.Profile, error)
}

// PgProfileRepository implementa ProfileRepository sobre Postgres.
type PgProfileRepository struct {
	db DBTX
}

func NewPgProfileRepository(db DBTX) *PgProfileRepository {
	return &PgProfileRepository{db: db}
}

const profileColumns = `id, email, first_name, last_name, avatar_url, is_verified, last_login_at, created_at, updated_at`

func (r *PgProfileRepository) FindByEmail(ctx context.Context, email string) (domain.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE email = $1
	`
	var p domain.Profile
	err := r.db.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(
		&p.ID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.AvatarURL,
		&p.IsVerified,
		&p.LastLoginAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

func (r *PgProfileRepository) Create(ctx context.Context, profile domain.NewProfile) (domain.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return domain.Profile{}, errors.New("profile email is required")
	}
	id := profile.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO profiles (id, email, first_name, last_name, avatar_url, is_verified, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + profileColumns
	var p domain.Profile
	err := r.db.QueryRow(ctx, query,
		id,
		email,
		profile.FirstName,
		profile.LastName,
		profile.AvatarURL,
		profile.IsVerified,
		profile.LastLoginAt,
	).Scan(
		&p.ID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.AvatarURL,
		&p.IsVerified,
		&p.LastLoginAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Profile{}, ErrProfileExists
		}
		return domain.Profile{}, err
	}
	return p, nil
}
