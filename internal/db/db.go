package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"astral-auth/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id              UUID PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	user_metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
	last_sign_in_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL,
	first_name    TEXT,
	last_name     TEXT,
	avatar_url    TEXT,
	is_verified   BOOLEAN NOT NULL DEFAULT false,
	last_login_at TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS profiles_email_key ON profiles (email);
`

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// EnsureSchema crea las tablas de identidades y perfiles si no existen.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}
