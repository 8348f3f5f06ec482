package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astral-auth/internal/domain"
)

var identityRowColumns = []string{"id", "email", "user_metadata", "last_sign_in_at", "created_at"}

func TestPgIdentityRepository_CreateIfAbsent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO identities").
		WithArgs(pgxmock.AnyArg(), "new@useastral.dev", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(identityRowColumns).
			AddRow("i-1", "new@useastral.dev", domain.UserMetadata{}, nil, now))

	repo := NewPgIdentityRepository(mock)
	identity, err := repo.CreateIfAbsent(context.Background(), " New@useastral.dev")
	require.NoError(t, err)
	assert.Equal(t, "i-1", identity.ID)
	assert.Nil(t, identity.LastSignInAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgIdentityRepository_TouchSignIn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE identities").
		WithArgs("i-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPgIdentityRepository(mock)
	require.NoError(t, repo.TouchSignIn(context.Background(), "i-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
