package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemoteStoreForTest(t *testing.T, handler http.HandlerFunc) *RemoteCredentialStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store, err := NewRemoteCredentialStore(srv.URL+"/", "anon-key", nil)
	require.NoError(t, err)
	return store
}

func TestRemoteCredentialStore_IssueCode(t *testing.T) {
	var got otpRequest
	store := newRemoteStoreForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/otp", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	err := store.IssueCode(context.Background(), " New@UseAstral.dev", IssueOptions{AutoCreateIdentity: true})
	require.NoError(t, err)
	assert.Equal(t, "new@useastral.dev", got.Email)
	assert.True(t, got.CreateUser)
}

func TestRemoteCredentialStore_RateLimited(t *testing.T) {
	store := newRemoteStoreForTest(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":429,"error_code":"over_email_send_rate_limit","msg":"email rate limit exceeded"}`))
	})

	err := store.IssueCode(context.Background(), "existing@useastral.dev", IssueOptions{AutoCreateIdentity: true})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestRemoteCredentialStore_VerifyCode(t *testing.T) {
	store := newRemoteStoreForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify", r.URL.Path)
		var body verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "email", body.Type)
		assert.Equal(t, "123456", body.Token)
		_, _ = w.Write([]byte(`{
			"access_token":"at","refresh_token":"rt","expires_in":3600,
			"user":{"id":"u-1","email":"new@useastral.dev","user_metadata":{"first_name":"Ada"},
			"last_sign_in_at":"2026-10-16T12:00:00Z"}
		}`))
	})

	session, err := store.VerifyCode(context.Background(), "new@useastral.dev", "123456")
	require.NoError(t, err)
	assert.Equal(t, "at", session.AccessToken)
	assert.Equal(t, "u-1", session.User.ID)
	require.NotNil(t, session.User.UserMetadata.FirstName)
	assert.Equal(t, "Ada", *session.User.UserMetadata.FirstName)
	assert.Nil(t, session.User.UserMetadata.LastName)
	require.NotNil(t, session.User.LastSignInAt)
}

func TestRemoteCredentialStore_VerifyRejected(t *testing.T) {
	store := newRemoteStoreForTest(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":403,"error_code":"otp_expired","msg":"Token has expired or is invalid"}`))
	})

	_, err := store.VerifyCode(context.Background(), "existing@useastral.dev", "000000")
	storeErr, ok := AsStoreError(err)
	require.True(t, ok)
	assert.Equal(t, StoreErrExpired, storeErr.Kind)
	assert.Equal(t, msgTokenInvalid, storeErr.Message)
}

func TestRemoteCredentialStore_UnreadableErrorIsTransport(t *testing.T) {
	store := newRemoteStoreForTest(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	err := store.IssueCode(context.Background(), "existing@useastral.dev", IssueOptions{})
	require.Error(t, err)
	_, ok := AsStoreError(err)
	assert.False(t, ok)
}

func TestNewRemoteCredentialStore_RequiresURL(t *testing.T) {
	_, err := NewRemoteCredentialStore(" ", "", nil)
	assert.Error(t, err)
}
