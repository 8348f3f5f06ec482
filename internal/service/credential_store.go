package service

import (
	"context"
	"errors"

	"astral-auth/internal/domain"
)

// CredentialStore emite y verifica codigos de un solo uso y produce sesiones.
type CredentialStore interface {
	IssueCode(ctx context.Context, email string, opts IssueOptions) error
	VerifyCode(ctx context.Context, email, code string) (domain.Session, error)
}

// IssueOptions configura la emision de un codigo.
type IssueOptions struct {
	// AutoCreateIdentity permite que un email desconocido se convierta en identidad nueva.
	AutoCreateIdentity bool
}

type StoreErrorKind string

const (
	StoreErrRateLimited StoreErrorKind = "rate_limited"
	StoreErrInvalidCode StoreErrorKind = "invalid_code"
	StoreErrExpired     StoreErrorKind = "expired"
	StoreErrOther       StoreErrorKind = "other"
)

// StoreError es un rechazo esperado del credential store.
type StoreError struct {
	Kind    StoreErrorKind
	Message string
}

func (e *StoreError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func newStoreError(kind StoreErrorKind, message string) *StoreError {
	return &StoreError{Kind: kind, Message: message}
}

// AsStoreError extrae un StoreError de err si lo hay.
func AsStoreError(err error) (*StoreError, bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr, true
	}
	return nil, false
}

// IsRateLimited reporta si err es el rechazo por limite de frecuencia.
func IsRateLimited(err error) bool {
	storeErr, ok := AsStoreError(err)
	return ok && storeErr.Kind == StoreErrRateLimited
}

const (
	msgTokenInvalid       = "Token has expired or is invalid"
	msgRateLimitedStore   = "For security purposes, you can only request this once every 60 seconds"
	msgSignupsNotAllowed  = "Signups not allowed for otp"
	msgEmailDeliveryError = "Error sending one-time code email"
)
