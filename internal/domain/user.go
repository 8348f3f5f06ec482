package domain

import "time"

// Identity es el registro del credential store local para un email.
type Identity struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	LastSignInAt *time.Time   `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (i Identity) SessionUser() SessionUser {
	return SessionUser{
		ID:           i.ID,
		Email:        i.Email,
		UserMetadata: i.UserMetadata,
		LastSignInAt: i.LastSignInAt,
	}
}
