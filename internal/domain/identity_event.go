package domain

import "time"

const IdentityChanged = "identity.changed"

// IdentityEvent avisa que el estado global de identidad debe recalcularse.
type IdentityEvent struct {
	Type   string    `json:"type"`
	Email  string    `json:"email"`
	UserID string    `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
}
