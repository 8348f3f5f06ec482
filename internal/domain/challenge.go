package domain

import "time"

// Challenge es un codigo de un solo uso pendiente para un email.
type Challenge struct {
	Email     string    `json:"email"`
	CodeHash  string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
