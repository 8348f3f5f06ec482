package domain

import "time"

// Profile es el registro propio de la aplicacion para un usuario.
type Profile struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   *string    `json:"first_name"`
	LastName    *string    `json:"last_name"`
	AvatarURL   *string    `json:"avatar_url"`
	IsVerified  bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewProfile son los datos para crear un Profile. Email es obligatorio.
type NewProfile struct {
	ID          string
	Email       string
	FirstName   *string
	LastName    *string
	AvatarURL   *string
	IsVerified  bool
	LastLoginAt *time.Time
}
