package domain

import "time"

// Session es la sesion emitida por el credential store tras verificar un codigo.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresIn    int64       `json:"expires_in"`
	User         SessionUser `json:"user"`
}

// SessionUser es la vista del usuario autenticado que expone la sesion.
type SessionUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	LastSignInAt *time.Time   `json:"last_sign_in_at,omitempty"`
}

// UserMetadata son los datos opcionales que el usuario aporto a su identidad.
type UserMetadata struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
