package domain

// AuthResult es la respuesta uniforme del flujo de autenticacion.
type AuthResult struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Session *Session `json:"-"`
}

func Succeeded(data any) AuthResult {
	return AuthResult{Success: true, Data: data}
}

func Failed(message string) AuthResult {
	return AuthResult{Success: false, Error: message}
}
