package domain

type Step string

const (
	StepEmail Step = "email"
	StepOTP   Step = "otp"
)

// FlowState es el estado visible del flujo de login. Nunca se persiste.
type FlowState struct {
	Step          Step   `json:"step"`
	Email         string `json:"email"`
	Code          string `json:"code"`
	IsLoading     bool   `json:"is_loading"`
	IsSuccess     bool   `json:"is_success"`
	HasEmailError bool   `json:"has_email_error"`
	HasOtpError   bool   `json:"has_otp_error"`
	ErrorMessage  string `json:"error_message,omitempty"`
	IsShaking     bool   `json:"is_shaking"`
}
