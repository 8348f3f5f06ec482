package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"astral-auth/internal/domain"
)

const (
	errorCodeOverEmailRateLimit = "over_email_send_rate_limit"
	errorCodeOTPExpired         = "otp_expired"
)

// RemoteCredentialStore delega codigos y sesiones en una API de identidad externa.
type RemoteCredentialStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewRemoteCredentialStore construye el cliente apuntando a la API de identidad.
func NewRemoteCredentialStore(baseURL, apiKey string, logger *zap.Logger) (*RemoteCredentialStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("credential store url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteCredentialStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}, nil
}

func (s *RemoteCredentialStore) IssueCode(ctx context.Context, emailAddr string, opts IssueOptions) error {
	body := otpRequest{Email: normalizeEmail(emailAddr), CreateUser: opts.AutoCreateIdentity}
	_, err := s.post(ctx, "/otp", body, false)
	return err
}

func (s *RemoteCredentialStore) VerifyCode(ctx context.Context, emailAddr, code string) (domain.Session, error) {
	body := verifyRequest{Type: "email", Email: normalizeEmail(emailAddr), Token: strings.TrimSpace(code)}
	respBody, err := s.post(ctx, "/verify", body, true)
	if err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.AccessToken == "" || session.User.Email == "" {
		return domain.Session{}, fmt.Errorf("credential store returned empty session")
	}
	return session, nil
}

func (s *RemoteCredentialStore) post(ctx context.Context, path string, payload any, verifying bool) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		s.logger.Warn("credential store rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, decodeStoreError(resp.StatusCode, respBody, verifying)
	}
	return respBody, nil
}

// decodeStoreError traduce la respuesta de error de la API a un StoreError.
// Un cuerpo ilegible se trata como fallo de transporte.
func decodeStoreError(status int, body []byte, verifying bool) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return fmt.Errorf("credential store http error: status=%d", status)
	}
	message := apiErr.message()

	if status == http.StatusTooManyRequests || apiErr.ErrorCode == errorCodeOverEmailRateLimit {
		if message == "" {
			message = msgRateLimitedStore
		}
		return newStoreError(StoreErrRateLimited, message)
	}
	if message == "" {
		return fmt.Errorf("credential store http error: status=%d", status)
	}
	if apiErr.ErrorCode == errorCodeOTPExpired {
		return newStoreError(StoreErrExpired, message)
	}
	if verifying && status < http.StatusInternalServerError {
		return newStoreError(StoreErrInvalidCode, message)
	}
	return newStoreError(StoreErrOther, message)
}

type otpRequest struct {
	Email      string `json:"email"`
	CreateUser bool   `json:"create_user"`
}

type verifyRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Token string `json:"token"`
}

type apiErrorResponse struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (r apiErrorResponse) message() string {
	for _, candidate := range []string{r.Msg, r.Message, r.ErrorDescription, r.Error} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}
