package apiclient

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
	fallbackEmailMessage = "Please try again!"
	fallbackCodeMessage  = "Incorrect Code. Please try again"
)

// Client habla con la API de autenticacion. Implementa el Authenticator del flujo de login.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient construye un cliente HTTP apuntando a la API.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *Client) RequestCode(ctx context.Context, email string) domain.AuthResult {
	res, _, err := c.post(ctx, "/auth/otp/request", map[string]string{"email": email})
	if err != nil {
		c.logger.Warn("request code failed", zap.Error(err))
		return domain.Failed(fallbackEmailMessage)
	}
	return res
}

func (c *Client) VerifyCode(ctx context.Context, email, code string) domain.AuthResult {
	res, raw, err := c.post(ctx, "/auth/otp/verify", map[string]string{"email": email, "code": code})
	if err != nil {
		c.logger.Warn("verify code failed", zap.Error(err))
		return domain.Failed(fallbackCodeMessage)
	}
	if res.Success && len(raw.Data) > 0 {
		var session domain.Session
		if err := json.Unmarshal(raw.Data, &session); err == nil && session.AccessToken != "" {
			res.Session = &session
		}
	}
	return res
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *Client) post(ctx context.Context, path string, payload any) (domain.AuthResult, envelope, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return domain.AuthResult{}, envelope{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return domain.AuthResult{}, envelope{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.AuthResult{}, envelope{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.AuthResult{}, envelope{}, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return domain.AuthResult{}, envelope{}, fmt.Errorf("unmarshal response (status=%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 500 && env.Error == "" {
		return domain.AuthResult{}, envelope{}, fmt.Errorf("api http error: status=%d", resp.StatusCode)
	}

	res := domain.AuthResult{Success: env.Success, Error: env.Error}
	if len(env.Data) > 0 {
		var data any
		if err := json.Unmarshal(env.Data, &data); err == nil {
			res.Data = data
		}
	}
	return res, env, nil
}
