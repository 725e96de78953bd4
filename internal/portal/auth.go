package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Alijeyrad/wellness_intake/internal/intake"
)

// AuthError is a rejected login. Message is the auth service's own wording
// and is shown to the user as is.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

type AuthClient struct {
	c client
}

func NewAuthClient(cfg Config, httpClient *http.Client) *AuthClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &AuthClient{c: newClient(cfg.AuthBaseURL, httpClient)}
}

// Login exchanges credentials for the actor and the company/office graph it
// may book for.
func (a *AuthClient) Login(ctx context.Context, creds intake.Credentials) (*intake.Actor, error) {
	body := map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}

	var resp struct {
		Success bool             `json:"success"`
		Message string           `json:"message"`
		User    intake.User      `json:"user"`
		Company []intake.Company `json:"companies"`
	}

	err := a.c.post(ctx, "/auth/login", body, &resp)
	var se *StatusError
	if errors.As(err, &se) {
		msg := messageOf([]byte(se.Body))
		if msg == "" {
			msg = http.StatusText(se.StatusCode)
		}
		return nil, &AuthError{StatusCode: se.StatusCode, Message: msg}
	}
	if err != nil {
		return nil, fmt.Errorf("portal login: %w", err)
	}

	if !resp.Success && resp.Message != "" {
		return nil, &AuthError{StatusCode: http.StatusUnauthorized, Message: resp.Message}
	}
	if resp.User.ID == "" {
		return nil, ErrUnexpectedResponse
	}
	return &intake.Actor{User: resp.User, Companies: resp.Company}, nil
}
