package provider

import (
	"authclient/internal/model"
	"authclient/internal/token"
	"context"
	"errors"
	"fmt"
)

var (
	ErrNetwork        = errors.New("auth api unreachable")
	ErrAuthRejected   = errors.New("auth api rejected the request")
	ErrUserExists     = errors.New("user already exists")
	ErrServer         = errors.New("auth api internal error")
	ErrMalformedToken = token.ErrMalformedToken
	ErrMissingSession = errors.New("no stored session")
	ErrUnsupported    = errors.New("operation not supported by this transport")
	ErrMissingData    = errors.New("missing email or password")

	ErrVerificationRequired = errors.New("email verification required")
)

// Auth is the remote side of the session: every call is one request.
type Auth interface {
	Login(ctx context.Context, email, password string) (*model.LoginResult, error)
	Register(ctx context.Context, user model.User) (map[string]any, error)
	ForgotPassword(ctx context.Context, email string) (bool, error)
	ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (bool, error)
	Me(ctx context.Context, token string) (map[string]any, error)
}

// Revoker is implemented by transports that can end a session server side.
type Revoker interface {
	Logout(ctx context.Context, token string) error
}

// Verifier is implemented by transports whose sign-up ends with a code sent
// by email. The account cannot log in until VerifyEmail succeeds.
type Verifier interface {
	VerifyEmail(ctx context.Context, session, code string) (userID string, err error)
}

// VerificationError is returned by Register when the account is pending
// email confirmation. It unwraps to ErrVerificationRequired.
type VerificationError struct {
	Email   string
	Session string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: confirm the code sent to %s", ErrVerificationRequired, e.Email)
}

func (e *VerificationError) Unwrap() error {
	return ErrVerificationRequired
}

// HTTPError carries a non-2xx response. It unwraps to the matching kind.
type HTTPError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
}

func (e *HTTPError) Unwrap() error {
	switch {
	case e.Status == 409:
		return ErrUserExists
	case e.Status >= 400 && e.Status < 500:
		return ErrAuthRejected
	case e.Status >= 500:
		return ErrServer
	}
	return nil
}

// IsAuthRejected reports a 4xx-style refusal, including user conflicts.
func IsAuthRejected(err error) bool {
	return errors.Is(err, ErrAuthRejected) || errors.Is(err, ErrUserExists)
}
