// Package sso implements provider.Auth over the SSO gRPC service. The SSO
// service has no password-reset or profile endpoints.
package sso

import (
	"authclient/internal/metrics"
	"authclient/internal/model"
	"authclient/internal/provider"
	"authclient/internal/token"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/s10n41k/protos/gen/go/sso"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	_ provider.Auth     = (*Provider)(nil)
	_ provider.Revoker  = (*Provider)(nil)
	_ provider.Verifier = (*Provider)(nil)
)

type Provider struct {
	client   sso.AuthClient
	deviceID string
	timeout  time.Duration
	metrics  metrics.Recorder
	log      *slog.Logger
}

// Dial opens an insecure connection; the SSO service sits on a private
// network next to its callers.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	const op = "sso.Dial"

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return conn, nil
}

// New wraps client. An empty deviceID gets a random one for this process.
func New(client sso.AuthClient, deviceID string, timeout time.Duration, rec metrics.Recorder, log *slog.Logger) *Provider {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		client:   client,
		deviceID: deviceID,
		timeout:  timeout,
		metrics:  metrics.OrNop(rec),
		log:      log,
	}
}

func (p *Provider) DeviceID() string {
	return p.deviceID
}

func (p *Provider) Login(ctx context.Context, email, password string) (res *model.LoginResult, err error) {
	const op = "sso.Login"
	defer p.record("login", time.Now(), &err)

	if email == "" || password == "" {
		return nil, provider.ErrMissingData
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.Login(ctx, &sso.LoginRequest{
		Email:    email,
		Password: password,
		DeviceID: p.deviceID,
	})
	if err != nil {
		p.log.Warn("sso login failed", slog.String("email", email), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, mapStatus(err))
	}
	if resp.GetTokenAccess() == "" {
		return nil, fmt.Errorf("%s: %w: empty access token", op, provider.ErrAuthRejected)
	}

	auth := model.Auth{
		AuthToken:    resp.GetTokenAccess(),
		RefreshToken: resp.GetTokenRefresh(),
	}
	if exp, ok := token.ExpiresAt(auth.AuthToken); ok {
		auth.ExpiresIn = exp
	}

	return &model.LoginResult{Auth: auth}, nil
}

// Register starts the SSO sign-up. The account stays inactive until the
// emailed code is confirmed, so success is reported as a
// *provider.VerificationError carrying the verification session.
func (p *Provider) Register(ctx context.Context, user model.User) (out map[string]any, err error) {
	const op = "sso.Register"
	defer p.record("register", time.Now(), &err)

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	name := user.Fullname
	if name == "" {
		name = strings.TrimSpace(user.Firstname + " " + user.Lastname)
	}

	resp, err := p.client.Register(ctx, &sso.RegisterRequest{
		Email:    user.Email,
		Name:     name,
		Password: user.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStatus(err))
	}

	return nil, &provider.VerificationError{Email: user.Email, Session: resp.GetSession()}
}

// VerifyEmail confirms a pending sign-up and returns the new user id.
func (p *Provider) VerifyEmail(ctx context.Context, session, code string) (userID string, err error) {
	const op = "sso.VerifyEmail"
	defer p.record("verify_email", time.Now(), &err)

	if session == "" || code == "" {
		return "", fmt.Errorf("%s: %w", op, provider.ErrMissingData)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.VerifyEmail(ctx, &sso.VerifyEmailRequest{
		Session: session,
		Code:    code,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapStatus(err))
	}
	return resp.GetUserId(), nil
}

func (p *Provider) ForgotPassword(context.Context, string) (bool, error) {
	return false, fmt.Errorf("sso.ForgotPassword: %w", provider.ErrUnsupported)
}

func (p *Provider) ResetPassword(context.Context, model.ResetPasswordRequest) (bool, error) {
	return false, fmt.Errorf("sso.ResetPassword: %w", provider.ErrUnsupported)
}

func (p *Provider) Me(context.Context, string) (map[string]any, error) {
	return nil, fmt.Errorf("sso.Me: %w", provider.ErrUnsupported)
}

// Logout revokes the device session the access token belongs to.
func (p *Provider) Logout(ctx context.Context, accessToken string) (err error) {
	const op = "sso.Logout"
	defer p.record("logout", time.Now(), &err)

	if accessToken == "" {
		return provider.ErrMissingSession
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+accessToken)
	if _, err := p.client.Logout(ctx, &sso.LogoutRequest{}); err != nil {
		return fmt.Errorf("%s: %w", op, mapStatus(err))
	}
	return nil
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *Provider) record(endpoint string, started time.Time, err *error) {
	outcome := "ok"
	if err != nil && *err != nil {
		switch {
		case errors.Is(*err, provider.ErrVerificationRequired):
			outcome = "pending"
		case errors.Is(*err, provider.ErrNetwork):
			outcome = "network"
		case provider.IsAuthRejected(*err):
			outcome = "rejected"
		default:
			outcome = "error"
		}
	}
	p.metrics.RecordRequest("sso_"+endpoint, outcome, time.Since(started))
}

func mapStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", provider.ErrNetwork, err)
	}

	switch st.Code() {
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", provider.ErrUserExists, st.Message())
	case codes.InvalidArgument, codes.NotFound, codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", provider.ErrAuthRejected, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", provider.ErrNetwork, st.Message())
	case codes.Unimplemented:
		return fmt.Errorf("%w: %s", provider.ErrUnsupported, st.Message())
	}
	return fmt.Errorf("%w: %s", provider.ErrServer, st.Message())
}
