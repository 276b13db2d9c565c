package auth

import (
	"authclient/internal/metrics"
	"authclient/internal/model"
	"authclient/internal/provider"
	"authclient/internal/session"
	"authclient/internal/state"
	"authclient/internal/token"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Auth ties the remote provider to the local session.
type Auth struct {
	provider provider.Auth
	store    *session.Store
	loading  *state.Cell[bool]
	metrics  metrics.Recorder
	log      *slog.Logger
}

func NewService(p provider.Auth, store *session.Store, rec metrics.Recorder, log *slog.Logger) *Auth {
	if log == nil {
		log = slog.Default()
	}
	return &Auth{
		provider: p,
		store:    store,
		loading:  state.NewCell(false),
		metrics:  metrics.OrNop(rec),
		log:      log,
	}
}

// Loading is true while a remote call is in flight.
func (a *Auth) Loading() *state.Cell[bool] {
	return a.loading
}

func (a *Auth) CurrentUser() *state.Cell[*model.User] {
	return a.store.CurrentUser()
}

// Login authenticates, persists the session and publishes the user once.
// On failure the stored session is left as it was.
func (a *Auth) Login(ctx context.Context, email, password string) (*model.User, error) {
	const op = "auth.Login"

	if email == "" || password == "" {
		return nil, fmt.Errorf("%s: %w", op, provider.ErrMissingData)
	}

	a.loading.Set(true)
	defer a.loading.Set(false)

	res, err := a.provider.Login(ctx, email, password)
	if err != nil {
		a.log.Error("login failed", slog.String("email", email), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tok := res.Auth.AuthToken
	if tok == "" {
		return nil, fmt.Errorf("%s: %w", op, provider.ErrMalformedToken)
	}

	raw := res.User
	if raw == nil {
		raw, err = a.profile(ctx, tok)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	user := a.store.Parse(raw)
	if err := a.store.Save(ctx, tok, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.store.Publish(&user)
	a.metrics.RecordSessionUpdate("login")

	a.log.Info("user logged in",
		slog.String("email", user.Email),
		slog.Time("expires_in", res.Auth.ExpiresIn))

	return &user, nil
}

// profile falls back to the me endpoint, then to the token claims, when the
// login response carries no user.
func (a *Auth) profile(ctx context.Context, tok string) (map[string]any, error) {
	raw, err := a.provider.Me(ctx, tok)
	if err == nil && raw != nil {
		return raw, nil
	}
	if err != nil && !errors.Is(err, provider.ErrUnsupported) {
		a.log.Warn("fetch current user after login", slog.String("error", err.Error()))
	}

	claims, err := token.Decode(tok)
	if err != nil {
		return nil, err
	}
	return map[string]any(claims), nil
}

// Register creates the account and then logs in with the same credentials.
// Transports that confirm sign-ups by email stop short of the login and
// return a *provider.VerificationError instead.
func (a *Auth) Register(ctx context.Context, user model.User) (*model.User, error) {
	const op = "auth.Register"

	if user.Email == "" || user.Password == "" {
		return nil, fmt.Errorf("%s: %w", op, provider.ErrMissingData)
	}

	a.loading.Set(true)
	_, err := a.provider.Register(ctx, user)
	a.loading.Set(false)
	if errors.Is(err, provider.ErrVerificationRequired) {
		a.log.Info("registration pending email verification", slog.String("email", user.Email))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		a.log.Error("register failed", slog.String("email", user.Email), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a.Login(ctx, user.Email, user.Password)
}

// VerifyEmail confirms a pending sign-up. The caller logs in afterwards.
func (a *Auth) VerifyEmail(ctx context.Context, session, code string) (string, error) {
	const op = "auth.VerifyEmail"

	v, ok := a.provider.(provider.Verifier)
	if !ok {
		return "", fmt.Errorf("%s: %w", op, provider.ErrUnsupported)
	}

	a.loading.Set(true)
	defer a.loading.Set(false)

	userID, err := v.VerifyEmail(ctx, session, code)
	if err != nil {
		a.log.Error("verify email failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("email verified", slog.String("user_id", userID))
	return userID, nil
}

func (a *Auth) ForgotPassword(ctx context.Context, email string) (bool, error) {
	const op = "auth.ForgotPassword"

	a.loading.Set(true)
	defer a.loading.Set(false)

	ok, err := a.provider.ForgotPassword(ctx, email)
	if err != nil {
		a.log.Error("forgot password failed", slog.String("email", email), slog.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

func (a *Auth) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (bool, error) {
	const op = "auth.ResetPassword"

	a.loading.Set(true)
	defer a.loading.Set(false)

	ok, err := a.provider.ResetPassword(ctx, req)
	if err != nil {
		a.log.Error("reset password failed", slog.String("email", req.Email), slog.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Restore re-hydrates the current user from storage. Errors are logged and
// reported as an absent user; an unreadable session is cleared.
func (a *Auth) Restore(ctx context.Context) *model.User {
	a.loading.Set(true)
	defer a.loading.Set(false)

	sess, err := a.store.Load(ctx)
	if err != nil {
		a.log.Error("restore session", slog.String("error", err.Error()))
		a.Logout(ctx)
		return nil
	}
	if sess == nil {
		return nil
	}

	user := sess.User
	a.store.Publish(&user)
	a.metrics.RecordSessionUpdate("restore")
	return &user
}

// Logout revokes the token remotely when the transport supports it, then
// clears storage and publishes nil. Remote failures do not stop the local
// cleanup.
func (a *Auth) Logout(ctx context.Context) {
	if r, ok := a.provider.(provider.Revoker); ok {
		tok, _, err := a.store.Raw(ctx)
		if err == nil && tok != "" {
			if err := r.Logout(ctx, tok); err != nil {
				a.log.Warn("remote logout failed", slog.String("error", err.Error()))
			}
		}
	}

	if err := a.store.Clear(ctx); err != nil {
		a.log.Error("clear session", slog.String("error", err.Error()))
	}

	a.store.Publish(nil)
	a.metrics.RecordSessionUpdate("logout")
	a.log.Info("user logged out")
}

// InvalidateSession is the guard's side effect for a rejected session.
func (a *Auth) InvalidateSession(ctx context.Context) {
	a.Logout(ctx)
}
