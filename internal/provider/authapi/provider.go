package authapi

import (
	"authclient/internal/metrics"
	"authclient/internal/model"
	"authclient/internal/normalize"
	"authclient/internal/provider"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"golang.org/x/time/rate"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	endpointLogin          = "login"
	endpointRegister       = "register"
	endpointForgotPassword = "forgot-password"
	endpointResetPassword  = "reset-password"
	endpointMe             = "me"

	maxBodyLog = 512
)

type Option func(*authProvider)

// WithHTTPClient replaces the tuned default client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *authProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithRateLimit caps outbound requests. A zero limit disables the cap.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(p *authProvider) {
		if perSecond <= 0 {
			p.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *authProvider) {
		p.metrics = metrics.OrNop(r)
	}
}

// WithClock overrides time.Now when computing expiry.
func WithClock(now func() time.Time) Option {
	return func(p *authProvider) {
		if now != nil {
			p.now = now
		}
	}
}

type authProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	metrics metrics.Recorder
	now     func() time.Time
	log     *slog.Logger
}

// NewAuthProvider talks JSON to <baseURL>/auth/*.
func NewAuthProvider(baseURL string, timeout time.Duration, log *slog.Logger, opts ...Option) provider.Auth {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	p := &authProvider{
		baseURL: strings.TrimRight(baseURL, "/") + "/auth",
		metrics: metrics.Nop{},
		now:     time.Now,
		log:     log,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          20,
				MaxIdleConnsPerHost:   5,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
			},
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *authProvider) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	if email == "" || password == "" {
		return nil, provider.ErrMissingData
	}

	var out model.LoginResponse
	if err := p.post(ctx, endpointLogin, "", model.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}

	if out.AccessToken == "" {
		p.log.Error("login response has no access_token", slog.String("email", email))
		return nil, fmt.Errorf("%s: %w: empty access_token", endpointLogin, provider.ErrAuthRejected)
	}

	return &model.LoginResult{
		Auth: model.Auth{
			AuthToken:    out.AccessToken,
			RefreshToken: "",
			ExpiresIn:    p.now().Add(time.Duration(out.ExpiresIn * float64(time.Second))),
		},
		User: out.User,
	}, nil
}

func (p *authProvider) Register(ctx context.Context, user model.User) (map[string]any, error) {
	body := normalize.ToMap(user)
	body["password"] = user.Password

	var out map[string]any
	if err := p.post(ctx, endpointRegister, "", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ForgotPassword reports whether the server dispatched a reset link.
func (p *authProvider) ForgotPassword(ctx context.Context, email string) (bool, error) {
	var out json.RawMessage
	if err := p.post(ctx, endpointForgotPassword, "", model.ForgotPasswordRequest{Email: email}, &out); err != nil {
		return false, err
	}
	return decodeBool(out)
}

func (p *authProvider) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (bool, error) {
	var out json.RawMessage
	if err := p.post(ctx, endpointResetPassword, "", req, &out); err != nil {
		return false, err
	}
	return decodeBool(out)
}

func (p *authProvider) Me(ctx context.Context, token string) (map[string]any, error) {
	if token == "" {
		return nil, provider.ErrMissingSession
	}

	var out map[string]any
	if err := p.post(ctx, endpointMe, token, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *authProvider) post(ctx context.Context, endpoint, bearer string, in, out any) (err error) {
	url := p.baseURL + "/" + endpoint
	started := time.Now()
	defer func() {
		p.metrics.RecordRequest(endpoint, outcome(err), time.Since(started))
	}()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit: %w", endpoint, err)
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	p.log.Debug("calling auth api", slog.String("endpoint", endpoint), slog.String("url", url))

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.log.Warn("auth api request aborted",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()))
			return fmt.Errorf("%s: %w", endpoint, err)
		}
		p.log.Error("auth api request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w: %v", endpoint, provider.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w: read response: %v", endpoint, provider.ErrNetwork, err)
	}

	p.log.Debug("auth api response",
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Int("body_length", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.log.Warn("auth api returned error status",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode))
		return &provider.HTTPError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     truncate(strings.TrimSpace(string(respBody)), maxBodyLog),
		}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return fmt.Errorf("%s: empty response body", endpoint)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		p.log.Error("failed to decode auth api response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}

// decodeBool accepts a bare JSON boolean or a {"success"|"result": bool}
// envelope.
func decodeBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	var env map[string]any
	if err := json.Unmarshal(raw, &env); err == nil {
		for _, key := range []string{"success", "result"} {
			if v, ok := env[key].(bool); ok {
				return v, nil
			}
		}
	}
	return false, fmt.Errorf("expected a boolean response, got %s", truncate(string(raw), 64))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, provider.ErrNetwork):
		return "network"
	case provider.IsAuthRejected(err):
		return "rejected"
	case errors.Is(err, provider.ErrServer):
		return "server"
	}
	return "error"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
