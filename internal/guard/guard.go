// Package guard decides whether a stored session may pass.
package guard

import (
	"authclient/internal/metrics"
	"authclient/internal/model"
	"authclient/internal/normalize"
	"authclient/internal/token"
	"context"
	"log/slog"
	"time"
)

type State int

const (
	Unchecked State = iota
	Authorized
	Rejected
)

func (s State) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Rejected:
		return "rejected"
	default:
		return "unchecked"
	}
}

const (
	ReasonMissingSession = "missing_session"
	ReasonMalformedToken = "malformed_token"
	ReasonExpired        = "expired"
	ReasonOK             = "ok"
)

type Decision struct {
	State  State
	Reason string
}

// Check is pure: an absent token or user, an undecodable token, or an exp
// at or before now rejects; exp 0 is the epoch and rejects too. A token
// without a numeric exp passes.
func Check(tok string, user map[string]any, now time.Time) Decision {
	if tok == "" || user == nil {
		return Decision{State: Rejected, Reason: ReasonMissingSession}
	}

	claims, err := token.Decode(tok)
	if err != nil {
		return Decision{State: Rejected, Reason: ReasonMalformedToken}
	}
	if token.Expired(claims, now) {
		return Decision{State: Rejected, Reason: ReasonExpired}
	}
	return Decision{State: Authorized, Reason: ReasonOK}
}

// SessionReader is the read side of the session store.
type SessionReader interface {
	Raw(ctx context.Context) (string, map[string]any, error)
}

// Invalidator clears a rejected session.
type Invalidator interface {
	InvalidateSession(ctx context.Context)
}

type Guard struct {
	sessions    SessionReader
	invalidator Invalidator
	metrics     metrics.Recorder
	log         *slog.Logger
	now         func() time.Time
	normalize   []normalize.Option
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(g *Guard) {
		g.metrics = metrics.OrNop(r)
	}
}

func WithNormalizeOptions(opts ...normalize.Option) Option {
	return func(g *Guard) {
		g.normalize = append(g.normalize, opts...)
	}
}

func New(sessions SessionReader, inv Invalidator, log *slog.Logger, opts ...Option) *Guard {
	if log == nil {
		log = slog.Default()
	}
	g := &Guard{
		sessions:    sessions,
		invalidator: inv,
		metrics:     metrics.Nop{},
		log:         log,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// CanActivate never fails. Storage errors count as a missing session, and a
// rejection invalidates the stored session before returning.
func (g *Guard) CanActivate(ctx context.Context) Decision {
	d, _ := g.check(ctx)
	return d
}

func (g *Guard) check(ctx context.Context) (Decision, *model.User) {
	tok, raw, err := g.sessions.Raw(ctx)
	if err != nil {
		g.log.Warn("read session", slog.String("error", err.Error()))
		tok, raw = "", nil
	}

	d := Check(tok, raw, g.now())
	g.metrics.RecordGuardDecision(d.State.String(), d.Reason)

	if d.State == Rejected {
		g.log.Debug("session rejected", slog.String("reason", d.Reason))
		if g.invalidator != nil {
			g.invalidator.InvalidateSession(ctx)
		}
		return d, nil
	}

	user := normalize.Normalize(raw, g.normalize...)
	return d, &user
}
