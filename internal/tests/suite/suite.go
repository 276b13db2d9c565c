package suite

import (
	"authclient/internal/guard"
	"authclient/internal/metrics"
	"authclient/internal/model"
	"authclient/internal/provider/authapi"
	"authclient/internal/servises/auth"
	"authclient/internal/session"
	"authclient/internal/storage"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const CompositeKey = "v1.0.0-authf649fc9a5f55"

// Suite wires the real service to a fake auth API over HTTP with an
// in-memory session storage.
type Suite struct {
	*testing.T

	API      *FakeAPI
	Storage  *storage.Memory
	Sessions *session.Store
	Auth     *auth.Auth
	Guard    *guard.Guard
	Metrics  *metrics.Collector
	Registry *prometheus.Registry

	mu      sync.Mutex
	updates []*model.User
}

type Option func(*config)

type config struct {
	ttl time.Duration
	now func() time.Time
}

// WithTokenTTL sets the lifetime of tokens the fake API issues.
func WithTokenTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithClock sets the guard clock.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

func New(t *testing.T, opts ...Option) *Suite {
	t.Helper()

	c := config{ttl: time.Hour, now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))

	api := NewFakeAPI(c.ttl)
	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)

	mem := storage.NewMemory()
	sessions := session.New(mem, log, session.WithCompositeKey(CompositeKey))
	p := authapi.NewAuthProvider(api.URL(), 5*time.Second, log, authapi.WithMetrics(rec))
	svc := auth.NewService(p, sessions, rec, log)
	g := guard.New(sessions, svc, log, guard.WithMetrics(rec), guard.WithClock(c.now))

	s := &Suite{
		T:        t,
		API:      api,
		Storage:  mem,
		Sessions: sessions,
		Auth:     svc,
		Guard:    g,
		Metrics:  rec,
		Registry: reg,
	}

	unsubscribe := svc.CurrentUser().Subscribe(func(u *model.User) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.updates = append(s.updates, u)
	})

	t.Cleanup(func() {
		unsubscribe()
		api.Close()
	})

	return s
}

// Updates returns every value published on the current user cell.
func (s *Suite) Updates() []*model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.User(nil), s.updates...)
}
