package app

import (
	"authclient/internal/app/console"
	"authclient/internal/config"
	"authclient/internal/guard"
	"authclient/internal/handler"
	"authclient/internal/metrics"
	"authclient/internal/normalize"
	"authclient/internal/provider"
	"authclient/internal/provider/authapi"
	"authclient/internal/provider/sso"
	redis2 "authclient/internal/redis"
	"authclient/internal/servises/auth"
	"authclient/internal/session"
	"authclient/internal/storage"
	"authclient/internal/storage/file"
	"authclient/pkg/client/redis"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	ssov1 "github.com/s10n41k/protos/gen/go/sso"
)

type App struct {
	Auth     *auth.Auth
	Sessions *session.Store
	Guard    *guard.Guard
	Console  *console.App
	Registry *prometheus.Registry

	watcher session.Watcher
	closers []func() error
	log     *slog.Logger
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	const op = "app.New"

	a := &App{log: log}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector())
	rec := metrics.NewCollector(a.Registry)

	st, err := a.storage(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p, err := a.provider(cfg, rec)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pic := normalize.WithPlaceholderPic(cfg.Assets.BlankAvatar)
	a.Sessions = session.New(st, log,
		session.WithCompositeKey(cfg.Storage.CompositeKey()),
		session.WithNormalizeOptions(pic),
	)
	a.Auth = auth.NewService(p, a.Sessions, rec, log)
	a.Guard = guard.New(a.Sessions, a.Auth, log,
		guard.WithMetrics(rec),
		guard.WithNormalizeOptions(pic),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Auth:      a.Auth,
		Guard:     a.Guard,
		Gatherer:  a.Registry,
		LoginPath: cfg.Console.LoginPath,
		Log:       log,
	})
	a.Console = console.New(log, router, cfg.Console.Addr)

	return a, nil
}

func (a *App) storage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemory(), nil
	case config.DriverFile:
		fs, err := file.New(cfg.Storage.Path, a.log)
		if err != nil {
			return nil, err
		}
		a.watcher = fs
		return fs, nil
	case config.DriverRedis:
		client, err := redis.NewClient(ctx, cfg.Redis.Attempts, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return redis2.NewRepositoryRedis(client, cfg.Storage.Namespace, cfg.Storage.TTL), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func (a *App) provider(cfg config.Config, rec metrics.Recorder) (provider.Auth, error) {
	switch cfg.API.Transport {
	case config.TransportHTTP:
		return authapi.NewAuthProvider(cfg.API.BaseURL, cfg.API.Timeout, a.log,
			authapi.WithRateLimit(cfg.API.Rate, cfg.API.Burst),
			authapi.WithMetrics(rec),
		), nil
	case config.TransportSSO:
		conn, err := sso.Dial(cfg.SSO.Addr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		return sso.New(ssov1.NewAuthClient(conn), cfg.SSO.DeviceID, cfg.SSO.Timeout, rec, a.log), nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.API.Transport)
}

// Follow republishes the current user when another process changes the
// session file. Drivers other than file have nothing to follow.
func (a *App) Follow(ctx context.Context) error {
	if a.watcher == nil {
		return nil
	}
	return a.Sessions.Follow(ctx, a.watcher)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
