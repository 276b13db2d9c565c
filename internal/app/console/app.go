package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type App struct {
	log    *slog.Logger
	server *http.Server
	addr   string
}

func New(log *slog.Logger, handler http.Handler, addr string) *App {
	return &App{
		log:  log,
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run blocks until the server stops. A graceful Stop is not an error.
func (a *App) Run() error {
	const op = "consoleapp.Run"

	l, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return a.Serve(l)
}

func (a *App) Serve(l net.Listener) error {
	const op = "consoleapp.Serve"

	a.log.Info("session console started", slog.String("addr", l.Addr().String()))

	if err := a.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Stop shuts the console down, waiting for in-flight requests.
func (a *App) Stop(ctx context.Context) error {
	const op = "consoleapp.Stop"

	a.log.With(slog.String("op", op)).
		Info("stopping session console", slog.String("addr", a.addr))

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
