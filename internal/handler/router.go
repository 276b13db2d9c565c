package handler

import (
	"authclient/internal/guard"
	"authclient/internal/metrics"
	"authclient/internal/model"
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// AuthService is the session logic the console drives.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Register(ctx context.Context, user model.User) (*model.User, error)
	VerifyEmail(ctx context.Context, session, code string) (string, error)
	ForgotPassword(ctx context.Context, email string) (bool, error)
	ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (bool, error)
	Logout(ctx context.Context)
}

type RouterDeps struct {
	Auth      AuthService
	Guard     *guard.Guard
	Gatherer  prometheus.Gatherer
	LoginPath string
	Log       *slog.Logger
}

// NewRouter builds the session console. Only /me sits behind the guard.
func NewRouter(deps *RouterDeps) http.Handler {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	loginPath := deps.LoginPath
	if loginPath == "" {
		loginPath = "/auth/login"
	}

	h := NewAuthHandler(deps.Auth, deps.Guard, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.Landing)
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/verify-email", h.VerifyEmail)
		r.Post("/logout", h.Logout)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.Guard.Middleware(loginPath))
		r.Get("/me", h.Me)
	})

	return r
}
