package handler

import (
	"authclient/internal/form"
	"authclient/internal/guard"
	"authclient/internal/model"
	"authclient/internal/provider"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
)

type AuthHandler struct {
	auth  AuthService
	guard *guard.Guard
	log   *slog.Logger
}

func NewAuthHandler(auth AuthService, g *guard.Guard, log *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, guard: g, log: log}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type resultResponse struct {
	Result bool `json:"result"`
}

type pendingResponse struct {
	Email   string `json:"email"`
	Session string `json:"session"`
}

type verifiedResponse struct {
	UserID string `json:"user_id"`
}

type landingResponse struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// Landing reports whether the stored session would pass the guard.
// GET /auth/login
func (h *AuthHandler) Landing(w http.ResponseWriter, r *http.Request) {
	d := h.guard.CanActivate(r.Context())
	writeJSON(w, http.StatusOK, landingResponse{State: d.State.String(), Reason: d.Reason})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in form.Login
	if !h.decode(w, r, &in) {
		return
	}

	user, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in form.Register
	if !h.decode(w, r, &in) {
		return
	}

	user, err := h.auth.Register(r.Context(), model.User{
		Fullname: in.Fullname,
		Email:    in.Email,
		Password: in.Password,
	})
	var pending *provider.VerificationError
	if errors.As(err, &pending) {
		writeJSON(w, http.StatusAccepted, pendingResponse{Email: pending.Email, Session: pending.Session})
		return
	}
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var in form.VerifyEmail
	if !h.decode(w, r, &in) {
		return
	}

	userID, err := h.auth.VerifyEmail(r.Context(), in.Session, in.Code)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifiedResponse{UserID: userID})
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in form.ForgotPassword
	if !h.decode(w, r, &in) {
		return
	}

	ok, err := h.auth.ForgotPassword(r.Context(), in.Email)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: ok})
}

// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in form.ResetPassword
	if !h.decode(w, r, &in) {
		return
	}

	ok, err := h.auth.ResetPassword(r.Context(), model.ResetPasswordRequest{
		Email:                in.Email,
		Token:                in.Token,
		Password:             in.Password,
		PasswordConfirmation: in.PasswordConfirmation,
	})
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: ok})
}

// GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := guard.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type validatable interface {
	Validate() error
}

// decode reads a JSON body and validates it, writing the failure response
// itself.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, in validatable) bool {
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}

	if err := in.Validate(); err != nil {
		resp := errorResponse{Error: "validation failed"}
		var errs validation.Errors
		if errors.As(err, &errs) {
			resp.Fields = make(map[string]string, len(errs))
			for field, e := range errs {
				resp.Fields[field] = e.Error()
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return false
	}
	return true
}

func (h *AuthHandler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrUserExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "user already exists"})
	case errors.Is(err, provider.ErrAuthRejected):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "rejected by auth api"})
	case errors.Is(err, provider.ErrMissingData):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, provider.ErrUnsupported):
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: err.Error()})
	case errors.Is(err, provider.ErrNetwork), errors.Is(err, provider.ErrServer):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "auth api unavailable"})
	default:
		h.log.Error("console request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
