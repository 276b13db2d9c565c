package handler

import (
	"authclient/internal/guard"
	"authclient/internal/metrics"
	"authclient/internal/model"
	"authclient/internal/provider"
	"authclient/internal/session"
	"authclient/internal/storage"
	"authclient/internal/tests/mock"
	"authclient/internal/token"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type console struct {
	auth    *mock.MockAuthService
	store   *session.Store
	handler http.Handler
}

func newConsole(t *testing.T) *console {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)
	store := session.New(storage.NewMemory(), log)
	auth := mock.NewMockAuthService()

	g := guard.New(store, nil, log, guard.WithMetrics(rec))
	return &console{
		auth:  auth,
		store: store,
		handler: NewRouter(&RouterDeps{
			Auth:      auth,
			Guard:     g,
			Gatherer:  reg,
			LoginPath: "/auth/login",
			Log:       log,
		}),
	}
}

func (c *console) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	c := newConsole(t)
	rec := c.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLogin(t *testing.T) {
	c := newConsole(t)
	c.auth.On("Login", tmock.Anything, "ann@example.com", "pw").
		Return(&model.User{Email: "ann@example.com", Fullname: "Ann Lee"}, nil).Once()

	rec := c.do(http.MethodPost, "/auth/login", `{"email":"ann@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Ann Lee", got.Fullname)
	c.auth.AssertExpectations(t)
}

func TestLogin_Validation(t *testing.T) {
	c := newConsole(t)

	rec := c.do(http.MethodPost, "/auth/login", `{"email":"nope"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "email")
	assert.Contains(t, resp.Fields, "password")
	c.auth.AssertNotCalled(t, "Login", tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestLogin_BadBody(t *testing.T) {
	c := newConsole(t)
	rec := c.do(http.MethodPost, "/auth/login", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&provider.HTTPError{Endpoint: "login", Status: 401}, http.StatusUnauthorized},
		{provider.ErrNetwork, http.StatusBadGateway},
		{provider.ErrServer, http.StatusBadGateway},
		{provider.ErrUnsupported, http.StatusNotImplemented},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			c := newConsole(t)
			c.auth.On("Login", tmock.Anything, "ann@example.com", "pw").Return(nil, tt.err).Once()

			rec := c.do(http.MethodPost, "/auth/login", `{"email":"ann@example.com","password":"pw"}`)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRegister_Conflict(t *testing.T) {
	c := newConsole(t)
	c.auth.On("Register", tmock.Anything, model.User{Fullname: "Ann Lee", Email: "ann@example.com", Password: "password1"}).
		Return(nil, &provider.HTTPError{Endpoint: "register", Status: 409}).Once()

	rec := c.do(http.MethodPost, "/auth/register",
		`{"fullname":"Ann Lee","email":"ann@example.com","password":"password1","password_confirmation":"password1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_PendingVerification(t *testing.T) {
	c := newConsole(t)
	c.auth.On("Register", tmock.Anything, model.User{Fullname: "Ann Lee", Email: "ann@example.com", Password: "password1"}).
		Return(nil, &provider.VerificationError{Email: "ann@example.com", Session: "user:ann@example.com"}).Once()
	c.auth.On("VerifyEmail", tmock.Anything, "user:ann@example.com", "1234").Return("42", nil).Once()

	rec := c.do(http.MethodPost, "/auth/register",
		`{"fullname":"Ann Lee","email":"ann@example.com","password":"password1","password_confirmation":"password1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"email":"ann@example.com","session":"user:ann@example.com"}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/auth/verify-email", `{"session":"user:ann@example.com","code":"1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"42"}`, rec.Body.String())

	c.auth.AssertNotCalled(t, "Login", tmock.Anything, tmock.Anything, tmock.Anything)
	c.auth.AssertExpectations(t)
}

func TestForgotAndReset(t *testing.T) {
	c := newConsole(t)
	c.auth.On("ForgotPassword", tmock.Anything, "ann@example.com").Return(true, nil).Once()
	c.auth.On("ResetPassword", tmock.Anything, model.ResetPasswordRequest{
		Email: "ann@example.com", Token: "t0k", Password: "password1", PasswordConfirmation: "password1",
	}).Return(false, nil).Once()

	rec := c.do(http.MethodPost, "/auth/forgot-password", `{"email":"ann@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":true}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/auth/reset-password",
		`{"email":"ann@example.com","token":"t0k","password":"password1","password_confirmation":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":false}`, rec.Body.String())
}

func TestResetPassword_Mismatch(t *testing.T) {
	c := newConsole(t)
	rec := c.do(http.MethodPost, "/auth/reset-password",
		`{"email":"ann@example.com","token":"t0k","password":"password1","password_confirmation":"password2"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLogout(t *testing.T) {
	c := newConsole(t)
	c.auth.On("Logout", tmock.Anything).Once()

	rec := c.do(http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	c.auth.AssertExpectations(t)
}

func TestMe_Guarded(t *testing.T) {
	c := newConsole(t)

	rec := c.do(http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))

	rec = c.do(http.MethodGet, "/auth/login", "")
	assert.JSONEq(t, `{"state":"rejected","reason":"missing_session"}`, rec.Body.String())

	tok, err := token.NewSigner("secret", time.Hour).Sign("7", "ann@example.com", "admin")
	require.NoError(t, err)
	require.NoError(t, c.store.Save(context.Background(), tok, model.User{Email: "ann@example.com"}))

	rec = c.do(http.MethodGet, "/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ann@example.com", got.Email)
}

func TestMetricsEndpoint(t *testing.T) {
	c := newConsole(t)
	c.do(http.MethodGet, "/me", "")

	rec := c.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `authclient_guard_decisions_total{reason="missing_session",state="rejected"} 1`)
}
