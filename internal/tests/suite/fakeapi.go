package suite

import (
	"authclient/internal/token"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// FakeAPI is an in-process auth backend with the /auth/* contract the
// http transport speaks. Tokens are real HS256 JWTs.
type FakeAPI struct {
	Server *httptest.Server
	Signer *token.Signer

	mu          sync.Mutex
	users       map[string]fakeUser
	resetTokens map[string]string
	omitUser    bool
	failNext    int
	loginCalls  int
}

type fakeUser struct {
	ID       int64
	Email    string
	Name     string
	Password string
	Role     string
}

// NewFakeAPI serves under <URL>/api. ttl sets the lifetime of issued tokens;
// a negative ttl issues tokens that are already expired.
func NewFakeAPI(ttl time.Duration) *FakeAPI {
	f := &FakeAPI{
		Signer:      token.NewSigner("fake-api-secret", ttl),
		users:       make(map[string]fakeUser),
		resetTokens: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", f.login)
		r.Post("/register", f.register)
		r.Post("/forgot-password", f.forgot)
		r.Post("/reset-password", f.reset)
		r.Post("/me", f.me)
	})
	f.Server = httptest.NewServer(r)
	return f
}

func (f *FakeAPI) URL() string {
	return f.Server.URL + "/api"
}

func (f *FakeAPI) Close() {
	f.Server.Close()
}

// AddUser seeds an account.
func (f *FakeAPI) AddUser(email, name, password, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = fakeUser{
		ID:       int64(len(f.users) + 1),
		Email:    email,
		Name:     name,
		Password: password,
		Role:     role,
	}
}

// OmitUser makes login answer without a user so clients must call /me.
func (f *FakeAPI) OmitUser(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitUser = v
}

// FailNext answers the next n requests with 503.
func (f *FakeAPI) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
}

func (f *FakeAPI) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

// ResetToken returns the token issued by the last forgot-password call.
func (f *FakeAPI) ResetToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetTokens[email]
}

func (f *FakeAPI) failing(w http.ResponseWriter) bool {
	if f.failNext > 0 {
		f.failNext--
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "try later"})
		return true
	}
	return false
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.failing(w) {
		return
	}

	u, ok := f.users[in.Email]
	if !ok || u.Password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}

	tok, err := f.Signer.Sign(itoa(u.ID), u.Email, u.Role)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}

	resp := map[string]any{
		"access_token": tok,
		"expires_in":   3600,
	}
	if !f.omitUser {
		resp["user"] = profile(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var in map[string]any
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
		return
	}
	email, _ := in["email"].(string)
	password, _ := in["password"].(string)
	name, _ := in["fullname"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing(w) {
		return
	}
	if _, exists := f.users[email]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "email taken"})
		return
	}

	u := fakeUser{ID: int64(len(f.users) + 1), Email: email, Name: name, Password: password, Role: "user"}
	f.users[email] = u
	writeJSON(w, http.StatusCreated, profile(u))
}

func (f *FakeAPI) forgot(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[in.Email]; !ok {
		writeJSON(w, http.StatusOK, false)
		return
	}
	f.resetTokens[in.Email] = "reset-" + strings.ReplaceAll(in.Email, "@", ".")
	writeJSON(w, http.StatusOK, true)
}

func (f *FakeAPI) reset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email                string `json:"email"`
		Token                string `json:"token"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[in.Email]
	if !ok || in.Token == "" || f.resetTokens[in.Email] != in.Token || in.Password != in.PasswordConfirmation {
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}
	u.Password = in.Password
	f.users[in.Email] = u
	delete(f.resetTokens, in.Email)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (f *FakeAPI) me(w http.ResponseWriter, r *http.Request) {
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims, err := f.Signer.Verify(bearer)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}
	email, _ := claims["email"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unknown user"})
		return
	}
	writeJSON(w, http.StatusOK, profile(u))
}

// profile answers in the loose server shape: full_name and a string id.
func profile(u fakeUser) map[string]any {
	return map[string]any{
		"id":        itoa(u.ID),
		"email":     u.Email,
		"full_name": u.Name,
		"roles":     []string{u.Role},
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
