// Package session keeps the bearer token and the user profile in a
// key-value storage and broadcasts the current user.
package session

import (
	"authclient/internal/model"
	"authclient/internal/normalize"
	"authclient/internal/state"
	"authclient/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Watcher reports external changes to the backing storage.
type Watcher interface {
	Watch(ctx context.Context, fn func()) error
}

type Store struct {
	storage      storage.Storage
	compositeKey string
	normalize    []normalize.Option
	current      *state.Cell[*model.User]
	log          *slog.Logger
}

type Option func(*Store)

// WithCompositeKey names the legacy versioned key removed by Clear.
func WithCompositeKey(key string) Option {
	return func(s *Store) {
		s.compositeKey = key
	}
}

func WithNormalizeOptions(opts ...normalize.Option) Option {
	return func(s *Store) {
		s.normalize = append(s.normalize, opts...)
	}
}

func New(st storage.Storage, log *slog.Logger, opts ...Option) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		storage: st,
		current: state.NewCell[*model.User](nil),
		log:     log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Parse normalizes a server profile with the store's options.
func (s *Store) Parse(raw map[string]any) model.User {
	return normalize.Normalize(raw, s.normalize...)
}

// Save overwrites the token and the user; nothing is merged. The user is
// written in canonical form so Load returns it unchanged.
func (s *Store) Save(ctx context.Context, token string, user model.User) error {
	b, err := json.Marshal(normalize.Canonical(user))
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}
	if err := s.storage.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("session: save token: %w", err)
	}
	if err := s.storage.Set(ctx, KeyUser, string(b)); err != nil {
		return fmt.Errorf("session: save user: %w", err)
	}
	return nil
}

// Load returns (nil, nil) when no user is stored. The token is returned as
// found, possibly empty; expiry is not checked here. Profiles written by
// something other than Save are normalized.
func (s *Store) Load(ctx context.Context) (*model.Session, error) {
	tok, raw, err := s.Raw(ctx)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	user, err := normalize.ParseUser(raw, s.normalize...)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &model.Session{Token: tok, User: user}, nil
}

// Raw reads the stored token and the undecoded user object. A stored user
// that is not a JSON object is reported as an error.
func (s *Store) Raw(ctx context.Context) (string, map[string]any, error) {
	userJSON, err := s.storage.Get(ctx, KeyUser)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && userJSON == "") {
		tok, _ := s.token(ctx)
		return tok, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("session: read user: %w", err)
	}

	var decoded any
	if err := json.Unmarshal([]byte(userJSON), &decoded); err != nil {
		return "", nil, fmt.Errorf("session: decode user: %w", err)
	}
	raw, ok := decoded.(map[string]any)
	if !ok {
		// "null" is what a login without a user payload leaves behind.
		if decoded == nil {
			tok, _ := s.token(ctx)
			return tok, nil, nil
		}
		return "", nil, fmt.Errorf("session: stored user is not an object")
	}

	tok, err := s.token(ctx)
	if err != nil {
		return "", nil, err
	}
	return tok, raw, nil
}

func (s *Store) token(ctx context.Context) (string, error) {
	tok, err := s.storage.Get(ctx, KeyToken)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: read token: %w", err)
	}
	return tok, nil
}

// Clear removes every session key, the legacy composite key included.
func (s *Store) Clear(ctx context.Context) error {
	keys := []string{KeyToken, KeyUser}
	if s.compositeKey != "" {
		keys = append(keys, s.compositeKey)
	}
	if err := s.storage.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// CurrentUser is nil until a session is loaded or a login succeeds.
func (s *Store) CurrentUser() *state.Cell[*model.User] {
	return s.current
}

// Publish replaces the current user and notifies subscribers once.
func (s *Store) Publish(u *model.User) {
	s.current.Set(u)
}

// Follow republishes the stored user whenever w reports an external change.
// It blocks until ctx is done.
func (s *Store) Follow(ctx context.Context, w Watcher) error {
	return w.Watch(ctx, func() {
		sess, err := s.Load(ctx)
		if err != nil {
			s.log.Error("reload session after external change", slog.String("error", err.Error()))
			s.Publish(nil)
			return
		}
		if sess == nil {
			s.log.Info("session cleared by another process")
			s.Publish(nil)
			return
		}
		s.log.Info("session changed by another process", slog.String("email", sess.User.Email))
		u := sess.User
		s.Publish(&u)
	})
}
