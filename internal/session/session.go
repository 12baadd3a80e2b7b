// Package session holds the client's authentication state: the access
// token, the refresh token and the user id, persisted together in a small
// YAML file so consecutive CLI invocations share one login.
//
// Any component may read the store. Only the auth flow writes it, and
// Clear removes every key at once.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrExpired is returned when a session could not be refreshed and the
// user has to log in again.
var ErrExpired = errors.New("session expired, log in again")

// State is the lifecycle position of a Store.
type State int

const (
	StateInitialized State = iota
	StateAuthenticated
	StateExpired
	StateCleared
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateCleared:
		return "cleared"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tokens are the persisted keys.
type Tokens struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
	UserID       string `yaml:"user_id,omitempty"`
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	path   string
	tokens Tokens
	state  State
}

// NewMemory returns a Store that is never written to disk.
func NewMemory() *Store {
	return &Store{}
}

// Open loads the session file at path. A missing file yields an empty,
// initialized store; the file is created on the first Set.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.tokens); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", path, err)
	}
	if s.tokens.AccessToken != "" {
		s.state = StateAuthenticated
	}
	return s, nil
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string { return s.path }

// Tokens returns a copy of the current tokens.
func (s *Store) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// AccessToken returns the current access token, or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Authenticated reports whether an access token is held.
func (s *Store) Authenticated() bool {
	return s.State() == StateAuthenticated
}

// Set replaces all tokens and persists them. A refresh response that omits
// the refresh token or user id keeps the previous values.
func (s *Store) Set(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccessToken == "" {
		return errors.New("access token is empty")
	}
	if t.RefreshToken == "" {
		t.RefreshToken = s.tokens.RefreshToken
	}
	if t.UserID == "" {
		t.UserID = s.tokens.UserID
	}
	if err := s.write(t); err != nil {
		return err
	}
	s.tokens = t
	s.state = StateAuthenticated
	return nil
}

// Expire drops every key after a failed refresh.
func (s *Store) Expire() error {
	return s.reset(StateExpired)
}

// Clear drops every key on logout.
func (s *Store) Clear() error {
	return s.reset(StateCleared)
}

func (s *Store) reset(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	s.state = next
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// write persists t atomically. Caller holds s.mu.
func (s *Store) write(t Tokens) error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
