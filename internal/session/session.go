// Package session holds the bearer token shared by every backend request.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Store persists the token across restarts. Load returns an empty token and
// no error when nothing is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// Session is created once at start-up and handed to everything that needs
// auth state. The in-memory token is authoritative; the store is a durable
// copy.
type Session struct {
	mu     sync.RWMutex
	token  string
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: store, logger: logger}
}

// Open restores a previously saved token.
func (s *Session) Open(ctx context.Context) error {
	token, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if token != "" {
		s.logger.Info("session restored")
	}
	return nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Set replaces the token. The new token is used immediately even if saving
// it fails.
func (s *Session) Set(ctx context.Context, token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := s.store.Save(ctx, token); err != nil {
		s.logger.Warn("persist session token", zap.Error(err))
	}
}

// Clear drops the token and reports whether one was present.
func (s *Session) Clear(ctx context.Context) bool {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.mu.Unlock()

	if err := s.store.Delete(ctx); err != nil {
		s.logger.Warn("delete session token", zap.Error(err))
	}
	return had
}

type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) Save(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
