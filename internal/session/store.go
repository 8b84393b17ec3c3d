// Package session holds the authentication state of the running client. A
// Store is created by the caller and handed to everything that needs it.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/datetally/internal/domain"
)

// Persister saves and restores session snapshots across process restarts.
type Persister interface {
	Load(ctx context.Context) (domain.SessionState, bool, error)
	Save(ctx context.Context, state domain.SessionState) error
	Clear(ctx context.Context) error
}

// Store guards the session state with mu. persistMu is held from a state
// change through its persister call, so the file always follows the last
// change made in memory.
type Store struct {
	persistMu sync.Mutex
	mu        sync.RWMutex
	state     domain.SessionState
	persister Persister
	logger    *slog.Logger
}

// NewStore returns an anonymous store. persister may be nil.
func NewStore(persister Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{persister: persister, logger: logger}
}

// Rehydrate replaces the in-memory state with the persisted snapshot, if any.
func (s *Store) Rehydrate(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	state, ok, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.state = cloneState(state)
	s.mu.Unlock()
	return nil
}

// SetUser records a successful OTP verification.
func (s *Store) SetUser(ctx context.Context, identity domain.Identity, accessToken string) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	s.state = domain.SessionState{
		IsAuthenticated: true,
		AccessToken:     accessToken,
		Identity:        &identity,
	}
	snapshot := cloneState(s.state)
	s.mu.Unlock()
	s.persist(ctx, snapshot)
}

// SetAccessToken replaces the access token after a refresh.
func (s *Store) SetAccessToken(ctx context.Context, accessToken string) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	s.state.IsAuthenticated = true
	s.state.AccessToken = accessToken
	snapshot := cloneState(s.state)
	s.mu.Unlock()
	s.persist(ctx, snapshot)
}

// Logout resets the store to the anonymous session.
func (s *Store) Logout(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	s.state = domain.SessionState{}
	s.mu.Unlock()
	if s.persister == nil {
		return
	}
	if err := s.persister.Clear(ctx); err != nil {
		s.logger.WarnContext(ctx, "session clear failed", "err", err)
	}
}

func (s *Store) Snapshot() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

func (s *Store) persist(ctx context.Context, state domain.SessionState) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(ctx, state); err != nil {
		s.logger.WarnContext(ctx, "session persist failed", "err", err)
	}
}

func cloneState(state domain.SessionState) domain.SessionState {
	if state.Identity != nil {
		identity := *state.Identity
		state.Identity = &identity
	}
	return state
}
