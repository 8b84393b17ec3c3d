package clock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// MarkerStore persists the expiry marker as epoch milliseconds.
type MarkerStore interface {
	Load(ctx context.Context) (int64, bool, error)
	Save(ctx context.Context, expiryMillis int64) error
	Clear(ctx context.Context) error
}

type InMemoryMarkerStore struct {
	mu     sync.RWMutex
	expiry int64
	set    bool
}

func NewInMemoryMarkerStore() *InMemoryMarkerStore {
	return &InMemoryMarkerStore{}
}

func (s *InMemoryMarkerStore) Load(context.Context) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry, s.set, nil
}

func (s *InMemoryMarkerStore) Save(_ context.Context, expiryMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiry = expiryMillis
	s.set = true
	return nil
}

func (s *InMemoryMarkerStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiry = 0
	s.set = false
	return nil
}

// FileMarkerStore keeps the marker as a single cookie line
// ("expiryTime=<ms>; Path=/; Secure") in a file.
type FileMarkerStore struct {
	mu   sync.Mutex
	path string
}

func NewFileMarkerStore(dir string) *FileMarkerStore {
	return &FileMarkerStore{path: filepath.Join(dir, MarkerKey)}
}

func (s *FileMarkerStore) Path() string { return s.path }

func (s *FileMarkerStore) Load(context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read expiry marker: %w", err)
	}
	cookie, err := http.ParseSetCookie(strings.TrimSpace(string(raw)))
	if err != nil || cookie.Name != MarkerKey {
		return 0, false, nil
	}
	expiry, err := strconv.ParseInt(cookie.Value, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return expiry, true, nil
}

func (s *FileMarkerStore) Save(_ context.Context, expiryMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	cookie := &http.Cookie{
		Name:   MarkerKey,
		Value:  strconv.FormatInt(expiryMillis, 10),
		Path:   "/",
		Secure: true,
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(cookie.String()+"\n"), 0o600); err != nil {
		return fmt.Errorf("write expiry marker: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace expiry marker: %w", err)
	}
	return nil
}

func (s *FileMarkerStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove expiry marker: %w", err)
	}
	return nil
}
