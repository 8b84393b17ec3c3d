package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/security"
)

const sessionFile = "session.json"

// FilePersister writes the session snapshot to session.json in the state
// directory, sealed when a Sealer is configured.
type FilePersister struct {
	mu     sync.Mutex
	path   string
	sealer *security.Sealer
}

func NewFilePersister(dir string, sealer *security.Sealer) *FilePersister {
	return &FilePersister{path: filepath.Join(dir, sessionFile), sealer: sealer}
}

func (p *FilePersister) Load(context.Context) (domain.SessionState, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("read session: %w", err)
	}
	plain, err := p.sealer.Open(raw)
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("open session: %w", err)
	}
	var state domain.SessionState
	if err := json.Unmarshal(plain, &state); err != nil {
		return domain.SessionState{}, false, fmt.Errorf("decode session: %w", err)
	}
	return state, true, nil
}

func (p *FilePersister) Save(_ context.Context, state domain.SessionState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	plain, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	data, err := p.sealer.Seal(plain)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, p.path)
}

func (p *FilePersister) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
