package drafts

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/agentstation/stagehand/pkg/errors"
)

// MemoryStore keeps encoded sessions in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

// Create implements Store.
func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeSession(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.Name]; exists {
		return errors.NewAlreadyExistsError("session", s.Name)
	}
	m.sessions[s.Name] = data
	return nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	data, err := encodeSession(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Name] = data
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context, name string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	m.mu.RLock()
	data, ok := m.sessions[name]
	m.mu.RUnlock()
	if !ok {
		return Session{}, errors.NewNotFoundError("session", name)
	}
	return decodeSession(data)
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[name]; !ok {
		return errors.NewNotFoundError("session", name)
	}
	delete(m.sessions, name)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]Session, 0, len(m.sessions))
	for _, name := range slices.Sorted(maps.Keys(m.sessions)) {
		s, err := decodeSession(m.sessions[name])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
