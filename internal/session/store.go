package session

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/nao1215/a11yscan/internal/model"
)

// ErrNotFound is returned by a Store for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Store persists session records. Save must be atomic: a reader sees either
// the previous or the new record, never a mix.
type Store interface {
	Save(ctx context.Context, s *model.Session) error
	Load(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context) ([]*model.Session, error)
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*model.Session)}
}

// Save stores a copy of s.
func (m *MemStore) Save(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Load returns a copy of the session.
func (m *MemStore) Load(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// List returns copies of all sessions, oldest first.
func (m *MemStore) List(_ context.Context) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	slices.SortFunc(out, func(a, b *model.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
