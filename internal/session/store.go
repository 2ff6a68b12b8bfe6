package session

import (
	"context"
	"errors"
	"sync"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

// recordKey фиксированное имя записи сессии внутри пространства актора.
const recordKey = "user"

var ErrNotFound = errors.New("session not found")

// Store хранит одну запись сессии на актора.
type Store interface {
	Load(ctx context.Context, actorID string) (*models.Session, error)
	Save(ctx context.Context, actorID string, s models.Session) error
	Delete(ctx context.Context, actorID string) error
}

func storeKey(prefix, actorID string) string {
	if prefix == "" {
		return actorID + ":" + recordKey
	}
	return prefix + ":" + actorID + ":" + recordKey
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.Session),
	}
}

func (m *MemoryStore) Load(ctx context.Context, actorID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.records[storeKey("", actorID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, actorID string, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[storeKey("", actorID)] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, storeKey("", actorID))
	return nil
}
