package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/duomatch/duomatch/internal/models"
)

// MemoryRepository is a map-backed Repository used when MongoDB is not
// configured and in unit tests. It enforces the same identity uniqueness
// as the Mongo index.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.User
	byExt map[string]string // "provider/externalId" -> user id
	seq   int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]*models.User),
		byExt: make(map[string]string),
	}
}

func extKey(externalID, provider string) string { return provider + "/" + externalID }

func (m *MemoryRepository) FindByExternal(ctx context.Context, externalID, provider string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byExt[extKey(externalID, provider)]
	if !ok {
		return nil, nil
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryRepository) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := extKey(u.ExternalID, u.ExternalProvider)
	if _, exists := m.byExt[key]; exists {
		return ErrDuplicate
	}
	if u.ID == "" {
		m.seq++
		u.ID = fmt.Sprintf("mem-%d", m.seq)
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.byID[u.ID] = &cp
	m.byExt[key] = u.ID
	return nil
}

func (m *MemoryRepository) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.Name = p.Name
	u.Email = p.Email
	if p.AvatarURL != "" {
		u.AvatarURL = p.AvatarURL
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}
