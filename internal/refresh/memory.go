package refresh

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-memory ledger used when no Mongo URI is configured
// and in unit tests. Same contract as MongoStore; the mutex stands in for
// the unique index.
type MemoryStore struct {
	mu    sync.Mutex
	rows  map[string]*Token
	nowFn func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Token), nowFn: time.Now}
}

func (s *MemoryStore) Issue(ctx context.Context, userID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[token] = &Token{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: s.nowFn().UTC(),
	}
	return nil
}

func (s *MemoryStore) Redeem(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[token]
	if !ok || !rec.ExpiresAt.After(s.nowFn()) {
		return "", ErrTokenNotFound
	}
	delete(s.rows, token)
	return rec.UserID, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, token)
	return nil
}

func (s *MemoryStore) RevokeAll(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for tok, rec := range s.rows {
		if rec.UserID == userID {
			delete(s.rows, tok)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	var n int64
	for tok, rec := range s.rows {
		if !rec.ExpiresAt.After(now) {
			delete(s.rows, tok)
			n++
		}
	}
	return n, nil
}
