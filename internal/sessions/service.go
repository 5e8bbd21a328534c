package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/duomatch/duomatch/internal/models"
)

// ErrNotFound covers both a missing and an expired session; callers cannot
// tell the two apart.
var ErrNotFound = errors.New("session not found")

// UserSource resolves a user id to a user record. Implemented by the users
// service; (nil, nil) means unknown.
type UserSource interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Service wraps the repository with id generation and sliding expiry.
type Service struct {
	repo  Repository
	users UserSource
	now   func() time.Time
}

func NewService(repo Repository, users UserSource) *Service {
	return &Service{repo: repo, users: users, now: time.Now}
}

// newID returns a 32-byte random hex string. Session ids must be
// unguessable, so this always draws from crypto/rand.
func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create stores a new session. A zero or negative ttl produces an
// already-expired session, unreadable from the moment it is written.
func (s *Service) Create(ctx context.Context, userID string, data map[string]string, ttl time.Duration) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &Session{
		ID:        id,
		UserID:    userID,
		Data:      data,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Touch extends the session's expiry to now+ttl, regardless of the TTL it
// was created with.
func (s *Service) Touch(ctx context.Context, id string, ttl time.Duration) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.ExpiresAt = s.now().UTC().Add(ttl)
	return s.repo.Save(ctx, sess)
}

// Update replaces the payload and extends the expiry like Touch.
func (s *Service) Update(ctx context.Context, id string, data map[string]string, ttl time.Duration) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.Data = data
	sess.ExpiresAt = s.now().UTC().Add(ttl)
	return s.repo.Save(ctx, sess)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.repo.DeleteAllForUser(ctx, userID)
}

func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.SweepExpired(ctx)
}

// ResolveUser looks up the user behind a session. A dead session never
// yields a user, and a session whose user vanished reads as not found.
func (s *Service) ResolveUser(ctx context.Context, id string) (*models.User, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}
