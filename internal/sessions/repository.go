package sessions

import "context"

// Repository provides session persistence. An expired row is
// indistinguishable from a missing one at the read boundary: Get returns
// (nil, nil) for both.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Save replaces an existing session record (payload and expiry).
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	// SweepExpired removes rows whose expiry has passed and reports the count.
	SweepExpired(ctx context.Context) (int64, error)
}
