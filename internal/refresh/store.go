package refresh

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned when a redeemed token is absent from the
// ledger or already expired. A rotation-step replay hits this too: the first
// redemption deletes the row, so the second can never succeed.
var ErrTokenNotFound = errors.New("refresh token not found or expired")

// Token is one row of the rotation ledger. A user may hold several live
// tokens at once (one per device).
type Token struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    string    `bson:"userId" json:"user_id"`
	Token     string    `bson:"token" json:"-"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expires_at"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// Store is the persisted rotation ledger. A token is redeemable only while
// its row exists and is unexpired; Redeem removes the row atomically so a
// concurrent redemption of the same string fails.
type Store interface {
	Issue(ctx context.Context, userID, token string, expiresAt time.Time) error
	// Redeem deletes the matching live row and returns its user id.
	Redeem(ctx context.Context, token string) (string, error)
	// Revoke deletes a single token without redeeming it (logout).
	Revoke(ctx context.Context, token string) error
	// RevokeAll deletes every token the user holds (logout everywhere).
	RevokeAll(ctx context.Context, userID string) (int64, error)
	// SweepExpired removes expired rows and reports how many were deleted.
	// Idempotent and safe to run on any schedule.
	SweepExpired(ctx context.Context) (int64, error)
}
