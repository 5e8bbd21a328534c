package users

import (
	"context"
	"errors"

	"github.com/duomatch/duomatch/internal/models"
)

// ErrDuplicate means an insert collided with the unique
// (externalId, externalProvider) index.
var ErrDuplicate = errors.New("user already exists for external identity")

// ProfileUpdate carries the provider-sourced fields refreshed on login.
type ProfileUpdate struct {
	Name      string
	Email     string
	AvatarURL string
}

// Repository defines persistence operations for users. Lookups return
// (nil, nil) when no user matches.
type Repository interface {
	FindByExternal(ctx context.Context, externalID, provider string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// Create inserts a new user; ErrDuplicate if the external identity
	// is already taken.
	Create(ctx context.Context, u *models.User) error
	UpdateProfile(ctx context.Context, id string, p ProfileUpdate) error
}
