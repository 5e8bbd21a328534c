package users

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/duomatch/duomatch/internal/models"
	"github.com/duomatch/duomatch/internal/oauth"
)

// AvatarMirror copies a provider-hosted avatar into our own storage and
// returns the durable URL. Optional; a nil mirror keeps provider URLs.
type AvatarMirror interface {
	MirrorFromURL(ctx context.Context, userID, srcURL string) (string, error)
}

// Service resolves provider profiles to application accounts: first login
// creates the account, every later login refreshes the profile fields.
type Service struct {
	repo     Repository
	mirror   AvatarMirror
	validate *validator.Validate
	log      *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		validate: validator.New(),
		log:      log,
	}
}

// WithAvatarMirror enables avatar mirroring on login.
func (s *Service) WithAvatarMirror(m AvatarMirror) *Service {
	s.mirror = m
	return s
}

// Resolve maps a verified provider profile to exactly one user. A lost
// insert race is recovered by re-reading: the identity index guarantees
// a winner exists.
func (s *Service) Resolve(ctx context.Context, provider string, p *oauth.Profile) (*models.User, error) {
	if p == nil || p.ExternalID == "" {
		return nil, fmt.Errorf("resolve user: empty external id")
	}

	existing, err := s.repo.FindByExternal(ctx, p.ExternalID, provider)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.syncProfile(ctx, existing, p)
	}

	u := &models.User{
		ExternalID:       p.ExternalID,
		ExternalProvider: provider,
		Name:             p.Name,
		Email:            p.Email,
		AvatarURL:        s.avatarFor(ctx, p.ExternalID, p.AvatarURL),
	}
	if err := s.validate.Struct(u); err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if err == ErrDuplicate {
			// another login for the same identity won the insert
			winner, ferr := s.repo.FindByExternal(ctx, p.ExternalID, provider)
			if ferr != nil {
				return nil, ferr
			}
			if winner == nil {
				return nil, fmt.Errorf("resolve user: duplicate insert but no winner row")
			}
			return s.syncProfile(ctx, winner, p)
		}
		return nil, err
	}
	s.log.Info("user created",
		zap.String("user_id", u.ID),
		zap.String("provider", provider))
	return u, nil
}

// syncProfile refreshes name/email/avatar from the provider when they
// changed since the last login.
func (s *Service) syncProfile(ctx context.Context, u *models.User, p *oauth.Profile) (*models.User, error) {
	avatar := s.avatarFor(ctx, u.ID, p.AvatarURL)
	if u.Name == p.Name && u.Email == p.Email && (avatar == "" || u.AvatarURL == avatar) {
		return u, nil
	}
	upd := ProfileUpdate{Name: p.Name, Email: p.Email, AvatarURL: avatar}
	if err := s.repo.UpdateProfile(ctx, u.ID, upd); err != nil {
		return nil, err
	}
	u.Name = p.Name
	u.Email = p.Email
	if avatar != "" {
		u.AvatarURL = avatar
	}
	return u, nil
}

// avatarFor mirrors the provider avatar when a mirror is configured. A
// mirror failure is not a login failure; the provider URL is kept.
func (s *Service) avatarFor(ctx context.Context, userID, srcURL string) string {
	if srcURL == "" || s.mirror == nil {
		return srcURL
	}
	mirrored, err := s.mirror.MirrorFromURL(ctx, userID, srcURL)
	if err != nil {
		s.log.Warn("avatar mirror failed, keeping provider url",
			zap.String("user_id", userID),
			zap.Error(err))
		return srcURL
	}
	return mirrored
}

// GetByID returns the user or (nil, nil) when no account exists.
func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.FindByID(ctx, id)
}
