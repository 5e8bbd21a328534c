package users

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/duomatch/duomatch/internal/models"
	"github.com/duomatch/duomatch/internal/oauth"
)

func TestResolve_FirstLoginCreatesUser(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()

	u, err := svc.Resolve(ctx, "facebook", &oauth.Profile{
		ExternalID: "fb-1",
		Name:       "Alice",
		Email:      "alice@example.com",
		AvatarURL:  "https://graph.example.com/pic.jpg",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected an assigned id")
	}
	if u.ExternalProvider != "facebook" || u.Name != "Alice" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.IsAdmin {
		t.Fatal("new users must never be admins")
	}
	if u.CreatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}
}

func TestResolve_RepeatLoginReturnsSameUser(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "instagram", &oauth.Profile{ExternalID: "ig-1", Name: "bob"})
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	second, err := svc.Resolve(ctx, "instagram", &oauth.Profile{ExternalID: "ig-1", Name: "bob"})
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same identity must map to one user: %s vs %s", first.ID, second.ID)
	}
}

func TestResolve_SameExternalIDDifferentProviders(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()

	fb, err := svc.Resolve(ctx, "facebook", &oauth.Profile{ExternalID: "123", Name: "FB User"})
	if err != nil {
		t.Fatalf("facebook resolve failed: %v", err)
	}
	ig, err := svc.Resolve(ctx, "instagram", &oauth.Profile{ExternalID: "123", Name: "IG User"})
	if err != nil {
		t.Fatalf("instagram resolve failed: %v", err)
	}
	if fb.ID == ig.ID {
		t.Fatal("identity is the (id, provider) pair; providers must not collide")
	}
}

func TestResolve_SyncsChangedProfile(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	first, _ := svc.Resolve(ctx, "facebook", &oauth.Profile{ExternalID: "fb-2", Name: "Old Name"})
	updated, err := svc.Resolve(ctx, "facebook", &oauth.Profile{
		ExternalID: "fb-2",
		Name:       "New Name",
		Email:      "new@example.com",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if updated.Name != "New Name" || updated.Email != "new@example.com" {
		t.Fatalf("profile not synced: %+v", updated)
	}

	stored, _ := repo.FindByID(ctx, first.ID)
	if stored.Name != "New Name" {
		t.Fatalf("sync not persisted: %+v", stored)
	}
}

func TestResolve_KeepsAdminFlagAcrossSync(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	u, _ := svc.Resolve(ctx, "facebook", &oauth.Profile{ExternalID: "fb-3", Name: "Carol"})
	repo.mu.Lock()
	repo.byID[u.ID].IsAdmin = true
	repo.mu.Unlock()

	again, err := svc.Resolve(ctx, "facebook", &oauth.Profile{ExternalID: "fb-3", Name: "Carol Renamed"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	stored, _ := repo.FindByID(ctx, again.ID)
	if !stored.IsAdmin {
		t.Fatal("profile sync must not touch the admin flag")
	}
}

func TestResolve_RejectsUnknownProvider(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	_, err := svc.Resolve(context.Background(), "twitter", &oauth.Profile{ExternalID: "tw-1", Name: "X"})
	if err == nil {
		t.Fatal("expected validation error for unknown provider")
	}
}

func TestResolve_EmptyExternalID(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	if _, err := svc.Resolve(context.Background(), "facebook", &oauth.Profile{Name: "X"}); err == nil {
		t.Fatal("expected error for empty external id")
	}
	if _, err := svc.Resolve(context.Background(), "facebook", nil); err == nil {
		t.Fatal("expected error for nil profile")
	}
}

// raceRepo loses the insert: Create reports a duplicate while the winner's
// row becomes visible to the retry lookup.
type raceRepo struct {
	*MemoryRepository
	winner *models.User
	raced  bool
}

func (r *raceRepo) Create(ctx context.Context, u *models.User) error {
	if !r.raced {
		r.raced = true
		_ = r.MemoryRepository.Create(ctx, r.winner)
		return ErrDuplicate
	}
	return r.MemoryRepository.Create(ctx, u)
}

func TestResolve_LostInsertRaceRecovers(t *testing.T) {
	winner := &models.User{ExternalID: "fb-9", ExternalProvider: "facebook", Name: "Winner"}
	repo := &raceRepo{MemoryRepository: NewMemoryRepository(), winner: winner}
	svc := NewService(repo, nil)

	u, err := svc.Resolve(context.Background(), "facebook", &oauth.Profile{ExternalID: "fb-9", Name: "Winner"})
	if err != nil {
		t.Fatalf("resolve should recover from a lost race: %v", err)
	}
	if u.ID != winner.ID {
		t.Fatalf("expected the winner row, got %+v", u)
	}
}

type fakeMirror struct {
	url string
	err error
}

func (f *fakeMirror) MirrorFromURL(ctx context.Context, userID, srcURL string) (string, error) {
	return f.url, f.err
}

func TestResolve_AvatarMirror(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil).
		WithAvatarMirror(&fakeMirror{url: "https://cdn.duomatch.app/avatars/u.jpg"})

	u, err := svc.Resolve(context.Background(), "facebook", &oauth.Profile{
		ExternalID: "fb-4",
		Name:       "Dave",
		AvatarURL:  "https://graph.example.com/pic.jpg",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !strings.HasPrefix(u.AvatarURL, "https://cdn.duomatch.app/") {
		t.Fatalf("expected mirrored avatar url, got %q", u.AvatarURL)
	}
}

func TestResolve_AvatarMirrorFailureFallsBack(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil).
		WithAvatarMirror(&fakeMirror{err: errors.New("bucket down")})

	src := "https://graph.example.com/pic.jpg"
	u, err := svc.Resolve(context.Background(), "facebook", &oauth.Profile{
		ExternalID: "fb-5",
		Name:       "Erin",
		AvatarURL:  src,
	})
	if err != nil {
		t.Fatalf("mirror failure must not fail the login: %v", err)
	}
	if u.AvatarURL != src {
		t.Fatalf("expected provider url fallback, got %q", u.AvatarURL)
	}
}

func TestGetByID_Unknown(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	u, err := svc.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil for unknown id, got %+v", u)
	}
}
