package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/duomatch/duomatch/internal/models"
)

const minSecretLen = 32

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrSecretTooShort is returned by NewManager for signing secrets
	// shorter than 32 characters. This is a hard precondition.
	ErrSecretTooShort = errors.New("jwt secret must be at least 32 characters")

	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims is the access token payload. It is derived from the user at
// mint time and never written back.
type AccessClaims struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the user id; whether the token is still
// redeemable is the refresh store's concern, not the verifier's.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Pair is an access/refresh token pair minted together.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Manager mints and verifies HMAC-signed tokens. Verification is pinned to
// HS256; the algorithm named in a token header is never trusted.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager builds a token manager. It fails when the secret is shorter
// than 32 characters.
func NewManager(secret string, accessTTL, refreshTTL time.Duration) (*Manager, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL reports the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// MintAccessToken creates a signed access token embedding user id, display
// name and the admin flag.
func (m *Manager) MintAccessToken(u *models.User) (string, error) {
	now := m.now()
	claims := &AccessClaims{
		UserID:   u.ID,
		UserName: u.Name,
		IsAdmin:  u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// MintRefreshToken creates a signed refresh token carrying only the user id.
// The jti claim makes every token string unique, so the store can keep one
// row per issued token.
func (m *Manager) MintRefreshToken(u *models.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.refreshTTL)
	claims := &RefreshClaims{
		UserID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// MintTokenPair issues an access and a refresh token concurrently; neither
// depends on the other. The returned time is the refresh token expiry.
func (m *Manager) MintTokenPair(u *models.User) (*Pair, time.Time, error) {
	var (
		access string
		aerr   error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		access, aerr = m.MintAccessToken(u)
	}()
	refresh, expiresAt, rerr := m.MintRefreshToken(u)
	<-done
	if aerr != nil {
		return nil, time.Time{}, aerr
	}
	if rerr != nil {
		return nil, time.Time{}, rerr
	}
	return &Pair{Access: access, Refresh: refresh}, expiresAt, nil
}

// VerifyAccessToken validates signature and expiry and returns the payload.
// Expired tokens fail with ErrTokenExpired, everything else with
// ErrInvalidToken, so callers can tell the two apart.
func (m *Manager) VerifyAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken validates signature and expiry only; persistence (the
// rotation ledger) is checked by the refresh store.
func (m *Manager) VerifyRefreshToken(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) parse(raw string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
