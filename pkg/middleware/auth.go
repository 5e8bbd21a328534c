package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/duomatch/duomatch/internal/apperrors"
	"github.com/duomatch/duomatch/internal/models"
	"github.com/duomatch/duomatch/internal/tokens"
)

// context keys set by the auth middleware
const (
	ContextUserKey   = "current_user"
	ContextClaimsKey = "claims"
	ContextTokenKey  = "access_token"
)

// TokenVerifier validates a raw access token and returns its payload.
type TokenVerifier interface {
	VerifyAccessToken(raw string) (*tokens.AccessClaims, error)
}

// UserSource resolves the claims' user id to a live account; (nil, nil)
// means the account no longer exists.
type UserSource interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Blacklist reports tokens revoked before their signed expiry.
type Blacklist interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// Auth builds the authorization middleware chain. Tiers nest: admin implies
// organizer implies authenticated.
type Auth struct {
	verifier  TokenVerifier
	users     UserSource
	blacklist Blacklist
}

func NewAuth(verifier TokenVerifier, users UserSource, blacklist Blacklist) *Auth {
	return &Auth{verifier: verifier, users: users, blacklist: blacklist}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// resolve verifies the token end to end: signature, expiry, blacklist and
// a live account behind the claims.
func (a *Auth) resolve(c *gin.Context, raw string) (*models.User, *tokens.AccessClaims, error) {
	claims, err := a.verifier.VerifyAccessToken(raw)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			return nil, nil, apperrors.NewTokenExpiredError()
		}
		return nil, nil, apperrors.NewInvalidTokenError()
	}

	if a.blacklist != nil {
		dead, err := a.blacklist.Contains(c.Request.Context(), raw)
		if err != nil {
			return nil, nil, apperrors.NewInternalError("token check failed")
		}
		if dead {
			return nil, nil, apperrors.NewInvalidTokenError()
		}
	}

	u, err := a.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		return nil, nil, apperrors.NewInternalError("user lookup failed")
	}
	if u == nil {
		// valid signature but the account is gone
		return nil, nil, apperrors.NewUnauthorizedError("account not found")
	}
	return u, claims, nil
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// RequireAuth rejects requests without a valid access token and a live
// account. On success the user is attached to the request context.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abort(c, apperrors.NewUnauthorizedError("authentication required"))
			return
		}
		u, claims, err := a.resolve(c, raw)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(ContextUserKey, u)
		c.Set(ContextClaimsKey, claims)
		c.Set(ContextTokenKey, raw)
		c.Next()
	}
}

// RequireOrganizer admits any authenticated user; whether they organize the
// event in question is an ownership check made at the resource.
func (a *Auth) RequireOrganizer() gin.HandlerFunc {
	return a.RequireAuth()
}

// RequireAdmin admits only accounts with the admin flag. The flag is read
// from the stored user, not the token, so demotion takes effect before the
// token expires.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abort(c, apperrors.NewUnauthorizedError("authentication required"))
			return
		}
		u, claims, err := a.resolve(c, raw)
		if err != nil {
			abort(c, err)
			return
		}
		if !u.IsAdmin {
			abort(c, apperrors.NewForbiddenError("admin access required"))
			return
		}
		c.Set(ContextUserKey, u)
		c.Set(ContextClaimsKey, claims)
		c.Set(ContextTokenKey, raw)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is presented and stays
// silent otherwise. It never rejects a request.
func (a *Auth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw != "" {
			if u, claims, err := a.resolve(c, raw); err == nil {
				c.Set(ContextUserKey, u)
				c.Set(ContextClaimsKey, claims)
				c.Set(ContextTokenKey, raw)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user attached by the middleware,
// or nil on anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
