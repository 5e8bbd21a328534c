package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duomatch/duomatch/internal/apperrors"
	"github.com/duomatch/duomatch/internal/oauth"
	"github.com/duomatch/duomatch/internal/refresh"
	"github.com/duomatch/duomatch/internal/sessions"
	"github.com/duomatch/duomatch/internal/tokens"
	"github.com/duomatch/duomatch/internal/users"
	"github.com/duomatch/duomatch/pkg/metrics"
	"github.com/duomatch/duomatch/pkg/middleware"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 300 // seconds
)

// AuthHandler holds dependencies
type AuthHandler struct {
	providers *oauth.Registry
	usersSvc  *users.Service
	sessions  *sessions.Service
	refresh   refresh.Store
	tokens    *tokens.Manager
	blacklist *sessions.Blacklist
	log       *zap.Logger
}

func NewAuthHandler(
	providers *oauth.Registry,
	u *users.Service,
	s *sessions.Service,
	r refresh.Store,
	t *tokens.Manager,
	bl *sessions.Blacklist,
	log *zap.Logger,
) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		providers: providers,
		usersSvc:  u,
		sessions:  s,
		refresh:   r,
		tokens:    t,
		blacklist: bl,
		log:       log,
	}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup, auth *middleware.Auth) {
	a := rg.Group("/auth")
	a.GET("/:provider", h.Begin)
	a.GET("/:provider/callback", h.Callback)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
	a.GET("/me", auth.RequireAuth(), h.Me)
}

// Begin redirects to the provider's consent screen. The state value is
// bound to the browser through a short-lived cookie and checked on the
// way back.
func (h *AuthHandler) Begin(c *gin.Context) {
	p, ok := h.providers.Get(c.Param("provider"))
	if !ok {
		_ = c.Error(apperrors.NewValidationError("unknown oauth provider"))
		c.Abort()
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, stateCookieTTL, "/", "", false, true)
	c.Redirect(http.StatusFound, p.AuthCodeURL(state))
}

// Callback finishes the login: state check, code exchange, profile fetch,
// identity resolution, token mint and session creation. The response is an
// HTML page that posts the result back to the opener window.
func (h *AuthHandler) Callback(c *gin.Context) {
	providerName := c.Param("provider")
	p, ok := h.providers.Get(providerName)
	if !ok {
		h.completionError(c, "unknown oauth provider")
		return
	}

	cookieState, cerr := c.Cookie(stateCookieName)
	// single use: the state dies with this callback either way
	c.SetCookie(stateCookieName, "", -1, "/", "", false, true)
	if cerr != nil || cookieState == "" || c.Query("state") != cookieState {
		metrics.Logins.WithLabelValues(providerName, "failure").Inc()
		h.completionError(c, "oauth state mismatch")
		return
	}

	code := c.Query("code")
	if code == "" {
		metrics.Logins.WithLabelValues(providerName, "failure").Inc()
		h.completionError(c, "oauth code missing")
		return
	}

	ctx := c.Request.Context()
	accessToken, err := p.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("oauth exchange failed", zap.String("provider", providerName), zap.Error(err))
		metrics.Logins.WithLabelValues(providerName, "failure").Inc()
		h.completionError(c, "oauth authentication failed")
		return
	}

	profile, err := p.FetchProfile(ctx, accessToken)
	if err != nil {
		h.log.Warn("oauth profile fetch failed", zap.String("provider", providerName), zap.Error(err))
		metrics.Logins.WithLabelValues(providerName, "failure").Inc()
		h.completionError(c, "oauth authentication failed")
		return
	}

	user, err := h.usersSvc.Resolve(ctx, providerName, profile)
	if err != nil {
		h.log.Error("identity resolution failed", zap.String("provider", providerName), zap.Error(err))
		metrics.Logins.WithLabelValues(providerName, "failure").Inc()
		h.completionError(c, "failed to save user information")
		return
	}

	// a fresh login invalidates every outstanding refresh token
	if _, err := h.refresh.RevokeAll(ctx, user.ID); err != nil {
		h.log.Warn("revoking prior refresh tokens failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	pair, refreshExpiry, err := h.tokens.MintTokenPair(user)
	if err != nil {
		metrics.Logins.WithLabelValues(providerName, "failure").Inc()
		h.completionError(c, "token generation failed")
		return
	}
	if err := h.refresh.Issue(ctx, user.ID, pair.Refresh, refreshExpiry); err != nil {
		metrics.Logins.WithLabelValues(providerName, "failure").Inc()
		h.completionError(c, "token generation failed")
		return
	}

	sess, err := h.sessions.Create(ctx, user.ID, map[string]string{"user_name": user.Name}, sessions.DefaultTTL)
	if err != nil {
		h.log.Error("session create failed", zap.String("user_id", user.ID), zap.Error(err))
		metrics.Logins.WithLabelValues(providerName, "failure").Inc()
		h.completionError(c, "session creation failed")
		return
	}

	metrics.Logins.WithLabelValues(providerName, "success").Inc()
	h.log.Info("login completed",
		zap.String("provider", providerName),
		zap.String("user_id", user.ID))

	h.completionSuccess(c, gin.H{
		"user":       user,
		"tokens":     pair,
		"session_id": sess.ID,
	})
}

// RefreshRequest is the refresh grant body.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates the presented refresh token: verify, redeem the stored
// row, mint and persist a new pair. A replayed token fails at the redeem
// step because rotation already deleted its row.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		c.Abort()
		return
	}

	if _, err := h.tokens.VerifyRefreshToken(req.RefreshToken); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		if errors.Is(err, tokens.ErrTokenExpired) {
			_ = c.Error(apperrors.NewTokenExpiredError())
		} else {
			_ = c.Error(apperrors.NewInvalidTokenError())
		}
		c.Abort()
		return
	}

	ctx := c.Request.Context()
	userID, err := h.refresh.Redeem(ctx, req.RefreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		if errors.Is(err, refresh.ErrTokenNotFound) {
			// revoked, already rotated, or expired out of the ledger
			_ = c.Error(apperrors.NewInvalidTokenError())
		} else {
			_ = c.Error(apperrors.NewInternalError("refresh failed"))
		}
		c.Abort()
		return
	}

	user, err := h.usersSvc.GetByID(ctx, userID)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		_ = c.Error(apperrors.NewInternalError("user lookup failed"))
		c.Abort()
		return
	}
	if user == nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		_ = c.Error(apperrors.NewUnauthorizedError("account not found"))
		c.Abort()
		return
	}

	pair, refreshExpiry, err := h.tokens.MintTokenPair(user)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		_ = c.Error(apperrors.NewInternalError("token generation failed"))
		c.Abort()
		return
	}
	if err := h.refresh.Issue(ctx, user.ID, pair.Refresh, refreshExpiry); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		_ = c.Error(apperrors.NewInternalError("token generation failed"))
		c.Abort()
		return
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"tokens": pair})
}

// LogoutRequest carries the credentials to tear down; both are optional.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
}

// Logout is fail-open: each teardown step is best effort and the response
// is 200 regardless, so a client can always drop its local state.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	if req.RefreshToken != "" {
		if err := h.refresh.Revoke(ctx, req.RefreshToken); err != nil {
			h.log.Warn("refresh token revoke failed", zap.Error(err))
		}
	}
	if req.SessionID != "" {
		if err := h.sessions.Delete(ctx, req.SessionID); err != nil {
			h.log.Warn("session delete failed", zap.Error(err))
		}
	}

	// blacklist the presented access token for its remaining lifetime
	if raw := bearerToken(c); raw != "" {
		if exp, err := parseExpFromJWT(raw); err == nil {
			if ttl := time.Until(exp); ttl > 0 {
				if err := h.blacklist.Add(ctx, raw, ttl); err != nil {
					h.log.Warn("access token blacklist failed", zap.Error(err))
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated user attached by the middleware.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// parseExpFromJWT decodes the payload and returns the exp claim. Payload-only
// parsing, no signature check; good enough for computing a blacklist TTL.
func parseExpFromJWT(tok string) (time.Time, error) {
	parts := strings.Split(tok, ".")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid token")
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	var payload struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return time.Time{}, err
	}
	if payload.Exp == 0 {
		return time.Time{}, fmt.Errorf("no exp claim")
	}
	return time.Unix(payload.Exp, 0), nil
}

// completionSuccess renders the popup completion page that hands the login
// result to the opener via postMessage.
func (h *AuthHandler) completionSuccess(c *gin.Context, payload gin.H) {
	h.completion(c, http.StatusOK, gin.H{"type": "auth_success", "payload": payload}, "Login complete, returning...")
}

func (h *AuthHandler) completionError(c *gin.Context, msg string) {
	h.completion(c, http.StatusOK, gin.H{"type": "auth_error", "payload": gin.H{"error": msg}}, "Login failed, returning...")
}

func (h *AuthHandler) completion(c *gin.Context, status int, message gin.H, text string) {
	body, err := json.Marshal(message)
	if err != nil {
		_ = c.Error(apperrors.NewInternalError("failed to serialize login result"))
		c.Abort()
		return
	}
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <title>duomatch login</title>
  <script>
      (function() {
          var response = %s;
          if (window.opener) {
              window.opener.postMessage(response, '*');
          }
          setTimeout(function() { window.close(); }, 1000);
      })();
  </script>
</head>
<body>
  <p>%s</p>
</body>
</html>`, string(body), text)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(status, html)
}
