package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/duomatch/duomatch/internal/models"
	"github.com/duomatch/duomatch/internal/sessions"
	"github.com/duomatch/duomatch/internal/tokens"
)

// fakeVerifier maps fixed token strings to outcomes.
type fakeVerifier struct{}

func (f *fakeVerifier) VerifyAccessToken(raw string) (*tokens.AccessClaims, error) {
	switch raw {
	case "good-user", "good-admin", "good-ghost", "black-token":
		return &tokens.AccessClaims{UserID: raw, UserName: "Test", IsAdmin: raw == "good-admin"}, nil
	case "expired":
		return nil, tokens.ErrTokenExpired
	default:
		return nil, tokens.ErrInvalidToken
	}
}

type fakeUsers struct{}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	switch id {
	case "good-user", "black-token":
		return &models.User{ID: id, Name: "Test"}, nil
	case "good-admin":
		return &models.User{ID: id, Name: "Admin", IsAdmin: true}, nil
	default:
		return nil, nil
	}
}

func newAuthRouter(bl Blacklist) *gin.Engine {
	g := gin.New()
	g.Use(ErrorHandler(nil))
	auth := NewAuth(&fakeVerifier{}, &fakeUsers{}, bl)

	g.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUser(c).ID})
	})
	g.GET("/admin", auth.RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUser(c).ID})
	})
	g.GET("/organizer", auth.RequireOrganizer(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	g.GET("/feed", auth.OptionalAuth(), func(c *gin.Context) {
		if u := CurrentUser(c); u != nil {
			c.JSON(http.StatusOK, gin.H{"user_id": u.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": nil})
	})
	return g
}

func do(g *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		CodeError string `json:"code_error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.CodeError
}

func TestRequireAuth_NoHeader(t *testing.T) {
	g := newAuthRouter(nil)
	w := do(g, "/me", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "AUTH_REQUIRED", errorCode(t, w))
}

func TestRequireAuth_BadScheme(t *testing.T) {
	g := newAuthRouter(nil)
	w := do(g, "/me", "Basic abc")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "AUTH_REQUIRED", errorCode(t, w))
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	g := newAuthRouter(nil)
	w := do(g, "/me", "Bearer expired")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "TOKEN_EXPIRED", errorCode(t, w))
}

func TestRequireAuth_GarbageToken(t *testing.T) {
	g := newAuthRouter(nil)
	w := do(g, "/me", "Bearer garbage")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "INVALID_TOKEN", errorCode(t, w))
}

func TestRequireAuth_ValidToken(t *testing.T) {
	g := newAuthRouter(nil)
	w := do(g, "/me", "Bearer good-user")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "good-user")
}

func TestRequireAuth_DeletedAccount(t *testing.T) {
	g := newAuthRouter(nil)
	// valid signature, but no account behind the claims
	w := do(g, "/me", "Bearer good-ghost")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "AUTH_REQUIRED", errorCode(t, w))
}

func TestRequireAdmin(t *testing.T) {
	g := newAuthRouter(nil)

	w := do(g, "/admin", "Bearer good-admin")
	require.Equal(t, http.StatusOK, w.Code)

	// authenticated but not admin: forbidden, not unauthorized
	w2 := do(g, "/admin", "Bearer good-user")
	require.Equal(t, http.StatusForbidden, w2.Code)
	require.Equal(t, "FORBIDDEN", errorCode(t, w2))

	// anonymous: unauthorized, not forbidden
	w3 := do(g, "/admin", "")
	require.Equal(t, http.StatusUnauthorized, w3.Code)
}

func TestRequireOrganizer_AdmitsAuthenticated(t *testing.T) {
	g := newAuthRouter(nil)
	require.Equal(t, http.StatusOK, do(g, "/organizer", "Bearer good-user").Code)
	require.Equal(t, http.StatusUnauthorized, do(g, "/organizer", "").Code)
}

func TestOptionalAuth(t *testing.T) {
	g := newAuthRouter(nil)

	// anonymous passes
	w := do(g, "/feed", "")
	require.Equal(t, http.StatusOK, w.Code)

	// a bad token is ignored rather than rejected
	w2 := do(g, "/feed", "Bearer garbage")
	require.Equal(t, http.StatusOK, w2.Code)

	// a good token attaches the user
	w3 := do(g, "/feed", "Bearer good-user")
	require.Equal(t, http.StatusOK, w3.Code)
	require.Contains(t, w3.Body.String(), "good-user")
}

func TestRequireAuth_RejectsBlacklistedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	bl := sessions.NewBlacklist(client)

	require.NoError(t, bl.Add(context.Background(), "black-token", 5*time.Second))

	g := newAuthRouter(bl)
	w := do(g, "/me", "Bearer black-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "INVALID_TOKEN", errorCode(t, w))
}
