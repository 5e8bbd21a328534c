package oauth

import (
	"context"
	"net/http"
	"time"
)

// Profile is the normalized identity fetched from a provider. Email and
// AvatarURL are optional and empty when the provider omits them.
type Profile struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

// Provider is one social login integration. Implementations perform no local
// mutation; their only side effects are outbound HTTP calls.
type Provider interface {
	Name() string
	// AuthCodeURL builds the provider authorization URL, embedding client id,
	// redirect URI, scopes, response_type and the anti-forgery state value.
	AuthCodeURL(state string) string
	// Exchange turns an authorization code into a provider access token.
	Exchange(ctx context.Context, code string) (string, error)
	// FetchProfile resolves the provider access token into a normalized profile.
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}

// DefaultHTTPClient bounds every provider call; upstreams that hang surface
// as OAuth errors instead of stuck handlers.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// Registry holds the configured providers. It is built once at startup and
// passed to handlers explicitly; there is no package-level provider state.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}
