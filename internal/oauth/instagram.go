package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/instagram"

	"github.com/duomatch/duomatch/internal/apperrors"
)

const instagramProfileURL = "https://graph.instagram.com/me"

// Instagram implements Provider against the Instagram Basic Display API.
// The API exposes no email or avatar; those profile fields stay empty.
type Instagram struct {
	conf       *oauth2.Config
	client     *http.Client
	profileURL string
}

func NewInstagram(clientID, clientSecret, redirectURL string, client *http.Client) *Instagram {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &Instagram{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"user_profile"},
			Endpoint:     instagram.Endpoint,
		},
		client:     client,
		profileURL: instagramProfileURL,
	}
}

func (i *Instagram) Name() string { return "instagram" }

func (i *Instagram) AuthCodeURL(state string) string {
	return i.conf.AuthCodeURL(state)
}

func (i *Instagram) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, i.client)
	tok, err := i.conf.Exchange(ctx, code)
	if err != nil {
		return "", apperrors.NewOAuthError("instagram code exchange failed", err)
	}
	return tok.AccessToken, nil
}

func (i *Instagram) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	q := url.Values{}
	q.Set("fields", "id,username")
	q.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.profileURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewOAuthError("instagram profile request failed", err)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, apperrors.NewOAuthError("instagram profile fetch failed", err)
	}
	defer resp.Body.Close()

	var body struct {
		ID       string      `json:"id"`
		Username string      `json:"username"`
		Error    *graphError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.NewOAuthError("instagram profile response not parseable", err)
	}
	if body.Error != nil {
		return nil, apperrors.NewOAuthError("instagram profile fetch rejected", fmt.Errorf("api error %d: %s", body.Error.Code, body.Error.Message))
	}
	if body.ID == "" {
		return nil, apperrors.NewOAuthError("instagram profile missing id", nil)
	}
	return &Profile{ExternalID: body.ID, Name: body.Username}, nil
}
