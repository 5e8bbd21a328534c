package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/duomatch/duomatch/internal/apperrors"
)

const facebookProfileURL = "https://graph.facebook.com/v18.0/me"

// Facebook implements Provider against the Facebook Graph API.
type Facebook struct {
	conf       *oauth2.Config
	client     *http.Client
	profileURL string
}

func NewFacebook(clientID, clientSecret, redirectURL string, client *http.Client) *Facebook {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &Facebook{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebook.Endpoint,
		},
		client:     client,
		profileURL: facebookProfileURL,
	}
}

func (f *Facebook) Name() string { return "facebook" }

func (f *Facebook) AuthCodeURL(state string) string {
	return f.conf.AuthCodeURL(state)
}

func (f *Facebook) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	tok, err := f.conf.Exchange(ctx, code)
	if err != nil {
		return "", apperrors.NewOAuthError("facebook code exchange failed", err)
	}
	return tok.AccessToken, nil
}

// graphError is the error envelope the Graph API returns alongside (or
// instead of) a payload.
type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (f *Facebook) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	q := url.Values{}
	q.Set("fields", "id,name,email,picture.type(large)")
	q.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.profileURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewOAuthError("facebook profile request failed", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewOAuthError("facebook profile fetch failed", err)
	}
	defer resp.Body.Close()

	var body struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
		Error *graphError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.NewOAuthError("facebook profile response not parseable", err)
	}
	if body.Error != nil {
		return nil, apperrors.NewOAuthError("facebook profile fetch rejected", fmt.Errorf("graph error %d: %s", body.Error.Code, body.Error.Message))
	}
	if body.ID == "" {
		return nil, apperrors.NewOAuthError("facebook profile missing id", nil)
	}
	return &Profile{
		ExternalID: body.ID,
		Name:       body.Name,
		Email:      body.Email,
		AvatarURL:  body.Picture.Data.URL,
	}, nil
}
