package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

// DriveReadonlyScope is the only scope the loader requests.
const DriveReadonlyScope = "https://www.googleapis.com/auth/drive.readonly"

// Endpoint is Google's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// credentialsFile covers the JSON shapes accepted by TokenSourceFromFile:
// a service account key, an authorised user file written by gcloud, or a
// bare token with an access and optional refresh token.
type credentialsFile struct {
	Type string `json:"type,omitempty"`

	// service_account
	ClientEmail  string `json:"client_email,omitempty"`
	PrivateKey   string `json:"private_key,omitempty"`
	PrivateKeyID string `json:"private_key_id,omitempty"`
	TokenURI     string `json:"token_uri,omitempty"`

	// authorized_user and bare tokens
	ClientID     string    `json:"client_id,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	AccessToken  string    `json:"access_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// ErrNoCredentials is returned when no credentials file is configured.
var ErrNoCredentials = errors.New("google: no credentials file configured")

// TokenSourceFromFile reads credentials from path and returns a token source
// scoped to read-only Drive access.
func TokenSourceFromFile(ctx context.Context, path string) (oauth2.TokenSource, error) {
	if path == "" {
		return nil, ErrNoCredentials
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	return TokenSourceFromJSON(ctx, data)
}

// TokenSourceFromJSON is TokenSourceFromFile for in-memory credentials.
func TokenSourceFromJSON(ctx context.Context, data []byte) (oauth2.TokenSource, error) {
	var f credentialsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	switch {
	case f.Type == "service_account":
		if f.ClientEmail == "" || f.PrivateKey == "" {
			return nil, errors.New("google: service account key is missing client_email or private_key")
		}
		cfg := &jwt.Config{
			Email:        f.ClientEmail,
			PrivateKey:   []byte(f.PrivateKey),
			PrivateKeyID: f.PrivateKeyID,
			Scopes:       []string{DriveReadonlyScope},
			TokenURL:     f.TokenURI,
		}
		if cfg.TokenURL == "" {
			cfg.TokenURL = Endpoint.TokenURL
		}
		return cfg.TokenSource(ctx), nil

	case f.RefreshToken != "" && f.ClientID != "":
		cfg := &oauth2.Config{
			ClientID:     f.ClientID,
			ClientSecret: f.ClientSecret,
			Endpoint:     Endpoint,
			Scopes:       []string{DriveReadonlyScope},
		}
		tok := &oauth2.Token{
			AccessToken:  f.AccessToken,
			RefreshToken: f.RefreshToken,
			TokenType:    f.TokenType,
			Expiry:       f.Expiry,
		}
		return cfg.TokenSource(ctx, tok), nil

	case f.AccessToken != "":
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: f.AccessToken,
			TokenType:   f.TokenType,
			Expiry:      f.Expiry,
		}), nil
	}

	return nil, errors.New("google: unrecognised credentials file")
}
