package google

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// OAuthConfig returns the installed-app configuration for read-only Drive
// access through redirectURL.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{DriveReadonlyScope},
	}
}

// SaveAuthorizedUser writes tok as an authorized_user credentials file that
// TokenSourceFromFile accepts. The file is readable by the owner only.
func SaveAuthorizedUser(path string, cfg *oauth2.Config, tok *oauth2.Token) error {
	if tok.RefreshToken == "" {
		return fmt.Errorf("google: token has no refresh token")
	}

	data, err := json.MarshalIndent(credentialsFile{
		Type:         "authorized_user",
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: tok.RefreshToken,
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
