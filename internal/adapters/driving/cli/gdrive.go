package cli

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/oauth"
	"github.com/custodia-labs/sercha-rag/internal/connectors/google"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// loginTimeout bounds how long gdrive login waits for the browser.
const loginTimeout = 5 * time.Minute

var gdriveCmd = &cobra.Command{
	Use:   "gdrive",
	Short: "Google Drive access",
}

var gdriveLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorise read-only Drive access",
	Long: `Opens the Google consent page and stores a refreshable token for
ingest-drive. Create an OAuth client of type "Desktop app" in the Google Cloud
console and pass its id and secret.

The token is written next to config.toml and gdrive.credentials_file is set
to point at it.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipServices: "true"},
	RunE:        runGdriveLogin,
}

var (
	gdriveClientID     string
	gdriveClientSecret string
	gdrivePort         int
	gdriveNoBrowser    bool

	openBrowser = oauth.OpenBrowser
)

func init() {
	gdriveLoginCmd.Flags().StringVar(&gdriveClientID, "client-id", "", "OAuth client id")
	gdriveLoginCmd.Flags().StringVar(&gdriveClientSecret, "client-secret", "", "OAuth client secret")
	gdriveLoginCmd.Flags().IntVar(&gdrivePort, "port", 0, "local callback port (0 picks a free port)")
	gdriveLoginCmd.Flags().BoolVar(&gdriveNoBrowser, "no-browser", false, "print the URL without opening a browser")
	_ = gdriveLoginCmd.MarkFlagRequired("client-id")

	gdriveCmd.AddCommand(gdriveLoginCmd)
	rootCmd.AddCommand(gdriveCmd)
}

func runGdriveLogin(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	server := oauth.NewCallbackServer(gdrivePort, state)
	if err := server.Start(); err != nil {
		return err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Warn("Stopping callback server: %v", err)
		}
	}()

	cfg := google.OAuthConfig(gdriveClientID, gdriveClientSecret, server.RedirectURI())
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	cmd.Printf("Open this URL to authorise Drive access:\n\n  %s\n\n", authURL)
	if !gdriveNoBrowser {
		if err := openBrowser(authURL); err != nil {
			logger.Debug("Could not open browser: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	code, err := server.WaitForCode(ctx)
	if err != nil {
		return err
	}

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	path := filepath.Join(filepath.Dir(configStore.Path()), "gdrive_token.json")
	if err := google.SaveAuthorizedUser(path, cfg, tok); err != nil {
		return fmt.Errorf("saving Drive credentials: %w", err)
	}
	if err := configStore.Set(file.KeyDriveCredentials, path); err != nil {
		return err
	}
	if err := configStore.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	cmd.Printf("Saved Drive credentials to %s\n", path)
	return nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
