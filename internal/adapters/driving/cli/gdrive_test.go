//nolint:noctx // Test file uses http.Get for convenience
package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/connectors/google"
)

func TestGdriveLoginCmd_RequiresClientID(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("gdrive", "login")

	assert.ErrorContains(t, err, `required flag(s) "client-id" not set`)
}

func TestGdriveLoginCmd_SavesCredentials(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	cs := useFileConfig(t)

	var gotVerifier string
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "code-123", r.PostForm.Get("code"))
		gotVerifier = r.PostForm.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.new","refresh_token":"1//r","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	originalEndpoint := google.Endpoint
	google.Endpoint.TokenURL = tokenSrv.URL
	defer func() { google.Endpoint = originalEndpoint }()

	// Play the browser: follow the consent redirect straight back.
	openBrowser = func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.Equal(t, "offline", q.Get("access_type"))
		go func() {
			resp, err := http.Get(q.Get("redirect_uri") + "?code=code-123&state=" + url.QueryEscape(q.Get("state")))
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	out, err := execute("gdrive", "login", "--client-id", "cid", "--client-secret", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "accounts.google.com")
	assert.Contains(t, out, "Saved Drive credentials to ")
	assert.NotEmpty(t, gotVerifier)

	path := cs.GetString(file.KeyDriveCredentials)
	require.NotEmpty(t, path)
	ts, err := google.TokenSourceFromFile(context.Background(), path)
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "ya29.new", tok.AccessToken)
}
