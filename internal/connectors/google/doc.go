// Package google provides shared infrastructure for the Google Drive loader.
//
// It contains:
//   - Credential loading for service account keys and authorised user tokens
//   - The Drive service factory
//   - Error mapping for common Google API errors (401, 403, 404, 429)
//   - Rate limiting to respect Google API quotas
//
// # Usage
//
//	ts, err := google.TokenSourceFromFile(ctx, path)
//	svc, err := google.NewDriveService(ctx, ts)
//
// # OAuth2 Scopes
//
// The loader only reads, so credentials are requested with
// https://www.googleapis.com/auth/drive.readonly.
package google
