// Package auth provides Google OAuth2 authentication for crosslist.
//
// Credentials are stored in the "authorized user" JSON format written by
// Python's google-auth library, so a file produced by gcloud or google-auth
// tooling can be dropped in without logging in again.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// Scopes are the permissions crosslist asks for: reading and labelling
// mail, sending notifications, and editing the tracking sheet.
var Scopes = []string{
	gmail.GmailModifyScope,
	sheets.SpreadsheetsScope,
}

// ErrNotLoggedIn is returned when no stored credentials exist.
var ErrNotLoggedIn = errors.New("not logged in")

const expiryLayout = "2006-01-02T15:04:05.999999Z"

// authorizedUser is the google-auth "authorized user" credentials format.
type authorizedUser struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry,omitempty"`
}

// OAuthConfig returns the installed-app OAuth2 config for a client.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}
}

// LoadServices returns authenticated Gmail and Sheets services using the
// credentials stored at path.
func LoadServices(ctx context.Context, path string, log *slog.Logger) (*gmail.Service, *sheets.Service, error) {
	client, err := getClient(ctx, path, log)
	if err != nil {
		return nil, nil, fmt.Errorf("get oauth client: %w", err)
	}
	gsvc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, nil, fmt.Errorf("gmail service: %w", err)
	}
	ssvc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, nil, fmt.Errorf("sheets service: %w", err)
	}
	return gsvc, ssvc, nil
}

// getClient returns an HTTP client that refreshes the stored token and
// writes it back when it changes.
func getClient(ctx context.Context, path string, log *slog.Logger) (*http.Client, error) {
	config, token, err := Load(path)
	if err != nil {
		return nil, err
	}

	ts := config.TokenSource(ctx, token)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if fresh.AccessToken != token.AccessToken {
		if err := Save(path, config, fresh); err != nil {
			log.Warn("could not save refreshed token", "path", path, "err", err)
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

// Load reads stored credentials. It returns ErrNotLoggedIn when the file
// does not exist.
func Load(path string) (*oauth2.Config, *oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read credentials from %s: %w", path, err)
	}

	var au authorizedUser
	if err := json.Unmarshal(data, &au); err != nil {
		return nil, nil, fmt.Errorf("parse credentials: %w", err)
	}
	if au.RefreshToken == "" {
		return nil, nil, fmt.Errorf("credentials %s have no refresh token", path)
	}

	config := OAuthConfig(au.ClientID, au.ClientSecret)
	if au.TokenURI != "" {
		config.Endpoint.TokenURL = au.TokenURI
	}

	return config, &oauth2.Token{
		AccessToken:  au.Token,
		RefreshToken: au.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       parseExpiry(au.Expiry),
	}, nil
}

// Python writes ISO 8601 with microseconds; accept the common variants.
func parseExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{expiryLayout, "2006-01-02T15:04:05Z", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Save writes credentials in the authorized-user format with owner-only
// permissions.
func Save(path string, config *oauth2.Config, token *oauth2.Token) error {
	au := authorizedUser{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     config.Endpoint.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       config.Scopes,
	}
	if !token.Expiry.IsZero() {
		au.Expiry = token.Expiry.UTC().Format(expiryLayout)
	}

	data, err := json.MarshalIndent(au, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Logout removes stored credentials.
func Logout(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotLoggedIn
	}
	return err
}
