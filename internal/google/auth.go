package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"celcatsync/internal/config"
)

// redirectOOB is the copy/paste redirect of the installed-app flow.
const redirectOOB = "urn:ietf:wg:oauth:2.0:oob"

const (
	tokenPrefix = "token-"
	tokenSuffix = ".json"
)

// OAuthConfig builds the OAuth2 client configuration. Explicit client
// credentials win over the credentials file.
func OAuthConfig(cfg config.GoogleConfig) (*oauth2.Config, error) {
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		return &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectOOB,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(cfg.CredentialsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s not found: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET or provide the credentials file", cfg.CredentialsFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	oauthCfg.RedirectURL = redirectOOB
	return oauthCfg, nil
}

// TokenPath is where the token of account lives.
func TokenPath(dir, account string) string {
	return filepath.Join(dir, tokenPrefix+account+tokenSuffix)
}

// SaveToken stores the token of account with owner-only permissions.
func SaveToken(dir, account string, token *oauth2.Token) (string, error) {
	if strings.TrimSpace(account) == "" || strings.ContainsAny(account, `/\`) {
		return "", fmt.Errorf("invalid account name %q", account)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("failed to encode token: %w", err)
	}
	path := TokenPath(dir, account)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write token file: %w", err)
	}
	return path, nil
}

// LoadToken reads the token of account.
func LoadToken(dir, account string) (*oauth2.Token, error) {
	data, err := os.ReadFile(TokenPath(dir, account))
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return tok, nil
}

// Accounts lists the accounts with a token in dir, sorted.
func Accounts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, tokenPrefix) || !strings.HasSuffix(name, tokenSuffix) {
			continue
		}
		accounts = append(accounts, strings.TrimSuffix(strings.TrimPrefix(name, tokenPrefix), tokenSuffix))
	}
	sort.Strings(accounts)
	return accounts, nil
}
