package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"celcatsync/internal/config"
	"celcatsync/internal/models"
)

func TestToGoogleEvent(t *testing.T) {
	start := time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	ev := models.Event{Kind: "TP", Title: "Go", Details: "TP\nSalle 12", Location: "Salle 12", Start: &start, End: &end}

	ge := toGoogleEvent(ev, "1@celcatsync")
	assert.Equal(t, "1@celcatsync", ge.ICalUID)
	assert.Equal(t, "TP - Go", ge.Summary)
	assert.Equal(t, "TP\nSalle 12", ge.Description)
	assert.Equal(t, "Salle 12", ge.Location)
	assert.Equal(t, "opaque", ge.Transparency)
	require.NotNil(t, ge.Start)
	assert.Equal(t, "2024-03-04T08:30:00Z", ge.Start.DateTime)
	require.NotNil(t, ge.End)
	assert.Equal(t, "2024-03-04T10:00:00Z", ge.End.DateTime)
}

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig(config.GoogleConfig{ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.ClientID)
	assert.Equal(t, "secret", cfg.ClientSecret)
	assert.Equal(t, redirectOOB, cfg.RedirectURL)
	assert.NotEmpty(t, cfg.Scopes)

	_, err = OAuthConfig(config.GoogleConfig{CredentialsFile: filepath.Join(t.TempDir(), "credentials.json")})
	assert.ErrorContains(t, err, "not found")
}

func TestTokens(t *testing.T) {
	dir := t.TempDir()
	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	path, err := SaveToken(dir, "work", tok)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "token-work.json"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadToken(dir, "work")
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)
	assert.Equal(t, "refresh", loaded.RefreshToken)

	_, err = SaveToken(dir, "personal", tok)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644))
	accounts, err := Accounts(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"personal", "work"}, accounts)

	_, err = SaveToken(dir, "../escape", tok)
	assert.Error(t, err)
	_, err = LoadToken(dir, "missing")
	assert.Error(t, err)
}
