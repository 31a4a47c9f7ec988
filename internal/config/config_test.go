package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEYS", "AIza-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, DefaultQuotaLimit, cfg.QuotaLimit)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEYS", "AIza-test")
	t.Setenv("FINDER_LISTEN_ADDR", ":9090")
	t.Setenv("FINDER_CACHE_TTL", "45m")
	t.Setenv("FINDER_QUOTA_LIMIT", "50000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 45*time.Minute, cfg.CacheTTL)
	assert.Equal(t, int64(50_000), cfg.QuotaLimit)
}

func TestLoadRequiresCredentialSource(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEYS", "")
	t.Setenv("FINDER_CREDENTIALS_FILE", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestCredentialsFromEnvKeys(t *testing.T) {
	cfg := &Config{APIKeys: "AIza-one, AIza-two,,", QuotaLimit: DefaultQuotaLimit}

	creds, err := cfg.Credentials()
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "key-1", creds[0].ID)
	assert.Equal(t, "AIza-one", creds[0].Key)
	assert.Equal(t, "AIza-two", creds[1].Key)
	assert.Equal(t, DefaultQuotaLimit, creds[1].QuotaLimit)
}

func TestCredentialsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	body := `credentials:
  - id: primary
    label: Main project key
    key: AIza-primary
    quota_limit: 1000000
  - label: Backup key
    key: AIza-backup
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg := &Config{CredentialsFile: path, QuotaLimit: DefaultQuotaLimit}
	creds, err := cfg.Credentials()
	require.NoError(t, err)
	require.Len(t, creds, 2)

	assert.Equal(t, "primary", creds[0].ID)
	assert.Equal(t, int64(1_000_000), creds[0].QuotaLimit)
	// Missing id and quota fall back to generated values.
	assert.Equal(t, "key-2", creds[1].ID)
	assert.Equal(t, DefaultQuotaLimit, creds[1].QuotaLimit)
}

func TestCredentialsMissingKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("credentials:\n  - id: broken\n"), 0o600))

	cfg := &Config{CredentialsFile: path, QuotaLimit: DefaultQuotaLimit}
	_, err := cfg.Credentials()
	assert.Error(t, err)
}
