package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
integrity-base-url: https://test.pypi.org/integrity
skip-existing: true
concurrency: 8
timeout: 45s
allowed-issuers:
  - https://token.actions.githubusercontent.com
trust-roots:
  tuf-root: /etc/pylock-attest/root.json
  tuf-cache: /var/cache/pylock-attest
`))
	require.NoError(t, err)
	assert.Equal(t, "https://test.pypi.org/integrity", cfg.IntegrityBaseURL)
	assert.True(t, cfg.SkipExisting)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.CallTimeout())
	assert.Equal(t, []string{"https://token.actions.githubusercontent.com"}, cfg.AllowedIssuers)
	assert.False(t, cfg.TrustRoots.UsesPEM())
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, cfg.SkipExisting)
	assert.Zero(t, cfg.Concurrency)
	assert.Zero(t, cfg.CallTimeout())
}

func TestValidation(t *testing.T) {
	_, err := Parse([]byte(`concurrency: -1`))
	require.ErrorContains(t, err, "concurrency cannot be negative: -1")

	_, err = Parse([]byte(`timeout: soon`))
	require.ErrorContains(t, err, "invalid timeout")

	_, err = Parse([]byte(`
trust-roots:
  fulcio-root: /tmp/fulcio.pem
`))
	require.ErrorContains(t, err, "rekor-key must be set when fulcio-root is set")

	_, err = Parse([]byte(`
trust-roots:
  fulcio-root: /tmp/fulcio.pem
  rekor-key: /tmp/rekor.pub
  tuf-root: /tmp/root.json
`))
	require.ErrorContains(t, err, "cannot mix PEM paths with a TUF root")

	// multiple errors at once
	_, err = Parse([]byte(`
concurrency: -2
timeout: soon
`))
	require.ErrorContains(t, err, "concurrency cannot be negative")
	require.ErrorContains(t, err, "invalid timeout")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("skip-existing: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.SkipExisting)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.False(t, cfg.SkipExisting)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
