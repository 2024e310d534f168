package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "data/image-ref-registrations.csv", cfg.Ledger.Path)
	assert.Equal(t, "data/incoming", cfg.Storage.IncomingDir, "spool area is outside the served upload root")
	assert.Equal(t, int64(4*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Mirror.Enabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("IMAGEREF_ADDR", ":9000")
	t.Setenv("MIRROR_BACKEND", "dir")
	t.Setenv("MIRROR_DIR", "/mnt/mirror")
	t.Setenv("MIRROR_WORKERS", "4")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.True(t, cfg.Mirror.Enabled())
	assert.Equal(t, "/mnt/mirror", cfg.Mirror.Dir)
	assert.Equal(t, 4, cfg.Mirror.Workers)
}

func TestValidate(t *testing.T) {
	t.Run("http backend requires url", func(t *testing.T) {
		t.Setenv("MIRROR_BACKEND", "http")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "MIRROR_URL")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("MIRROR_BACKEND", "ftp")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "unknown MIRROR_BACKEND")
	})

	t.Run("non-numeric size fails parsing", func(t *testing.T) {
		t.Setenv("MAX_UPLOAD_BYTES", "four")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "parse env")
	})
}

func TestTrustedPrefixes(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.5")
	cfg, err := FromEnv()
	require.NoError(t, err)

	prefixes, err := cfg.TrustedPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.168.1.5/32", prefixes[1].String())

	t.Setenv("TRUSTED_PROXIES", "not-a-cidr")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "TRUSTED_PROXIES")
}
