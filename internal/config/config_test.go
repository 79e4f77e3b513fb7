package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongsul/lostfound/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "lostfound.sqlite3", cfg.DBPath)
	assert.Equal(t, model.ItemStatusStored, cfg.ClaimFrom)
	assert.Equal(t, 7*24*time.Hour, cfg.CodeTTL)
	assert.Equal(t, "locker", cfg.AWS.LockerTopicPrefix)
	assert.Equal(t, 465, cfg.SMTP.Port)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
addr: ":9090"
claim_from: lost
code_ttl: 48h
aws:
  region: eu-west-1
  photo_bucket: photos
smtp:
  host: smtp.example.test
  port: 587
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, model.ItemStatusLost, cfg.ClaimFrom)
	assert.Equal(t, 48*time.Hour, cfg.CodeTTL)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "photos", cfg.AWS.PhotoBucket)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadRejectsBadClaimFrom(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("claim_from: reserved\n"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("addr: [unclosed\n"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}
