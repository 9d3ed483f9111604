package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/sitedeploy/internal/deploy/rulebook"
)

func loadString(t *testing.T, raw string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	return cfg
}

func TestLoadFull(t *testing.T) {
	cfg := loadString(t, `
site_dir: dist
bucket: my-site
region: eu-west-1
distribution_id: E123ABC
text_encoding: utf-8
prune: true
rules:
  - files: ["**/*.png"]
    cache_control: "max-age=86400"
  - files: ["feed"]
    content_type: "application/rss+xml"
invalidation:
  enabled: true
  wait: true
  paths:
    - /index.html
    - /assets/*
`)

	assert.Equal(t, "my-site", cfg.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "E123ABC", cfg.DistributionID)
	assert.True(t, cfg.Prune)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "max-age=86400", cfg.Rules[0].CacheControl)

	inv := cfg.InvalidationConfig()
	assert.True(t, inv.Enabled)
	assert.True(t, inv.Wait)
	assert.False(t, inv.All)
	assert.Equal(t, []string{"/index.html", "/assets/*"}, inv.Paths)
}

func TestLoadPathsAll(t *testing.T) {
	cfg := loadString(t, `
site_dir: dist
bucket: my-site
invalidation:
  enabled: true
  paths: all
`)

	inv := cfg.InvalidationConfig()
	assert.True(t, inv.Enabled)
	assert.True(t, inv.All)
	assert.Empty(t, inv.Paths)
}

func TestLoadPathsDefaultsToAll(t *testing.T) {
	cfg := loadString(t, `
site_dir: dist
bucket: my-site
invalidation:
  enabled: true
`)

	inv := cfg.InvalidationConfig()
	assert.True(t, inv.Enabled)
	assert.True(t, inv.All)
}

func TestLoadPathsExplicitEmpty(t *testing.T) {
	cfg := loadString(t, `
site_dir: dist
bucket: my-site
invalidation:
  enabled: true
  paths: []
`)

	inv := cfg.InvalidationConfig()
	assert.True(t, inv.Enabled)
	assert.False(t, inv.All)
	assert.Empty(t, inv.Paths)
}

func TestLoadPathsBadScalar(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("invalidation:\n  paths: everything\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadInvalidationDisabledByDefault(t *testing.T) {
	cfg := loadString(t, "site_dir: dist\nbucket: my-site\n")
	inv := cfg.InvalidationConfig()
	assert.False(t, inv.Enabled)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{SiteDir: dir, Bucket: "b"}
	assert.NoError(t, cfg.Validate())

	cfg = &Config{Bucket: "b"}
	assert.ErrorIs(t, cfg.Validate(), ErrSiteDirRequired)

	cfg = &Config{SiteDir: dir}
	assert.ErrorIs(t, cfg.Validate(), ErrBucketRequired)

	cfg = &Config{SiteDir: filepath.Join(dir, "missing"), Bucket: "b"}
	assert.Error(t, cfg.Validate())
}

func TestRulebookOrder(t *testing.T) {
	cfg := &Config{Rules: []rulebook.Rule{
		{Files: []string{"a"}},
		{Files: []string{"b"}},
	}}

	rb := cfg.Rulebook()
	require.Len(t, rb, 4)
	// built-ins first, user rules appended in declaration order
	assert.Equal(t, []string{"**"}, rb[0].Files)
	assert.Equal(t, []string{"a"}, rb[2].Files)
	assert.Equal(t, []string{"b"}, rb[3].Files)
}
