package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"newsdesk/config"
	"newsdesk/relations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))

	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadParsesAndMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[mirror]
stories_limit = 25
workers = 4

[server]
page_size = 15
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Mirror.StoriesLimit)
	assert.Equal(t, 4, cfg.Mirror.Workers)
	assert.Equal(t, 15, cfg.Server.PageSize)
	// Omitted keys keep their defaults
	assert.Equal(t, config.Default().Mirror.AggregatorURL, cfg.Mirror.AggregatorURL)
	assert.Equal(t, config.Default().Mirror.MaxSavedStories, cfg.Mirror.MaxSavedStories)
}

func TestLoadClampsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[mirror]
interval_min_seconds = 0
interval_max_seconds = -5
workers = 0

[server]
page_size = -1
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Mirror.IntervalMinSeconds)
	assert.Greater(t, cfg.Mirror.IntervalMaxSeconds, cfg.Mirror.IntervalMinSeconds)
	assert.Equal(t, 10, cfg.Mirror.Workers)
	assert.Equal(t, 30, cfg.Server.PageSize)
}

func TestLoadClampsPageSizeToMembershipBound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
page_size = 500
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	// A page larger than the batched membership query could render stories
	// with silently missing membership state.
	assert.Equal(t, relations.MembershipLimit, cfg.Server.PageSize)
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[mirror`), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	want := config.Default()
	want.Mirror.StoriesLimit = 50
	require.NoError(t, config.Write(path, want))

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
