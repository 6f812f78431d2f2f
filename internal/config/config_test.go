package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `listen: ":9000"
cache:
  backend: file
  ttl: 2s
store:
  kind: remote
  url: https://make.example.org/wp-json/meetings
feed:
  organizer: "no placeholder"
  fold_lines: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, 2*time.Second, cfg.Cache.TTL)
	assert.Equal(t, time.Hour, cfg.Cache.MaxAge)
	assert.Equal(t, "remote", cfg.Store.Kind)
	assert.Equal(t, "WordPress %s Team", cfg.Feed.Organizer)
	assert.Equal(t, "-//Make WordPress//Meeting Events Calendar//EN", cfg.Feed.ProductID)
	assert.True(t, cfg.Feed.Options().FoldLines)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [oops"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Kind = "postgres" }, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) { c.Store.Kind = "postgres"; c.Store.DSN = "postgres://x" }},
		{name: "remote without url", mutate: func(c *Config) { c.Store.Kind = "remote" }, wantErr: true},
		{name: "unknown kind", mutate: func(c *Config) { c.Store.Kind = "ldap" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			c.Normalize()
			if tt.wantErr {
				require.Error(t, c.Validate())
			} else {
				require.NoError(t, c.Validate())
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "postgres://meetcal@db/meetcal")

	c := DefaultConfig()
	c.ApplyEnv()
	assert.Equal(t, "postgres://meetcal@db/meetcal", c.Store.DSN)
}

func TestSave_Errors(t *testing.T) {
	require.Error(t, Save("", DefaultConfig()))
	require.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
