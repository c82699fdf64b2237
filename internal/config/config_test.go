package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no stray config.* or .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testChdir(t, dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.105", cfg.Source.Host)
	assert.Equal(t, 3306, cfg.Source.Port)
	assert.Equal(t, "john", cfg.Source.User)
	assert.Equal(t, "notthetalk", cfg.Source.Database)
	assert.Equal(t, "http://localhost:8080", cfg.Target.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Target.Timeout)
	assert.Equal(t, 3, cfg.Target.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Target.Backoff)
	assert.Equal(t, "password", cfg.Target.Password)
	assert.Equal(t, "users.db", cfg.Store.Path)
	assert.False(t, cfg.Migration.DryRun)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("MIGRATE_SOURCE_HOST", "db.internal")
	t.Setenv("MIGRATE_SOURCE_PASSWORD", "s3cret")
	t.Setenv("MIGRATE_TARGET_BASEURL", "http://accounts:9000")
	t.Setenv("MIGRATE_TARGET_TIMEOUT", "2s")
	t.Setenv("MIGRATE_STORE_PATH", "/tmp/map.db")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Source.Host)
	assert.Equal(t, "s3cret", cfg.Source.Password)
	assert.Equal(t, "http://accounts:9000", cfg.Target.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Target.Timeout)
	assert.Equal(t, "/tmp/map.db", cfg.Store.Path)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MIGRATE_SOURCE_DATABASE=legacy\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MIGRATE_SOURCE_DATABASE") })

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Source.Database)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdir(t)
	file := filepath.Join(dir, "migrate.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
source:
  host: mysql.example
  port: 3307
target:
  maxattempts: 5
report:
  bucket: migrations
`), 0o600))

	cfg, err := Load(Options{File: file})
	require.NoError(t, err)

	assert.Equal(t, "mysql.example", cfg.Source.Host)
	assert.Equal(t, 3307, cfg.Source.Port)
	assert.Equal(t, 5, cfg.Target.MaxAttempts)
	assert.Equal(t, "migrations", cfg.Report.Bucket)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	dir := chdir(t)

	_, err := Load(Options{File: filepath.Join(dir, "absent.yaml")})
	assert.Error(t, err)
}

func TestLoad_Flags(t *testing.T) {
	chdir(t)
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	fs.Bool("dry-run", false, "")
	require.NoError(t, fs.Parse([]string{"--dry-run"}))

	cfg, err := Load(Options{Flags: map[string]*pflag.Flag{
		"migration.dryrun": fs.Lookup("dry-run"),
	}})
	require.NoError(t, err)
	assert.True(t, cfg.Migration.DryRun)
}

func TestLoad_InvalidValues(t *testing.T) {
	chdir(t)
	t.Setenv("MIGRATE_TARGET_MAXATTEMPTS", "0")

	_, err := Load(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target.maxattempts")
}

func TestValidate(t *testing.T) {
	var cfg Config
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"source.host", "source.user", "source.database", "target.baseurl", "store.path"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_RetrySettings(t *testing.T) {
	chdir(t)
	base, err := Load(Options{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"too many attempts", func(c *Config) { c.Target.MaxAttempts = MaxAttemptsLimit + 1 }, "target.maxattempts"},
		{"zero attempts", func(c *Config) { c.Target.MaxAttempts = 0 }, "target.maxattempts"},
		{"negative backoff", func(c *Config) { c.Target.Backoff = -time.Second }, "target.backoff must not be negative"},
		{"negative max backoff", func(c *Config) { c.Target.MaxBackoff = -time.Second }, "target.maxbackoff must not be negative"},
		{"max below base", func(c *Config) {
			c.Target.Backoff = 2 * time.Second
			c.Target.MaxBackoff = time.Second
		}, "target.maxbackoff must not be below"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := base
	cfg.Target.MaxAttempts = MaxAttemptsLimit
	cfg.Target.MaxBackoff = 0
	assert.NoError(t, cfg.Validate())
}
