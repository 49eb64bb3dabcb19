package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir so Load does not pick up a developer .env file.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, BackendPostgres, cfg.Database.Backend)
	assert.Equal(t, 7, cfg.Monitor.ResyncEvery)
	assert.Equal(t, 25, cfg.Monitor.MaxPage)
	assert.Equal(t, 5, cfg.Monitor.Workers)
	assert.Equal(t, time.Minute, cfg.Monitor.Interval())
	assert.Equal(t, 10*time.Second, cfg.Portal.CatalogTimeout)
	assert.Equal(t, 3*time.Second, cfg.Portal.PageTimeout)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	params := filepath.Join(dir, "params.json")
	require.NoError(t, os.WriteFile(params, []byte(`{"srchLanguage":"ko","srchCptnCorsFg":""}`), 0o600))

	t.Setenv("REPOSITORY_BACKEND", "MEMORY")
	t.Setenv("MONITOR_INTERVAL_MINUTES", "15")
	t.Setenv("MONITOR_OLD_STUDENT_MODE", "true")
	t.Setenv("PORTAL_PAGE_TIMEOUT", "1500ms")
	t.Setenv("PORTAL_PARAMS_FILE", params)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Database.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Monitor.Interval())
	assert.True(t, cfg.Monitor.OldStudentMode)
	assert.Equal(t, 1500*time.Millisecond, cfg.Portal.PageTimeout)
	assert.Equal(t, "ko", cfg.Portal.ExtraParams["srchLanguage"])
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRejectsOutOfRangeInterval(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MONITOR_INTERVAL_MINUTES", "45")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REPOSITORY_BACKEND", "mongo")

	_, err := Load()

	assert.Error(t, err)
}
