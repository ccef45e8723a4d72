package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "PostOpCare+ Photo Service", cfg.App.Name)
	assert.Equal(t, "dev-secret-key", cfg.Server.APIKey)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
	assert.Equal(t, EngineMock, cfg.Analyzer.Engine)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, int64(15*1024*1024), cfg.Storage.MaxUploadBytes())
	assert.Equal(t, "postopcare", cfg.Cloudinary.Folder)
	assert.Equal(t, []string{"*"}, cfg.Server.Origins())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  api_key: from-file
  allow_origins: "http://a.example, http://b.example ,"
storage:
  backend: cloudinary
analyzer:
  engine: clip
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("PHOTO_API_KEY", "from-env")
	t.Setenv("PHOTO_BASE_URL", "http://localhost:8000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Server.APIKey)
	assert.Equal(t, StorageCloudinary, cfg.Storage.Backend)
	assert.Equal(t, EngineCLIP, cfg.Analyzer.Engine)
	assert.Equal(t, "http://localhost:8000", cfg.Storage.BaseURL)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.Origins())
}

func TestLoad_RejectsUnknownSelectors(t *testing.T) {
	t.Setenv("PHOTO_STORAGE_BACKEND", "ftp")
	t.Setenv("PHOTO_ANALYZER_ENGINE", "gpt")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown storage backend "ftp"`)
	assert.Contains(t, err.Error(), `unknown analyzer engine "gpt"`)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_DebugLowersLogLevel(t *testing.T) {
	t.Setenv("PHOTO_DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
