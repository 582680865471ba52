package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Lintora", cfg.App.Name)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, int64(50*1024*1024), cfg.Upload.MaxUploadSizeBytes)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "data/jobs", cfg.Storage.JobsDir)
	assert.Equal(t, 2, cfg.Analysis.Workers)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Groq.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Groq.BaseURL)
	assert.Equal(t, 2, cfg.Analysis.Risk.HighMinHigh)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9090
analysis:
  workers: 4
storage:
  driver: mysql
  database:
    host: db.internal
    port: 3306
    user: lintora
    password: secret
    name: audits
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, "mysql", cfg.Storage.Driver)
	assert.Equal(t, "lintora:secret@tcp(db.internal:3306)/audits?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("WORKERS", "8")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("MAX_UPLOAD_SIZE_BYTES", "1024")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Analysis.Workers)
	assert.Equal(t, "gsk_test", cfg.Groq.APIKey)
	assert.Equal(t, int64(1024), cfg.Upload.MaxUploadSizeBytes)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Storage.Database.Host = "pg"
	cfg.Storage.Database.Port = 5432
	cfg.Storage.Database.User = "u"
	cfg.Storage.Database.Password = "p"
	cfg.Storage.Database.Name = "d"

	assert.Equal(t, "host=pg port=5432 user=u password=p dbname=d sslmode=disable", cfg.PostgresDSN())
}
