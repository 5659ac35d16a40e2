package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "minio:\n  endpoint: minio:9000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "photos", cfg.MinIO.PhotosBucket)
	assert.Equal(t, "face-crops", cfg.MinIO.CropsBucket)
	assert.Equal(t, "http://minio:9000", cfg.MinIO.PublicURL)
	assert.Equal(t, "http://localhost:5000", cfg.Analysis.URL)
	assert.Equal(t, 30*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 420*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, time.Duration(0), cfg.Analysis.RecheckInterval)
	assert.Equal(t, 128, cfg.Analysis.EmbeddingDim)
	assert.Equal(t, 4, cfg.Intake.WorkerCount)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_YAMLValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
analysis:
  url: http://faces:5000
  timeout: 5s
  recheck_interval: 1m
minio:
  endpoint: minio:9000
  use_ssl: true
  photos_bucket: shots
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://faces:5000", cfg.Analysis.URL)
	assert.Equal(t, 5*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 95*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, time.Minute, cfg.Analysis.RecheckInterval)
	assert.Equal(t, "shots", cfg.MinIO.PhotosBucket)
	assert.Equal(t, "https://minio:9000", cfg.MinIO.PublicURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("FACEVAULT_SERVER_PORT", "7070")
	t.Setenv("FACEVAULT_ANALYSIS_URL", "http://analysis:5000")
	t.Setenv("FACEVAULT_ANALYSIS_TIMEOUT", "2s")
	t.Setenv("FACEVAULT_NATS_URL", "nats://nats:4222")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "http://analysis:5000", cfg.Analysis.URL)
	assert.Equal(t, 2*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
}

func TestLoad_WriteTimeout(t *testing.T) {
	path := writeConfig(t, "server:\n  write_timeout: 2m\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)

	t.Setenv("FACEVAULT_SERVER_WRITE_TIMEOUT", "90s")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
}

func TestCaptureBudget(t *testing.T) {
	// detect, crop, annotate and one embed per face, each at the timeout.
	calls := 3 + BudgetFaces
	assert.Equal(t, time.Duration(calls)*10*time.Second+30*time.Second, CaptureBudget(10*time.Second))
	assert.Greater(t, CaptureBudget(30*time.Second), 5*30*time.Second+30*time.Second)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "facevault", User: "fv", Password: "secret"}
	assert.Equal(t, "postgres://fv:secret@db:5432/facevault?sslmode=disable", d.DSN())
}
