package config

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ROCKSTARS_BACKEND", "")
	t.Setenv("AWS_REGION", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ROCKSTARS_BACKEND", "")

	file := path.Join(t.TempDir(), "rockstars.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
addr: ":8080"
log:
  level: debug
  json: true
storage:
  backend: dynamodb
  compact_interval: 5s
  dynamodb:
    table: Stars
    endpoint: http://localhost:8000
    create_tables: true
views:
  source: s3
  bucket: rockstars-views
  prefix: views
aws:
  region: eu-west-1
`), 0644))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, LogConfig{Level: "debug", JSON: true}, cfg.Log)
	assert.Equal(t, BackendDynamoDB, cfg.Storage.Backend)
	assert.Equal(t, 5*time.Second, cfg.Storage.CompactInterval)
	assert.Equal(t, 1000, cfg.Storage.CompactThreshold)
	assert.Equal(t, DynamoDBConfig{
		Table:        "Stars",
		Endpoint:     "http://localhost:8000",
		CreateTables: true,
	}, cfg.Storage.DynamoDB)
	assert.Equal(t, "rockstars-views", cfg.Views.Bucket)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ROCKSTARS_BACKEND", "sqlite")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "redis"
	cfg.Views.Source = ViewsS3
	cfg.Mode = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "loud"`)
	assert.Contains(t, err.Error(), `unknown storage backend "redis"`)
	assert.Contains(t, err.Error(), "views.bucket is required")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(path.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
