package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, defaultListen, cfg.Server.Listen)
	assert.Empty(t, cfg.Nodes)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
cache:
  dir: /var/cache/tfmodel
logging:
  level: debug
  format: json
server:
  listen: 0.0.0.0:9090
s3:
  region: us-east-1
  force_path_style: true
nodes:
  - id: classifier
    name: Image classifier
    model_url: https://example.com/models/mobilenet/model.json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/tfmodel", cfg.Cache.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Listen)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.True(t, cfg.S3.ForcePathStyle)

	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, "classifier", cfg.Nodes[0].ID)
	assert.Equal(t, "https://example.com/models/mobilenet/model.json", cfg.Nodes[0].ModelURL)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache: [not a mapping"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvCacheDir, "/tmp/tfmodel-test-cache")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogFormat, "console")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "cache:\n  dir: /from/file\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/tfmodel-test-cache", cfg.Cache.Dir)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []NodeConfig
		wantErr string
	}{
		{
			name:  "valid",
			nodes: []NodeConfig{{ID: "a", ModelURL: "https://h/m.json"}, {ID: "b"}},
		},
		{
			name:    "missing id",
			nodes:   []NodeConfig{{Name: "anonymous"}},
			wantErr: "id is required",
		},
		{
			name:    "duplicate id",
			nodes:   []NodeConfig{{ID: "a"}, {ID: "a"}},
			wantErr: "duplicate id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Nodes: tt.nodes}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
