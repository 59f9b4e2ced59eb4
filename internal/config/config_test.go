package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Level)
	assert.False(t, cfg.AllowBeta)
	assert.Empty(t, cfg.Ignore)
	assert.Equal(t, ContextLocal, cfg.Context)
	assert.Equal(t, BackendAuto, cfg.RasterBackend)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileWarnsOnly(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "not found")
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, `
level: warning
allow_beta: true
ignore: ["02*", "0301"]
context: server
available_rasters:
  dem_file: https://rasters.example.com/dem.tif
raster_backend: tiff
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warning", cfg.Level)
	assert.True(t, cfg.AllowBeta)
	assert.Equal(t, []string{"02*", "0301"}, cfg.Ignore)
	assert.Equal(t, ContextServer, cfg.Context)
	assert.Equal(t, "https://rasters.example.com/dem.tif", cfg.AvailableRasters["dem_file"])
	assert.Equal(t, BackendTIFF, cfg.RasterBackend)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "level: [not, a, string\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "level: error\nraster_backend: gdal\n")
	t.Setenv("MODELCHECKER_LEVEL", "warning")
	t.Setenv("MODELCHECKER_ALLOW_BETA", "yes")
	t.Setenv("MODELCHECKER_IGNORE", " 01* , 0042 ")
	t.Setenv("MODELCHECKER_BASE_PATH", "/data/rasters")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warning", cfg.Level)
	assert.True(t, cfg.AllowBeta)
	assert.Equal(t, []string{"01*", "0042"}, cfg.Ignore)
	assert.Equal(t, "/data/rasters", cfg.BasePath)
	// Untouched by env, keeps the file value.
	assert.Equal(t, BackendGDAL, cfg.RasterBackend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad level", func(c *Config) { c.Level = "fatal" }, "invalid level"},
		{"bad context", func(c *Config) { c.Context = "remote" }, "invalid context"},
		{"bad backend", func(c *Config) { c.RasterBackend = "netcdf" }, "invalid raster_backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Level: "info", Context: ContextLocal, RasterBackend: BackendAuto}
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateServerWithoutRastersWarns(t *testing.T) {
	cfg := &Config{Level: "info", Context: ContextServer, RasterBackend: BackendAuto}
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "available_rasters")
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "log_level %q", tt.in)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
MODELCHECKER_TEST_A=plain
MODELCHECKER_TEST_B="quoted value"
MODELCHECKER_TEST_C=kept

not-a-pair
`), 0o644))

	t.Setenv("MODELCHECKER_TEST_A", "")
	t.Setenv("MODELCHECKER_TEST_B", "")
	t.Setenv("MODELCHECKER_TEST_C", "already set")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "plain", os.Getenv("MODELCHECKER_TEST_A"))
	assert.Equal(t, "quoted value", os.Getenv("MODELCHECKER_TEST_B"))
	// Existing environment wins over the file.
	assert.Equal(t, "already set", os.Getenv("MODELCHECKER_TEST_C"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}
