// Package config handles checker configuration, loaded from an optional
// YAML file with environment variable overrides.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Context types for raster resolution.
const (
	ContextLocal  = "local"
	ContextServer = "server"
)

// Raster backend selection.
const (
	BackendAuto = "auto"
	BackendGDAL = "gdal"
	BackendTIFF = "tiff"
)

// Config holds the settings of one validation run.
type Config struct {
	// Level is the minimum severity to report: info, warning or error.
	Level string `yaml:"level"`
	// AllowBeta enables checks on features still in beta.
	AllowBeta bool `yaml:"allow_beta"`
	// Ignore holds glob patterns matched against zero-padded error
	// codes, e.g. "02*".
	Ignore []string `yaml:"ignore"`

	// Context selects how raster references are resolved: "local"
	// resolves paths relative to BasePath, "server" looks them up in
	// AvailableRasters.
	Context  string `yaml:"context"`
	BasePath string `yaml:"base_path"`
	// AvailableRasters maps raster roles (column names) to URLs.
	AvailableRasters map[string]string `yaml:"available_rasters"`
	// RasterBackend picks the raster reader: "gdal", "tiff" or "auto"
	// (gdal when the gdalinfo binary is present, tiff otherwise).
	RasterBackend string `yaml:"raster_backend"`

	LogLevel string `yaml:"log_level"`

	// Warnings collects non-fatal notes generated during loading. They
	// are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-"`
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then
// environment variable overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Level:         "info",
		Context:       ContextLocal,
		RasterBackend: BackendAuto,
		LogLevel:      "info",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("config file %s not found, using defaults", path))
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MODELCHECKER_LEVEL"); v != "" {
		c.Level = v
	}
	if v := os.Getenv("MODELCHECKER_ALLOW_BETA"); v != "" {
		c.AllowBeta = parseBool(v, c.AllowBeta)
	}
	if v := os.Getenv("MODELCHECKER_IGNORE"); v != "" {
		c.Ignore = splitTrimmed(v)
	}
	if v := os.Getenv("MODELCHECKER_CONTEXT"); v != "" {
		c.Context = v
	}
	if v := os.Getenv("MODELCHECKER_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("MODELCHECKER_RASTER_BACKEND"); v != "" {
		c.RasterBackend = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Level) {
	case "info", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q (expected info, warning or error)", c.Level)
	}
	switch c.Context {
	case ContextLocal, ContextServer:
	default:
		return fmt.Errorf("invalid context %q (expected %s or %s)", c.Context, ContextLocal, ContextServer)
	}
	switch c.RasterBackend {
	case BackendAuto, BackendGDAL, BackendTIFF:
	default:
		return fmt.Errorf("invalid raster_backend %q (expected %s, %s or %s)", c.RasterBackend, BackendAuto, BackendGDAL, BackendTIFF)
	}
	if c.Context == ContextServer && len(c.AvailableRasters) == 0 {
		c.Warnings = append(c.Warnings, "server context without available_rasters: raster checks will be skipped")
	}
	return nil
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseBool(v string, def bool) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "0", "false", "no", "off":
		return false
	case "1", "true", "yes", "on":
		return true
	}
	return def
}

func splitTrimmed(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
