package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the objsearch configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Detector DetectorConfig `yaml:"detector"`
	Render   RenderConfig   `yaml:"render"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// StorageConfig holds metadata storage settings.
type StorageConfig struct {
	BaseDir      string `yaml:"base_dir"`      // relative metadata and image paths resolve here
	ProcessedDir string `yaml:"processed_dir"` // one subdirectory per batch
}

// DetectorConfig holds the external detector program settings.
type DetectorConfig struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	TimeoutSec     int      `yaml:"timeout_sec"`
	DefaultWeights string   `yaml:"default_weights"`
	Extensions     []string `yaml:"extensions"`
}

// Timeout returns the detector timeout as a duration.
func (d DetectorConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSec) * time.Second
}

// RenderConfig holds overlay colors (#RRGGBB) and stroke width.
type RenderConfig struct {
	StrokeWidth    int    `yaml:"stroke_width"`
	Color          string `yaml:"color"`
	HighlightColor string `yaml:"highlight_color"`
	MutedColor     string `yaml:"muted_color"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // node exporter textfile path; empty disables export
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML file path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references, then applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Storage.ProcessedDir == "" {
		c.Storage.ProcessedDir = filepath.Join("data", "processed")
	}
	if c.Detector.TimeoutSec <= 0 {
		c.Detector.TimeoutSec = 600
	}
	if c.Detector.DefaultWeights == "" {
		c.Detector.DefaultWeights = "yolo11m.pt"
	}
	if len(c.Detector.Extensions) == 0 {
		c.Detector.Extensions = []string{".jpg", ".jpeg", ".png"}
	}
	if c.Render.StrokeWidth <= 0 {
		c.Render.StrokeWidth = 3
	}
	if c.Render.Color == "" {
		c.Render.Color = "#6366F1"
	}
	if c.Render.HighlightColor == "" {
		c.Render.HighlightColor = "#30C938"
	}
	if c.Render.MutedColor == "" {
		c.Render.MutedColor = "#666666"
	}
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Detector.Command == "" {
		return fmt.Errorf("detector.command is required")
	}
	for _, ext := range c.Detector.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("detector.extensions entries must start with \".\", got %q", ext)
		}
	}
	colors := []struct{ name, value string }{
		{"render.color", c.Render.Color},
		{"render.highlight_color", c.Render.HighlightColor},
		{"render.muted_color", c.Render.MutedColor},
	}
	for _, col := range colors {
		if !hexColor.MatchString(col.value) {
			return fmt.Errorf("%s must have the form #RRGGBB, got %q", col.name, col.value)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
