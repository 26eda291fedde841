package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Library describes the Calibre library and how the catalog is queried.
type Library struct {
	Path                  string `toml:"path"`
	CalibredbBinary       string `toml:"calibredb_binary"`
	UseMetadataDB         bool   `toml:"use_metadata_db"`
	CatalogTimeoutSeconds int    `toml:"catalog_timeout_seconds"`
}

// Conversion holds the format preference policy and converter settings.
type Conversion struct {
	TargetFormat    string   `toml:"target_format"`
	SourceFormats   []string `toml:"source_formats"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	ConverterBinary string   `toml:"converter_binary"`
	ExtraArgs       []string `toml:"extra_args"`
}

// Run contains settings for individual and scheduled runs.
type Run struct {
	LockFile string `toml:"lock_file"`
	Schedule string `toml:"schedule"`
	Limit    int    `toml:"limit"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for libconv.
type Config struct {
	Library    Library    `toml:"library"`
	Conversion Conversion `toml:"conversion"`
	Run        Run        `toml:"run"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("libconv.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates directories libconv writes to. The library itself
// is never created: a missing library is an operator error surfaced by the run.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Logging.Dir}
	if c.Run.LockFile != "" {
		dirs = append(dirs, filepath.Dir(c.Run.LockFile))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MetadataDBPath returns the location of the Calibre catalog database.
func (c *Config) MetadataDBPath() string {
	return filepath.Join(c.Library.Path, "metadata.db")
}

// ConversionTimeout returns the per-document converter timeout.
func (c *Config) ConversionTimeout() time.Duration {
	return time.Duration(c.Conversion.TimeoutSeconds) * time.Second
}

// CatalogTimeout returns the timeout applied to each catalog CLI invocation.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Library.CatalogTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
