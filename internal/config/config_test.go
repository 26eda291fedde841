package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"libconv/internal/config"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CALIBRE_LIBRARY", "")
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaultsWhenConfigMissing(t *testing.T) {
	home := isolateHome(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "libconv", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Library.Path != "/calibre-library" {
		t.Fatalf("unexpected library path %q", cfg.Library.Path)
	}
	if cfg.Conversion.TargetFormat != "epub" {
		t.Fatalf("unexpected target format %q", cfg.Conversion.TargetFormat)
	}
	want := []string{"mobi", "azw3", "azw", "djvu", "txt", "rtf"}
	if strings.Join(cfg.Conversion.SourceFormats, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected source formats %v", cfg.Conversion.SourceFormats)
	}
	if cfg.ConversionTimeout() != 300*time.Second {
		t.Fatalf("unexpected conversion timeout %s", cfg.ConversionTimeout())
	}
	if cfg.Run.LockFile != filepath.Join(home, ".local", "share", "libconv", "libconv.lock") {
		t.Fatalf("unexpected lock file %q", cfg.Run.LockFile)
	}
	if cfg.Logging.Dir != filepath.Join(home, ".local", "share", "libconv", "logs") {
		t.Fatalf("unexpected log dir %q", cfg.Logging.Dir)
	}
}

func TestLoadUsesCalibreLibraryEnv(t *testing.T) {
	isolateHome(t)
	lib := t.TempDir()
	t.Setenv("CALIBRE_LIBRARY", lib)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Library.Path != lib {
		t.Fatalf("expected env library path %q, got %q", lib, cfg.Library.Path)
	}
	if cfg.MetadataDBPath() != filepath.Join(lib, "metadata.db") {
		t.Fatalf("unexpected metadata path %q", cfg.MetadataDBPath())
	}
}

func TestLoadNormalizesFileValues(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[library]
path = "~/books"

[conversion]
target_format = " .EPUB "
source_formats = ["AZW3", " mobi ", ""]
timeout_seconds = 60

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file to be used, got %q exists=%v", resolved, exists)
	}
	home, _ := os.UserHomeDir()
	if cfg.Library.Path != filepath.Join(home, "books") {
		t.Fatalf("unexpected library path %q", cfg.Library.Path)
	}
	if cfg.Conversion.TargetFormat != "epub" {
		t.Fatalf("unexpected target format %q", cfg.Conversion.TargetFormat)
	}
	if strings.Join(cfg.Conversion.SourceFormats, ",") != "azw3,mobi" {
		t.Fatalf("unexpected source formats %v", cfg.Conversion.SourceFormats)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[library]\nlibrary_dir = \"/x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"empty library", func(c *config.Config) { c.Library.Path = "" }, "library.path"},
		{"no sources", func(c *config.Config) { c.Conversion.SourceFormats = nil }, "at least one format"},
		{"target in sources", func(c *config.Config) {
			c.Conversion.SourceFormats = []string{"mobi", "epub"}
		}, "must not include the target"},
		{"duplicate source", func(c *config.Config) {
			c.Conversion.SourceFormats = []string{"mobi", "mobi"}
		}, "more than once"},
		{"bad format tag", func(c *config.Config) { c.Conversion.TargetFormat = "ep ub" }, "target_format"},
		{"zero timeout", func(c *config.Config) { c.Conversion.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"zero catalog timeout", func(c *config.Config) { c.Library.CatalogTimeoutSeconds = 0 }, "catalog_timeout_seconds"},
		{"negative limit", func(c *config.Config) { c.Run.Limit = -1 }, "run.limit"},
		{"bad schedule", func(c *config.Config) { c.Run.Schedule = "every day" }, "run.schedule"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if decoded.Conversion.TargetFormat != "epub" {
		t.Fatalf("unexpected sample target %q", decoded.Conversion.TargetFormat)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Logging.Dir = filepath.Join(base, "logs")
	cfg.Run.LockFile = filepath.Join(base, "run", "libconv.lock")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Logging.Dir, filepath.Dir(cfg.Run.LockFile)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
