package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"libconv/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Library.Path = filepath.Join(base, "library")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.Run.LockFile = filepath.Join(base, "state", "libconv.lock")
	cfgVal.Conversion.TimeoutSeconds = 10
	cfgVal.Library.CatalogTimeoutSeconds = 10

	if err := os.MkdirAll(cfgVal.Library.Path, 0o755); err != nil {
		t.Fatalf("mkdir library: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSourceFormats overrides the ordered source preference list.
func WithSourceFormats(formats ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.SourceFormats = append([]string(nil), formats...)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, calibredb and ebook-convert are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"calibredb", "ebook-convert"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, filepath.Join(binDir, name), "exit 0")
		}
		prependPath(b.t, binDir)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Library.Path)
}

// WriteScript writes an executable /bin/sh script with body.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
	return path
}

func prependPath(t testing.TB, dir string) {
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}
