package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"libconv/internal/config"
	"libconv/internal/runlock"
	"libconv/internal/services"
	"libconv/internal/testsupport"
)

func TestRunCommandScenario(t *testing.T) {
	env := setupCLITestEnv(t)
	env.library.AddDocument(1, "First", "epub")
	env.library.AddDocument(2, "Second", "mobi")
	env.library.AddDocument(3, "Third", "pdf")

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "converted=1 skipped=2 errored=0")
	requireContains(t, out, "[2/3] #2 Second: converted mobi -> epub (catalog)")

	regs := env.library.Registrations()
	if len(regs) != 1 {
		t.Fatalf("registrations = %q", regs)
	}
	scratch := filepath.Join(env.cfg.Library.Path, "Author", "Second (2)", "Second.epub")
	want := "--library-path " + env.cfg.Library.Path + " --dont-replace 2 " + scratch
	if regs[0] != want {
		t.Fatalf("registration = %q, want %q", regs[0], want)
	}
	requireNotExists(t, scratch)

	convs := env.library.Conversions()
	if len(convs) != 1 || !strings.HasSuffix(convs[0], "Second.mobi") {
		t.Fatalf("conversions = %q", convs)
	}
}

func TestRunCommandTreatsBackupFormatsAsStoredFormats(t *testing.T) {
	env := setupCLITestEnv(t)
	env.library.AddDocument(7, "Dune", "azw3", "original_azw3")
	env.library.AddDocument(8, "Emma", "epub", "original_epub")

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "converted=1 skipped=1 errored=0")
	requireContains(t, out, "already_present=1 no_source=0) rejected=0")
	requireContains(t, out, "#7 Dune: converted azw3 -> epub")

	convs := env.library.Conversions()
	if len(convs) != 1 || !strings.HasSuffix(convs[0], "Dune.azw3") {
		t.Fatalf("conversions = %q", convs)
	}
}

func TestRunCommandConversionFailureKeepsExitZero(t *testing.T) {
	env := setupCLITestEnv(t)
	env.library.AddDocument(4, "Fourth", "mobi")
	env.library.SetConverter(`echo "half" > "$2"; echo "DRM protected" >&2; exit 1`)

	out, _, err := runCLI(t, []string{"run", "--table"}, env.configPath)
	if err != nil {
		t.Fatalf("run should succeed despite document failure: %v", err)
	}
	requireContains(t, out, "converted=0 skipped=0 errored=1")
	requireContains(t, out, "ConversionFailed")
	requireContains(t, out, "DRM protected")
	if regs := env.library.Registrations(); len(regs) != 0 {
		t.Fatalf("unexpected registrations %q", regs)
	}
	requireNotExists(t, filepath.Join(env.cfg.Library.Path, "Author", "Fourth (4)", "Fourth.epub"))
}

func TestRunCommandCatalogUnavailable(t *testing.T) {
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Library.CalibredbBinary = testsupport.WriteScript(t,
			filepath.Join(testsupport.BaseDir(cfg), "broken", "calibredb"),
			`echo "no library at path" >&2; exit 1`)
	})
	env.writeConfig(t)

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, services.ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
	requireContains(t, err.Error(), "no library at path")
}

func TestRunCommandRejectsMalformedRecords(t *testing.T) {
	env := setupCLITestEnv(t)
	env.library.AddDocument(1, "Good", "txt")
	env.library.AddRawRecord(map[string]any{"title": "missing id", "formats": []string{}})

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "converted=1 skipped=0 errored=0")
	requireContains(t, out, "rejected=1")
}

func TestRunCommandRespectsLock(t *testing.T) {
	env := setupCLITestEnv(t)
	env.library.AddDocument(1, "First", "mobi")

	held, err := runlock.Acquire(env.cfg.Run.LockFile)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	_, _, err = runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, runlock.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if convs := env.library.Conversions(); len(convs) != 0 {
		t.Fatalf("run converted while locked: %q", convs)
	}
}

func TestRunCommandLimitAndIDs(t *testing.T) {
	env := setupCLITestEnv(t)
	env.library.AddDocument(1, "One", "mobi")
	env.library.AddDocument(2, "Two", "azw3")
	env.library.AddDocument(3, "Three", "rtf")

	out, _, err := runCLI(t, []string{"run", "--id", "3", "--id", "1", "--limit", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "converted=1 skipped=0 errored=0")
	requireContains(t, out, "limit_reached")
	convs := env.library.Conversions()
	if len(convs) != 1 || !strings.HasSuffix(convs[0], "One.mobi") {
		t.Fatalf("conversions = %q", convs)
	}

	if _, _, err := runCLI(t, []string{"run", "--limit", "-1"}, env.configPath); err == nil {
		t.Fatal("expected error for negative limit")
	}
}
