package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"libconv/internal/formats"
	"libconv/internal/procexec"
	"libconv/internal/services"
)

type stubRunner struct {
	args   []string
	result procexec.Result
	err    error
	// write creates the output file before returning, mimicking the tool.
	write bool
}

func (s *stubRunner) Run(_ context.Context, _ string, args []string, _ time.Duration) (procexec.Result, error) {
	s.args = append([]string(nil), args...)
	if s.write && len(args) >= 2 {
		if err := os.WriteFile(args[1], []byte("converted"), 0o644); err != nil {
			return procexec.Result{}, err
		}
	}
	return s.result, s.err
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts require a unix shell")
	}
	path := filepath.Join(t.TempDir(), "ebook-convert")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Author", "Book (3)", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"/lib/A/Book (1)/Book.mobi", "/lib/A/Book (1)/Book.epub"},
		{"/lib/x.y.azw3", "/lib/x.y.epub"},
		{"/lib/noext", "/lib/noext.epub"},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.source, formats.EPUB); got != tt.want {
			t.Errorf("OutputPath(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestNewDefaultsTimeout(t *testing.T) {
	e, err := New("ebook-convert", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Timeout() != DefaultTimeout {
		t.Fatalf("timeout = %s", e.Timeout())
	}
	if _, err := New("", time.Second); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestConvertSuccess(t *testing.T) {
	script := writeScript(t, `cp "$1" "$2"`)
	source := writeSource(t, "Book.mobi")
	e, err := New(script, 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	output, err := e.Convert(context.Background(), source, formats.EPUB)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if want := strings.TrimSuffix(source, ".mobi") + ".epub"; output != want {
		t.Fatalf("output = %q, want %q", output, want)
	}
	data, err := os.ReadFile(output)
	if err != nil || string(data) != "source" {
		t.Fatalf("output contents = %q, %v", data, err)
	}
}

func TestConvertPassesArgvAndExtraArgs(t *testing.T) {
	source := writeSource(t, "Book; rm -rf.azw3")
	runner := &stubRunner{write: true}
	e, err := New("ebook-convert", time.Minute, WithRunner(runner), WithExtraArgs("--no-default-epub-cover"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	output, err := e.Convert(context.Background(), source, formats.EPUB)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := []string{source, output, "--no-default-epub-cover"}
	if !slices.Equal(runner.args, want) {
		t.Fatalf("args = %q, want %q", runner.args, want)
	}
}

func TestConvertNonZeroExitCarriesStderr(t *testing.T) {
	script := writeScript(t, `echo "partial" > "$2"; echo "Unsupported input" >&2; exit 1`)
	source := writeSource(t, "Book.mobi")
	e, err := New(script, 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = e.Convert(context.Background(), source, formats.EPUB)
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unsupported input") {
		t.Fatalf("stderr missing from %v", err)
	}
	if _, statErr := os.Stat(OutputPath(source, formats.EPUB)); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("partial output left behind: %v", statErr)
	}
}

func TestConvertTimeout(t *testing.T) {
	script := writeScript(t, `sleep 30`)
	source := writeSource(t, "Book.mobi")
	e, err := New(script, 200*time.Millisecond, WithRunner(procexec.CommandRunner{WaitDelay: time.Second}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	_, err = e.Convert(context.Background(), source, formats.EPUB)
	if !errors.Is(err, services.ErrConversionTimeout) {
		t.Fatalf("expected ErrConversionTimeout, got %v", err)
	}
	if errors.Is(err, services.ErrConversionFailed) {
		t.Fatal("timeout must not also be classified as a plain failure")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

func TestConvertMissingOutputIsFailure(t *testing.T) {
	script := writeScript(t, `echo "looks fine" >&2; exit 0`)
	source := writeSource(t, "Book.txt")
	e, err := New(script, 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = e.Convert(context.Background(), source, formats.EPUB)
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
}

func TestConvertRemovesStaleOutput(t *testing.T) {
	source := writeSource(t, "Book.mobi")
	stale := OutputPath(source, formats.EPUB)
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	runner := &stubRunner{}
	e, err := New("ebook-convert", time.Minute, WithRunner(runner))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Convert(context.Background(), source, formats.EPUB); !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("stale output must not satisfy verification, got %v", err)
	}
}

func TestConvertRejectsSourceWithTargetExtension(t *testing.T) {
	source := writeSource(t, "Book.epub")
	e, err := New("ebook-convert", time.Minute, WithRunner(&stubRunner{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Convert(context.Background(), source, formats.EPUB); !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must be untouched: %v", err)
	}
}
