package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "calibredb")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "calibredb", Command: present},
		{Name: "ebook-convert", Command: "clearly-not-present-binary"},
		{Name: "unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for empty command: %#v", results[2])
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "ebook-convert" {
		t.Fatalf("Missing = %#v", missing)
	}
}

func TestCheckBinariesUsesPath(t *testing.T) {
	binDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(binDir, "ebook-convert"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	results := CheckBinaries([]Requirement{{Name: "ebook-convert", Command: "ebook-convert"}})
	if !results[0].Available || results[0].Path != filepath.Join(binDir, "ebook-convert") {
		t.Fatalf("unexpected status %#v", results[0])
	}
}
