package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"libconv/internal/config"
	"libconv/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	library    *testsupport.FakeLibrary
	configPath string
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("CALIBRE_LIBRARY", "")

	lib := testsupport.NewFakeLibrary(t, cfg)
	for _, fn := range mutate {
		fn(cfg)
	}
	env := &cliTestEnv{
		cfg:        cfg,
		library:    lib,
		configPath: filepath.Join(base, "config.toml"),
	}
	env.writeConfig(t)
	return env
}

func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	data, err := toml.Marshal(e.cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(e.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent (stat err: %v)", path, err)
	}
}
