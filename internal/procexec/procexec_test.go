package procexec_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"libconv/internal/procexec"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts require a unix shell")
	}
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunCapturesStreamsSeparately(t *testing.T) {
	script := writeScript(t, `echo "out $1"; echo "err $2" >&2`)
	res, err := procexec.CommandRunner{}.Run(context.Background(), script, []string{"a b", "c;d"}, time.Second*5)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.StdoutText() != "out a b" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
	if res.StderrText() != "err c;d" {
		t.Fatalf("unexpected stderr %q", res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Fatalf("unexpected exit code %d", res.ExitCode)
	}
}

func TestRunReportsNonZeroExit(t *testing.T) {
	script := writeScript(t, `echo "bad input file" >&2; exit 3`)
	_, err := procexec.CommandRunner{}.Run(context.Background(), script, nil, 5*time.Second)
	var exitErr *procexec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 3 || exitErr.Stderr != "bad input file" {
		t.Fatalf("unexpected exit error %+v", exitErr)
	}
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	script := writeScript(t, `sleep 30 &
echo $! > "`+pidFile+`"
wait`)

	start := time.Now()
	_, err := procexec.CommandRunner{WaitDelay: time.Second}.Run(context.Background(), script, nil, 300*time.Millisecond)
	if !errors.Is(err, procexec.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}

	raw, readErr := os.ReadFile(pidFile)
	if readErr != nil {
		t.Fatalf("read pid file: %v", readErr)
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
	if convErr != nil {
		t.Fatalf("parse pid: %v", convErr)
	}
	deadline := time.Now().Add(3 * time.Second)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("grandchild %d still running after timeout", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunParentCancellationIsNotTimeout(t *testing.T) {
	script := writeScript(t, `sleep 30`)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := procexec.CommandRunner{WaitDelay: time.Second}.Run(ctx, script, nil, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, procexec.ErrTimeout) {
		t.Fatal("cancellation must not be reported as timeout")
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := procexec.CommandRunner{}.Run(context.Background(), filepath.Join(t.TempDir(), "missing"), nil, time.Second)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	var exitErr *procexec.ExitError
	if errors.As(err, &exitErr) {
		t.Fatalf("missing binary should not be an exit error: %v", err)
	}
}

// processAlive treats zombies as dead: the container init may never reap them.
func processAlive(pid int) bool {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return false
	}
	return fields[2] != "Z" && fields[2] != "X"
}
