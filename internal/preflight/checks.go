package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"libconv/internal/config"
	"libconv/internal/deps"
	"libconv/internal/procexec"
)

const versionProbeTimeout = 15 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckReadableFile verifies that path is a regular file the process can read.
func CheckReadableFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckSystemDeps evaluates the external tools required by cfg.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "calibredb",
			Command:     cfg.Library.CalibredbBinary,
			Description: "Required for listing the catalog and registering formats",
		},
		{
			Name:        "ebook-convert",
			Command:     cfg.Conversion.ConverterBinary,
			Description: "Required for format conversion",
		},
	}
	return deps.CheckBinaries(requirements)
}

// CheckToolVersion runs `binary --version` and reports the first output line.
func CheckToolVersion(ctx context.Context, runner procexec.Runner, name, binary string) Result {
	if runner == nil {
		runner = procexec.CommandRunner{}
	}
	res, err := runner.Run(ctx, binary, []string{"--version"}, versionProbeTimeout)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("version probe failed (%v)", err)}
	}
	line, _, _ := strings.Cut(res.StdoutText(), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		line = "version unknown"
	}
	return Result{Name: name, Passed: true, Detail: line}
}
