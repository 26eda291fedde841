// Package converter wraps the external e-book conversion tool.
package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"libconv/internal/formats"
	"libconv/internal/logging"
	"libconv/internal/procexec"
	"libconv/internal/services"
)

// DefaultTimeout bounds a single conversion when none is configured.
const DefaultTimeout = 300 * time.Second

// Option configures an Executor.
type Option func(*Executor)

// WithRunner injects a custom process runner (primarily for tests).
func WithRunner(runner procexec.Runner) Option {
	return func(e *Executor) {
		if runner != nil {
			e.runner = runner
		}
	}
}

// WithExtraArgs appends arguments after the source and output paths.
func WithExtraArgs(args ...string) Option {
	return func(e *Executor) {
		e.extraArgs = append([]string(nil), args...)
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Executor runs one conversion at a time through the converter binary.
type Executor struct {
	binary    string
	timeout   time.Duration
	extraArgs []string
	runner    procexec.Runner
	logger    *slog.Logger
}

// New constructs an executor. A non-positive timeout selects DefaultTimeout.
func New(binary string, timeout time.Duration, opts ...Option) (*Executor, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("converter binary required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	executor := &Executor{
		binary:  binary,
		timeout: timeout,
		runner:  procexec.CommandRunner{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(executor)
	}
	executor.logger = logging.NewComponentLogger(executor.logger, "converter")
	return executor, nil
}

// Timeout returns the per-conversion wall-clock bound.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// OutputPath derives the scratch output location: the source's directory and
// base name with the target extension.
func OutputPath(sourcePath string, target formats.Format) string {
	dir := filepath.Dir(sourcePath)
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(dir, base+target.Extension())
}

// Convert turns sourcePath into the target format and returns the output path.
// The output is guaranteed to exist when err is nil.
func (e *Executor) Convert(ctx context.Context, sourcePath string, target formats.Format) (string, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return "", services.Wrap(services.ErrConversionFailed, "converting", "", "source path required", nil)
	}
	if target == "" {
		return "", services.Wrap(services.ErrConversionFailed, "converting", "", "target format required", nil)
	}
	output := OutputPath(sourcePath, target)
	if output == sourcePath {
		return "", services.Wrap(services.ErrConversionFailed, "converting", "", fmt.Sprintf("source %s already has target extension", sourcePath), nil)
	}
	if err := removeStale(output); err != nil {
		return "", services.Wrap(services.ErrConversionFailed, "converting", "remove stale output", output, err)
	}

	args := append([]string{sourcePath, output}, e.extraArgs...)
	e.logger.Debug("starting conversion",
		logging.String("source", sourcePath),
		logging.String("output", output),
		logging.Duration("timeout", e.timeout),
	)
	res, err := e.runner.Run(ctx, e.binary, args, e.timeout)
	if err != nil {
		e.discardPartial(output)
		if errors.Is(err, procexec.ErrTimeout) {
			return "", services.Wrap(services.ErrConversionTimeout, "converting", e.binary, fmt.Sprintf("exceeded %s", e.timeout), err)
		}
		return "", services.Wrap(services.ErrConversionFailed, "converting", e.binary, "", err)
	}

	info, statErr := os.Stat(output)
	if statErr != nil || !info.Mode().IsRegular() {
		msg := "converter reported success but produced no output"
		if stderr := res.StderrText(); stderr != "" {
			msg += ": " + stderr
		}
		return "", services.Wrap(services.ErrConversionFailed, "converting", e.binary, msg, statErr)
	}
	e.logger.Debug("conversion finished",
		logging.String("output", output),
		logging.Duration("elapsed", res.Duration),
	)
	return output, nil
}

func removeStale(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (e *Executor) discardPartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(e.logger, "failed to remove partial conversion output", "partial_output_cleanup_failed",
			logging.String("output", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file manually"),
			logging.String(logging.FieldImpact, "stale file left next to the source"),
		)
	}
}
