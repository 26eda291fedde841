package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"libconv/internal/config"
	"libconv/internal/formats"
)

// Options is the explicit configuration handed to a Driver.
type Options struct {
	LibraryPath           string
	EligibleSourceFormats []formats.Format
	TargetFormat          formats.Format
	Timeout               time.Duration
	// Limit caps the number of conversion attempts per run; zero is unlimited.
	Limit int
	// IDs restricts the run to these documents when non-empty.
	IDs []string
	// Progress receives one human-readable line per document.
	Progress io.Writer
}

// OptionsFromConfig builds driver options from a validated config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, errors.New("config required")
	}
	sources, err := formats.ParseList(cfg.Conversion.SourceFormats)
	if err != nil {
		return Options{}, fmt.Errorf("conversion.source_formats: %w", err)
	}
	target, err := formats.Parse(cfg.Conversion.TargetFormat)
	if err != nil {
		return Options{}, fmt.Errorf("conversion.target_format: %w", err)
	}
	return Options{
		LibraryPath:           cfg.Library.Path,
		EligibleSourceFormats: sources,
		TargetFormat:          target,
		Timeout:               cfg.ConversionTimeout(),
		Limit:                 cfg.Run.Limit,
	}, nil
}
