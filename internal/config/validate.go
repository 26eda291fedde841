package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"libconv/internal/formats"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLibrary() error {
	if strings.TrimSpace(c.Library.Path) == "" {
		return errors.New("library.path must be set (or export CALIBRE_LIBRARY)")
	}
	if c.Library.CatalogTimeoutSeconds <= 0 {
		return errors.New("library.catalog_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateConversion() error {
	target, err := formats.Parse(c.Conversion.TargetFormat)
	if err != nil {
		return fmt.Errorf("conversion.target_format: %w", err)
	}
	if len(c.Conversion.SourceFormats) == 0 {
		return errors.New("conversion.source_formats must include at least one format")
	}
	seen := make(map[formats.Format]struct{}, len(c.Conversion.SourceFormats))
	for _, value := range c.Conversion.SourceFormats {
		format, err := formats.Parse(value)
		if err != nil {
			return fmt.Errorf("conversion.source_formats: %w", err)
		}
		if format == target {
			return fmt.Errorf("conversion.source_formats must not include the target format %q", target)
		}
		if _, ok := seen[format]; ok {
			return fmt.Errorf("conversion.source_formats lists %q more than once", format)
		}
		seen[format] = struct{}{}
	}
	if c.Conversion.TimeoutSeconds <= 0 {
		return errors.New("conversion.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.Limit < 0 {
		return errors.New("run.limit must be >= 0")
	}
	if c.Run.Schedule != "" {
		if _, err := cron.ParseStandard(c.Run.Schedule); err != nil {
			return fmt.Errorf("run.schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}
