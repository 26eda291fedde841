package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	c.normalizeConversion()
	if err := c.normalizeRun(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeLibrary() error {
	if value, ok := os.LookupEnv("CALIBRE_LIBRARY"); ok && strings.TrimSpace(value) != "" {
		if strings.TrimSpace(c.Library.Path) == "" || c.Library.Path == defaultLibraryPath {
			c.Library.Path = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Library.Path, err = expandPath(strings.TrimSpace(c.Library.Path)); err != nil {
		return fmt.Errorf("library.path: %w", err)
	}
	c.Library.CalibredbBinary = strings.TrimSpace(c.Library.CalibredbBinary)
	if c.Library.CalibredbBinary == "" {
		c.Library.CalibredbBinary = defaultCalibredbBinary
	}
	return nil
}

func (c *Config) normalizeConversion() {
	c.Conversion.TargetFormat = normalizeFormatTag(c.Conversion.TargetFormat)
	formats := make([]string, 0, len(c.Conversion.SourceFormats))
	for _, value := range c.Conversion.SourceFormats {
		if tag := normalizeFormatTag(value); tag != "" {
			formats = append(formats, tag)
		}
	}
	c.Conversion.SourceFormats = formats
	c.Conversion.ConverterBinary = strings.TrimSpace(c.Conversion.ConverterBinary)
	if c.Conversion.ConverterBinary == "" {
		c.Conversion.ConverterBinary = defaultConverterBinary
	}
	args := c.Conversion.ExtraArgs[:0]
	for _, arg := range c.Conversion.ExtraArgs {
		if strings.TrimSpace(arg) != "" {
			args = append(args, arg)
		}
	}
	c.Conversion.ExtraArgs = args
}

func (c *Config) normalizeRun() error {
	var err error
	if c.Run.LockFile, err = expandPath(strings.TrimSpace(c.Run.LockFile)); err != nil {
		return fmt.Errorf("run.lock_file: %w", err)
	}
	c.Run.Schedule = strings.Join(strings.Fields(c.Run.Schedule), " ")
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func normalizeFormatTag(value string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "."))
}
