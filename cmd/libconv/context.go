package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"libconv/internal/catalog"
	"libconv/internal/config"
	"libconv/internal/converter"
	"libconv/internal/library"
	"libconv/internal/logging"
	"libconv/internal/pipeline"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = strings.ToLower(level)
				if err := cfg.Validate(); err != nil {
					c.configErr = err
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// Constructors are package variables so tests can observe the wiring.
var (
	openMetadataDB   = catalog.OpenMetadataDB
	newCatalogClient = catalog.New
)

// pipelineRuntime bundles the collaborators one run needs.
type pipelineRuntime struct {
	driver  *pipeline.Driver
	catalog *catalog.Client
}

func (r *pipelineRuntime) Close() error {
	if r == nil || r.catalog == nil {
		return nil
	}
	return r.catalog.Close()
}

// buildPipeline wires catalog, converter, and mutator from cfg. tweak, when
// non-nil, adjusts the driver options derived from config.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress io.Writer, tweak func(*pipeline.Options)) (*pipelineRuntime, error) {
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Progress = progress
	if tweak != nil {
		tweak(&opts)
	}

	catalogOpts := []catalog.Option{catalog.WithLogger(logger)}
	var db *catalog.MetadataDB
	if cfg.Library.UseMetadataDB {
		db, err = openMetadataDB(ctx, cfg.MetadataDBPath(), cfg.Library.Path)
		if err != nil {
			return nil, err
		}
		catalogOpts = append(catalogOpts, catalog.WithMetadataDB(db))
	}
	client, err := newCatalogClient(cfg.Library.Path, cfg.Library.CalibredbBinary, cfg.CatalogTimeout(), catalogOpts...)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog client: %w", err)
	}

	conv, err := converter.New(cfg.Conversion.ConverterBinary, opts.Timeout,
		converter.WithExtraArgs(cfg.Conversion.ExtraArgs...),
		converter.WithLogger(logger),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("converter: %w", err)
	}
	mutator, err := library.New(client, logger)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("library mutator: %w", err)
	}
	driver, err := pipeline.NewDriver(opts, client, conv, mutator, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &pipelineRuntime{driver: driver, catalog: client}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
