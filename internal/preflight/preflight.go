package preflight

import (
	"context"
	"fmt"

	"libconv/internal/config"
	"libconv/internal/procexec"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The metadata.db check only runs when the catalog is read from it.
func RunAll(ctx context.Context, cfg *config.Config, runner procexec.Runner) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Library directory", cfg.Library.Path))
	if cfg.Library.UseMetadataDB {
		results = append(results, CheckReadableFile("Catalog database", cfg.MetadataDBPath()))
	}
	if cfg.Logging.Dir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Logging.Dir))
	}

	for _, status := range CheckSystemDeps(cfg) {
		if !status.Available {
			results = append(results, Result{Name: status.Name, Detail: fmt.Sprintf("%s; %s", status.Detail, status.Description)})
			continue
		}
		result := CheckToolVersion(ctx, runner, status.Name, status.Path)
		if result.Passed {
			result.Detail = fmt.Sprintf("%s (%s)", status.Path, result.Detail)
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
