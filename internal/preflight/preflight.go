package preflight

import (
	"context"
	"strings"

	"acrscan/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Network checks are skipped when skipNetwork is set.
func RunAll(ctx context.Context, cfg *config.Config, skipNetwork bool) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if strings.TrimSpace(cfg.Paths.OutputDir) != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}
	if cfg.Cache.Enabled {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	}

	results = append(results, CheckCredentials(cfg))
	results = append(results, CheckMediaTools(cfg)...)

	if !skipNetwork {
		results = append(results, CheckACRCloudFromConfig(ctx, cfg))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
