package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdejongh/mirrorsync/internal/platform"
	"github.com/sdejongh/mirrorsync/pkg/config"
	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/ratelimit"
)

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	if globalFlags.ConfigFile != "" {
		return config.LoadFromFile(globalFlags.ConfigFile)
	}
	return config.LoadDefault()
}

// applyFlagsToConfig overrides config values with command-line flags
func applyFlagsToConfig(cfg *config.Config, f *RunFlags) error {
	if len(f.Sources) > 0 {
		sources := make([]string, 0, len(f.Sources))
		for _, src := range f.Sources {
			normalized, err := platform.NormalizePath(src)
			if err != nil {
				return err
			}
			sources = append(sources, normalized)
		}
		cfg.Sources = sources
	}

	if f.Target != "" {
		normalized, err := platform.NormalizePath(f.Target)
		if err != nil {
			return err
		}
		cfg.Target = normalized
	}

	if f.Subfolder != "" {
		cfg.TargetSubfolder = f.Subfolder
	}
	if f.NoHost {
		cfg.PerHost = false
	}

	if len(f.Exclude) > 0 {
		cfg.Exclude = f.Exclude
	}

	if f.Compare != "" {
		method, err := models.ParseCompareMethod(f.Compare)
		if err != nil {
			return err
		}
		cfg.CompareMethod = method
	}

	if f.Bandwidth != "" {
		limit, err := ratelimit.ParseBandwidth(f.Bandwidth)
		if err != nil {
			return err
		}
		cfg.Performance.BandwidthLimit = limit
	}

	// Output format
	if f.Output != "" {
		cfg.Output.Format = f.Output
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	if f.LogFile != "" {
		cfg.Logging.File = f.LogFile
	}
	if f.LogFormat != "" {
		cfg.Logging.Format = f.LogFormat
	}
	switch {
	case f.LogLevel != "":
		cfg.Logging.Level = f.LogLevel
	case globalFlags.Verbose:
		cfg.Logging.Level = "info"
	case globalFlags.Quiet:
		cfg.Logging.Level = "error"
	}

	return cfg.Validate()
}

// validateLayout rejects source and target combinations that would copy the
// mirror into itself
func validateLayout(res *config.Resolved) error {
	for _, src := range res.Sources {
		info, err := os.Stat(src)
		if err == nil && !info.IsDir() {
			return fmt.Errorf("source is not a directory: %s", src)
		}

		if src == res.TargetBase {
			return fmt.Errorf("source and target cannot be the same: %s", src)
		}
		if isWithin(res.TargetBase, src) {
			return fmt.Errorf("target %s cannot be inside source directory %s", res.TargetBase, src)
		}
		if isWithin(src, res.TargetBase) {
			return fmt.Errorf("source %s cannot be inside the target directory", src)
		}
	}

	seen := make(map[string]string, len(res.Sources))
	for _, src := range res.Sources {
		name := filepath.Base(src)
		if other, ok := seen[name]; ok {
			fmt.Fprintf(os.Stderr, "Warning: sources %s and %s share the name %q and mirror into the same folder\n", other, src, name)
		}
		seen[name] = src
	}

	return nil
}

// isWithin reports whether p lies strictly below dir
func isWithin(p, dir string) bool {
	return strings.HasPrefix(p, dir+string(filepath.Separator))
}
