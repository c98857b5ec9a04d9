package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/mirrorsync/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"verbose output",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() *GlobalFlags {
	return &globalFlags
}

// RunFlags holds the flags shared by scan, backup and watch
type RunFlags struct {
	Sources      []string
	Target       string
	Subfolder    string
	NoHost       bool
	Exclude      []string
	Compare      string
	Output       string
	Report       string
	ReportFormat string
	Bandwidth    string
	Yes          bool
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

// addRunFlags binds the selection and logging flags to cmd
func addRunFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().StringArrayVarP(&f.Sources, "source", "s", nil, "source directory (repeatable; default: sources from config)")
	cmd.Flags().StringVarP(&f.Target, "target", "t", "", "target root, e.g. the backup drive (default: config or working directory)")
	cmd.Flags().StringVar(&f.Subfolder, "subfolder", "", "folder created under the target root (default: Backups)")
	cmd.Flags().BoolVar(&f.NoHost, "no-host", false, "do not add the host name below the subfolder")
	cmd.Flags().StringSliceVar(&f.Exclude, "exclude", nil, "glob patterns to exclude (replaces the configured list)")
	cmd.Flags().StringVar(&f.Compare, "compare", "", "compare method: timestamp_size, hash, xxhash")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "output format: human, json")

	cmd.Flags().StringVar(&f.LogFile, "log-file", "", "write diagnostic logs to file")
	cmd.Flags().StringVar(&f.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// addCopyFlags binds the flags only meaningful when files are copied
func addCopyFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().StringVarP(&f.Bandwidth, "bandwidth", "b", "", "bandwidth limit (e.g., \"10M\", \"1G\")")
	cmd.Flags().BoolVarP(&f.Yes, "yes", "y", false, "do not ask for confirmation when free space looks insufficient")
}
