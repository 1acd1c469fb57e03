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

// DiffFlags holds the root command's comparison flags
type DiffFlags struct {
	Debug        bool
	CountChanges bool
	Threshold    int
	Output       string
	Format       string
	Parallel     int
	ReadLimit    int64
	Exclude      []string
	KeepGoing    bool
	MatchBy      string
	NoProgress   bool
	NoColor      bool
	LogFile      string
	LogFormat    string
	LogLevel     string
}

var (
	globalFlags GlobalFlags
	diffFlags   DiffFlags
)

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/fwdiffer/config.yaml)",
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

func addDiffFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&diffFlags.Debug, "debug", false, "print fuzzy hashes and similarity for every compared pair")
	f.BoolVar(&diffFlags.CountChanges, "count-changes", false, "append modified/added/deleted totals to the report")
	f.IntVar(&diffFlags.Threshold, "similarity-threshold", 30, "pairs scoring at or below this similarity (0-100) are reported as modified")
	f.StringVarP(&diffFlags.Output, "output", "o", "", "write the report to this file instead of stdout")
	f.StringVar(&diffFlags.Format, "format", "", "report format: human, json")
	f.IntVarP(&diffFlags.Parallel, "parallel", "p", 0, "number of pairs compared concurrently (default: number of CPUs)")
	f.Int64Var(&diffFlags.ReadLimit, "read-limit", 0, "limit file reads to this many bytes per second (0 = unlimited)")
	f.StringSliceVar(&diffFlags.Exclude, "exclude", []string{}, "glob patterns to exclude (repeatable, ** supported, trailing / for directories)")
	f.BoolVar(&diffFlags.KeepGoing, "keep-going", false, "record unreadable pairs and continue instead of aborting")
	f.StringVar(&diffFlags.MatchBy, "match-by", "", "pair files by: basename, path")
	f.BoolVar(&diffFlags.NoProgress, "no-progress", false, "disable the progress bar")
	f.BoolVar(&diffFlags.NoColor, "no-color", false, "disable colors in the report")
	f.StringVar(&diffFlags.LogFile, "log-file", "", "write logs to this file instead of stderr")
	f.StringVar(&diffFlags.LogFormat, "log-format", "", "log format: text, json")
	f.StringVar(&diffFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}
