package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/sdejongh/fwdiffer/internal/platform"
	"github.com/sdejongh/fwdiffer/pkg/config"
	"github.com/sdejongh/fwdiffer/pkg/logging"
	"github.com/sdejongh/fwdiffer/pkg/models"
	"github.com/spf13/cobra"
)

// validateDiffArgs checks both tree roots and returns their absolute paths
func validateDiffArgs(oldArg, newArg string) (string, string, error) {
	oldRoot, err := validateRoot(oldArg)
	if err != nil {
		return "", "", err
	}
	newRoot, err := validateRoot(newArg)
	if err != nil {
		return "", "", err
	}
	return oldRoot, newRoot, nil
}

func validateRoot(arg string) (string, error) {
	root, err := platform.NormalizePath(arg)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &models.NotFoundError{Path: arg, Err: err}
	} else if err != nil {
		return "", fmt.Errorf("failed to access %s: %w", arg, err)
	} else if !info.IsDir() {
		return "", &models.NotADirectoryError{Path: arg}
	}

	return root, nil
}

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	return config.Load(globalFlags.ConfigFile)
}

// applyFlagsToConfig overrides config values with command-line flags
func applyFlagsToConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	// 0 is a valid threshold, so only an explicit flag overrides the file
	if flags.Changed("similarity-threshold") {
		cfg.Compare.SimilarityThreshold = diffFlags.Threshold
	}

	if diffFlags.MatchBy != "" {
		cfg.Compare.MatchBy = models.KeyMode(diffFlags.MatchBy)
	}

	if diffFlags.KeepGoing {
		cfg.Compare.AbortOnFirstError = false
	}

	if diffFlags.Parallel > 0 {
		cfg.Performance.MaxWorkers = diffFlags.Parallel
	}

	if diffFlags.ReadLimit > 0 {
		cfg.Performance.ReadLimit = diffFlags.ReadLimit
	}

	if len(diffFlags.Exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, diffFlags.Exclude...)
	}

	if diffFlags.Format != "" {
		cfg.Output.Format = diffFlags.Format
	}

	if diffFlags.CountChanges {
		cfg.Output.CountChanges = true
	}

	if diffFlags.NoColor {
		cfg.Output.Color = false
	}

	if diffFlags.NoProgress {
		cfg.Output.Progress = false
	}

	if diffFlags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = diffFlags.LogFile
	}
	if diffFlags.LogFormat != "" {
		cfg.Logging.Format = diffFlags.LogFormat
	}
	if diffFlags.LogLevel != "" {
		cfg.Logging.Level = diffFlags.LogLevel
	}

	// Verbose raises the log level and forces the progress bar
	if globalFlags.Verbose {
		cfg.Output.Progress = true
		if diffFlags.LogLevel == "" {
			cfg.Logging.Level = "info"
		}
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}
}

// newLogger creates the run logger from the logging section
func newLogger(cfg *config.Config, stderr io.Writer) (logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NewNullLogger(), nil
	}

	format := logging.ParseFormat(cfg.Logging.Format)
	level := logging.ParseLevel(cfg.Logging.Level)

	if cfg.Logging.File == "" {
		return logging.NewStreamLogger(stderr, format, level), nil
	}

	logger, err := logging.NewFileLogger(cfg.Logging.File, format, level)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger, nil
}
