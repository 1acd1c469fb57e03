package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sdejongh/fwdiffer/internal/platform"
	"github.com/sdejongh/fwdiffer/pkg/classify"
	"github.com/sdejongh/fwdiffer/pkg/compare"
	"github.com/sdejongh/fwdiffer/pkg/config"
	"github.com/sdejongh/fwdiffer/pkg/fuzzy"
	"github.com/sdejongh/fwdiffer/pkg/index"
	"github.com/sdejongh/fwdiffer/pkg/logging"
	"github.com/sdejongh/fwdiffer/pkg/models"
	"github.com/sdejongh/fwdiffer/pkg/output"
	"github.com/sdejongh/fwdiffer/pkg/ratelimit"
	"github.com/spf13/cobra"
)

// ExitError carries a non-zero exit code for a run that produced a report
type ExitError struct {
	Code   int
	Status models.DiffStatus
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("comparison finished with status %s", e.Status)
}

// NewRootCommand creates the fwdiffer command
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fwdiffer [flags] <firmware-old> <firmware-new>",
		Short: "Find changed binaries between two extracted firmware trees",
		Long: `fwdiffer compares two extracted firmware filesystem trees and reports the
executables and kernel modules that were added, deleted or meaningfully changed.
Binaries present in both trees are compared with ssdeep fuzzy hashes; a pair whose
similarity is at or below the threshold is reported as modified.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDiff,
	}

	AddGlobalFlags(cmd)
	addDiffFlags(cmd)

	cmd.AddCommand(NewConfigCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	oldRoot, newRoot, err := validateDiffArgs(args[0], args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagsToConfig(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	if platform.Nested(oldRoot, newRoot) {
		logger.Warn(ctx, "Firmware trees overlap", logging.Fields{"old": oldRoot, "new": newRoot})
	}

	if !cfg.Output.Quiet && output.IsTerminal(stderr) {
		printBanner(stderr, cfg.Output.Color)
	}

	indexOpts := index.Options{
		KeyMode: cfg.Compare.MatchBy,
		Exclude: cfg.Exclude,
		Logger:  logger,
	}
	oldIdx, err := index.Build(ctx, oldRoot, indexOpts)
	if err != nil {
		return err
	}
	newIdx, err := index.Build(ctx, newRoot, indexOpts)
	if err != nil {
		return err
	}

	var progress *output.Progress
	if cfg.Output.Progress && !diffFlags.Debug {
		progress = output.NewProgress(stderr)
	}

	opts := compare.Options{
		Threshold:         cfg.Compare.SimilarityThreshold,
		Workers:           cfg.Performance.MaxWorkers,
		AbortOnFirstError: cfg.Compare.AbortOnFirstError,
		Logger:            logger,
		OnProgress: func(p compare.Progress) {
			progress.Update(p.Processed, p.Total)
		},
	}
	if diffFlags.Debug {
		opts.OnDebug = debugPrinter(stderr)
	}

	hasher := fuzzy.NewHasher(cfg.Performance.BufferSize, cfg.Performance.FingerprintTimeout).
		WithReadLimit(ratelimit.NewLimiter(cfg.Performance.ReadLimit))

	engine, err := compare.NewEngine(classify.New(cfg.Compare.ExecutableTypes), hasher, opts)
	if err != nil {
		return err
	}

	result, err := engine.Diff(ctx, oldIdx, newIdx)
	progress.Finish()
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if err := writeReport(cfg, result, stdout); err != nil {
		return err
	}

	if status := result.Status(); status != models.StatusSuccess {
		return &ExitError{Code: status.ExitCode(), Status: status}
	}
	return nil
}

// writeReport renders the result and sends it to --output or stdout
func writeReport(cfg *config.Config, result *models.DiffResult, stdout io.Writer) error {
	toFile := diffFlags.Output != ""
	formatter, err := output.NewFormatter(cfg.Output.Format, output.Options{
		Color:        cfg.Output.Color && !toFile && output.IsTerminal(stdout),
		CountChanges: cfg.Output.CountChanges,
	})
	if err != nil {
		return err
	}

	data, err := output.Render(formatter, result)
	if err != nil {
		return err
	}

	if !toFile {
		_, err := stdout.Write(data)
		return err
	}

	if err := output.WriteReport(diffFlags.Output, data); err != nil {
		return err
	}
	if !cfg.Output.Quiet {
		fmt.Fprintf(stdout, "Results saved to %s\n", diffFlags.Output)
	}
	return nil
}
