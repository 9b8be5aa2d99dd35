package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/TFMV/recon/config"
	"github.com/TFMV/recon/logger"
	"github.com/TFMV/recon/metrics"
	"github.com/TFMV/recon/pkg/reconcile"
	"github.com/TFMV/recon/report"
	"github.com/TFMV/recon/validation"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errComparisonsFailed makes the process exit non-zero.
var errComparisonsFailed = errors.New("one or more comparisons failed")

// CompareOptions represents the options for the compare command.
type CompareOptions struct {
	ConfigPath string
	Only       []string
	Workers    int
	ReportDir  string
	Formats    []string
	LogLevel   string
	NoProgress bool
}

func newCompareCommand() *cobra.Command {
	options := &CompareOptions{Workers: 1}

	cmd := &cobra.Command{
		Use:   "compare --config FILE",
		Short: "Run the comparisons defined in a config file",
		Long: `The compare command loads every configured comparison (or those named with
--only), reconciles source and target, writes reports and evaluates assertions.
The command fails if any comparison errors or fails an assertion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, options)
		},
	}

	cmd.Flags().StringVarP(&options.ConfigPath, "config", "c", "", "Path to the YAML config file")
	cmd.Flags().StringSliceVar(&options.Only, "only", nil, "Run only the named comparisons")
	cmd.Flags().IntVarP(&options.Workers, "workers", "w", options.Workers, "Number of comparison workers")
	cmd.Flags().StringVar(&options.ReportDir, "report-dir", "", "Report directory (overrides reports.dir)")
	cmd.Flags().StringSliceVarP(&options.Formats, "format", "f", nil,
		"Report formats: "+strings.Join(report.Formats, ", ")+" (overrides reports.formats)")
	cmd.Flags().StringVar(&options.LogLevel, "log-level", "", "Log level (overrides log.level)")
	cmd.Flags().BoolVar(&options.NoProgress, "no-progress", false, "Disable the progress spinner")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runCompare(cmd *cobra.Command, options *CompareOptions) error {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if options.LogLevel != "" {
		cfg.Log.Level = options.LogLevel
	}
	if options.ReportDir != "" {
		cfg.Reports.Dir = options.ReportDir
	}
	if len(options.Formats) > 0 {
		for _, format := range options.Formats {
			if _, err := report.NewGenerator(format, report.Options{}); err != nil {
				return err
			}
		}
		cfg.Reports.Formats = options.Formats
	}

	jobs, err := validation.JobsFromConfig(cfg, options.Only...)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	runnerOpts := []validation.Option{
		validation.WithLogger(log),
		validation.WithEngine(reconcile.NewEngine(reconcile.WithLogger(log), reconcile.WithWorkers(options.Workers))),
		validation.WithCollector(metrics.NewCollector()),
		validation.WithReports(cfg.Reports.Dir, cfg.Reports.Formats, cfg.ReportOptions()),
	}
	if cfg.Reports.Publish.Enabled {
		pub, err := report.NewPublisher(cfg.Reports.Publish)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, validation.WithPublisher(pub))
	}
	runner := validation.NewRunner(runnerOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	failed := 0
	for _, job := range jobs {
		var outcome validation.Outcome
		if err := ctx.Err(); err != nil {
			outcome = validation.Outcome{Name: job.Name, Err: err}
		} else {
			s := startSpinner(cmd.ErrOrStderr(), job.Name, options.NoProgress)
			outcome = runner.Run(ctx, job)
			s.Stop()
		}

		printOutcome(out, outcome)
		if outcome.Failed() {
			failed++
		}
	}

	log.Info("run complete", zap.Int("comparisons", len(jobs)), zap.Int("failed", failed))
	fmt.Fprintf(out, "\n%d comparison(s), %d failed\n", len(jobs), failed)
	if failed > 0 {
		return errComparisonsFailed
	}
	return nil
}

type progress interface{ Stop() }

type noProgress struct{}

func (noProgress) Stop() {}

func startSpinner(w io.Writer, name string, disabled bool) progress {
	if disabled {
		return noProgress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " comparing " + name
	s.Start()
	return s
}

func printOutcome(w io.Writer, o validation.Outcome) {
	if o.Err != nil {
		fmt.Fprintf(w, "%-24s ERROR   %v\n", o.Name, o.Err)
		return
	}
	r := o.Result
	fmt.Fprintf(w, "%-24s %-7s matched=%d mismatched=%d missing=%d extra=%d mismatch=%.2f%% (%s)\n",
		o.Name, r.Status(), r.MatchedRecords(), r.MismatchedRecords(), r.MissingRecords(), r.ExtraRecords(),
		r.Metrics().MismatchPercentage, r.Duration().Round(time.Millisecond))
	for _, v := range r.Violations() {
		fmt.Fprintf(w, "  - %s\n", v)
	}
	for _, p := range o.Reports {
		fmt.Fprintf(w, "  report: %s\n", p)
	}
	if o.AssertionErr != nil {
		fmt.Fprintf(w, "  assertions failed:\n    %v\n", o.AssertionErr)
	}
}
