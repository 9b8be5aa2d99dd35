// Package validation runs configured comparison jobs: it loads both datasets,
// reconciles them, records metrics, writes reports and evaluates assertions.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/TFMV/recon/config"
	"github.com/TFMV/recon/metrics"
	"github.com/TFMV/recon/pkg/assertions"
	"github.com/TFMV/recon/pkg/core"
	"github.com/TFMV/recon/pkg/readers"
	"github.com/TFMV/recon/pkg/reconcile"
	"github.com/TFMV/recon/report"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one resolved comparison.
type Job struct {
	Name       string
	Source     core.SourceConfig
	Target     core.SourceConfig
	Config     core.ComparisonConfig
	Assertions []string
}

// DefaultAssertions are evaluated for jobs that configure none.
var DefaultAssertions = []string{assertions.NamePassed}

// JobsFromConfig resolves the selected comparisons of cfg into jobs.
func JobsFromConfig(cfg *config.Config, names ...string) ([]Job, error) {
	selected, err := cfg.Select(names...)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(selected))
	for _, cmp := range selected {
		jobs = append(jobs, Job{
			Name:       cmp.Name,
			Source:     cmp.Source,
			Target:     cmp.Target,
			Config:     cfg.ComparisonConfig(cmp),
			Assertions: cmp.Assertions,
		})
	}
	return jobs, nil
}

// Runner executes jobs.
type Runner struct {
	engine    *reconcile.Engine
	factory   *readers.Factory
	logger    *zap.Logger
	collector *metrics.Collector
	publisher *report.Publisher

	reportDir string
	formats   []string
	reportOpt report.Options

	now func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithEngine sets the comparison engine.
func WithEngine(e *reconcile.Engine) Option {
	return func(r *Runner) { r.engine = e }
}

// WithFactory sets the source factory. Defaults to readers.DefaultFactory.
func WithFactory(f *readers.Factory) Option {
	return func(r *Runner) { r.factory = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCollector records every run in c.
func WithCollector(c *metrics.Collector) Option {
	return func(r *Runner) { r.collector = c }
}

// WithReports writes reports in the given formats to dir.
func WithReports(dir string, formats []string, opts report.Options) Option {
	return func(r *Runner) {
		r.reportDir = dir
		r.formats = formats
		r.reportOpt = opts
	}
}

// WithPublisher uploads written reports.
func WithPublisher(p *report.Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		factory: readers.DefaultFactory,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.engine == nil {
		r.engine = reconcile.NewEngine(reconcile.WithLogger(r.logger))
	}
	return r
}

// Outcome is the result of one job.
type Outcome struct {
	Name      string
	Result    *reconcile.ComparisonResult
	Summary   metrics.Summary
	Reports   []string
	Published []string

	// Err is set when the job could not produce a result.
	Err error
	// AssertionErr joins every failed assertion.
	AssertionErr error
}

// Failed reports whether the job errored or failed an assertion.
func (o Outcome) Failed() bool {
	return o.Err != nil || o.AssertionErr != nil
}

// RunAll executes jobs in order and stops early only when ctx is cancelled.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, 0, len(jobs))
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, Outcome{Name: job.Name, Err: err})
			continue
		}
		outcomes = append(outcomes, r.Run(ctx, job))
	}
	return outcomes
}

// Run executes one job.
func (r *Runner) Run(ctx context.Context, job Job) Outcome {
	log := r.logger.With(zap.String("comparison", job.Name))
	started := r.now()
	out := Outcome{Name: job.Name}

	source, target, err := r.load(ctx, job)
	if err != nil {
		out.Err = err
		r.fail(log, started, err)
		return out
	}
	log.Info("datasets loaded",
		zap.String("source", source.Name),
		zap.Int("source_records", source.Len()),
		zap.String("target", target.Name),
		zap.Int("target_records", target.Len()),
	)

	result, err := r.engine.Compare(source, target, job.Config)
	if err != nil {
		out.Err = fmt.Errorf("comparison %s: %w", job.Name, err)
		r.fail(log, started, err)
		return out
	}
	out.Result = result
	out.Summary = metrics.Summarize(result)
	if r.collector != nil {
		r.collector.Observe(job.Name, result)
	}

	if r.reportDir != "" && len(r.formats) > 0 {
		run := report.NewRun(job.Name, result, started)
		run.Source, run.Target = source, target
		paths, err := report.SaveReports(run, r.reportDir, r.formats, r.reportOpt)
		out.Reports = paths
		if err != nil {
			out.Err = fmt.Errorf("comparison %s: %w", job.Name, err)
			log.Error("failed to write reports", zap.Error(err))
			return out
		}
		log.Info("reports written", zap.Strings("files", paths))

		if r.publisher != nil {
			objects, err := r.publisher.Publish(ctx, paths)
			out.Published = objects
			if err != nil {
				out.Err = fmt.Errorf("comparison %s: %w", job.Name, err)
				log.Error("failed to publish reports", zap.Error(err))
				return out
			}
			log.Info("reports published", zap.Strings("objects", objects))
		}
	}

	names := job.Assertions
	if len(names) == 0 {
		names = DefaultAssertions
	}
	out.AssertionErr = assertions.Evaluate(result, names...)
	if out.AssertionErr != nil {
		log.Warn("assertions failed", zap.Error(out.AssertionErr))
	}
	return out
}

func (r *Runner) fail(log *zap.Logger, started time.Time, err error) {
	log.Error("comparison failed", zap.Error(err))
	if r.collector != nil {
		r.collector.ObserveError(r.now().Sub(started))
	}
}

// load reads the source and target datasets concurrently.
func (r *Runner) load(ctx context.Context, job Job) (*core.Dataset, *core.Dataset, error) {
	var source, target *core.Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ds, err := r.loadOne(gctx, "source", job.Source)
		source = ds
		return err
	})
	g.Go(func() error {
		ds, err := r.loadOne(gctx, "target", job.Target)
		target = ds
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("comparison %s: %w", job.Name, err)
	}
	return source, target, nil
}

func (r *Runner) loadOne(ctx context.Context, role string, cfg core.SourceConfig) (*core.Dataset, error) {
	src, err := r.factory.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", role, err)
	}
	defer src.Close()

	ds, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", role, err)
	}
	return ds, nil
}
