package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/shotframe/pkg/cache"
	"github.com/matzehuels/shotframe/pkg/capture"
	"github.com/matzehuels/shotframe/pkg/config"
	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/observability"
	"github.com/matzehuels/shotframe/pkg/render"
	"github.com/matzehuels/shotframe/pkg/site"
)

// Runner executes the pipeline with its collaborators.
//
// The Runner holds no per-run state. Several goroutines may share one as
// long as they write to different output directories.
type Runner struct {
	Config   config.Config
	Capturer capture.Capturer
	Renderer render.Renderer
	Icons    *capture.IconFetcher // nil disables icon downloads
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCache stores rendered squares and fetched icons in c. A nil keyer
// means the default keyer.
func WithCache(c cache.Cache, keyer cache.Keyer) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.Cache = c
		}
		if keyer != nil {
			r.Keyer = keyer
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.Logger = l
		}
	}
}

// WithIconFetcher enables downloading touch icons.
func WithIconFetcher(f *capture.IconFetcher) RunnerOption {
	return func(r *Runner) { r.Icons = f }
}

// NewRunner creates a runner. Without options caching is disabled, icons
// are only taken from the capturer and nothing is logged.
func NewRunner(cfg config.Config, capturer capture.Capturer, renderer render.Renderer, opts ...RunnerOption) *Runner {
	r := &Runner{
		Config:   cfg,
		Capturer: capturer,
		Renderer: renderer,
		Cache:    cache.NewNullCache(),
		Keyer:    cache.NewDefaultKeyer(),
		Logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs all stages for one target.
func (r *Runner) Execute(ctx context.Context, target site.Target, opts Options) (res *Result, err error) {
	if err := opts.ValidateAndSetDefaults(r.Config); err != nil {
		return nil, err
	}

	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnPageStart(ctx, target.Domain)
	defer func() { hooks.OnPageComplete(ctx, target.Domain, time.Since(start), err) }()

	res = &Result{RunID: uuid.NewString(), Target: target}
	logger := r.Logger.With("domain", target.Domain, "run", res.RunID[:8])
	paths := NewPaths(opts.OutDir, target.Domain)

	// Stage 1: Capture
	captureStart := time.Now()
	page, err := r.captureDevices(ctx, target, opts, paths)
	if err != nil {
		return nil, err
	}
	res.ThemeColor = page.theme
	res.Screens = page.screens
	res.Stats.CaptureTime = time.Since(captureStart)
	logger.Info("captured devices", "count", len(page.screens), "theme", page.theme, "duration", res.Stats.CaptureTime)

	// Stage 2: Compose
	composeStart := time.Now()
	doc, err := r.composeMockup(ctx, page, opts, paths)
	if err != nil {
		return nil, err
	}
	res.Mockup = paths.Mockup()
	res.Placements = doc.Placements()
	res.Stats.ComposeTime = time.Since(composeStart)
	logger.Info("composed mockup", "file", res.Mockup, "duration", res.Stats.ComposeTime)

	// Stage 3: Render
	renderStart := time.Now()
	if err := r.renderSquares(ctx, logger, doc, page, target, opts, paths, res); err != nil {
		return nil, err
	}
	res.Stats.RenderTime = time.Since(renderStart)
	res.Stats.Total = time.Since(start)
	logger.Info("rendered squares", "duration", res.Stats.RenderTime, "warnings", len(res.Warnings))

	return res, nil
}

// Batch runs Execute for each input in order. A failing input is logged and
// recorded; the batch continues with the next one. Cancelling ctx stops the
// batch and returns the partial result with ctx's error.
func (r *Runner) Batch(ctx context.Context, inputs []string, opts Options) (*BatchResult, error) {
	if err := opts.ValidateAndSetDefaults(r.Config); err != nil {
		return nil, err
	}

	out := &BatchResult{}
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		target, err := site.ParseTarget(input)
		if err == nil {
			var res *Result
			if res, err = r.Execute(ctx, target, opts); err == nil {
				out.Results = append(out.Results, res)
				continue
			}
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		r.Logger.Error("page failed", "target", input, "fatal", errors.IsFatal(err), "err", err)
		out.Failures = append(out.Failures, Failure{Input: input, Err: fmt.Errorf("%s: %w", input, err)})
	}
	return out, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
