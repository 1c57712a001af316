// Package cli implements the shotframe command-line interface.
//
// The CLI is built with cobra and logs with charmbracelet/log. Commands:
//   - mockup: compose device mockups and social squares for web pages
//   - square: fit a single image into a social square
//   - viewport: show the capture size chosen per device
//   - inline: embed linked screenshots into an SVG
//   - render: rasterize a mockup SVG to PNG or PDF
//   - serve: expose square crops and viewport sizes over HTTP
//   - cache: manage the local cache
//
// All commands support --verbose (-v) for debug logging. The logger is
// attached to the command context and read back with loggerFromContext.
package cli

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/shotframe/pkg/cache"
	"github.com/matzehuels/shotframe/pkg/capture"
	"github.com/matzehuels/shotframe/pkg/config"
	"github.com/matzehuels/shotframe/pkg/httputil"
	"github.com/matzehuels/shotframe/pkg/observability"
	"github.com/matzehuels/shotframe/pkg/pipeline"
	"github.com/matzehuels/shotframe/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "shotframe"

	// httpCacheTTL is how long downloaded icons stay fresh on disk.
	httpCacheTTL = 24 * time.Hour
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. At debug level pipeline, cache
// and HTTP events are traced through the logger as well.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		observability.NewLogHooks(c.Logger).Register()
	}
}

// loadConfig reads the --config file over the built-in defaults. A
// non-empty template path replaces the configured template.
func (c *CLI) loadConfig(template string) (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if template != "" {
		cfg.Template = template
	}
	return cfg, nil
}

// =============================================================================
// Cache Factory
// =============================================================================

// cacheFlags selects the artifact cache backend.
type cacheFlags struct {
	noCache  bool
	redisURL string
	mongoURL string
}

func (f *cacheFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&f.redisURL, "cache-redis", "", "cache in Redis instead of on disk (redis://host:6379/0)")
	cmd.Flags().StringVar(&f.mongoURL, "cache-mongo", "", "cache in MongoDB instead of on disk (mongodb://host:27017/db)")
	cmd.MarkFlagsMutuallyExclusive("no-cache", "cache-redis", "cache-mongo")
}

// openCache returns the backend chosen by f. Keys are scoped when scope is
// non-empty. An unusable cache directory disables caching.
func (c *CLI) openCache(ctx context.Context, f cacheFlags, scope string) (cache.Cache, cache.Keyer, error) {
	var keyer cache.Keyer = cache.NewDefaultKeyer()
	if scope != "" {
		keyer = cache.NewScopedKeyer(nil, scope)
	}

	switch {
	case f.noCache:
		return cache.NewNullCache(), keyer, nil
	case f.redisURL != "":
		rc, err := cache.NewRedisCache(ctx, f.redisURL, appName+":")
		if err != nil {
			return nil, nil, err
		}
		return rc, keyer, nil
	case f.mongoURL != "":
		mc, err := cache.NewMongoCache(ctx, f.mongoURL, appName+":")
		if err != nil {
			return nil, nil, err
		}
		return mc, keyer, nil
	}

	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("caching disabled", "err", err)
		return cache.NewNullCache(), keyer, nil
	}
	fc, err := cache.NewFileCache(filepath.Join(dir, "artifacts"))
	if err != nil {
		return nil, nil, err
	}
	return fc, keyer, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner reading screenshots from captureDir.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, captureDir string, f cacheFlags) (*pipeline.Runner, error) {
	store, keyer, err := c.openCache(ctx, f, "")
	if err != nil {
		return nil, err
	}

	var clientOpts []httputil.ClientOption
	if !f.noCache {
		if dir, err := cacheDir(); err == nil {
			if hc, err := httputil.NewCache(filepath.Join(dir, "http"), httpCacheTTL); err == nil {
				clientOpts = append(clientOpts, httputil.WithCache(hc))
			}
		}
	}

	return pipeline.NewRunner(cfg,
		capture.NewDir(captureDir),
		render.NewCached(render.NewRSVG(), store, keyer),
		pipeline.WithCache(store, keyer),
		pipeline.WithIconFetcher(capture.NewIconFetcher(httputil.NewClient(clientOpts...))),
		pipeline.WithLogger(c.Logger),
	), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/shotframe/).
func cacheDir() (string, error) {
	return cache.DefaultDir(appName)
}
