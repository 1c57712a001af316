// Package pipeline orchestrates one mockup run per page.
//
// For every target the pipeline captures the page once per device, embeds
// the screenshots into the mockup template and writes three square social
// images. CLI and preview server share this package so both produce the same
// files for the same inputs.
//
// # Stages
//
//  1. Capture: one viewport screenshot per device, sized by [viewport.Selector]
//     and scrolled to the device's preset; the first theme color and touch
//     icon any capture reports are kept for the page.
//  2. Compose: the screenshots replace the template placeholders and the
//     result is written as mockup-{domain}.svg.
//  3. Render: the inlined mockup is rasterized and squared; a full-page
//     capture and the touch icon are squared on the page's background.
//
// # Usage
//
//	runner := pipeline.NewRunner(cfg, capture.NewDir("captures"), render.NewRSVG(),
//	    pipeline.WithCache(c, nil),
//	    pipeline.WithLogger(logger))
//	result, err := runner.Execute(ctx, target, pipeline.Options{OutDir: "dist"})
//
// [Runner.Batch] runs many targets sequentially and isolates their failures.
package pipeline

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/shotframe/pkg/config"
	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/site"
	"github.com/matzehuels/shotframe/pkg/template"
	"github.com/matzehuels/shotframe/pkg/viewport"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultOutDir is where outputs are written when Options.OutDir is empty.
	DefaultOutDir = "dist"

	// DefaultScroll is the scroll preset for devices without an explicit one.
	DefaultScroll = "top"

	// InstagramViewport is the edge length of the square viewport capture.
	InstagramViewport = 1080
)

// Artifact names reported to the pipeline hooks.
const (
	ArtifactMockupSVG    = "mockup-svg"
	ArtifactMockupSquare = "mockup-square"
	ArtifactFullSquare   = "full-square"
	ArtifactIconSquare   = "icon-square"
	ArtifactInstagram    = "instagram"
)

// =============================================================================
// Options
// =============================================================================

// Options configures one run. The zero value is valid.
type Options struct {
	OutDir          string   `json:"out_dir,omitempty"`
	Scrolls         []string `json:"scrolls,omitempty"` // one preset per device, template order
	InstagramScroll string   `json:"instagram_scroll,omitempty"`
	SkipInstagram   bool     `json:"skip_instagram,omitempty"` // no 1080x1080 viewport capture

	// Template overrides the configured template.
	Template *template.Document `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks the options against cfg and fills defaults.
// Calling it again is a no-op.
func (o *Options) ValidateAndSetDefaults(cfg config.Config) error {
	if o.validated {
		return nil
	}
	if o.OutDir == "" {
		o.OutDir = DefaultOutDir
	}
	if len(o.Scrolls) == 0 {
		o.Scrolls = make([]string, len(cfg.Devices))
		for i := range o.Scrolls {
			o.Scrolls[i] = DefaultScroll
		}
	}
	if len(o.Scrolls) != len(cfg.Devices) {
		return errors.New(errors.ErrCodeInvalidInput, "need %d scroll presets (%v), got %d", len(cfg.Devices), cfg.Kinds(), len(o.Scrolls))
	}
	scrolls := make([]string, len(o.Scrolls))
	for i, s := range o.Scrolls {
		scrolls[i] = strings.ToLower(strings.TrimSpace(s))
	}
	o.Scrolls = scrolls
	o.InstagramScroll = strings.ToLower(strings.TrimSpace(o.InstagramScroll))
	if o.InstagramScroll == "" {
		o.InstagramScroll = DefaultScroll
	}
	if err := viewport.ValidatePresets(cfg.ScrollPresets, o.Scrolls...); err != nil {
		return err
	}
	if err := viewport.ValidatePresets(cfg.ScrollPresets, o.InstagramScroll); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Result describes the files written for one page.
type Result struct {
	RunID  string
	Target site.Target

	// ThemeColor is the page's declared theme color, empty when none was
	// found. IconURL is the touch icon that was used, if any.
	ThemeColor string
	IconURL    string

	Mockup         string   // composed SVG
	MockupSquare   string   // square of the rendered mockup
	FullPageSquare string   // square of the full-page capture
	IconSquare     string   // empty when the page has no usable icon
	InstagramShot  string   // empty when skipped or failed
	Screens        []string // raw device captures, template order

	Placements []template.Placement
	Warnings   []string

	Stats     Stats
	CacheInfo CacheInfo
}

// Files returns every output path in the order they were produced.
func (r *Result) Files() []string {
	var out []string
	for _, p := range []string{r.Mockup, r.MockupSquare, r.FullPageSquare, r.InstagramShot, r.IconSquare} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Stats contains timing information.
type Stats struct {
	CaptureTime time.Duration
	ComposeTime time.Duration
	RenderTime  time.Duration
	Total       time.Duration
}

// CacheInfo tracks which squares came from the cache.
type CacheInfo struct {
	MockupHit   bool
	FullPageHit bool
	IconHit     bool
}

// Failure is a target that could not be processed.
type Failure struct {
	Input string
	Err   error
}

// BatchResult collects the outcome of a batch.
type BatchResult struct {
	Results  []*Result
	Failures []Failure
}

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
