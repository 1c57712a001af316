package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/shotframe/pkg/asset"
	"github.com/matzehuels/shotframe/pkg/capture"
	"github.com/matzehuels/shotframe/pkg/colors"
	"github.com/matzehuels/shotframe/pkg/observability"
	"github.com/matzehuels/shotframe/pkg/site"
	"github.com/matzehuels/shotframe/pkg/viewport"
)

// =============================================================================
// Capture
// =============================================================================

// pageCapture is everything the device captures produced for one page.
type pageCapture struct {
	placements map[string]asset.Raster // by region id
	screens    []string
	theme      string
	iconURL    string
	icon       *asset.Raster

	// Metadata from the full-page capture, used only when the device
	// captures found none.
	fallbackTheme   string
	fallbackIconURL string
}

// captureDevices takes one screenshot per configured device and persists
// it under screens/. The first valid theme color and the first icon any
// capture reports win.
func (r *Runner) captureDevices(ctx context.Context, target site.Target, opts Options, paths Paths) (*pageCapture, error) {
	sel := viewport.New(r.Config)
	page := &pageCapture{placements: make(map[string]asset.Raster, len(r.Config.Devices))}

	for i, d := range r.Config.Devices {
		spec, err := sel.Select(d, d.Region.W, d.Region.H)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Kind, err)
		}
		scroll := opts.Scrolls[i]
		frac, err := viewport.ScrollFraction(r.Config.ScrollPresets, scroll)
		if err != nil {
			return nil, err
		}

		req := capture.Request{
			URL:      target.URL,
			Domain:   target.Domain,
			Kind:     d.Kind,
			Width:    spec.Width,
			Height:   spec.Height,
			Scroll:   scroll,
			Fraction: frac,
		}
		shot, err := r.timedCapture(ctx, req, r.Capturer.Capture)
		if err != nil {
			return nil, fmt.Errorf("capture %s at %s: %w", d.Kind, spec, err)
		}

		saved, err := shot.Asset.Save(paths.Screen(d.Kind, scroll, shot.Asset.Ext()))
		if err != nil {
			return nil, fmt.Errorf("save %s capture: %w", d.Kind, err)
		}
		page.placements[d.Region.ID] = saved
		page.screens = append(page.screens, saved.Path)
		page.observe(shot)
	}
	return page, nil
}

// captureFullPage takes the full-page screenshot at the configured viewport.
func (r *Runner) captureFullPage(ctx context.Context, target site.Target) (*capture.Shot, error) {
	vp := r.Config.Capture.FullPageViewport
	req := capture.Request{
		URL:    target.URL,
		Domain: target.Domain,
		Kind:   capture.KindFullPage,
		Width:  vp.Width,
		Height: vp.Height,
	}
	return r.timedCapture(ctx, req, r.Capturer.FullPage)
}

// captureInstagram takes the square viewport screenshot.
func (r *Runner) captureInstagram(ctx context.Context, target site.Target, scroll string) (*capture.Shot, error) {
	frac, err := viewport.ScrollFraction(r.Config.ScrollPresets, scroll)
	if err != nil {
		return nil, err
	}
	req := capture.Request{
		URL:      target.URL,
		Domain:   target.Domain,
		Kind:     capture.KindInstagram,
		Width:    InstagramViewport,
		Height:   InstagramViewport,
		Scroll:   scroll,
		Fraction: frac,
	}
	return r.timedCapture(ctx, req, r.Capturer.Capture)
}

func (r *Runner) timedCapture(ctx context.Context, req capture.Request, fn func(context.Context, capture.Request) (*capture.Shot, error)) (*capture.Shot, error) {
	start := time.Now()
	shot, err := fn(ctx, req)
	observability.Pipeline().OnCaptureComplete(ctx, req.Kind, time.Since(start), err)
	return shot, err
}

// observe records page metadata from shot unless an earlier capture
// already provided it.
func (p *pageCapture) observe(shot *capture.Shot) {
	if p.theme == "" {
		if c, _, ok := colors.FirstValid(shot.ThemeColor); ok {
			p.theme = c
		}
	}
	if p.iconURL == "" {
		p.iconURL = shot.IconURL
	}
	if p.icon == nil && shot.Icon != nil {
		p.icon = shot.Icon
	}
}

// observeFallback records metadata from the full-page capture.
func (p *pageCapture) observeFallback(shot *capture.Shot) {
	if c, _, ok := colors.FirstValid(shot.ThemeColor); ok {
		p.fallbackTheme = c
	}
	p.fallbackIconURL = shot.IconURL
	if p.icon == nil && shot.Icon != nil {
		p.icon = shot.Icon
	}
}
