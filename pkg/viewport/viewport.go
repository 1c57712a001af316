// Package viewport chooses screenshot viewport sizes for device placeholders.
//
// A placeholder whose shape is close to a recognizable device resolution is
// captured at that resolution. Otherwise the capture size is derived from the
// placeholder's on-canvas size so the screenshot is neither blurry nor wasted:
//
//	sel := viewport.New(cfg)
//	spec, err := sel.Select(device, region.W, region.H)
//
// Selection is a pure function of its inputs.
package viewport

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/matzehuels/shotframe/pkg/config"
	"github.com/matzehuels/shotframe/pkg/errors"
)

// epsilon absorbs float noise so a ratio exactly on the tolerance boundary
// counts as a match.
const epsilon = 1e-9

// Spec is a resolved capture size in CSS pixels.
type Spec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String returns the spec as WxH.
func (s Spec) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Selector picks capture sizes using a tolerance and a minimum floor.
type Selector struct {
	Tolerance float64
	Min       config.Pixels
}

// New creates a Selector from the configuration's tolerance and floor.
func New(cfg config.Config) Selector {
	return Selector{Tolerance: cfg.AspectTolerance, Min: cfg.FallbackMin}
}

// Select returns the capture size for a device whose placeholder measures
// regionW×regionH template units.
//
// The device's reference viewport is used when its aspect ratio differs from
// the region's by at most the tolerance. Otherwise the region size is scaled
// by the device's scale hint, rounded, and floored at the minimum size.
func (s Selector) Select(d config.Device, regionW, regionH float64) (Spec, error) {
	if regionW <= 0 || regionH <= 0 || math.IsNaN(regionW) || math.IsNaN(regionH) {
		return Spec{}, errors.New(errors.ErrCodeInvalidInput, "region size must be positive, got %gx%g", regionW, regionH)
	}
	if d.Reference.Width <= 0 || d.Reference.Height <= 0 || d.ScaleHint <= 0 {
		return Spec{}, errors.New(errors.ErrCodeInvalidInput, "device %s has no usable reference viewport", d.Kind)
	}

	ar := regionW / regionH
	refAr := float64(d.Reference.Width) / float64(d.Reference.Height)
	if math.Abs(refAr-ar) <= s.Tolerance+epsilon {
		return Spec{Width: d.Reference.Width, Height: d.Reference.Height}, nil
	}

	return Spec{
		Width:  max(s.Min.Width, int(math.Round(regionW*d.ScaleHint))),
		Height: max(s.Min.Height, int(math.Round(regionH*d.ScaleHint))),
	}, nil
}

// SelectAll resolves a Spec for every configured device, in template order.
func SelectAll(cfg config.Config) ([]Spec, error) {
	sel := New(cfg)
	specs := make([]Spec, len(cfg.Devices))
	for i, d := range cfg.Devices {
		spec, err := sel.Select(d, d.Region.W, d.Region.H)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Kind, err)
		}
		specs[i] = spec
	}
	return specs, nil
}

// =============================================================================
// Scroll presets
// =============================================================================

// ScrollFraction looks up a named scroll preset (top, mid/middle, bottom).
// Names are matched case-insensitively. Unknown names are an input error.
func ScrollFraction(presets map[string]float64, name string) (float64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	frac, ok := presets[key]
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidPreset, "unknown scroll preset %q (use one of: %s)", name, presetNames(presets))
	}
	return frac, nil
}

// ScrollOffset converts a scroll fraction into a pixel offset between zero
// and the maximum scroll position of a page.
func ScrollOffset(frac float64, pageHeight, viewportHeight int) int {
	maxScroll := max(0, pageHeight-viewportHeight)
	return int(math.Round(float64(maxScroll) * frac))
}

// ValidatePresets checks that every name is a known preset.
func ValidatePresets(presets map[string]float64, names ...string) error {
	for _, n := range names {
		if _, err := ScrollFraction(presets, n); err != nil {
			return err
		}
	}
	return nil
}

func presetNames(presets map[string]float64) string {
	names := make([]string, 0, len(presets))
	for k := range presets {
		names = append(names, k)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}
