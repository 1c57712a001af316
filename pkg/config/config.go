// Package config holds the immutable layout and device configuration.
//
// The mockup template's geometry (placeholder regions), the reference device
// viewports, the fallback scale hints and the scroll presets are constants of
// a given template. They are loaded once into a [Config] value and passed by
// value to every component; nothing in shotframe mutates a Config after
// [Load] returns.
//
// # Defaults
//
// [Default] describes the built-in three-device template (laptop, tablet,
// phone) returned by [DefaultTemplate]. A TOML file can override any part:
//
//	aspect_tolerance = 0.15
//
//	[canvas]
//	width = 2520
//	height = 1530
//
//	[[devices]]
//	kind = "desktop"
//	class = "large"
//	scale_hint = 3.2252
//	reference = { width = 1440, height = 900 }
//	region = { id = "SCREEN_L", x = 408.518, y = 533.504, w = 480, h = 270 }
//
// Arrays such as devices replace the defaults wholesale.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/shotframe/pkg/colors"
	"github.com/matzehuels/shotframe/pkg/errors"
)

//go:embed default_template.svg
var defaultTemplate []byte

// DefaultTemplate returns a copy of the built-in mockup template.
func DefaultTemplate() []byte {
	out := make([]byte, len(defaultTemplate))
	copy(out, defaultTemplate)
	return out
}

// =============================================================================
// Types
// =============================================================================

// Class is the device size class a placeholder region belongs to.
type Class string

// Device classes, ordered large to small.
const (
	ClassLarge  Class = "large"
	ClassMedium Class = "medium"
	ClassSmall  Class = "small"
)

// Size is a logical size in template coordinates.
type Size struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// Pixels is an integer pixel size.
type Pixels struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Region is a placeholder rectangle in the template, in the local
// coordinate space of the placeholder's parent group.
type Region struct {
	ID string  `toml:"id" json:"id"`
	X  float64 `toml:"x" json:"x"`
	Y  float64 `toml:"y" json:"y"`
	W  float64 `toml:"w" json:"w"`
	H  float64 `toml:"h" json:"h"`
}

// Area returns the region's area.
func (r Region) Area() float64 { return r.W * r.H }

// Device binds a placeholder region to a device class and its capture hints.
type Device struct {
	Kind      string  `toml:"kind"`       // desktop, tablet, mobile; used in file names
	Class     Class   `toml:"class"`      // large, medium, small
	Region    Region  `toml:"region"`     // placeholder this device fills
	Reference Pixels  `toml:"reference"`  // common viewport for this class
	ScaleHint float64 `toml:"scale_hint"` // template magnification of the region's group
}

// Square configures the 1080×1080 social crops.
type Square struct {
	Size              int    `toml:"size"`
	MockupMargin      int    `toml:"mockup_margin"`
	FullPageMargin    int    `toml:"fullpage_margin"`
	MockupBackground  string `toml:"mockup_background"`
	NeutralBackground string `toml:"neutral_background"`
}

// Capture configures the external capture collaborator.
type Capture struct {
	FullPageViewport Pixels `toml:"fullpage_viewport"`
}

// Config is the read-only configuration shared by all components.
type Config struct {
	Canvas          Size               `toml:"canvas"`
	AspectTolerance float64            `toml:"aspect_tolerance"`
	FallbackMin     Pixels             `toml:"fallback_min"`
	Backdrop        string             `toml:"backdrop"`
	Template        string             `toml:"template"`
	Devices         []Device           `toml:"devices"`
	ScrollPresets   map[string]float64 `toml:"scroll_presets"`
	Square          Square             `toml:"square"`
	Capture         Capture            `toml:"capture"`
}

// =============================================================================
// Defaults
// =============================================================================

// Default returns the configuration of the built-in template.
func Default() Config {
	return Config{
		Canvas:          Size{Width: 2520, Height: 1530},
		AspectTolerance: 0.10,
		FallbackMin:     Pixels{Width: 320, Height: 240},
		Backdrop:        colors.White,
		Devices: []Device{
			{
				Kind:      "desktop",
				Class:     ClassLarge,
				Region:    Region{ID: "SCREEN_L", X: 408.518, Y: 533.504, W: 480, H: 270},
				Reference: Pixels{Width: 1366, Height: 768},
				ScaleHint: 3.2252,
			},
			{
				Kind:      "tablet",
				Class:     ClassMedium,
				Region:    Region{ID: "SCREEN_M", X: 263.643, Y: 687.362, W: 167, H: 222},
				Reference: Pixels{Width: 768, Height: 1024},
				ScaleHint: 3.2252,
			},
			{
				Kind:      "mobile",
				Class:     ClassSmall,
				Region:    Region{ID: "SCREEN_S", X: 252.143, Y: 805.219, W: 60, H: 106},
				Reference: Pixels{Width: 375, Height: 667},
				ScaleHint: 3.99062,
			},
		},
		ScrollPresets: map[string]float64{
			"top":    0.0,
			"mid":    0.5,
			"middle": 0.5,
			"bottom": 1.0,
		},
		Square: Square{
			Size:              1080,
			MockupMargin:      60,
			FullPageMargin:    128,
			MockupBackground:  colors.White,
			NeutralBackground: colors.Neutral,
		},
		Capture: Capture{
			FullPageViewport: Pixels{Width: 1200, Height: 800},
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads a TOML file over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
	}
	if err != nil {
		return Config{}, err
	}
	return Parse(data, cfg)
}

// Parse decodes TOML data over base and validates the result.
func Parse(data []byte, base Config) (Config, error) {
	var top map[string]toml.Primitive
	if _, err := toml.Decode(string(data), &top); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}

	cfg := base.clone()
	if _, ok := top["devices"]; ok {
		cfg.Devices = nil
	}
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// LoadTemplate returns the configured template bytes and the directory that
// relative references inside it resolve against.
func (c Config) LoadTemplate() ([]byte, string, error) {
	if c.Template == "" {
		return DefaultTemplate(), ".", nil
	}
	data, err := os.ReadFile(c.Template)
	if os.IsNotExist(err) {
		return nil, "", errors.Wrap(errors.ErrCodeFileNotFound, err, "template %s", c.Template)
	}
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Dir(c.Template), nil
}

// =============================================================================
// Accessors
// =============================================================================

// Regions returns the placeholder regions in template order.
func (c Config) Regions() []Region {
	out := make([]Region, len(c.Devices))
	for i, d := range c.Devices {
		out[i] = d.Region
	}
	return out
}

// Device returns the device with the given kind or class.
func (c Config) Device(name string) (Device, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range c.Devices {
		if d.Kind == name || string(d.Class) == name {
			return d, true
		}
	}
	return Device{}, false
}

// Kinds returns the device kinds in template order.
func (c Config) Kinds() []string {
	out := make([]string, len(c.Devices))
	for i, d := range c.Devices {
		out[i] = d.Kind
	}
	return out
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks the configuration's invariants.
//
// Regions must have a valid id, positive size, lie inside the canvas and be
// ordered by descending area. Overlap is not checked since regions are in
// their parent group's local coordinates.
func (c Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return invalid("canvas must have positive size, got %gx%g", c.Canvas.Width, c.Canvas.Height)
	}
	if c.AspectTolerance < 0 {
		return invalid("aspect_tolerance must not be negative")
	}
	if c.FallbackMin.Width <= 0 || c.FallbackMin.Height <= 0 {
		return invalid("fallback_min must be positive")
	}
	if len(c.Devices) == 0 {
		return invalid("at least one device is required")
	}
	if !colors.Valid(c.Backdrop) {
		return invalid("backdrop %q is not a color", c.Backdrop)
	}

	seenIDs := make(map[string]bool, len(c.Devices))
	seenKinds := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if err := c.validateDevice(d); err != nil {
			return err
		}
		if seenIDs[d.Region.ID] {
			return invalid("duplicate region id %q", d.Region.ID)
		}
		if seenKinds[d.Kind] {
			return invalid("duplicate device kind %q", d.Kind)
		}
		seenIDs[d.Region.ID] = true
		seenKinds[d.Kind] = true

		if i > 0 && d.Region.Area() > c.Devices[i-1].Region.Area() {
			return invalid("devices must be ordered by descending region area (%s after %s)", d.Region.ID, c.Devices[i-1].Region.ID)
		}
	}

	for name, frac := range c.ScrollPresets {
		if frac < 0 || frac > 1 {
			return invalid("scroll preset %q must be within [0, 1], got %g", name, frac)
		}
	}

	return c.Square.validate()
}

func (c Config) validateDevice(d Device) error {
	if d.Kind == "" {
		return invalid("device kind is required")
	}
	switch d.Class {
	case ClassLarge, ClassMedium, ClassSmall:
	default:
		return invalid("device %s: unknown class %q", d.Kind, d.Class)
	}
	if err := errors.ValidateElementID(d.Region.ID); err != nil {
		return err
	}
	r := d.Region
	if r.W <= 0 || r.H <= 0 {
		return invalid("region %s must have positive size", r.ID)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.W > c.Canvas.Width || r.Y+r.H > c.Canvas.Height {
		return invalid("region %s lies outside the %gx%g canvas", r.ID, c.Canvas.Width, c.Canvas.Height)
	}
	if d.Reference.Width <= 0 || d.Reference.Height <= 0 {
		return invalid("device %s: reference viewport must be positive", d.Kind)
	}
	if d.ScaleHint <= 0 {
		return invalid("device %s: scale_hint must be positive", d.Kind)
	}
	return nil
}

func (s Square) validate() error {
	if s.Size <= 0 {
		return invalid("square size must be positive")
	}
	for _, m := range []int{s.MockupMargin, s.FullPageMargin} {
		if m < 0 || 2*m >= s.Size {
			return invalid("square margin %d does not fit a %dpx canvas", m, s.Size)
		}
	}
	for _, bg := range []string{s.MockupBackground, s.NeutralBackground} {
		if !colors.Valid(bg) {
			return invalid("square background %q is not a color", bg)
		}
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	out.Devices = append([]Device(nil), c.Devices...)
	out.ScrollPresets = make(map[string]float64, len(c.ScrollPresets))
	for k, v := range c.ScrollPresets {
		out.ScrollPresets[k] = v
	}
	return out
}

func invalid(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidConfig, "%s", fmt.Sprintf(format, args...))
}
