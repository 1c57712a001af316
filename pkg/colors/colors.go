// Package colors parses theme colors discovered in page metadata and applies
// the background fallback chain shared by the mockup and the square crops.
//
// Theme colors come from <meta name="theme-color"> and are free-form CSS.
// [Parse] accepts the forms that appear in practice: hex (#rgb, #rgba,
// #rrggbb, #rrggbbaa), rgb()/rgba() and CSS named colors.
//
// The fallback chain is order dependent: the first candidate that was
// actually discovered wins, and a fixed neutral color closes the chain.
//
//	bg := colors.First(mockupTheme, fullPageTheme, colors.Neutral)
package colors

import (
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"

	"github.com/matzehuels/shotframe/pkg/errors"
)

// Fixed fallbacks used when no theme color was discovered.
const (
	// Neutral closes the fallback chain for square crops.
	Neutral = "#e6e6e6"

	// White is the mockup square background and placeholder backdrop.
	White = "#ffffff"
)

var rgbFuncRegex = regexp.MustCompile(`^rgba?\(\s*([^,\s]+)\s*,\s*([^,\s]+)\s*,\s*([^,\s)]+)\s*(?:,\s*([^,\s)]+)\s*)?\)$`)

// Parse converts a CSS color string into an NRGBA color.
func Parse(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return color.NRGBA{}, errors.New(errors.ErrCodeInvalidColor, "empty color")
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}
	if m := rgbFuncRegex.FindStringSubmatch(s); m != nil {
		return parseRGBFunc(m[1:])
	}
	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}
	return color.NRGBA{}, errors.New(errors.ErrCodeInvalidColor, "unrecognized color %q", s)
}

// MustParse is like Parse but panics on error. Only use with constants.
func MustParse(s string) color.NRGBA {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Valid reports whether s parses as a color.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// First returns the first non-empty candidate, trimmed.
// Returns "" if every candidate is empty.
func First(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

// FirstValid returns the first candidate that parses as a color, together
// with its parsed value. Unparseable candidates count as not discovered.
func FirstValid(candidates ...string) (string, color.NRGBA, bool) {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if v, err := Parse(c); err == nil {
			return c, v, true
		}
	}
	return "", color.NRGBA{}, false
}

// Hex formats c as #rrggbb, dropping alpha.
func Hex(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

// HexAlpha formats c as #rrggbbaa.
func HexAlpha(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}

func parseHex(s string) (color.NRGBA, error) {
	body := s[1:]
	alpha := uint8(255)

	switch len(body) {
	case 4:
		a, err := strconv.ParseUint(strings.Repeat(body[3:], 2), 16, 8)
		if err != nil {
			return color.NRGBA{}, errors.Wrap(errors.ErrCodeInvalidColor, err, "invalid hex color %q", s)
		}
		alpha = uint8(a)
		body = body[:3]
	case 8:
		a, err := strconv.ParseUint(body[6:], 16, 8)
		if err != nil {
			return color.NRGBA{}, errors.Wrap(errors.ErrCodeInvalidColor, err, "invalid hex color %q", s)
		}
		alpha = uint8(a)
		body = body[:6]
	}

	c, err := colorful.Hex("#" + body)
	if err != nil {
		return color.NRGBA{}, errors.Wrap(errors.ErrCodeInvalidColor, err, "invalid hex color %q", s)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

func parseRGBFunc(parts []string) (color.NRGBA, error) {
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := parseChannel(parts[i])
		if err != nil {
			return color.NRGBA{}, err
		}
		ch[i] = v
	}

	alpha := uint8(255)
	if parts[3] != "" {
		a, err := parseAlpha(parts[3])
		if err != nil {
			return color.NRGBA{}, err
		}
		alpha = a
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}, nil
}

func parseChannel(s string) (uint8, error) {
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		f, err := strconv.ParseFloat(pct, 64)
		if err != nil || f < 0 || f > 100 {
			return 0, errors.New(errors.ErrCodeInvalidColor, "invalid color channel %q", s)
		}
		return uint8(f*255/100 + 0.5), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 255 {
		return 0, errors.New(errors.ErrCodeInvalidColor, "invalid color channel %q", s)
	}
	return uint8(f + 0.5), nil
}

func parseAlpha(s string) (uint8, error) {
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		f, err := strconv.ParseFloat(pct, 64)
		if err != nil || f < 0 || f > 100 {
			return 0, errors.New(errors.ErrCodeInvalidColor, "invalid alpha %q", s)
		}
		return uint8(f*255/100 + 0.5), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, errors.New(errors.ErrCodeInvalidColor, "invalid alpha %q", s)
	}
	return uint8(f*255 + 0.5), nil
}
