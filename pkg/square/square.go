// Package square fits an image into a fixed-size square social post.
package square

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/shotframe/pkg/errors"
)

// DefaultSize is the edge length of a social square.
const DefaultSize = 1080

// Options controls how an image is fitted into the square.
type Options struct {
	Size       int         // edge length in pixels; DefaultSize when zero
	Margin     int         // padding on every side
	Background color.Color // canvas fill; white when nil
	NoUpscale  bool        // never enlarge images smaller than the inner area
}

// Compose scales img uniformly to fit inside the square minus its margins,
// centers it on a background-filled canvas and returns the opaque result.
//
// Transparent pixels of img blend over the background. The returned image
// always has alpha 255 everywhere.
func Compose(img image.Image, opts Options) (*image.NRGBA, error) {
	size := opts.Size
	if size == 0 {
		size = DefaultSize
	}
	inner := size - 2*opts.Margin
	if size < 0 || opts.Margin < 0 || inner <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "margin %d leaves no room in a %dpx square", opts.Margin, size)
	}
	if img == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "image has no pixels")
	}

	w, h := Fit(b.Dx(), b.Dy(), inner, opts.NoUpscale)

	bg := opts.Background
	if bg == nil {
		bg = color.White
	}
	canvas := imaging.New(size, size, bg)

	var fitted image.Image = img
	if w != b.Dx() || h != b.Dy() {
		fitted = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	canvas = imaging.Overlay(canvas, fitted, image.Pt((size-w)/2, (size-h)/2), 1.0)

	flatten(canvas)
	return canvas, nil
}

// Fit returns the size of a w×h image scaled uniformly to fit inside an
// inner×inner box. With noUpscale the scale never exceeds 1.
func Fit(w, h, inner int, noUpscale bool) (int, int) {
	scale := math.Min(float64(inner)/float64(w), float64(inner)/float64(h))
	if noUpscale {
		scale = math.Min(1, scale)
	}
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	return nw, nh
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return nil
}

// flatten drops the alpha channel, keeping the color channels as they are.
func flatten(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}
