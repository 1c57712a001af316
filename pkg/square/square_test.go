package square

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/matzehuels/shotframe/pkg/errors"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var (
	red  = color.NRGBA{R: 0xff, A: 0xff}
	blue = color.NRGBA{B: 0xff, A: 0xff}
)

func TestFit(t *testing.T) {
	tests := []struct {
		name          string
		w, h, inner   int
		noUpscale     bool
		wantW, wantH  int
		toleranceRows int
	}{
		{"landscape", 1600, 900, 824, false, 824, 463, 1},
		{"portrait", 900, 1600, 824, false, 463, 824, 1},
		{"exact", 824, 824, 824, false, 824, 824, 0},
		{"upscale", 100, 50, 1000, false, 1000, 500, 0},
		{"no upscale", 100, 50, 1000, true, 100, 50, 0},
		{"no upscale still shrinks", 2000, 1000, 1000, true, 1000, 500, 0},
		{"sliver floors at one", 10000, 1, 100, false, 100, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Fit(tt.w, tt.h, tt.inner, tt.noUpscale)
			if abs(w-tt.wantW) > tt.toleranceRows || abs(h-tt.wantH) > tt.toleranceRows {
				t.Errorf("Fit(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.inner, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestComposeCentersLandscape(t *testing.T) {
	out, err := Compose(solid(1600, 900, red), Options{Size: 1080, Margin: 128, Background: blue})
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 1080 || b.Dy() != 1080 {
		t.Fatalf("size = %v, want 1080x1080", b.Size())
	}

	// Horizontal margins are exactly 128; vertical bands are equal within a pixel.
	if got := out.NRGBAAt(127, 540); got != blue {
		t.Errorf("left margin = %v, want background", got)
	}
	if got := out.NRGBAAt(128, 540); got.R < 0xf0 || got.B > 0x10 {
		t.Errorf("left image edge = %v, want red", got)
	}
	if got := out.NRGBAAt(540, 300); got != blue {
		t.Errorf("top band = %v, want background", got)
	}
	if got := out.NRGBAAt(540, 540); got.R < 0xf0 || got.B > 0x10 {
		t.Errorf("center = %v, want red", got)
	}

	top, bottom := 0, 0
	for y := 0; y < 1080 && out.NRGBAAt(540, y) == blue; y++ {
		top++
	}
	for y := 1079; y >= 0 && out.NRGBAAt(540, y) == blue; y-- {
		bottom++
	}
	if abs(top-bottom) > 1 {
		t.Errorf("background bands top=%d bottom=%d, want equal", top, bottom)
	}
}

func TestComposeExactFitNotResampled(t *testing.T) {
	src := solid(824, 824, red)
	src.SetNRGBA(0, 0, blue)

	out, err := Compose(src, Options{Size: 1080, Margin: 128, Background: color.White})
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if got := out.NRGBAAt(128, 128); got != blue {
		t.Errorf("corner pixel = %v, want untouched blue", got)
	}
	if got := out.NRGBAAt(129, 128); got != red {
		t.Errorf("neighbor pixel = %v, want untouched red", got)
	}
}

func TestComposeFlattensTransparency(t *testing.T) {
	src := solid(100, 100, color.NRGBA{R: 0xff, A: 0x80})
	out, err := Compose(src, Options{Size: 200, Margin: 50, Background: color.NRGBA{B: 0xff, A: 0xff}, NoUpscale: true})
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}

	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 0xff {
			t.Fatalf("pixel %d has alpha %d, want opaque", i/4, out.Pix[i])
		}
	}
	got := out.NRGBAAt(100, 100)
	if got.R < 0x70 || got.R > 0x90 || got.B < 0x70 || got.B > 0x90 {
		t.Errorf("blended pixel = %v, want half red over blue", got)
	}
}

func TestComposeDefaults(t *testing.T) {
	out, err := Compose(solid(10, 10, red), Options{})
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if out.Bounds().Dx() != DefaultSize {
		t.Errorf("size = %d, want %d", out.Bounds().Dx(), DefaultSize)
	}
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Errorf("default background = %v, want white", got)
	}
}

func TestComposeInvalid(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		opts Options
	}{
		{"margin fills square", solid(10, 10, red), Options{Size: 100, Margin: 50}},
		{"negative margin", solid(10, 10, red), Options{Size: 100, Margin: -1}},
		{"nil image", nil, Options{Size: 100}},
		{"empty image", image.NewNRGBA(image.Rect(0, 0, 0, 0)), Options{Size: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(tt.img, tt.opts)
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, solid(3, 2, red)); err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 3 || cfg.Height != 2 {
		t.Errorf("decoded %dx%d, want 3x2", cfg.Width, cfg.Height)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
