package asset

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/shotframe/pkg/errors"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFromBytes(t *testing.T) {
	r, err := FromBytes(pngBytes(t, 16, 9), "shot.png")
	if err != nil {
		t.Fatalf("FromBytes error: %v", err)
	}
	if r.Width != 16 || r.Height != 9 {
		t.Errorf("size = %dx%d, want 16x9", r.Width, r.Height)
	}
	if r.Format != "png" {
		t.Errorf("Format = %q, want png", r.Format)
	}
	if r.Size() != image.Pt(16, 9) {
		t.Errorf("Size() = %v", r.Size())
	}
}

func TestFromBytesGarbage(t *testing.T) {
	_, err := FromBytes([]byte("not an image"), "")
	if !errors.Is(err, errors.ErrCodeUnsupportedFormat) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeUnsupportedFormat)
	}
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	if err := os.WriteFile(src, pngBytes(t, 4, 3), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(src)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if r.Path != src {
		t.Errorf("Path = %q, want %q", r.Path, src)
	}

	dst := filepath.Join(dir, "nested", "out.png")
	saved, err := r.Save(dst)
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if saved.Path != dst || r.Path != src {
		t.Errorf("Save should return a relocated copy: %q / %q", saved.Path, r.Path)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("saved file missing: %v", err)
	}

	img, err := saved.Decode()
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("decoded bounds = %v", img.Bounds())
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeFileNotFound)
	}
}

func TestMediaType(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"a.png", "image/png", true},
		{"a.PNG", "image/png", true},
		{"dir/a.jpg", "image/jpeg", true},
		{"a.jpeg", "image/jpeg", true},
		{"a.webp", "image/webp", true},
		{"a.gif", "", false},
		{"a.svg", "", false},
		{"noext", "", false},
	}

	for _, tt := range tests {
		got, ok := MediaType(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("MediaType(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"png", ".png"},
		{"jpeg", ".jpg"},
		{"webp", ".webp"},
		{"", ".png"},
	}

	for _, tt := range tests {
		if got := (Raster{Format: tt.format}).Ext(); got != tt.want {
			t.Errorf("Raster{Format: %q}.Ext() = %q, want %q", tt.format, got, tt.want)
		}
		if mt, ok := MediaType("a" + tt.want); !ok || mt == "" {
			t.Errorf("extension %q has no media type", tt.want)
		}
	}
}
