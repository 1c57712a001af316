package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/httputil"
)

// stripes encodes a w×h image whose row y has red channel y%256.
func stripes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(y % 256), A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirCapture(t *testing.T) {
	root := t.TempDir()
	// 100 wide, 200 tall: a 100×50 viewport window scrolls over 150 rows.
	writeFile(t, filepath.Join(root, "example_com", "desktop.png"), stripes(t, 100, 200))
	writeFile(t, filepath.Join(root, "example_com", "mobile-bottom.png"), stripes(t, 20, 30))
	writeFile(t, filepath.Join(root, "example_com", "page.toml"), []byte(`theme_color = "#0b7285"
icon_url = "https://example.com/icon.png"
`))

	d := NewDir(root)
	ctx := context.Background()

	tests := []struct {
		name         string
		req          Request
		wantW, wantH int
		wantFirstRow uint8
	}{
		{"top", Request{Domain: "example_com", Kind: "desktop", Width: 1000, Height: 500, Scroll: "top"}, 100, 50, 0},
		{"mid", Request{Domain: "example_com", Kind: "desktop", Width: 1000, Height: 500, Scroll: "mid", Fraction: 0.5}, 100, 50, 75},
		{"bottom", Request{Domain: "example_com", Kind: "desktop", Width: 1000, Height: 500, Scroll: "bottom", Fraction: 1}, 100, 50, 150},
		{"viewport taller than image", Request{Domain: "example_com", Kind: "desktop", Width: 100, Height: 400, Scroll: "top"}, 100, 200, 0},
		{"scroll specific file", Request{Domain: "example_com", Kind: "mobile", Width: 375, Height: 667, Scroll: "bottom", Fraction: 1}, 20, 30, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shot, err := d.Capture(ctx, tt.req)
			if err != nil {
				t.Fatalf("Capture error: %v", err)
			}
			if shot.Asset.Width != tt.wantW || shot.Asset.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", shot.Asset.Width, shot.Asset.Height, tt.wantW, tt.wantH)
			}
			if shot.Asset.Format != "png" {
				t.Errorf("format = %q, want png", shot.Asset.Format)
			}
			img, err := shot.Asset.Decode()
			if err != nil {
				t.Fatal(err)
			}
			r, _, _, _ := img.At(0, 0).RGBA()
			if got := uint8(r >> 8); got != tt.wantFirstRow {
				t.Errorf("first row = %d, want %d", got, tt.wantFirstRow)
			}
			if shot.ThemeColor != "#0b7285" || shot.IconURL != "https://example.com/icon.png" {
				t.Errorf("meta = %q %q", shot.ThemeColor, shot.IconURL)
			}
			if shot.Icon != nil {
				t.Error("Icon set without an icon file")
			}
		})
	}
}

func TestDirFullPageAndIcon(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_dev", "full.png"), stripes(t, 120, 900))
	writeFile(t, filepath.Join(root, "a_dev", "icon.png"), stripes(t, 16, 16))

	shot, err := NewDir(root).FullPage(context.Background(), Request{Domain: "a_dev", Kind: KindFullPage, Width: 1200, Height: 800})
	if err != nil {
		t.Fatalf("FullPage error: %v", err)
	}
	if shot.Asset.Width != 120 || shot.Asset.Height != 900 {
		t.Errorf("full page cropped to %dx%d", shot.Asset.Width, shot.Asset.Height)
	}
	if shot.ThemeColor != "" || shot.IconURL != "" {
		t.Errorf("meta without page.toml = %q %q", shot.ThemeColor, shot.IconURL)
	}
	if shot.Icon == nil || shot.Icon.Width != 16 {
		t.Errorf("Icon = %+v, want 16px icon", shot.Icon)
	}
}

func TestDirErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad", "desktop.png"), stripes(t, 10, 10))
	writeFile(t, filepath.Join(root, "bad", "page.toml"), []byte("theme_color = "))
	writeFile(t, filepath.Join(root, "junk", "desktop.png"), []byte("not an image"))

	d := NewDir(root)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		code errors.Code
	}{
		{"missing capture", Request{Domain: "nowhere", Kind: "desktop", Width: 10, Height: 10}, errors.ErrCodeCapture},
		{"zero viewport", Request{Domain: "bad", Kind: "desktop"}, errors.ErrCodeInvalidInput},
		{"broken page.toml", Request{Domain: "bad", Kind: "desktop", Width: 10, Height: 10}, errors.ErrCodeInvalidInput},
		{"undecodable image", Request{Domain: "junk", Kind: "desktop", Width: 10, Height: 10}, errors.ErrCodeUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Capture(ctx, tt.req)
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestResolveIconURL(t *testing.T) {
	tests := []struct {
		page, href, want string
		wantErr          bool
	}{
		{"https://example.com/blog/post", "/apple-touch-icon.png", "https://example.com/apple-touch-icon.png", false},
		{"https://example.com/blog/post", "icon.png", "https://example.com/blog/icon.png", false},
		{"https://example.com/", "//cdn.example.com/i.png", "https://cdn.example.com/i.png", false},
		{"https://example.com/", "https://other.dev/i.png", "https://other.dev/i.png", false},
		{"", "https://other.dev/i.png", "https://other.dev/i.png", false},
		{"example.com", "/i.png", "", true},
		{"https://example.com/", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, err := ResolveIconURL(tt.page, tt.href)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveIconURL(%q, %q) = %q, want %q", tt.page, tt.href, got, tt.want)
			}
		})
	}
}

func TestIconFetcher(t *testing.T) {
	icon := stripes(t, 32, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/apple-touch-icon.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(icon)
		case "/text":
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewIconFetcher(httputil.NewClient(httputil.WithRetry(1, time.Millisecond)))
	ctx := context.Background()

	got, err := f.Fetch(ctx, srv.URL+"/some/page", "/apple-touch-icon.png")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if got.Width != 32 || got.Height != 32 {
		t.Errorf("icon = %dx%d, want 32x32", got.Width, got.Height)
	}

	if _, err := f.Fetch(ctx, srv.URL, "/text"); !errors.Is(err, errors.ErrCodeUnsupportedFormat) {
		t.Errorf("non-image err = %v, want UNSUPPORTED_FORMAT", err)
	}
	if _, err := f.Fetch(ctx, srv.URL, "/missing.png"); !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("404 err = %v, want NETWORK_ERROR", err)
	}
}
