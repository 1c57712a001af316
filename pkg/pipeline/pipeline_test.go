package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/shotframe/pkg/asset"
	"github.com/matzehuels/shotframe/pkg/cache"
	"github.com/matzehuels/shotframe/pkg/capture"
	"github.com/matzehuels/shotframe/pkg/config"
	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/httputil"
	"github.com/matzehuels/shotframe/pkg/site"
)

// =============================================================================
// Fakes
// =============================================================================

func encodePNG(t testing.TB, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t testing.TB, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func raster(t testing.TB, w, h int, c color.NRGBA) asset.Raster {
	t.Helper()
	r, err := asset.FromBytes(encodePNG(t, w, h, c), "")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// fakeCapturer returns solid screenshots a tenth of the requested viewport.
type fakeCapturer struct {
	t        testing.TB
	themes   map[string]string // by kind
	iconURL  string
	icon     *asset.Raster
	failKind string
	failFor  string // domain
	jpeg     bool   // return JPEG instead of PNG captures

	mu       sync.Mutex
	requests []capture.Request
}

func (f *fakeCapturer) shot(req capture.Request) (*capture.Shot, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if req.Kind == f.failKind || req.Domain == f.failFor {
		return nil, errors.New(errors.ErrCodeCapture, "no %s capture for %s", req.Kind, req.Domain)
	}
	w, h := max(1, req.Width/10), max(1, req.Height/10)
	green := color.NRGBA{R: 0x20, G: 0x80, B: 0x20, A: 0xff}
	img := raster(f.t, w, h, green)
	if f.jpeg {
		var err error
		if img, err = asset.FromBytes(encodeJPEG(f.t, w, h, green), ""); err != nil {
			return nil, err
		}
	}
	return &capture.Shot{
		Asset:      img,
		ThemeColor: f.themes[req.Kind],
		IconURL:    f.iconURL,
	}, nil
}

func (f *fakeCapturer) Capture(_ context.Context, req capture.Request) (*capture.Shot, error) {
	return f.shot(req)
}

func (f *fakeCapturer) FullPage(_ context.Context, req capture.Request) (*capture.Shot, error) {
	req.Height *= 4
	s, err := f.shot(req)
	if err == nil {
		s.Icon = f.icon
	}
	return s, err
}

func (f *fakeCapturer) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Kind
	}
	return out
}

// fakeRenderer returns an opaque PNG with the canvas aspect ratio and keeps
// the last document it was given.
type fakeRenderer struct {
	t     testing.TB
	calls int
	last  []byte
}

func (f *fakeRenderer) RenderPNG(_ context.Context, svg []byte, width int) ([]byte, error) {
	f.calls++
	f.last = svg
	return encodePNG(f.t, width, width*1530/2520, color.NRGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xff}), nil
}

func newFakes(t *testing.T) (*fakeCapturer, *fakeRenderer) {
	return &fakeCapturer{t: t, themes: map[string]string{}}, &fakeRenderer{t: t}
}

func mustTarget(t *testing.T, input string) site.Target {
	t.Helper()
	target, err := site.ParseTarget(input)
	if err != nil {
		t.Fatal(err)
	}
	return target
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func rgb(c color.Color) color.NRGBA {
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

// =============================================================================
// Tests
// =============================================================================

func TestExecute(t *testing.T) {
	capt, rend := newFakes(t)
	capt.themes["tablet"] = "#336699"
	capt.themes["mobile"] = "#ff0000"
	capt.themes[capture.KindFullPage] = "#00ff00"
	icon := raster(t, 64, 64, color.NRGBA{R: 0xff, A: 0xff})
	capt.icon = &icon

	out := t.TempDir()
	r := NewRunner(config.Default(), capt, rend)
	res, err := r.Execute(context.Background(), mustTarget(t, "www.Example.com"), Options{OutDir: out})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if res.ThemeColor != "#336699" {
		t.Errorf("ThemeColor = %q, want first device theme", res.ThemeColor)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v", res.Warnings)
	}

	wantFiles := []string{
		filepath.Join(out, "mockup-example_com.svg"),
		filepath.Join(out, "screens", "desktop-example_com-top.png"),
		filepath.Join(out, "screens", "tablet-example_com-top.png"),
		filepath.Join(out, "screens", "mobile-example_com-top.png"),
		filepath.Join(out, "instagram", "example_com-mockup.png"),
		filepath.Join(out, "instagram", "example_com-full.png"),
		filepath.Join(out, "instagram", "example_com-icon.png"),
		filepath.Join(out, "instagram", "example_com-top.png"),
	}
	for _, f := range wantFiles {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("missing output %s", f)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "screens", "_fullpage-example_com.png")); !os.IsNotExist(err) {
		t.Error("temporary full-page capture was not removed")
	}
	if got := len(res.Files()); got != 5 {
		t.Errorf("Files() = %v, want 5 outputs", res.Files())
	}

	wantKinds := "desktop,tablet,mobile,full,instagram"
	if got := strings.Join(capt.kinds(), ","); got != wantKinds {
		t.Errorf("capture order = %s, want %s", got, wantKinds)
	}
	wantSizes := map[string][2]int{"desktop": {1366, 768}, "tablet": {768, 1024}, "mobile": {375, 667}, "full": {1200, 800}, "instagram": {1080, 1080}}
	for _, req := range capt.requests {
		if req.Kind == capture.KindFullPage {
			req.Height /= 4
		}
		if want := wantSizes[req.Kind]; req.Width != want[0] || req.Height != want[1] {
			t.Errorf("%s viewport = %dx%d, want %dx%d", req.Kind, req.Width, req.Height, want[0], want[1])
		}
		if req.URL != "https://www.Example.com" {
			t.Errorf("%s URL = %q", req.Kind, req.URL)
		}
	}

	svg, err := os.ReadFile(res.Mockup)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(svg, []byte(`"screens/desktop-example_com-top.png"`)) {
		t.Error("mockup does not reference the desktop capture relative to the output root")
	}
	if !bytes.Contains(svg, []byte(`fill="#336699"`)) {
		t.Error("mockup has no theme color background")
	}

	if rend.calls != 1 {
		t.Errorf("renderer called %d times, want 1", rend.calls)
	}
	if bytes.Contains(rend.last, []byte("screens/")) || !bytes.Contains(rend.last, []byte("data:image/png;base64,")) {
		t.Error("renderer did not receive a self-contained document")
	}

	mockup := decodeFile(t, res.MockupSquare)
	if b := mockup.Bounds(); b.Dx() != 1080 || b.Dy() != 1080 {
		t.Errorf("mockup square = %v, want 1080x1080", b.Size())
	}
	if got := rgb(mockup.At(5, 5)); got != (color.NRGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff}) {
		t.Errorf("mockup square background = %v, want theme color", got)
	}

	// Full-page and icon squares prefer the device theme over the full-page theme.
	full := decodeFile(t, res.FullPageSquare)
	if got := rgb(full.At(5, 5)); got != (color.NRGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff}) {
		t.Errorf("full-page background = %v, want device theme", got)
	}
	iconSquare := decodeFile(t, res.IconSquare)
	if got := rgb(iconSquare.At(540, 540)); got != (color.NRGBA{R: 0xff, A: 0xff}) {
		t.Errorf("icon center = %v, want icon pixel", got)
	}
	if got := rgb(iconSquare.At(540-33, 540)); got != (color.NRGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff}) {
		t.Errorf("icon was upscaled: pixel outside 64px box = %v", got)
	}

	if len(res.Placements) != 3 || res.Placements[0].RegionID != "SCREEN_L" {
		t.Errorf("Placements = %+v", res.Placements)
	}
}

func TestExecuteNeutralBackground(t *testing.T) {
	capt, rend := newFakes(t)
	out := t.TempDir()

	res, err := NewRunner(config.Default(), capt, rend).Execute(context.Background(), mustTarget(t, "plain.dev"), Options{OutDir: out, SkipInstagram: true})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if res.ThemeColor != "" {
		t.Errorf("ThemeColor = %q, want none", res.ThemeColor)
	}
	if res.IconSquare != "" || res.InstagramShot != "" {
		t.Errorf("unexpected outputs icon=%q instagram=%q", res.IconSquare, res.InstagramShot)
	}
	if got := rgb(decodeFile(t, res.MockupSquare).At(5, 5)); got != (color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Errorf("mockup background = %v, want white", got)
	}
	if got := rgb(decodeFile(t, res.FullPageSquare).At(5, 5)); got != (color.NRGBA{R: 0xe6, G: 0xe6, B: 0xe6, A: 0xff}) {
		t.Errorf("full-page background = %v, want neutral gray", got)
	}
}

func TestExecuteFullPageThemeFallback(t *testing.T) {
	capt, rend := newFakes(t)
	capt.themes[capture.KindFullPage] = "#00ff00"

	res, err := NewRunner(config.Default(), capt, rend).Execute(context.Background(), mustTarget(t, "green.dev"), Options{OutDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if res.ThemeColor != "#00ff00" {
		t.Errorf("ThemeColor = %q, want full-page theme", res.ThemeColor)
	}
	if got := rgb(decodeFile(t, res.FullPageSquare).At(5, 5)); got != (color.NRGBA{G: 0xff, A: 0xff}) {
		t.Errorf("full-page background = %v, want full-page theme", got)
	}
	if got := rgb(decodeFile(t, res.MockupSquare).At(5, 5)); got != (color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Errorf("mockup background = %v, want white", got)
	}
}

func TestExecuteScrolls(t *testing.T) {
	capt, rend := newFakes(t)
	out := t.TempDir()

	opts := Options{OutDir: out, Scrolls: []string{"bottom", "Mid", "top"}, InstagramScroll: "middle"}
	res, err := NewRunner(config.Default(), capt, rend).Execute(context.Background(), mustTarget(t, "example.com"), opts)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	want := map[string]float64{"desktop": 1, "tablet": 0.5, "mobile": 0, "instagram": 0.5}
	for _, req := range capt.requests {
		if frac, ok := want[req.Kind]; ok && req.Fraction != frac {
			t.Errorf("%s fraction = %g, want %g", req.Kind, req.Fraction, frac)
		}
	}
	if got := filepath.Base(res.Screens[0]); got != "desktop-example_com-bottom.png" {
		t.Errorf("desktop screen = %s", got)
	}
	if got := filepath.Base(res.InstagramShot); got != "example_com-middle.png" {
		t.Errorf("instagram shot = %s", got)
	}
}

func TestExecuteJPEGCaptures(t *testing.T) {
	capt, rend := newFakes(t)
	capt.jpeg = true
	out := t.TempDir()

	res, err := NewRunner(config.Default(), capt, rend).Execute(context.Background(), mustTarget(t, "example.com"), Options{OutDir: out})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	for _, s := range res.Screens {
		if filepath.Ext(s) != ".jpg" {
			t.Errorf("screen %s does not keep the JPEG extension", s)
		}
	}
	if got := filepath.Base(res.InstagramShot); got != "example_com-top.jpg" {
		t.Errorf("instagram shot = %s, want example_com-top.jpg", got)
	}
	if _, err := os.Stat(filepath.Join(out, "screens", "desktop-example_com-top.jpg")); err != nil {
		t.Errorf("desktop capture not written: %v", err)
	}

	if !bytes.Contains(rend.last, []byte("data:image/jpeg;base64,")) {
		t.Error("JPEG captures were not embedded as image/jpeg")
	}
	if bytes.Contains(rend.last, []byte("data:image/png;base64,/9j/")) {
		t.Error("JPEG payload embedded with a PNG media type")
	}

	full := decodeFile(t, res.FullPageSquare)
	if b := full.Bounds(); b.Dx() != 1080 || b.Dy() != 1080 {
		t.Errorf("full-page square = %v, want 1080x1080", b.Size())
	}
}

func TestExecuteFailures(t *testing.T) {
	tests := []struct {
		name     string
		failKind string
		wantErr  bool
		warning  string
	}{
		{"device capture is fatal", "tablet", true, ""},
		{"full page is fatal", capture.KindFullPage, true, ""},
		{"instagram is a warning", capture.KindInstagram, false, "instagram capture failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capt, rend := newFakes(t)
			capt.failKind = tt.failKind
			out := t.TempDir()

			res, err := NewRunner(config.Default(), capt, rend).Execute(context.Background(), mustTarget(t, "example.com"), Options{OutDir: out})
			if tt.wantErr {
				if !errors.Has(err, errors.ErrCodeCapture) && !strings.Contains(fmt.Sprint(err), "CAPTURE_FAILED") {
					t.Errorf("err = %v, want capture failure", err)
				}
				if _, err := os.Stat(filepath.Join(out, "screens", "_fullpage-example_com.png")); !os.IsNotExist(err) {
					t.Error("temporary full-page capture left behind")
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute error: %v", err)
			}
			if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], tt.warning) {
				t.Errorf("Warnings = %v, want %q", res.Warnings, tt.warning)
			}
		})
	}
}

func TestExecuteIconDownload(t *testing.T) {
	iconPNG := encodePNG(t, 48, 48, color.NRGBA{B: 0xff, A: 0xff})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apple-touch-icon.png" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write(iconPNG)
	}))
	defer srv.Close()

	fetcher := capture.NewIconFetcher(httputil.NewClient(httputil.WithRetry(1, time.Millisecond)))
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("relative url resolves against page", func(t *testing.T) {
		capt, rend := newFakes(t)
		capt.iconURL = "/apple-touch-icon.png"
		r := NewRunner(config.Default(), capt, rend, WithIconFetcher(fetcher), WithCache(c, nil))

		for i := 0; i < 2; i++ {
			res, err := r.Execute(context.Background(), mustTarget(t, srv.URL+"/blog"), Options{OutDir: t.TempDir()})
			if err != nil {
				t.Fatalf("Execute error: %v", err)
			}
			if res.IconURL != srv.URL+"/apple-touch-icon.png" {
				t.Errorf("IconURL = %q", res.IconURL)
			}
			if res.IconSquare == "" {
				t.Fatal("no icon square")
			}
		}
		if n := hits.Load(); n != 1 {
			t.Errorf("icon downloaded %d times, want 1 (cached)", n)
		}
	})

	t.Run("missing icon is a warning", func(t *testing.T) {
		capt, rend := newFakes(t)
		capt.iconURL = "/gone.png"
		r := NewRunner(config.Default(), capt, rend, WithIconFetcher(fetcher))

		res, err := r.Execute(context.Background(), mustTarget(t, srv.URL), Options{OutDir: t.TempDir(), SkipInstagram: true})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		if res.IconSquare != "" {
			t.Errorf("IconSquare = %q, want none", res.IconSquare)
		}
		if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "gone.png") {
			t.Errorf("Warnings = %v", res.Warnings)
		}
	})
}

func TestExecuteSquareCache(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	capt, rend := newFakes(t)
	r := NewRunner(config.Default(), capt, rend, WithCache(c, cache.NewScopedKeyer(nil, "test")))
	target := mustTarget(t, "example.com")

	first, err := r.Execute(context.Background(), target, Options{OutDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.MockupHit || first.CacheInfo.FullPageHit {
		t.Errorf("first run CacheInfo = %+v, want misses", first.CacheInfo)
	}

	out := t.TempDir()
	second, err := r.Execute(context.Background(), target, Options{OutDir: out})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.MockupHit || !second.CacheInfo.FullPageHit {
		t.Errorf("second run CacheInfo = %+v, want hits", second.CacheInfo)
	}
	a, _ := os.ReadFile(first.MockupSquare)
	b, err := os.ReadFile(second.MockupSquare)
	if err != nil {
		t.Fatalf("cached square not written: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("cached square differs from the rendered one")
	}
}

func TestBatch(t *testing.T) {
	capt, rend := newFakes(t)
	capt.failFor = "broken_dev"

	r := NewRunner(config.Default(), capt, rend)
	out, err := r.Batch(context.Background(), []string{"example.com", "broken.dev", "bad target", "https://other.org/x"}, Options{OutDir: t.TempDir(), SkipInstagram: true})
	if err != nil {
		t.Fatalf("Batch error: %v", err)
	}

	var domains []string
	for _, res := range out.Results {
		domains = append(domains, res.Target.Domain)
	}
	if got := strings.Join(domains, ","); got != "example_com,other_org" {
		t.Errorf("results = %s", got)
	}
	if len(out.Failures) != 2 {
		t.Fatalf("failures = %+v, want 2", out.Failures)
	}
	if out.Failures[0].Input != "broken.dev" || !strings.Contains(out.Failures[0].Err.Error(), "broken.dev") {
		t.Errorf("failure[0] = %+v", out.Failures[0])
	}
	if out.Failures[1].Input != "bad target" || !errors.Has(out.Failures[1].Err, errors.ErrCodeInvalidInput) {
		t.Errorf("failure[1] = %+v", out.Failures[1])
	}
}

func TestBatchCancelled(t *testing.T) {
	capt, rend := newFakes(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewRunner(config.Default(), capt, rend).Batch(ctx, []string{"example.com"}, Options{OutDir: t.TempDir()})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if out == nil || len(out.Results) != 0 {
		t.Errorf("out = %+v, want empty partial result", out)
	}
}

func TestOptionsValidate(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"defaults", Options{}, ""},
		{"explicit", Options{Scrolls: []string{"top", "mid", "bottom"}, InstagramScroll: "bottom"}, ""},
		{"too few scrolls", Options{Scrolls: []string{"top"}}, errors.ErrCodeInvalidInput},
		{"unknown device preset", Options{Scrolls: []string{"top", "sideways", "top"}}, errors.ErrCodeInvalidPreset},
		{"unknown instagram preset", Options{InstagramScroll: "halfway"}, errors.ErrCodeInvalidPreset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := opts.ValidateAndSetDefaults(cfg)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("error = %v", err)
				}
				if opts.OutDir != DefaultOutDir || len(opts.Scrolls) != 3 || opts.InstagramScroll == "" {
					t.Errorf("defaults not applied: %+v", opts)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	p := NewPaths("dist", "example_com")
	tests := []struct{ got, want string }{
		{p.Mockup(), filepath.Join("dist", "mockup-example_com.svg")},
		{p.Screen("tablet", "mid", ".png"), filepath.Join("dist", "screens", "tablet-example_com-mid.png")},
		{p.Screen("desktop", "top", ".jpg"), filepath.Join("dist", "screens", "desktop-example_com-top.jpg")},
		{p.FullPageTemp(".webp"), filepath.Join("dist", "screens", "_fullpage-example_com.webp")},
		{p.Shot("mid", ".jpg"), filepath.Join("dist", "instagram", "example_com-mid.jpg")},
		{p.Square("icon"), filepath.Join("dist", "instagram", "example_com-icon.png")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("path = %s, want %s", tt.got, tt.want)
		}
	}
}
