package cli

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/shotframe/pkg/cache"
	"github.com/matzehuels/shotframe/pkg/config"
	"github.com/matzehuels/shotframe/pkg/errors"
)

func newTestServer(t *testing.T) (*httptest.Server, *cache.FileCache) {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	srv := newServer(config.Default(), fc, cache.NewScopedKeyer(nil, "serve"), log.New(io.Discard))
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, fc
}

func pngBody(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// withDimensions rewrites the IHDR chunk of a PNG to declare w×h pixels.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	if string(out[12:16]) != "IHDR" {
		t.Fatal("no IHDR chunk")
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestServeHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServeViewports(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/viewports")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got []viewportInfo
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	cfg := config.Default()
	if len(got) != len(cfg.Devices) {
		t.Fatalf("got %d devices, want %d", len(got), len(cfg.Devices))
	}
	for i, d := range cfg.Devices {
		if got[i].Kind != d.Kind || got[i].Region.ID != d.Region.ID {
			t.Errorf("entry %d = %s/%s, want %s/%s", i, got[i].Kind, got[i].Region.ID, d.Kind, d.Region.ID)
		}
		if got[i].Viewport.Width <= 0 || got[i].Viewport.Height <= 0 {
			t.Errorf("entry %d has empty viewport %v", i, got[i].Viewport)
		}
	}
}

func TestServeSquare(t *testing.T) {
	ts, _ := newTestServer(t)
	body := pngBody(t, 300, 100)

	post := func(query string, data []byte) *http.Response {
		t.Helper()
		resp, err := http.Post(ts.URL+"/v1/square"+query, "image/png", bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	resp := post("?size=200&margin=20&background=%23000000", body)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if got := resp.Header.Get("X-Cache"); got != "miss" {
		t.Errorf("X-Cache = %q, want miss", got)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("size = %v, want 200x200", b)
	}
	if c := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA); c.R != 0 || c.A != 0xff {
		t.Errorf("corner = %v, want opaque black", c)
	}

	resp = post("?size=200&margin=20&background=%23000000", body)
	resp.Body.Close()
	if got := resp.Header.Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache = %q, want hit", got)
	}

	errs := []struct {
		name  string
		query string
		body  []byte
	}{
		{"not an image", "", []byte("hello")},
		{"bad size", "?size=big", body},
		{"bad color", "?background=nope", body},
		{"bad flag", "?no_upscale=maybe", body},
		{"margin too large", "?size=100&margin=60", body},
		{"size too large", "?size=200000&margin=0", body},
		{"size zero", "?size=0", body},
		{"negative margin", "?margin=-5", body},
		{"too many pixels", "", withDimensions(t, body, 100000, 100000)},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(tt.query, tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var e errorBody
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Code == "" {
				t.Errorf("error body = %+v, %v", e, err)
			}
		})
	}
}

func TestServeSquareKeyIncludesAlpha(t *testing.T) {
	ts, _ := newTestServer(t)
	body := pngBody(t, 300, 100)

	for _, bg := range []string{"%23ff0000", "%23ff000080"} {
		resp, err := http.Post(ts.URL+"/v1/square?size=200&margin=20&background="+bg, "image/png", bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("background %s: status = %d", bg, resp.StatusCode)
		}
		if got := resp.Header.Get("X-Cache"); got != "miss" {
			t.Errorf("background %s: X-Cache = %q, want miss", bg, got)
		}
	}
}

func TestSquareOptionsLimits(t *testing.T) {
	srv := newServer(config.Default(), cache.NewNullCache(), cache.NewDefaultKeyer(), log.New(io.Discard))

	tests := []struct {
		query   string
		wantErr bool
	}{
		{"", false},
		{"size=4096&margin=0", false},
		{"size=4097", true},
		{"size=200000&margin=0", true},
		{"size=-1", true},
		{"margin=-1", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/square?"+tt.query, nil)
			opts, _, err := srv.squareOptions(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("squareOptions(%q) = %+v, %v; wantErr %v", tt.query, opts, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidInput)
			}
		})
	}
}

func TestServeMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/square")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
