package capture

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/disintegration/imaging"

	"github.com/matzehuels/shotframe/pkg/asset"
	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/viewport"
)

// PageMeta is the optional page.toml stored next to a domain's screenshots.
//
//	theme_color = "#0b7285"
//	icon_url = "https://example.com/apple-touch-icon.png"
type PageMeta struct {
	ThemeColor string `toml:"theme_color"`
	IconURL    string `toml:"icon_url"`
}

// Dir serves screenshots from a directory laid out per domain:
//
//	<root>/<domain>/desktop.png    device kinds, or desktop-<scroll>.png
//	<root>/<domain>/instagram.png
//	<root>/<domain>/full.png       full-page capture
//	<root>/<domain>/icon.png       optional touch icon
//	<root>/<domain>/page.toml      optional PageMeta
//
// A stored image taller than the requested viewport's aspect ratio is
// treated as the full page: Capture crops a viewport-shaped window at the
// requested scroll fraction, the way a browser would scroll before taking
// the shot. Results are always PNG.
type Dir struct {
	Root string
}

// NewDir returns a Dir capturer rooted at root.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

var extensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// Capture implements Capturer.
func (d *Dir) Capture(ctx context.Context, req Request) (*Shot, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "capture %s: viewport %dx%d", req.Kind, req.Width, req.Height)
	}
	src, err := d.find(req.Domain, req.Kind+"-"+req.Scroll, req.Kind)
	if err != nil {
		return nil, err
	}
	img, err := src.Decode()
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	window := b.Dx() * req.Height / req.Width
	if window < b.Dy() {
		top := viewport.ScrollOffset(req.Fraction, b.Dy(), window)
		img = imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y+top, b.Max.X, b.Min.Y+top+window))
	}
	return d.shot(req.Domain, img)
}

// FullPage implements Capturer.
func (d *Dir) FullPage(ctx context.Context, req Request) (*Shot, error) {
	src, err := d.find(req.Domain, KindFullPage)
	if err != nil {
		return nil, err
	}
	img, err := src.Decode()
	if err != nil {
		return nil, err
	}
	return d.shot(req.Domain, img)
}

// Meta reads the domain's page.toml. A missing file yields empty metadata.
func (d *Dir) Meta(domain string) (PageMeta, error) {
	var meta PageMeta
	path := filepath.Join(d.Root, domain, "page.toml")
	if _, err := toml.DecodeFile(path, &meta); err != nil {
		if os.IsNotExist(err) {
			return PageMeta{}, nil
		}
		return PageMeta{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s", path)
	}
	return meta, nil
}

func (d *Dir) shot(domain string, img image.Image) (*Shot, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCapture, err, "encode capture")
	}
	raster, err := asset.FromBytes(buf.Bytes(), "")
	if err != nil {
		return nil, err
	}

	meta, err := d.Meta(domain)
	if err != nil {
		return nil, err
	}
	shot := &Shot{Asset: raster, ThemeColor: meta.ThemeColor, IconURL: meta.IconURL}
	if icon, err := d.find(domain, "icon"); err == nil {
		shot.Icon = &icon
	}
	return shot, nil
}

// find returns the first existing <root>/<domain>/<name><ext>.
func (d *Dir) find(domain string, names ...string) (asset.Raster, error) {
	for _, name := range names {
		for _, ext := range extensions {
			path := filepath.Join(d.Root, domain, name+ext)
			if _, err := os.Stat(path); err == nil {
				return asset.Load(path)
			}
		}
	}
	return asset.Raster{}, errors.New(errors.ErrCodeCapture, "no %s capture for %s in %s", names[len(names)-1], domain, d.Root)
}

var _ Capturer = (*Dir)(nil)
