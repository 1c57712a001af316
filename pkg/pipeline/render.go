package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/shotframe/pkg/asset"
	"github.com/matzehuels/shotframe/pkg/cache"
	"github.com/matzehuels/shotframe/pkg/capture"
	"github.com/matzehuels/shotframe/pkg/colors"
	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/observability"
	"github.com/matzehuels/shotframe/pkg/site"
	"github.com/matzehuels/shotframe/pkg/square"
	"github.com/matzehuels/shotframe/pkg/template"
)

// =============================================================================
// Squares
// =============================================================================

// renderSquares produces the instagram outputs of one page. The mockup and
// full-page squares are required; the viewport capture and the icon are
// best effort and only add warnings.
func (r *Runner) renderSquares(ctx context.Context, logger *log.Logger, doc *template.Document, page *pageCapture, target site.Target, opts Options, paths Paths, res *Result) error {
	sq := r.Config.Square

	// Mockup square: the inlined SVG rasterized to the inner width.
	mockupBG := colors.First(page.theme, sq.MockupBackground)
	hit, err := r.artifact(ctx, ArtifactMockupSquare, func() (bool, error) {
		return r.mockupSquare(ctx, doc, mockupBG, paths.Square("mockup"), logger, res)
	})
	if err != nil {
		return err
	}
	res.MockupSquare = paths.Square("mockup")
	res.CacheInfo.MockupHit = hit

	// Full-page square. The capture is kept on disk only while it is squared.
	full, err := r.captureFullPage(ctx, target)
	if err != nil {
		return fmt.Errorf("capture full page: %w", err)
	}
	tmp := paths.FullPageTemp(full.Asset.Ext())
	saved, err := full.Asset.Save(tmp)
	defer os.Remove(tmp)
	if err != nil {
		return fmt.Errorf("save full page: %w", err)
	}
	page.observeFallback(full)
	if res.ThemeColor == "" {
		res.ThemeColor = page.fallbackTheme
	}

	neutralBG := colors.First(page.theme, page.fallbackTheme, sq.NeutralBackground)
	hit, err = r.artifact(ctx, ArtifactFullSquare, func() (bool, error) {
		return r.writeSquare(ctx, saved.Data, square.Options{Size: sq.Size, Margin: sq.FullPageMargin}, neutralBG, paths.Square("full"))
	})
	if err != nil {
		return err
	}
	res.FullPageSquare = paths.Square("full")
	res.CacheInfo.FullPageHit = hit

	// Square viewport capture.
	if !opts.SkipInstagram {
		var out string
		shot, err := r.captureInstagram(ctx, target, opts.InstagramScroll)
		if err == nil {
			out = paths.Shot(opts.InstagramScroll, shot.Asset.Ext())
			_, err = shot.Asset.Save(out)
		}
		if err != nil {
			res.warn(logger, "instagram capture failed: %v", err)
		} else {
			res.InstagramShot = out
		}
	}

	// Icon square: never upscaled, no margin.
	icon, iconURL, err := r.pageIcon(ctx, target, page)
	switch {
	case err != nil:
		res.warn(logger, "icon %s unavailable: %v", iconURL, err)
	case icon != nil:
		hit, err = r.artifact(ctx, ArtifactIconSquare, func() (bool, error) {
			return r.writeSquare(ctx, icon.Data, square.Options{Size: sq.Size, NoUpscale: true}, neutralBG, paths.Square("icon"))
		})
		if err != nil {
			res.warn(logger, "icon square failed: %v", err)
			break
		}
		res.IconURL = iconURL
		res.IconSquare = paths.Square("icon")
		res.CacheInfo.IconHit = hit
	}
	return nil
}

// mockupSquare inlines doc, rasterizes it and squares the result.
func (r *Runner) mockupSquare(ctx context.Context, doc *template.Document, bg, out string, logger *log.Logger, res *Result) (bool, error) {
	inlined, report, err := template.Inline(doc)
	if err != nil {
		return false, err
	}
	for _, ref := range report.Missing {
		res.warn(logger, "mockup image %s not found", ref)
	}
	for _, ref := range report.Unsupported {
		res.warn(logger, "mockup image %s has an unsupported format", ref)
	}

	svg, err := inlined.Bytes()
	if err != nil {
		return false, err
	}
	sq := r.Config.Square
	png, err := r.Renderer.RenderPNG(ctx, svg, sq.Size-2*sq.MockupMargin)
	if err != nil {
		return false, err
	}
	return r.writeSquare(ctx, png, square.Options{Size: sq.Size, Margin: sq.MockupMargin, NoUpscale: true}, bg, out)
}

// writeSquare composes src into a square and writes it to out. Squares are
// cached by the hash of src and the square options; the first result
// reports a cache hit.
func (r *Runner) writeSquare(ctx context.Context, src []byte, o square.Options, bg, out string) (bool, error) {
	key := r.Keyer.SquareKey(cache.Hash(src), cache.SquareKeyOpts{
		Size:       o.Size,
		Margin:     o.Margin,
		Background: bg,
		NoUpscale:  o.NoUpscale,
	})
	hooks := observability.Cache()

	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		hooks.OnCacheHit(ctx, "square")
		return true, writeFile(out, data)
	}
	hooks.OnCacheMiss(ctx, "square")

	background, err := colors.Parse(bg)
	if err != nil {
		return false, err
	}
	o.Background = background

	raster, err := asset.FromBytes(src, "")
	if err != nil {
		return false, err
	}
	img, err := raster.Decode()
	if err != nil {
		return false, err
	}
	composed, err := square.Compose(img, o)
	if err != nil {
		return false, err
	}
	var buf bytes.Buffer
	if err := square.EncodePNG(&buf, composed); err != nil {
		return false, err
	}

	if err := r.Cache.Set(ctx, key, buf.Bytes(), cache.TTLSquare); err == nil {
		hooks.OnCacheSet(ctx, "square", buf.Len())
	}
	return false, writeFile(out, buf.Bytes())
}

// pageIcon returns the page's touch icon: the bytes a capture already
// carried, or a download of the first advertised icon URL. A page without
// an icon yields (nil, "", nil).
func (r *Runner) pageIcon(ctx context.Context, target site.Target, page *pageCapture) (*asset.Raster, string, error) {
	iconURL := page.iconURL
	if iconURL == "" {
		iconURL = page.fallbackIconURL
	}
	if page.icon != nil {
		return page.icon, iconURL, nil
	}
	if iconURL == "" || r.Icons == nil {
		return nil, "", nil
	}

	resolved, err := capture.ResolveIconURL(target.URL, iconURL)
	if err != nil {
		return nil, iconURL, err
	}
	key := r.Keyer.IconKey(resolved)
	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		if icon, err := asset.FromBytes(data, ""); err == nil {
			observability.Cache().OnCacheHit(ctx, "icon")
			return &icon, resolved, nil
		}
	}

	icon, err := r.Icons.Fetch(ctx, target.URL, resolved)
	if err != nil {
		return nil, resolved, err
	}
	if err := r.Cache.Set(ctx, key, icon.Data, cache.TTLIcon); err == nil {
		observability.Cache().OnCacheSet(ctx, "icon", len(icon.Data))
	}
	return &icon, resolved, nil
}

// artifact reports fn to the pipeline hooks as one rendered artifact.
func (r *Runner) artifact(ctx context.Context, name string, fn func() (bool, error)) (bool, error) {
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, name)
	start := time.Now()
	hit, err := fn()
	hooks.OnRenderComplete(ctx, name, time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return hit, nil
}

func (res *Result) warn(logger *log.Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	res.Warnings = append(res.Warnings, msg)
	logger.Warn(msg)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	return nil
}
