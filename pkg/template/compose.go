package template

import (
	"path/filepath"

	"github.com/beevik/etree"

	"github.com/matzehuels/shotframe/pkg/asset"
	"github.com/matzehuels/shotframe/pkg/colors"
	"github.com/matzehuels/shotframe/pkg/config"
	"github.com/matzehuels/shotframe/pkg/errors"
)

// ClipPrefix prefixes the id of every clip path Compose creates.
const ClipPrefix = "clip_"

// Rect is a rectangle in template coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Placement records where a screenshot was drawn inside its region.
type Placement struct {
	RegionID string
	Href     string
	Region   Rect
	Image    Rect
}

// VisibleHeight returns the height of the image that survives clipping.
func (p Placement) VisibleHeight() float64 {
	top := max(p.Image.Y, p.Region.Y)
	bottom := min(p.Image.Y+p.Image.H, p.Region.Y+p.Region.H)
	return max(0, bottom-top)
}

// =============================================================================
// Options
// =============================================================================

// ComposeOption configures Compose.
type ComposeOption func(*composer)

// WithThemeColor paints the whole canvas with color behind the artwork.
// An empty color leaves the canvas transparent.
func WithThemeColor(color string) ComposeOption {
	return func(c *composer) { c.theme = color }
}

// WithBackdrop sets the fill drawn under each screenshot. Defaults to white.
func WithBackdrop(color string) ComposeOption {
	return func(c *composer) {
		if color != "" {
			c.backdrop = color
		}
	}
}

// WithHrefResolver controls the href written for each screenshot.
// The default writes the asset path with forward slashes.
func WithHrefResolver(fn func(asset.Raster) string) ComposeOption {
	return func(c *composer) {
		if fn != nil {
			c.href = fn
		}
	}
}

// RelativeTo returns an href resolver writing asset paths relative to dir,
// falling back to the absolute path when no relative path exists.
func RelativeTo(dir string) func(asset.Raster) string {
	return func(a asset.Raster) string {
		abs, err := filepath.Abs(a.Path)
		if err != nil {
			return filepath.ToSlash(a.Path)
		}
		base, err := filepath.Abs(dir)
		if err != nil {
			return filepath.ToSlash(abs)
		}
		rel, err := filepath.Rel(base, abs)
		if err != nil {
			return filepath.ToSlash(abs)
		}
		return filepath.ToSlash(rel)
	}
}

type composer struct {
	theme    string
	backdrop string
	href     func(asset.Raster) string
}

// =============================================================================
// Compose
// =============================================================================

// Compose returns a copy of doc with every region's placeholder replaced by
// the matching screenshot from placements, keyed by region id.
//
// Each screenshot is scaled to exactly the region's width and centered
// vertically. Images taller than the region are clipped top and bottom;
// shorter ones leave the backdrop visible. The replacement group takes the
// placeholder's position among its siblings so paint order is preserved.
//
// A region whose id is not in the template fails with TEMPLATE_INTEGRITY,
// which is also what happens when composing an already composed document.
func Compose(doc *Document, regions []config.Region, placements map[string]asset.Raster, opts ...ComposeOption) (*Document, error) {
	c := composer{
		backdrop: colors.White,
		href:     func(a asset.Raster) string { return filepath.ToSlash(a.Path) },
	}
	for _, opt := range opts {
		opt(&c)
	}

	out := doc.Clone()
	out.placements = nil
	root := out.Root()
	defs := ensureDefs(root)

	for _, r := range regions {
		target := findByID(root, r.ID)
		if target == nil {
			return nil, errors.New(errors.ErrCodeTemplateIntegrity, "placeholder %q not found in template", r.ID)
		}
		if target == root {
			return nil, errors.New(errors.ErrCodeTemplateIntegrity, "placeholder %q is the document root", r.ID)
		}
		if r.W <= 0 || r.H <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "region %s must have positive size", r.ID)
		}
		a, ok := placements[r.ID]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "no screenshot for region %s", r.ID)
		}
		if a.Width <= 0 || a.Height <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "screenshot for region %s has no size", r.ID)
		}

		p := place(r, a, c.href(a))
		defs.AddChild(clipPath(root, r))
		replace(target, c.group(root, p))
		out.placements = append(out.placements, p)
	}

	if c.theme != "" {
		canvas, ok := out.Canvas()
		if !ok {
			return nil, errors.New(errors.ErrCodeTemplateIntegrity, "template has no viewBox or size for the theme background")
		}
		bg := newElement(root, "rect")
		bg.CreateAttr("x", formatFloat(canvas.X))
		bg.CreateAttr("y", formatFloat(canvas.Y))
		bg.CreateAttr("width", formatFloat(canvas.W))
		bg.CreateAttr("height", formatFloat(canvas.H))
		bg.CreateAttr("fill", c.theme)
		root.InsertChildAt(defs.Index()+1, bg)
	}

	return out, nil
}

// place fits a to the region's width and centers it vertically. The offset
// goes negative when the scaled image is taller than the region.
func place(r config.Region, a asset.Raster, href string) Placement {
	scale := r.W / float64(a.Width)
	h := float64(a.Height) * scale
	return Placement{
		RegionID: r.ID,
		Href:     href,
		Region:   Rect{X: r.X, Y: r.Y, W: r.W, H: r.H},
		Image:    Rect{X: r.X, Y: r.Y + (r.H-h)/2, W: r.W, H: h},
	}
}

func (c composer) group(root *etree.Element, p Placement) *etree.Element {
	g := newElement(root, "g")
	g.CreateAttr("clip-path", "url(#"+ClipPrefix+p.RegionID+")")

	backdrop := g.CreateElement("rect")
	backdrop.Space = root.Space
	setRect(backdrop, p.Region)
	backdrop.CreateAttr("fill", c.backdrop)

	img := g.CreateElement("image")
	img.Space = root.Space
	img.CreateAttr("href", p.Href)
	setRect(img, p.Image)
	img.CreateAttr("preserveAspectRatio", "xMidYMid meet")
	return g
}

func clipPath(root *etree.Element, r config.Region) *etree.Element {
	cp := newElement(root, "clipPath")
	cp.CreateAttr("id", ClipPrefix+r.ID)
	cp.CreateAttr("clipPathUnits", "userSpaceOnUse")
	rect := cp.CreateElement("rect")
	rect.Space = root.Space
	setRect(rect, Rect{X: r.X, Y: r.Y, W: r.W, H: r.H})
	return cp
}

func setRect(el *etree.Element, r Rect) {
	el.CreateAttr("x", formatFloat(r.X))
	el.CreateAttr("y", formatFloat(r.Y))
	el.CreateAttr("width", formatFloat(r.W))
	el.CreateAttr("height", formatFloat(r.H))
}

// ensureDefs returns the root's <defs>, creating it as the first child.
func ensureDefs(root *etree.Element) *etree.Element {
	if defs := root.SelectElement("defs"); defs != nil {
		return defs
	}
	defs := newElement(root, "defs")
	root.InsertChildAt(0, defs)
	return defs
}

// replace swaps old for el at the same position under the same parent.
func replace(old, el *etree.Element) {
	parent := old.Parent()
	idx := old.Index()
	parent.RemoveChildAt(idx)
	parent.InsertChildAt(idx, el)
}
