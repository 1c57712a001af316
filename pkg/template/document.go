// Package template edits the vector mockup template.
//
// The template is an SVG document with one placeholder element per device
// screen. [Compose] replaces each placeholder with a clipped group holding a
// width-matched, vertically centered screenshot, and [Inline] embeds every
// local raster reference as a data URI so the document renders without
// filesystem access.
//
// Both operations are pure: they return a new [Document] and never modify
// their input. Compose must always start from the pristine template, since
// the placeholders no longer exist in its output.
//
//	tpl, _ := template.Parse(data, ".")
//	composed, err := template.Compose(tpl, cfg.Regions(), shots,
//	    template.WithThemeColor(theme))
//	inlined, report, err := template.Inline(composed)
package template

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/matzehuels/shotframe/pkg/errors"
)

// Namespaces used when editing templates.
const (
	SVGNamespace   = "http://www.w3.org/2000/svg"
	XLinkNamespace = "http://www.w3.org/1999/xlink"
)

// Document is a parsed SVG template together with the directory its
// relative image references resolve against.
type Document struct {
	doc        *etree.Document
	baseDir    string
	placements []Placement
}

// Parse reads an SVG document. baseDir anchors relative image references.
func Parse(data []byte, baseDir string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTemplateParse, err, "parse svg")
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, errors.New(errors.ErrCodeTemplateParse, "document root is not <svg>")
	}
	if baseDir == "" {
		baseDir = "."
	}
	return &Document{doc: doc, baseDir: baseDir}, nil
}

// ParseFile reads an SVG file; references resolve against its directory.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "svg %s", path)
	}
	if err != nil {
		return nil, err
	}
	return Parse(data, filepath.Dir(path))
}

// BaseDir returns the directory relative references resolve against.
func (d *Document) BaseDir() string { return d.baseDir }

// WithBaseDir returns a copy of d anchored at dir.
func (d *Document) WithBaseDir(dir string) *Document {
	c := d.Clone()
	c.baseDir = dir
	return c
}

// Root returns the <svg> element. Callers must not modify it.
func (d *Document) Root() *etree.Element { return d.doc.Root() }

// Placements returns the screenshot placements made by Compose, in
// template order. It is empty for documents that were not composed.
func (d *Document) Placements() []Placement {
	return append([]Placement(nil), d.placements...)
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	return &Document{
		doc:        d.doc.Copy(),
		baseDir:    d.baseDir,
		placements: append([]Placement(nil), d.placements...),
	}
}

// Bytes serializes the document with two-space indentation.
func (d *Document) Bytes() ([]byte, error) {
	out := d.doc.Copy()
	out.Indent(2)
	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "serialize svg")
	}
	return buf.Bytes(), nil
}

// WriteFile serializes the document to path, creating parent directories.
func (d *Document) WriteFile(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Canvas returns the document's logical canvas from its viewBox, or from its
// width/height attributes when there is no viewBox.
func (d *Document) Canvas() (Rect, bool) {
	root := d.Root()
	if vb := root.SelectAttrValue("viewBox", ""); vb != "" {
		f := strings.FieldsFunc(vb, func(r rune) bool { return r == ' ' || r == ',' })
		if len(f) == 4 {
			var v [4]float64
			for i, s := range f {
				n, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return Rect{}, false
				}
				v[i] = n
			}
			if v[2] > 0 && v[3] > 0 {
				return Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}, true
			}
		}
		return Rect{}, false
	}

	w, errW := strconv.ParseFloat(strings.TrimSuffix(root.SelectAttrValue("width", ""), "px"), 64)
	h, errH := strconv.ParseFloat(strings.TrimSuffix(root.SelectAttrValue("height", ""), "px"), 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Rect{}, false
	}
	return Rect{W: w, H: h}, true
}

// ImageRefs returns the href of every image element, in document order.
func (d *Document) ImageRefs() []string {
	var refs []string
	for _, el := range imageElements(d.Root()) {
		refs = append(refs, imageHref(el))
	}
	return refs
}

// ExternalRefs returns the image references that still point at local files:
// neither embedded data nor a network location.
func (d *Document) ExternalRefs() []string {
	var refs []string
	for _, href := range d.ImageRefs() {
		if isLocalRef(href) {
			refs = append(refs, href)
		}
	}
	return refs
}

// ElementByID returns the first element whose id attribute equals id.
func (d *Document) ElementByID(id string) *etree.Element {
	return findByID(d.Root(), id)
}

// =============================================================================
// Tree helpers
// =============================================================================

func findByID(el *etree.Element, id string) *etree.Element {
	if el.SelectAttrValue("id", "") == id {
		return el
	}
	for _, c := range el.ChildElements() {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func imageElements(el *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		if e.Tag == "image" {
			out = append(out, e)
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(el)
	return out
}

// imageHref prefers the SVG 2 href over the legacy xlink:href.
func imageHref(el *etree.Element) string {
	var legacy string
	for _, a := range el.Attr {
		if a.Key != "href" {
			continue
		}
		v := strings.TrimSpace(a.Value)
		if a.Space == "" && v != "" {
			return v
		}
		if legacy == "" {
			legacy = v
		}
	}
	return legacy
}

func isLocalRef(href string) bool {
	return href != "" && !strings.HasPrefix(href, "data:") && !strings.Contains(href, "://")
}

// newElement creates an element in the same namespace prefix as the root,
// so prefixed templates (<svg:svg>) stay consistent.
func newElement(root *etree.Element, tag string) *etree.Element {
	el := etree.NewElement(tag)
	el.Space = root.Space
	return el
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
