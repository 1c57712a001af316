package template

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/beevik/etree"

	"github.com/matzehuels/shotframe/pkg/asset"
	"github.com/matzehuels/shotframe/pkg/errors"
)

// InlineReport lists what Inline did with each local image reference.
type InlineReport struct {
	Inlined     []string // embedded as data URIs
	Missing     []string // file not found; left untouched
	Unsupported []string // extension outside the raster allow-list; left untouched
}

// Warnings reports whether any reference was left external.
func (r InlineReport) Warnings() bool {
	return len(r.Missing) > 0 || len(r.Unsupported) > 0
}

// InlineOption configures Inline.
type InlineOption func(*inliner)

// WithReadFile replaces the function used to read referenced files.
func WithReadFile(fn func(string) ([]byte, error)) InlineOption {
	return func(in *inliner) {
		if fn != nil {
			in.readFile = fn
		}
	}
}

type inliner struct {
	readFile func(string) ([]byte, error)
}

// Inline returns a copy of doc with every local raster reference replaced by
// a base64 data URI, so the result renders without filesystem access.
//
// References that are empty, already data URIs or network URLs are left
// alone. Relative paths resolve against doc's base directory. Missing files
// and unknown extensions are recorded in the report rather than failing the
// call. Inlining an inlined document is a no-op.
func Inline(doc *Document, opts ...InlineOption) (*Document, InlineReport, error) {
	in := inliner{readFile: os.ReadFile}
	for _, opt := range opts {
		opt(&in)
	}

	out := doc.Clone()
	root := out.Root()
	var report InlineReport

	for _, el := range imageElements(root) {
		href := imageHref(el)
		if !isLocalRef(href) {
			continue
		}

		mt, ok := asset.MediaType(href)
		if !ok {
			report.Unsupported = append(report.Unsupported, href)
			continue
		}

		path := filepath.FromSlash(href)
		if !filepath.IsAbs(path) {
			path = filepath.Join(out.baseDir, path)
		}
		data, err := in.readFile(path)
		if os.IsNotExist(err) {
			report.Missing = append(report.Missing, href)
			continue
		}
		if err != nil {
			return nil, InlineReport{}, errors.Wrap(errors.ErrCodeInternal, err, "read %s", path)
		}

		uri := "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
		ensureXLink(root)
		el.CreateAttr("href", uri)
		el.CreateAttr("xlink:href", uri)
		report.Inlined = append(report.Inlined, href)
	}

	return out, report, nil
}

// ensureXLink declares the xlink prefix on root unless it is already
// declared there. The prefix is needed for the xlink:href attributes written
// by Inline even when another prefix maps to the same namespace.
func ensureXLink(root *etree.Element) {
	for _, a := range root.Attr {
		if a.Space == "xmlns" && a.Key == "xlink" {
			return
		}
	}
	root.CreateAttr("xmlns:xlink", XLinkNamespace)
}
