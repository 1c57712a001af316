// Package capture defines the screenshot collaborator the pipeline drives.
//
// Capturing a live page needs a browser, which shotframe does not embed.
// Instead the pipeline talks to a [Capturer]. [Dir] implements it over a
// directory of screenshots taken ahead of time, and [IconFetcher] downloads
// the touch icon a page advertises.
package capture

import (
	"context"

	"github.com/matzehuels/shotframe/pkg/asset"
)

// Kinds of capture besides the template's device kinds.
const (
	KindInstagram = "instagram"
	KindFullPage  = "full"
)

// Request describes one viewport screenshot.
type Request struct {
	URL      string
	Domain   string
	Kind     string // device kind, KindInstagram or KindFullPage
	Width    int    // viewport width in CSS pixels
	Height   int    // viewport height in CSS pixels
	Scroll   string // preset name, recorded in file names
	Fraction float64
}

// Shot is a captured screenshot plus page metadata discovered while
// capturing it. Metadata fields are empty when the page did not declare them.
type Shot struct {
	Asset      asset.Raster
	ThemeColor string
	IconURL    string        // absolute URL of the page's touch icon
	Icon       *asset.Raster // icon bytes, when the capturer already has them
}

// Capturer produces screenshots of web pages.
type Capturer interface {
	// Capture takes a viewport screenshot scrolled to req.Fraction of the
	// scrollable height.
	Capture(ctx context.Context, req Request) (*Shot, error)

	// FullPage takes a screenshot of the whole scrollable page at req's
	// viewport width.
	FullPage(ctx context.Context, req Request) (*Shot, error)
}
