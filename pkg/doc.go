// Package pkg provides the libraries behind shotframe.
//
// # Overview
//
// Shotframe takes screenshots of a web page and composes them into a device
// mockup: a laptop, a tablet and a phone drawn in an SVG template with
// placeholder rectangles. Each screenshot is sized to fit its placeholder,
// the template is rewritten to show them, and square images for social media
// posts are produced from the mockup, the full page and the page's icon.
//
// # Architecture
//
// The data flow for one page:
//
//	site.Target (url + domain slug)
//	         ↓
//	    [viewport] pick a capture size per device
//	         ↓
//	    [capture] screenshots, theme color, icon
//	         ↓
//	    [template] place screenshots into the mockup SVG
//	         ↓
//	    [render] rasterize the self-contained SVG
//	         ↓
//	    [square] 1080×1080 social crops
//
// [pipeline] runs these stages for one target or a batch of targets and is
// what the CLI drives.
//
// # Main Packages
//
// ## Domain
//
// [config] - Template geometry, device classes, scroll presets and square
// settings, loaded from TOML over built-in defaults.
//
// [viewport] - Capture size selection: the reference viewport when its aspect
// ratio matches the placeholder, otherwise the placeholder scaled by the
// device's hint.
//
// [template] - SVG editing with etree: placeholder replacement, clip paths,
// theme color, and inlining of linked images as data URIs.
//
// [square] - Uniform fit of an image into an opaque square.
//
// [asset], [colors], [site] - Raster images, CSS color parsing and target
// normalization.
//
// ## Collaborators
//
// [capture] - The capture interface, a directory-backed implementation and
// touch icon downloads.
//
// [render] - SVG rasterization through rsvg-convert, optionally cached.
//
// ## Infrastructure
//
// [cache] - File, Redis, MongoDB and no-op caches with scoped key derivation.
//
// [httputil] - HTTP client with retries and an on-disk response cache.
//
// [observability] - Hooks for pipeline, cache and HTTP events.
//
// [errors] - Coded errors shared by every package.
//
// # Quick Start
//
//	cfg := config.Default()
//	r := pipeline.NewRunner(cfg, capture.NewDir("captures"), render.NewRSVG())
//	t, _ := site.ParseTarget("example.com")
//	res, err := r.Execute(ctx, t, pipeline.Options{})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Mockup, res.MockupSquare)
//
// # Testing
//
//	go test ./...                  # All tests
//	go test ./pkg/template/...     # Specific package
package pkg
