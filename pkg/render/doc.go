// Package render rasterizes SVG documents.
//
// The pipeline only needs a [Renderer]; [RSVG] implements it by piping the
// document through the external rsvg-convert tool (librsvg), and [Cached]
// memoizes any Renderer by content hash:
//
//	r := render.NewCached(render.NewRSVG(), c, cache.NewDefaultKeyer())
//	png, err := r.RenderPNG(ctx, svg, 960)
//
// Documents must be self-contained (see template.Inline); rsvg-convert reads
// them from stdin and cannot resolve relative file references.
package render
