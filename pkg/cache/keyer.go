package cache

import "fmt"

// Keyer builds cache keys. Keys embed a hash of every input that changes
// the output, so stale entries are never returned for new inputs.
type Keyer interface {
	// RenderKey identifies a rasterized SVG document.
	RenderKey(svgHash string, opts RenderKeyOpts) string

	// SquareKey identifies a composed social square.
	SquareKey(imageHash string, opts SquareKeyOpts) string

	// IconKey identifies a fetched site icon.
	IconKey(url string) string
}

// RenderKeyOpts holds the rasterizer inputs besides the document.
type RenderKeyOpts struct {
	Width  int    `json:"width"`
	Format string `json:"format"`
}

// SquareKeyOpts holds the compositor inputs besides the image.
type SquareKeyOpts struct {
	Size       int    `json:"size"`
	Margin     int    `json:"margin"`
	Background string `json:"background"`
	NoUpscale  bool   `json:"no_upscale"`
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RenderKey implements Keyer.
func (DefaultKeyer) RenderKey(svgHash string, opts RenderKeyOpts) string {
	return hashKey("render", svgHash, opts)
}

// SquareKey implements Keyer.
func (DefaultKeyer) SquareKey(imageHash string, opts SquareKeyOpts) string {
	return hashKey("square", imageHash, opts)
}

// IconKey implements Keyer.
func (DefaultKeyer) IconKey(url string) string {
	return fmt.Sprintf("icon:%s", url)
}
