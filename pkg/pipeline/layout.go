package pipeline

import (
	"fmt"
	"path/filepath"
)

// Output directories below the output root.
const (
	ScreensDir   = "screens"
	InstagramDir = "instagram"
)

// Paths lays out the output files of one page below an output root.
//
//	dist/mockup-example_com.svg
//	dist/screens/desktop-example_com-top.png
//	dist/instagram/example_com-mockup.png
//	dist/instagram/example_com-full.png
//	dist/instagram/example_com-icon.png
//	dist/instagram/example_com-top.png
type Paths struct {
	Root   string
	Domain string
}

// NewPaths returns the layout for domain below root.
func NewPaths(root, domain string) Paths {
	return Paths{Root: root, Domain: domain}
}

// Mockup is the composed SVG.
func (p Paths) Mockup() string {
	return filepath.Join(p.Root, fmt.Sprintf("mockup-%s.svg", p.Domain))
}

// Screen is the raw capture of one device. ext is the capture's extension
// including the dot.
func (p Paths) Screen(kind, scroll, ext string) string {
	return filepath.Join(p.Root, ScreensDir, fmt.Sprintf("%s-%s-%s%s", kind, p.Domain, scroll, ext))
}

// FullPageTemp holds the full-page capture while its square is produced.
func (p Paths) FullPageTemp(ext string) string {
	return filepath.Join(p.Root, ScreensDir, fmt.Sprintf("_fullpage-%s%s", p.Domain, ext))
}

// Shot is the raw square viewport capture in the instagram directory.
func (p Paths) Shot(scroll, ext string) string {
	return filepath.Join(p.Root, InstagramDir, fmt.Sprintf("%s-%s%s", p.Domain, scroll, ext))
}

// Square is a rendered PNG in the instagram directory; name is mockup, full
// or icon.
func (p Paths) Square(name string) string {
	return filepath.Join(p.Root, InstagramDir, fmt.Sprintf("%s-%s.png", p.Domain, name))
}
