package render

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/matzehuels/shotframe/pkg/errors"
)

// Renderer converts an SVG document to PNG bytes.
type Renderer interface {
	// RenderPNG rasterizes svg at the given pixel width, keeping the aspect
	// ratio. A width of zero uses the document's intrinsic size.
	RenderPNG(ctx context.Context, svg []byte, width int) ([]byte, error)
}

const installHint = "install librsvg:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin"

// RSVG renders with the rsvg-convert binary.
type RSVG struct {
	Binary string // defaults to "rsvg-convert" on PATH
}

// NewRSVG returns a renderer using rsvg-convert from PATH.
func NewRSVG() *RSVG {
	return &RSVG{Binary: "rsvg-convert"}
}

// Available reports whether the binary can be found.
func (r *RSVG) Available() error {
	if _, err := exec.LookPath(r.binary()); err != nil {
		return errors.Wrap(errors.ErrCodeRender, err, "%s not found; %s", r.binary(), installHint)
	}
	return nil
}

// RenderPNG implements Renderer.
func (r *RSVG) RenderPNG(ctx context.Context, svg []byte, width int) ([]byte, error) {
	if width < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "render width must not be negative, got %d", width)
	}
	var args []string
	if width > 0 {
		args = append(args, "-w", strconv.Itoa(width), "-a")
	}
	return r.convert(ctx, svg, "png", args...)
}

// RenderPDF converts svg to a single-page PDF.
func (r *RSVG) RenderPDF(ctx context.Context, svg []byte) ([]byte, error) {
	return r.convert(ctx, svg, "pdf")
}

func (r *RSVG) convert(ctx context.Context, svg []byte, format string, extraArgs ...string) ([]byte, error) {
	if err := r.Available(); err != nil {
		return nil, err
	}

	args := append([]string{"-f", format}, extraArgs...)
	cmd := exec.CommandContext(ctx, r.binary(), args...)
	cmd.Stdin = bytes.NewReader(svg)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeRender, err, "%s %s: %s", r.binary(), format, strings.TrimSpace(errBuf.String()))
	}
	if out.Len() == 0 {
		return nil, errors.New(errors.ErrCodeRender, "%s produced no output", r.binary())
	}
	return out.Bytes(), nil
}

func (r *RSVG) binary() string {
	if r.Binary == "" {
		return "rsvg-convert"
	}
	return r.Binary
}

var _ Renderer = (*RSVG)(nil)
