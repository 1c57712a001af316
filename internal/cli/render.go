package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/render"
	"github.com/matzehuels/shotframe/pkg/template"
)

const (
	formatPNG = "png" // raster at --width
	formatPDF = "pdf" // single vector page
)

// validFormats is the set of supported output formats.
var validFormats = map[string]bool{formatPNG: true, formatPDF: true}

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output  string   // output file (single format) or base path (several)
	formats []string // output formats: "png", "pdf"
	width   int      // raster width in pixels; 0 keeps the document size
	cache   cacheFlags
}

// renderCommand creates the render command for rasterizing a mockup.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <svg>",
		Short: "Render a mockup SVG to PNG or PDF",
		Long: `Render a mockup SVG to PNG or PDF.

Linked screenshots are embedded before rendering, so the output does not
depend on the working directory. Requires rsvg-convert.

Examples:
  shotframe render dist/mockup-example_com.svg --width 2520
  shotframe render dist/mockup-example_com.svg -f png,pdf -o out/example`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := validateFormats(opts.formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): png (default), pdf (comma-separated)")
	cmd.Flags().IntVar(&opts.width, "width", 0, "PNG width in pixels (default: document width)")
	opts.cache.register(cmd)

	return cmd
}

// parseFormats parses the --format flag. If empty, defaults to ["png"].
func parseFormats(s string) []string {
	if s == "" {
		return []string{formatPNG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func validateFormats(formats []string) error {
	if len(formats) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no output format given")
	}
	for _, f := range formats {
		if !validFormats[f] {
			return errors.New(errors.ErrCodeInvalidInput, "invalid format: %s (must be 'png' or 'pdf')", f)
		}
	}
	return nil
}

// basePath derives the base output path. Without an output the input's
// extension is stripped; a known format extension on output is stripped too.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if validFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts) error {
	logger := loggerFromContext(ctx)

	rsvg := render.NewRSVG()
	if err := rsvg.Available(); err != nil {
		return err
	}

	doc, err := template.ParseFile(input)
	if err != nil {
		return err
	}
	doc, report, err := template.Inline(doc)
	if err != nil {
		return err
	}
	warnInline(report)
	svg, err := doc.Bytes()
	if err != nil {
		return err
	}
	logger.Debug("inlined document", "file", input, "images", len(report.Inlined), "bytes", len(svg))

	store, keyer, err := c.openCache(ctx, opts.cache, "")
	if err != nil {
		return err
	}
	defer store.Close()
	renderer := render.NewCached(rsvg, store, keyer)

	base := basePath(opts.output, input)
	spinner := newSpinnerWithContext(ctx, "Rendering...")
	spinner.Start()
	defer spinner.Stop()

	var written []string
	for _, format := range opts.formats {
		path := base + "." + format
		if len(opts.formats) == 1 && opts.output != "" {
			path = opts.output
		}
		spinner.Update(fmt.Sprintf("Rendering %s...", filepath.Base(path)))

		data, err := renderFormat(ctx, renderer, rsvg, svg, format, opts.width)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		logger.Debug("rendered", "format", format, "file", path, "bytes", len(data))
		written = append(written, path)
	}
	spinner.Stop()

	printSuccess("Rendered %s", strings.ToUpper(strings.Join(opts.formats, ", ")))
	for _, path := range written {
		printFile(path)
	}
	return nil
}

func renderFormat(ctx context.Context, png render.Renderer, rsvg *render.RSVG, svg []byte, format string, width int) ([]byte, error) {
	if format == formatPDF {
		return rsvg.RenderPDF(ctx, svg)
	}
	return png.RenderPNG(ctx, svg, width)
}

// warnInline prints the references that were left as links.
func warnInline(r template.InlineReport) {
	for _, ref := range r.Missing {
		printWarning("Image not found: %s", ref)
	}
	for _, ref := range r.Unsupported {
		printWarning("Unsupported image format: %s", ref)
	}
}
