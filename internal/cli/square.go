package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shotframe/pkg/asset"
	"github.com/matzehuels/shotframe/pkg/colors"
	"github.com/matzehuels/shotframe/pkg/square"
)

// squareOpts holds the command-line flags for the square command.
type squareOpts struct {
	output     string
	size       int
	margin     int
	background string
	noUpscale  bool
}

// squareCommand creates the square command for fitting one image.
func (c *CLI) squareCommand() *cobra.Command {
	opts := squareOpts{size: square.DefaultSize, margin: 128, background: colors.Neutral}

	cmd := &cobra.Command{
		Use:   "square <image>",
		Short: "Fit an image into a square social post",
		Long: `Fit an image into a square social post.

The image is scaled uniformly to fit inside the square minus the margin,
centered on the background color and written as an opaque PNG.

Examples:
  shotframe square full.png
  shotframe square icon.png --margin 0 --no-upscale --background "#0b7285"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSquare(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <image>-square.png)")
	cmd.Flags().IntVar(&opts.size, "size", opts.size, "edge length in pixels")
	cmd.Flags().IntVar(&opts.margin, "margin", opts.margin, "padding on every side in pixels")
	cmd.Flags().StringVar(&opts.background, "background", opts.background, "background color (hex, rgb() or CSS name)")
	cmd.Flags().BoolVar(&opts.noUpscale, "no-upscale", false, "never enlarge small images")

	return cmd
}

func (c *CLI) runSquare(ctx context.Context, input string, opts squareOpts) error {
	logger := loggerFromContext(ctx)

	bg, err := colors.Parse(opts.background)
	if err != nil {
		return err
	}
	src, err := asset.Load(input)
	if err != nil {
		return err
	}
	img, err := src.Decode()
	if err != nil {
		return err
	}
	logger.Debug("loaded image", "file", input, "width", src.Width, "height", src.Height)

	out, err := square.Compose(img, square.Options{
		Size:       opts.size,
		Margin:     opts.margin,
		Background: bg,
		NoUpscale:  opts.noUpscale,
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := square.EncodePNG(&buf, out); err != nil {
		return err
	}
	path := opts.output
	if path == "" {
		path = derivedPath(input, "-square.png")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	printSuccess("Square written")
	printFile(path)
	return nil
}

// derivedPath replaces input's extension with suffix.
func derivedPath(input, suffix string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix
}
