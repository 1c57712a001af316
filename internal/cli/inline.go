package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shotframe/pkg/template"
)

// inlineCommand creates the inline command for making an SVG self-contained.
func (c *CLI) inlineCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inline <svg>",
		Short: "Embed linked screenshots into an SVG",
		Long: `Embed linked screenshots into an SVG.

Every local raster image reference is replaced by a base64 data URI, so the
document can be moved or uploaded on its own. Missing files and unsupported
formats are reported and left as links.

Examples:
  shotframe inline dist/mockup-example_com.svg
  shotframe inline dist/mockup-example_com.svg -o share/example.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInline(cmd.Context(), args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <svg>-inlined.svg)")

	return cmd
}

func (c *CLI) runInline(ctx context.Context, input, output string) error {
	logger := loggerFromContext(ctx)

	doc, err := template.ParseFile(input)
	if err != nil {
		return err
	}
	inlined, report, err := template.Inline(doc)
	if err != nil {
		return err
	}
	logger.Debug("inlined", "file", input, "images", len(report.Inlined), "missing", len(report.Missing))

	if output == "" {
		output = derivedPath(input, "-inlined.svg")
	}
	if err := inlined.WriteFile(output); err != nil {
		return err
	}

	warnInline(report)
	printSuccess("Embedded %d images", len(report.Inlined))
	printFile(output)
	return nil
}
