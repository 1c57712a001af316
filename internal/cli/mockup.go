package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/pipeline"
	"github.com/matzehuels/shotframe/pkg/render"
	"github.com/matzehuels/shotframe/pkg/site"
)

// defaultDomainsFile is read when no target is given on the command line.
const defaultDomainsFile = "domains.txt"

// mockupOpts holds the command-line flags for the mockup command.
type mockupOpts struct {
	pipeline.Options
	template string // SVG template replacing the built-in one
	captures string // directory of pre-captured screenshots
	domains  string // targets file used without a positional argument
	cache    cacheFlags
}

// mockupCommand creates the mockup command, the main entry point.
func (c *CLI) mockupCommand() *cobra.Command {
	opts := mockupOpts{
		Options:  pipeline.Options{OutDir: pipeline.DefaultOutDir, InstagramScroll: pipeline.DefaultScroll},
		captures: "captures",
		domains:  defaultDomainsFile,
	}

	cmd := &cobra.Command{
		Use:   "mockup [url]",
		Short: "Compose device mockups and social squares for web pages",
		Long: `Compose device mockups and social squares for web pages.

Screenshots are read from the captures directory, one folder per domain:

  captures/example_com/desktop.png   (or desktop-<scroll>.png)
  captures/example_com/tablet.png
  captures/example_com/mobile.png
  captures/example_com/instagram.png
  captures/example_com/full.png
  captures/example_com/page.toml     (theme_color, icon_url; optional)

Without a url argument every line of the domains file is processed. A failing
page is reported and the remaining pages are still processed.

Examples:
  shotframe mockup example.com
  shotframe mockup --scrolls top,mid,bottom --instagram-scroll mid example.com
  shotframe mockup --domains sites.txt --out build`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := resolveTargets(args, opts.domains)
			if err != nil {
				return err
			}
			return c.runMockup(cmd.Context(), inputs, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", opts.OutDir, "output directory")
	cmd.Flags().StringVar(&opts.template, "template", "", "SVG template file (default: built-in)")
	cmd.Flags().StringVar(&opts.captures, "captures", opts.captures, "directory of pre-captured screenshots")
	cmd.Flags().StringVar(&opts.domains, "domains", opts.domains, "file with one target per line")
	cmd.Flags().StringSliceVar(&opts.Scrolls, "scrolls", nil, "scroll preset per device: desktop,tablet,mobile (top, mid, bottom)")
	cmd.Flags().StringVar(&opts.InstagramScroll, "instagram-scroll", opts.InstagramScroll, "scroll preset of the square viewport capture")
	cmd.Flags().BoolVar(&opts.SkipInstagram, "skip-instagram", false, "skip the square viewport capture")
	opts.cache.register(cmd)
	cmd.RegisterFlagCompletionFunc("scrolls", c.completePresets)
	cmd.RegisterFlagCompletionFunc("instagram-scroll", c.completePresets)

	return cmd
}

// resolveTargets returns the positional target, or the lines of the
// domains file when there is none.
func resolveTargets(args []string, domainsFile string) ([]string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return []string{args[0]}, nil
	}
	items, err := site.ReadDomainsFile(domainsFile)
	if err != nil {
		return nil, fmt.Errorf("no url given and %w", err)
	}
	return items, nil
}

func (c *CLI) runMockup(ctx context.Context, inputs []string, opts mockupOpts) error {
	cfg, err := c.loadConfig(opts.template)
	if err != nil {
		return err
	}
	if err := opts.ValidateAndSetDefaults(cfg); err != nil {
		return err
	}
	if err := render.NewRSVG().Available(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, opts.captures, opts.cache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	batch, err := c.runBatch(ctx, runner, inputs, opts.Options)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Processed %d of %d pages", len(batch.Results), len(inputs)))

	for _, res := range batch.Results {
		printResult(res)
	}
	for _, f := range batch.Failures {
		printNewline()
		printError("Failed for %s", f.Input)
		printDetail("%v", f.Err)
		if errors.IsFatal(f.Err) {
			printDetail("check the template and --config; every page will fail the same way")
		}
	}

	if len(batch.Results) == 0 && len(batch.Failures) > 0 {
		return fmt.Errorf("all %d pages failed", len(batch.Failures))
	}
	if len(batch.Results) > 0 {
		printNewline()
		printNextStep("Preview a square", "open "+batch.Results[0].MockupSquare)
	}
	return nil
}
