package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/shotframe/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Shotframe composes website screenshots into device mockups",
		Long: `Shotframe places screenshots of a web page into a laptop, tablet and
phone mockup, writes the result as SVG and produces square images for
social media posts.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "layout and device config (TOML)")

	root.AddCommand(c.mockupCommand())
	root.AddCommand(c.squareCommand())
	root.AddCommand(c.viewportCommand())
	root.AddCommand(c.inlineCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
