package cli

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shotframe/pkg/config"
)

// completionCommand creates the completion command. Besides command names
// the scripts complete device kinds and scroll presets from the active
// configuration.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for shotframe.

The scripts complete subcommands, flags, device kinds for
"shotframe viewport --device" and scroll presets for
"shotframe mockup --scrolls" and "--instagram-scroll", read from the
configuration given by --config or the built-in template.

To load completions:

Bash:
  $ source <(shotframe completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ shotframe completion bash > /etc/bash_completion.d/shotframe
  # macOS:
  $ shotframe completion bash > $(brew --prefix)/etc/bash_completion.d/shotframe

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ shotframe completion zsh > "${fpath[1]}/_shotframe"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ shotframe completion fish | source

  # To load completions for each session, execute once:
  $ shotframe completion fish > ~/.config/fish/completions/shotframe.fish

PowerShell:
  PS> shotframe completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> shotframe completion powershell > shotframe.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}

// =============================================================================
// Flag Completions
// =============================================================================

// completionConfig returns the configuration for completions, falling back
// to the built-in one when the config file cannot be loaded.
func (c *CLI) completionConfig() config.Config {
	cfg, err := c.loadConfig("")
	if err != nil {
		return config.Default()
	}
	return cfg
}

// completeDevices suggests device kinds and classes.
func (c *CLI) completeDevices(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg := c.completionConfig()
	names := cfg.Kinds()
	for _, d := range cfg.Devices {
		names = append(names, string(d.Class))
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completePresets suggests scroll preset names. For comma-separated lists
// only the last element is completed.
func (c *CLI) completePresets(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	presets := c.completionConfig().ScrollPresets
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	head, last := "", toComplete
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		head, last = toComplete[:i+1], toComplete[i+1:]
	}
	out := filterPrefix(names, last)
	for i := range out {
		out[i] = head + out[i]
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

func filterPrefix(names []string, prefix string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}
