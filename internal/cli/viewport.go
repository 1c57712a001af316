package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/shotframe/pkg/config"
	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/viewport"
)

// viewportCommand creates the viewport command showing capture sizes.
func (c *CLI) viewportCommand() *cobra.Command {
	var (
		device string
		region string
	)

	cmd := &cobra.Command{
		Use:   "viewport",
		Short: "Show the capture viewport chosen for each device",
		Long: `Show the capture viewport chosen for each device.

Without flags the configured template regions are listed. With --device and
--region the selection is computed for an arbitrary placeholder size.

Examples:
  shotframe viewport
  shotframe viewport --device tablet --region 200x150`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runViewport(cmd.Context(), device, region)
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "device kind or class (desktop, tablet, mobile, large, medium, small)")
	cmd.Flags().StringVar(&region, "region", "", "placeholder size WxH in template units")
	cmd.RegisterFlagCompletionFunc("device", c.completeDevices)

	return cmd
}

func (c *CLI) runViewport(_ context.Context, device, region string) error {
	cfg, err := c.loadConfig("")
	if err != nil {
		return err
	}
	sel := viewport.New(cfg)

	if device == "" && region == "" {
		out, err := viewportTable(cfg, sel)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	d, ok := cfg.Device(device)
	if !ok {
		return errors.New(errors.ErrCodeInvalidInput, "unknown device %q (use one of: %v)", device, cfg.Kinds())
	}
	w, h := d.Region.W, d.Region.H
	if region != "" {
		if w, h, err = parseRegion(region); err != nil {
			return err
		}
	}
	spec, err := sel.Select(d, w, h)
	if err != nil {
		return err
	}
	printDevice(d, w, h, spec)
	return nil
}

// parseRegion parses a WxH size such as "200x150" or "73.5X40".
func parseRegion(s string) (float64, float64, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, errors.New(errors.ErrCodeInvalidInput, "region %q is not WxH", s)
	}
	w, errW := strconv.ParseFloat(ws, 64)
	h, errH := strconv.ParseFloat(hs, 64)
	if errW != nil || errH != nil {
		return 0, 0, errors.New(errors.ErrCodeInvalidInput, "region %q is not WxH", s)
	}
	return w, h, nil
}

// viewportTable renders the configured devices and their capture sizes.
func viewportTable(cfg config.Config, sel viewport.Selector) (string, error) {
	rows := make([][]string, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		spec, err := sel.Select(d, d.Region.W, d.Region.H)
		if err != nil {
			return "", err
		}
		rows = append(rows, []string{
			d.Kind,
			string(d.Class),
			d.Region.ID,
			fmt.Sprintf("%gx%g", d.Region.W, d.Region.H),
			spec.String(),
			viewportSource(d, spec),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Device", "Class", "Region", "Size", "Viewport", "Source").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == -1:
				return headerStyle.Padding(0, 1)
			case col == 4:
				return base.Foreground(colorCyan)
			case col == 5:
				return base.Foreground(colorDim)
			}
			return base
		})
	return t.Render(), nil
}

func viewportSource(d config.Device, spec viewport.Spec) string {
	if spec.Width == d.Reference.Width && spec.Height == d.Reference.Height {
		return "reference"
	}
	return fmt.Sprintf("scaled ×%g", d.ScaleHint)
}

func printDevice(d config.Device, w, h float64, spec viewport.Spec) {
	source := viewportSource(d, spec)
	printKeyValue(d.Kind, fmt.Sprintf("%s %s %s",
		StyleDim.Render(fmt.Sprintf("%gx%g", w, h)),
		StyleDim.Render(iconArrow),
		StyleNumber.Render(spec.String()))+" "+StyleDim.Render("("+source+")"))
}
