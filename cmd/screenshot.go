package cmd

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/internal/scrcpy/client"
)

// NewScreenshotCommand captures one frame through a throw-away session
func NewScreenshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screenshot <file>",
		Short: "Capture the current screen to a PNG file",
		Long: `Builds a short-lived session, waits for the first decoded frame, and
writes it as a PNG image.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := newAdb()
			if err != nil {
				return err
			}
			cfg := sessionConfigFromFlags(cmd)

			c := client.New(driver, nil)
			started := time.Now()
			frame, err := c.ScreenshotStandalone(cfg, args[0])
			if err != nil {
				return err
			}
			color.Green("Wrote %s (%dx%d, %s)",
				args[0], frame.Width, frame.Height,
				time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
	addStreamFlags(cmd)
	return cmd
}
