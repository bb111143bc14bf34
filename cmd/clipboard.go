package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/internal/scrcpy/client"
	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// NewClipboardCommand gets or sets the device clipboard
func NewClipboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clipboard",
		Short: "Get or set the device clipboard",
	}
	cmd.AddCommand(newClipboardGetCommand())
	cmd.AddCommand(newClipboardSetCommand())
	return cmd
}

// controlSession opens a control-only session
func controlSession(cmd *cobra.Command) (*client.Client, error) {
	driver, err := newAdb()
	if err != nil {
		return nil, err
	}
	cfg := sessionConfigFromFlags(cmd)
	cfg.Video = false
	cfg.Audio = false
	cfg.Control = true
	cfg.LazyDecode = false
	cfg.ClipboardAutosync = false

	c := client.New(driver, nil)
	if err := c.Connect(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func newClipboardGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the device clipboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := controlSession(cmd)
			if err != nil {
				return err
			}
			defer c.Disconnect()

			if err := c.GetClipboard(protocol.CopyKeyNone); err != nil {
				return err
			}
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if text := c.DeviceClipboard(); text != "" {
					fmt.Println(text)
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
			return errors.New("no clipboard reply from device (clipboard may be empty)")
		},
	}
	addStreamFlags(cmd)
	return cmd
}

func newClipboardSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <text>",
		Short: "Push text to the device clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := controlSession(cmd)
			if err != nil {
				return err
			}
			defer c.Disconnect()

			paste, _ := cmd.Flags().GetBool("paste")
			if _, err := c.SetClipboard(args[0], paste); err != nil {
				return err
			}
			// Give the writer a moment to flush before teardown
			time.Sleep(200 * time.Millisecond)
			return nil
		},
	}
	cmd.Flags().Bool("paste", false, "Paste into the focused editor after setting")
	addStreamFlags(cmd)
	return cmd
}
