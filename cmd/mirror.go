package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/internal/preview"
	"github.com/droidcast/droidcast/internal/scrcpy/client"
	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// NewMirrorCommand runs a standing session until interrupted
func NewMirrorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror the device screen (headless session)",
		Long: `Opens a session and keeps the streams flowing. Combine with
--preview-addr to watch the H.264 stream over websocket, or --record to
capture it to a file.`,
		RunE: runMirror,
	}
	addStreamFlags(cmd)
	cmd.Flags().String("preview-addr", "", "Serve the video stream on this websocket address (e.g. :8765)")
	cmd.Flags().String("record", "", "Record the video stream to this file")
	cmd.Flags().String("record-format", "", "Expected stream format for --record (h264, h265, av1)")
	return cmd
}

func runMirror(cmd *cobra.Command, args []string) error {
	driver, err := newAdb()
	if err != nil {
		return err
	}

	cfg := sessionConfigFromFlags(cmd)
	if record, _ := cmd.Flags().GetString("record"); record != "" {
		cfg.RecordFile = record
		cfg.RecordFormat, _ = cmd.Flags().GetString("record-format")
	}

	c := client.New(driver, &client.MemoryClipboard{})
	if err := c.Connect(cfg); err != nil {
		return err
	}
	defer c.Disconnect()

	state := c.StateSnapshot()
	color.Green("Connected to %s (%dx%d, %s)",
		state.DeviceName, state.Width, state.Height, protocol.CodecName(state.VideoCodec))

	if addr, _ := cmd.Flags().GetString("preview-addr"); addr != "" {
		if units := c.VideoUnits(); units != nil {
			server := preview.NewServer(addr)
			if err := server.Start(); err != nil {
				return err
			}
			units.Attach(server)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				server.Shutdown(ctx)
			}()
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	fmt.Println()
	color.Yellow("Shutting down")
	return nil
}
