package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/internal/adb"
	"github.com/droidcast/droidcast/internal/util"
)

// NewDevicesCommand lists attached devices
func NewDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List devices visible to adb",
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch, _ := cmd.Flags().GetBool("watch"); watch {
				return watchDevices()
			}
			driver, err := newAdb()
			if err != nil {
				return err
			}
			devices, err := driver.ListDevices()
			if err != nil {
				return err
			}

			columns := []util.Column{
				{Header: "SERIAL", Key: "serial"},
				{Header: "STATE", Key: "state"},
				{Header: "KIND", Key: "kind"},
				{Header: "MODEL", Key: "model"},
			}
			rows := make([]util.Row, 0, len(devices))
			for _, d := range devices {
				rows = append(rows, util.Row{
					"serial": d.Serial,
					"state":  colorizeState(d.State),
					"kind":   string(d.Kind),
					"model":  d.Model,
				})
			}
			util.WriteTable(os.Stdout, columns, rows)
			return nil
		},
	}
	cmd.Flags().Bool("watch", false, "Watch for devices coming and going")
	return cmd
}

// watchDevices streams device events until interrupted
func watchDevices() error {
	stop := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		close(stop)
	}()

	events, err := adb.WatchDevices(stop)
	if err != nil {
		return err
	}
	for event := range events {
		if event.Online {
			color.Green("+ %s", event.Serial)
		} else {
			color.Red("- %s", event.Serial)
		}
	}
	return nil
}

func colorizeState(state string) string {
	switch state {
	case "device":
		return color.GreenString(state)
	case "unauthorized":
		return color.RedString(state)
	default:
		return color.YellowString(state)
	}
}
