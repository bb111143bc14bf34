package cmd

import (
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/config"
	"github.com/droidcast/droidcast/internal/scrcpy/client"
	"github.com/droidcast/droidcast/internal/util"
)

// NewAppsCommand lists launchable apps on the device
func NewAppsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List launchable apps on the device",
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := newAdb()
			if err != nil {
				return err
			}
			serial, _ := cmd.Flags().GetString("serial")
			showSystem, _ := cmd.Flags().GetBool("system")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			c := client.New(driver, nil)
			apps, err := c.ListApps(timeout, client.AdbFallback{
				Serial:        serial,
				ServerBlob:    serverBlobPath(),
				ServerVersion: config.GetServerVersion(),
			})
			if err != nil {
				return err
			}

			columns := []util.Column{
				{Header: "NAME", Key: "name"},
				{Header: "PACKAGE", Key: "package"},
				{Header: "TYPE", Key: "type"},
			}
			rows := make([]util.Row, 0, len(apps))
			for _, app := range apps {
				if app.System && !showSystem {
					continue
				}
				kind := "user"
				if app.System {
					kind = color.CyanString("system")
				}
				rows = append(rows, util.Row{
					"name":    app.Name,
					"package": app.Package,
					"type":    kind,
				})
			}
			util.WriteTable(os.Stdout, columns, rows)
			return nil
		},
	}
	cmd.Flags().Bool("system", false, "Include system apps")
	cmd.Flags().Duration("timeout", 30*time.Second, "App list timeout")
	return cmd
}
