package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/config"
)

// NewConfigCommand shows the effective configuration
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("home:            %s\n", config.GetHome())
			fmt.Printf("adb path:        %s\n", orAuto(config.GetAdbPath()))
			fmt.Printf("server blob:     %s\n", config.GetServerBlob())
			fmt.Printf("server version:  %s\n", config.GetServerVersion())
			fmt.Printf("port range:      %d-%d\n",
				config.GetInt("session.port"), config.GetInt("session.port_range_end"))
			fmt.Printf("video codec:     %s\n", config.GetString("session.codec"))
			fmt.Printf("audio codec:     %s\n", config.GetString("session.audio_codec"))
			fmt.Printf("bitrate:         %d\n", config.GetInt("session.bitrate"))
			fmt.Printf("max fps:         %d\n", config.GetInt("session.max_fps"))
			fmt.Printf("lazy decode:     %v\n", config.GetBool("session.lazy_decode"))

			if save, _ := cmd.Flags().GetBool("save"); save {
				path, err := config.Save()
				if err != nil {
					return err
				}
				color.Green("Saved snapshot to %s", path)
			}
			return nil
		},
	}
	cmd.Flags().Bool("save", false, "Write a TOML snapshot of the effective settings")
	return cmd
}

func orAuto(s string) string {
	if s == "" {
		return "(auto-detect)"
	}
	return s
}
