package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/internal/util"
	"github.com/droidcast/droidcast/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "droidcast",
	Short: "Android screen mirroring and control from the terminal",
	Long: `droidcast drives an Android device over ADB: it deploys the on-device
server, negotiates the video/audio/control streams, and exposes mirroring,
input injection, clipboard sync, screenshots, and recording.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flag("version").Changed {
			fmt.Println(version.Get().Short())
			return nil
		}
		return cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		util.InitLogger(verbose)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().Bool("version", false, "Print version information and exit")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("serial", "s", "", "Target device serial (default: USB first)")

	rootCmd.AddCommand(NewDevicesCommand())
	rootCmd.AddCommand(NewMirrorCommand())
	rootCmd.AddCommand(NewScreenshotCommand())
	rootCmd.AddCommand(NewAppsCommand())
	rootCmd.AddCommand(NewRecordCommand())
	rootCmd.AddCommand(NewClipboardCommand())
	rootCmd.AddCommand(NewTcpipCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())
}
