package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/internal/version"
)

// NewVersionCommand prints detailed build information
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			bold := color.New(color.Bold).SprintFunc()
			fmt.Printf("%s %s\n", bold("droidcast"), info.Version)
			fmt.Printf("  Go version:  %s\n", info.GoVersion)
			fmt.Printf("  Git commit:  %s\n", info.Commit)
			fmt.Printf("  Built:       %s\n", info.BuildTime)
			fmt.Printf("  Platform:    %s\n", info.Platform)
		},
	}
}
