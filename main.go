package main

import (
	"os"

	"github.com/droidcast/droidcast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
