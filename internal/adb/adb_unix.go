//go:build !windows

package adb

import "os/exec"

func configureBackground(cmd *exec.Cmd) {}
