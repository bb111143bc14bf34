//go:build windows

package adb

import (
	"os/exec"
	"syscall"
)

// Suppress the console window the abandoned adb shell would otherwise open
func configureBackground(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
