package adb

import (
	"fmt"
	"time"
)

// ExecutableNotFoundError means no adb binary could be located via the ADB
// env override, PATH, or the known SDK install locations.
type ExecutableNotFoundError struct {
	Searched []string
}

func (e *ExecutableNotFoundError) Error() string {
	return fmt.Sprintf("adb executable not found (searched %d locations); install platform-tools or set ADB", len(e.Searched))
}

// CommandError is a non-zero exit from an adb subprocess
type CommandError struct {
	Cmd      string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("adb command failed (rc=%d): %s: %s", e.ExitCode, e.Cmd, e.Stderr)
}

// TimeoutError is an adb subprocess that exceeded its deadline
type TimeoutError struct {
	Cmd     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("adb command timed out after %s: %s", e.Timeout, e.Cmd)
}

// DeviceNotFoundError means no usable device was listed
type DeviceNotFoundError struct {
	Serial string
}

func (e *DeviceNotFoundError) Error() string {
	if e.Serial == "" {
		return "no adb devices found"
	}
	return "adb device not found: " + e.Serial
}

// DeviceUnauthorizedError means the device is listed but the host key has not
// been accepted on-screen.
type DeviceUnauthorizedError struct {
	Serial string
}

func (e *DeviceUnauthorizedError) Error() string {
	return "adb device unauthorized: " + e.Serial
}
