// Package adb drives the host adb executable and the local adb server. All
// device negotiation (push, tunnels, server launch, tcpip) goes through the
// CLI; the goadb client is used only for the device-event fast path.
package adb

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/droidcast/droidcast/internal/util"
)

const defaultTimeout = 10 * time.Second

// Adb wraps one discovered adb executable
type Adb struct {
	path    string
	timeout time.Duration
	log     *slog.Logger
}

// New locates the adb executable and returns a driver around it. explicitPath
// (usually from the ADB env var via config) wins when set.
func New(explicitPath string, timeout time.Duration) (*Adb, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	path, err := findExecutable(explicitPath)
	if err != nil {
		return nil, err
	}
	return &Adb{
		path:    path,
		timeout: timeout,
		log:     util.ComponentLogger("adb"),
	}, nil
}

// Path returns the resolved adb executable path
func (a *Adb) Path() string { return a.path }

func findExecutable(explicit string) (string, error) {
	var searched []string

	if explicit != "" {
		searched = append(searched, explicit)
		if isExecutable(explicit) {
			return explicit, nil
		}
		return "", &ExecutableNotFoundError{Searched: searched}
	}

	if env := os.Getenv("ADB"); env != "" {
		searched = append(searched, env)
		if isExecutable(env) {
			return env, nil
		}
	}

	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	searched = append(searched, "PATH")

	for _, candidate := range sdkCandidates() {
		searched = append(searched, candidate)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	return "", &ExecutableNotFoundError{Searched: searched}
}

func sdkCandidates() []string {
	home, _ := os.UserHomeDir()
	exe := "adb"
	if runtime.GOOS == "windows" {
		exe = "adb.exe"
	}
	candidates := []string{
		filepath.Join(home, "Library", "Android", "sdk", "platform-tools", exe),
		filepath.Join(home, "Android", "Sdk", "platform-tools", exe),
		filepath.Join("/usr", "bin", exe),
		filepath.Join("/usr", "local", "bin", exe),
	}
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			candidates = append(candidates, filepath.Join(localAppData, "Android", "Sdk", "platform-tools", exe))
		}
		candidates = append(candidates, filepath.Join(`C:\`, "Android", "platform-tools", exe))
	}
	return candidates
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// run executes adb with the given args, targeting serial when non-empty.
// Timeout 0 means the driver default.
func (a *Adb) run(serial string, timeout time.Duration, args ...string) (string, error) {
	if timeout <= 0 {
		timeout = a.timeout
	}
	full := args
	if serial != "" {
		full = append([]string{"-s", serial}, args...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.path, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmdline := a.path + " " + strings.Join(full, " ")
	a.log.Debug("exec", "cmd", cmdline)

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", &TimeoutError{Cmd: cmdline, Timeout: timeout}
	}
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return "", &CommandError{
			Cmd:      cmdline,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return stdout.String(), nil
}

// startBackground launches adb with the given args and abandons the process.
// Used for the server start in forward mode, where the shell must keep
// running for the whole session.
func (a *Adb) startBackground(serial string, args ...string) (*exec.Cmd, error) {
	full := args
	if serial != "" {
		full = append([]string{"-s", serial}, args...)
	}
	cmd := exec.Command(a.path, full...)
	configureBackground(cmd)
	if err := cmd.Start(); err != nil {
		return nil, &CommandError{
			Cmd:      a.path + " " + strings.Join(full, " "),
			ExitCode: -1,
			Stderr:   err.Error(),
		}
	}
	// Reap the shell when it eventually exits so it does not linger as a zombie
	go func() { _ = cmd.Wait() }()
	return cmd, nil
}
