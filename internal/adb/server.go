package adb

import (
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// ServerRemotePath is where the server blob lives on the device. The name
// deliberately omits .jar: the blob is a disguised APK and a plain name keeps
// package scanners away from it.
const ServerRemotePath = "/data/local/tmp/scrcpy-server"

const serverClassName = "com.genymobile.scrcpy.Server"

// PushServer pushes the server blob to the device
func (a *Adb) PushServer(serial, localBlob string) error {
	_, err := a.run(serial, 30*time.Second, "push", localBlob, ServerRemotePath)
	if err != nil {
		return errors.Wrap(err, "failed to push server blob")
	}
	a.log.Info("Server pushed", "device", serial, "remote", ServerRemotePath)
	return nil
}

// StartServer launches the on-device server through app_process. In
// background mode the shell is abandoned and keeps the server alive for the
// whole session; otherwise the call blocks until the timeout.
func (a *Adb) StartServer(serial, clientVersion string, params []string, background bool, timeout time.Duration) (*exec.Cmd, error) {
	shellCmd := []string{
		"shell",
		"CLASSPATH=" + ServerRemotePath,
		"app_process",
		"/",
		serverClassName,
		clientVersion,
	}
	shellCmd = append(shellCmd, params...)

	if background {
		cmd, err := a.startBackground(serial, shellCmd...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to start server")
		}
		a.log.Info("Server started in background", "device", serial, "version", clientVersion)
		return cmd, nil
	}

	if _, err := a.run(serial, timeout, shellCmd...); err != nil {
		return nil, errors.Wrap(err, "failed to start server")
	}
	return nil, nil
}

// KillServer best-effort kills a running server process on the device
func (a *Adb) KillServer(serial string) {
	_, err := a.run(serial, 5*time.Second, "shell", "pkill", "-f", serverClassName)
	if err != nil {
		a.log.Debug("Server kill returned error (may not be running)", "error", err)
	}
}

// ListApps runs the server once with list_apps=true and parses its output.
// This is the out-of-band path used when no session is connected.
func (a *Adb) ListApps(serial, localBlob, clientVersion string) ([]protocol.AppInfo, error) {
	if err := a.PushServer(serial, localBlob); err != nil {
		return nil, err
	}
	out, err := a.run(serial, 60*time.Second,
		"shell",
		"CLASSPATH="+ServerRemotePath,
		"app_process",
		"/",
		serverClassName,
		clientVersion,
		"list_apps=true")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list apps")
	}
	return parseAppList(out), nil
}

// parseAppList extracts app entries from server log output. The section of
// interest looks like:
//
//	[server] INFO: List of apps:
//	[server] INFO:  * Camera                     com.android.camera
//	[server] INFO:  - Firefox                    org.mozilla.firefox
//
// where * marks a system app. The package is the last whitespace-separated
// field; everything between the marker and the package is the display name.
func parseAppList(out string) []protocol.AppInfo {
	var apps []protocol.AppInfo
	inSection := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.Contains(line, "List of apps") {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		rest, ok := strings.CutPrefix(line, "[server] INFO:")
		if !ok {
			continue
		}
		entry := strings.TrimSpace(rest)
		if len(entry) < 2 || (entry[0] != '*' && entry[0] != '-') {
			continue
		}
		system := entry[0] == '*'
		body := strings.TrimSpace(entry[1:])
		idx := strings.LastIndexFunc(body, func(r rune) bool { return r == ' ' || r == '\t' })
		if idx < 0 {
			continue
		}
		apps = append(apps, protocol.AppInfo{
			Name:    strings.TrimSpace(body[:idx]),
			Package: strings.TrimSpace(body[idx+1:]),
			System:  system,
		})
	}
	return apps
}
