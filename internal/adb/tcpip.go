package adb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var inetRe = regexp.MustCompile(`inet (\d+\.\d+\.\d+\.\d+)`)

// Prefixes that are never a reachable wireless address: the emulator NAT
// network and the common VPN range used by some vendors.
var rejectedIPPrefixes = []string{"10.0.2.", "10.10.10."}

// GetDeviceIP finds the device's wlan address. Prefers `ip addr show wlan0`,
// falls back to the wlan0 route's src field.
func (a *Adb) GetDeviceIP(serial string) (string, error) {
	out, err := a.run(serial, 5*time.Second, "shell", "ip", "addr", "show", "wlan0")
	if err == nil {
		if ip := firstUsableIP(inetRe.FindAllStringSubmatch(out, -1)); ip != "" {
			return ip, nil
		}
	}

	out, err = a.run(serial, 5*time.Second, "shell", "ip", "route")
	if err != nil {
		return "", errors.Wrap(err, "failed to query device routes")
	}
	if ip := parseRouteSourceIP(out); ip != "" {
		return ip, nil
	}
	return "", errors.New("no usable wlan address found")
}

func firstUsableIP(matches [][]string) string {
	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		if usableIP(m[1]) {
			return m[1]
		}
	}
	return ""
}

func usableIP(ip string) bool {
	for _, prefix := range rejectedIPPrefixes {
		if strings.HasPrefix(ip, prefix) {
			return false
		}
	}
	return true
}

// parseRouteSourceIP scans `ip route` output for a wlan0 line and returns the
// address after "src", or the 9th column when no src field is present.
func parseRouteSourceIP(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "wlan0") {
			continue
		}
		fields := strings.Fields(line)
		for i, field := range fields {
			if field == "src" && i+1 < len(fields) && usableIP(fields[i+1]) {
				return fields[i+1]
			}
		}
		if len(fields) >= 9 && usableIP(fields[8]) {
			return fields[8]
		}
	}
	return ""
}

// GetAdbTCPPort reads the adbd listen port, 0 if tcpip mode is off
func (a *Adb) GetAdbTCPPort(serial string) (int, error) {
	out, err := a.run(serial, 5*time.Second, "shell", "getprop", "service.adb.tcp.port")
	if err != nil {
		return 0, err
	}
	value := strings.TrimSpace(out)
	if value == "" || value == "-1" {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, nil
	}
	return port, nil
}

// EnableTcpip restarts adbd listening on the given TCP port, then polls until
// the property reflects it. adbd drops the USB connection briefly while
// restarting, so the poll tolerates transient errors.
func (a *Adb) EnableTcpip(serial string, port int) error {
	if _, err := a.run(serial, 10*time.Second, "tcpip", strconv.Itoa(port)); err != nil {
		return errors.Wrap(err, "failed to enable tcpip mode")
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		current, err := a.GetAdbTCPPort(serial)
		if err == nil && current == port {
			a.log.Info("TCP/IP mode enabled", "device", serial, "port", port)
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("device did not enter tcpip mode on port %d", port)
}

// ConnectTcpip adds a TCP/IP route to the adb server
func (a *Adb) ConnectTcpip(ip string, port int) error {
	addr := fmt.Sprintf("%s:%d", ip, port)
	out, err := a.run("", 10*time.Second, "connect", addr)
	if err != nil {
		return err
	}
	// adb connect reports failure through stdout with rc 0
	if !strings.Contains(out, "connected") {
		return fmt.Errorf("adb connect failed: %s", strings.TrimSpace(out))
	}
	a.log.Info("Connected over TCP/IP", "addr", addr)
	return nil
}

// DisconnectTcpip removes a TCP/IP route from the adb server
func (a *Adb) DisconnectTcpip(ip string, port int) error {
	addr := fmt.Sprintf("%s:%d", ip, port)
	_, err := a.run("", 10*time.Second, "disconnect", addr)
	if err != nil {
		a.log.Warn("adb disconnect failed", "addr", addr, "error", err)
	}
	return err
}
