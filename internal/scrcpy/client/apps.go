package client

import (
	"time"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// AdbFallback names what the out-of-band app-list path needs when no session
// is connected: a one-shot server run over plain adb shell.
type AdbFallback struct {
	Serial        string
	ServerBlob    string
	ServerVersion string
}

// ListApps returns the launchable apps on the device. With a live control
// connection the request goes in-band (GET_APP_LIST, answered through the
// receiver); otherwise the server is run once over adb with list_apps=true.
func (c *Client) ListApps(timeout time.Duration, fallback AdbFallback) ([]protocol.AppInfo, error) {
	c.mu.Lock()
	connected := c.sess != nil && c.recv != nil
	ch := c.appListCh
	c.mu.Unlock()

	if !connected {
		return c.adbDriver.ListApps(fallback.Serial, fallback.ServerBlob, fallback.ServerVersion)
	}

	// Drain a stale reply from an earlier timed-out request
	select {
	case <-ch:
	default:
	}

	if err := c.enqueue(protocol.NewEmptyMessage(protocol.ControlMsgTypeGetAppList)); err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case apps := <-ch:
		return apps, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}

// onAppList runs on the receiver goroutine
func (c *Client) onAppList(apps []protocol.AppInfo) {
	c.mu.Lock()
	ch := c.appListCh
	c.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- apps:
	default:
		// No listApps call pending; drop the reply
	}
}
