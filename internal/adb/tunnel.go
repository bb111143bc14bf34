package adb

import (
	"fmt"
	"time"
)

// Default local port range probed for tunnels
const (
	DefaultPortRangeStart = 27183
	DefaultPortRangeEnd   = 27299
)

// Tunnel describes one established adb tunnel
type Tunnel struct {
	Enabled    bool
	Forward    bool
	LocalPort  int
	SocketName string
}

// CreateTunnel establishes a tunnel for socketName. Reverse is tried first
// across the port range; any failure falls back to forward mode. forceForward
// skips reverse entirely (reverse tunnels are unreliable on some hosts).
func (a *Adb) CreateTunnel(serial, socketName string, portStart, portEnd int, forceForward bool) (*Tunnel, error) {
	if portStart <= 0 {
		portStart = DefaultPortRangeStart
	}
	if portEnd < portStart {
		portEnd = DefaultPortRangeEnd
	}

	if !forceForward {
		for port := portStart; port <= portEnd; port++ {
			_, err := a.run(serial, 5*time.Second,
				"reverse", "localabstract:"+socketName, fmt.Sprintf("tcp:%d", port))
			if err == nil {
				a.log.Info("Reverse tunnel created", "socket", socketName, "port", port)
				return &Tunnel{Enabled: true, Forward: false, LocalPort: port, SocketName: socketName}, nil
			}
			a.log.Debug("Reverse tunnel attempt failed", "port", port, "error", err)
		}
		a.log.Warn("Reverse tunnel unavailable, falling back to forward mode", "socket", socketName)
	}

	var lastErr error
	for port := portStart; port <= portEnd; port++ {
		_, err := a.run(serial, 5*time.Second,
			"forward", fmt.Sprintf("tcp:%d", port), "localabstract:"+socketName)
		if err == nil {
			a.log.Info("Forward tunnel created", "socket", socketName, "port", port)
			return &Tunnel{Enabled: true, Forward: true, LocalPort: port, SocketName: socketName}, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// AddReverse adds one more reverse entry for an already-negotiated session
// (audio and control streams use derived socket names on their own ports).
func (a *Adb) AddReverse(serial, socketName string, port int) error {
	// Stale entries from a crashed session would shadow the new one
	_, _ = a.run(serial, 2*time.Second, "reverse", "--remove", "localabstract:"+socketName)
	_, err := a.run(serial, 5*time.Second,
		"reverse", "localabstract:"+socketName, fmt.Sprintf("tcp:%d", port))
	return err
}

// RemoveTunnel tears down a tunnel created by CreateTunnel or AddReverse
func (a *Adb) RemoveTunnel(serial string, tunnel *Tunnel) error {
	if tunnel == nil || !tunnel.Enabled {
		return nil
	}
	var err error
	if tunnel.Forward {
		_, err = a.run(serial, 5*time.Second, "forward", "--remove", fmt.Sprintf("tcp:%d", tunnel.LocalPort))
	} else {
		_, err = a.run(serial, 5*time.Second, "reverse", "--remove", "localabstract:"+tunnel.SocketName)
	}
	if err != nil {
		a.log.Warn("Failed to remove tunnel", "socket", tunnel.SocketName, "error", err)
	}
	return err
}
