package client

import (
	"sync"
	"time"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// HostClipboard abstracts the host machine's clipboard. Platform back-ends
// are external collaborators; MemoryClipboard serves tests and headless use.
type HostClipboard interface {
	Read() (string, error)
	Write(text string) error
}

// MemoryClipboard is an in-process HostClipboard
type MemoryClipboard struct {
	mu   sync.Mutex
	text string
}

func (m *MemoryClipboard) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *MemoryClipboard) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return nil
}

const clipboardPollInterval = 500 * time.Millisecond

// nextClipboardSequence returns a monotonic sequence for SET_CLIPBOARD acks
func (c *Client) nextClipboardSequence() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clipboardSeq++
	return c.clipboardSeq
}

// SetClipboard pushes text to the device clipboard; paste additionally pastes
// it into the focused editor.
func (c *Client) SetClipboard(text string, paste bool) (uint64, error) {
	if len(text) > protocol.ClipboardTextMaxLength {
		return 0, ErrBadArgument
	}
	seq := c.nextClipboardSequence()
	if err := c.enqueue(protocol.NewSetClipboardMessage(seq, text, paste)); err != nil {
		return 0, err
	}
	return seq, nil
}

// GetClipboard requests the device clipboard. The reply arrives through the
// receiver; DeviceClipboard returns the latest known value.
func (c *Client) GetClipboard(copyKey uint8) error {
	if copyKey > protocol.CopyKeyCut {
		return ErrBadArgument
	}
	return c.enqueue(protocol.NewGetClipboardMessage(copyKey))
}

// DeviceClipboard returns the last clipboard text received from the device
func (c *Client) DeviceClipboard() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceClipboard
}

// SyncClipboardToDevice copies the host clipboard to the device
func (c *Client) SyncClipboardToDevice(paste bool) error {
	if c.hostClipboard == nil {
		return ErrBadArgument
	}
	text, err := c.hostClipboard.Read()
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	_, err = c.SetClipboard(text, paste)
	return err
}

// onDeviceClipboard runs on the receiver goroutine
func (c *Client) onDeviceClipboard(text string) {
	c.mu.Lock()
	c.deviceClipboard = text
	host := c.hostClipboard
	c.mu.Unlock()

	c.log.Debug("device clipboard updated", "bytes", len(text))
	if host != nil {
		if err := host.Write(text); err != nil {
			c.log.Warn("host clipboard write failed", "error", err)
		}
	}
}

func (c *Client) onClipboardAck(sequence uint64) {
	c.log.Debug("clipboard ack", "sequence", sequence)
}

// startClipboardMonitorLocked launches the host->device autosync poller.
// Device->host flows through onDeviceClipboard; this loop covers the other
// direction by diffing the host clipboard every poll interval.
func (c *Client) startClipboardMonitorLocked() {
	stop := make(chan struct{})
	c.monitorStop = stop
	host := c.hostClipboard

	go func() {
		ticker := time.NewTicker(clipboardPollInterval)
		defer ticker.Stop()
		last, _ := host.Read()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			text, err := host.Read()
			if err != nil || text == last || text == "" {
				continue
			}
			last = text
			// Skip echoes of a device->host sync
			if text == c.DeviceClipboard() {
				continue
			}
			if _, err := c.SetClipboard(text, false); err != nil {
				c.log.Debug("clipboard autosync push failed", "error", err)
			}
		}
	}()
	c.log.Info("Clipboard autosync monitor started")
}
