package client

import (
	"image/png"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/droidcast/droidcast/internal/scrcpy/decode"
	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
	"github.com/droidcast/droidcast/internal/scrcpy/session"
)

const (
	// ~3 Hz: screenshots are a debugging aid, not a capture pipeline
	screenshotMinInterval = 333 * time.Millisecond
	// Grace period for a fresh frame after a lazy-decode resume
	screenshotGracePeriod = 300 * time.Millisecond
	screenshotPollStep    = 20 * time.Millisecond
)

// Screenshot grabs the latest decoded frame from the delay buffer. Under
// lazy decode the video pipeline is transiently resumed, given a grace period
// to produce frames, then re-paused. When filename is non-empty the frame is
// encoded there as a PNG.
func (c *Client) Screenshot(filename string) (*decode.Frame, error) {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if c.videoDec == nil {
		c.mu.Unlock()
		return nil, ErrNoVideo
	}
	if since := time.Since(c.lastScreenshot); since < screenshotMinInterval {
		c.mu.Unlock()
		return nil, errors.Wrapf(ErrBadArgument, "rate limited, retry in %s", screenshotMinInterval-since)
	}
	c.lastScreenshot = time.Now()

	transient := c.lazyDecode && c.videoDec.Paused()
	if transient {
		c.setVideoPausedLocked(false)
	}
	dec := c.videoDec
	c.mu.Unlock()

	frame := dec.Buffer().Consume()
	if transient || frame == nil {
		frame = c.awaitFrame(dec, screenshotGracePeriod)
	}

	if transient {
		c.mu.Lock()
		// Only re-pause if lazy decode is still on and the session survived
		if c.lazyDecode && c.sess != nil {
			c.setVideoPausedLocked(true)
		}
		c.mu.Unlock()
	}

	if frame == nil {
		return nil, ErrTimeout
	}
	if filename != "" {
		if err := writeFramePNG(filename, frame); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// writeFramePNG encodes one decoded RGB24 frame as a PNG file
func writeFramePNG(path string, frame *decode.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create screenshot file")
	}
	if err := png.Encode(file, frame.Image()); err != nil {
		file.Close()
		return errors.Wrap(err, "failed to encode screenshot")
	}
	return file.Close()
}

func (c *Client) awaitFrame(dec *decode.VideoDecoder, grace time.Duration) *decode.Frame {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if frame := dec.Buffer().Consume(); frame != nil {
			return frame
		}
		time.Sleep(screenshotPollStep)
	}
	return dec.Buffer().Consume()
}

// ScreenshotDevice asks the server for a fresh frame before capturing: a
// SCREENSHOT control message forces an encoder keyframe, then the delay
// buffer is awaited as usual.
func (c *Client) ScreenshotDevice(filename string, timeout time.Duration) (*decode.Frame, error) {
	if err := c.enqueue(protocol.NewEmptyMessage(protocol.ControlMsgTypeScreenshot)); err != nil {
		return nil, err
	}
	c.mu.Lock()
	dec := c.videoDec
	transient := c.lazyDecode && dec != nil && dec.Paused()
	if transient {
		c.setVideoPausedLocked(false)
	}
	c.mu.Unlock()
	if dec == nil {
		return nil, ErrNoVideo
	}
	if timeout <= 0 {
		timeout = screenshotGracePeriod
	}

	frame := c.awaitFrame(dec, timeout)

	if transient {
		c.mu.Lock()
		if c.lazyDecode && c.sess != nil {
			c.setVideoPausedLocked(true)
		}
		c.mu.Unlock()
	}

	if frame == nil {
		return nil, ErrTimeout
	}
	if filename != "" {
		if err := writeFramePNG(filename, frame); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// ScreenshotStandalone captures one frame without a standing session: it
// builds a throw-away connection, waits for the first decoded frame, writes
// it as a PNG, and tears everything down.
func (c *Client) ScreenshotStandalone(cfg session.Config, filename string) (*decode.Frame, error) {
	if c.IsConnected() {
		return c.Screenshot(filename)
	}

	cfg.Video = true
	cfg.Audio = false
	cfg.LazyDecode = false

	throwaway := New(c.adbDriver, nil)
	if err := throwaway.Connect(cfg); err != nil {
		return nil, err
	}
	defer throwaway.Disconnect()

	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	throwaway.mu.Lock()
	dec := throwaway.videoDec
	throwaway.mu.Unlock()
	frame := throwaway.awaitFrame(dec, timeout)
	if frame == nil {
		return nil, ErrTimeout
	}
	if filename != "" {
		if err := writeFramePNG(filename, frame); err != nil {
			return nil, err
		}
	}
	return frame, nil
}
