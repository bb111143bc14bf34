package client

import (
	"time"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

const (
	swipeMinSteps    = 5
	longPressDefault = 500 * time.Millisecond
)

func (c *Client) size() (uint16, uint16, error) {
	s := c.StateSnapshot()
	if !s.Connected {
		return 0, 0, ErrNotConnected
	}
	return uint16(s.Width), uint16(s.Height), nil
}

func (c *Client) touch(action uint8, x, y int32, pressure float32) error {
	w, h, err := c.size()
	if err != nil {
		return err
	}
	return c.enqueue(protocol.NewTouchMessage(
		action, protocol.PointerIDGenericFinger, x, y, w, h, pressure, 0, 0))
}

// Tap sends a touch-down immediately followed by a touch-up
func (c *Client) Tap(x, y int32) error {
	if err := c.touch(protocol.MotionActionDown, x, y, 1.0); err != nil {
		return err
	}
	return c.touch(protocol.MotionActionUp, x, y, 0)
}

// LongPress holds a touch at the point for the given duration
func (c *Client) LongPress(x, y int32, duration time.Duration) error {
	if duration <= 0 {
		duration = longPressDefault
	}
	if err := c.touch(protocol.MotionActionDown, x, y, 1.0); err != nil {
		return err
	}
	time.Sleep(duration)
	return c.touch(protocol.MotionActionUp, x, y, 0)
}

// Swipe interpolates at least five MOVE events between the endpoints, evenly
// spaced across the duration.
func (c *Client) Swipe(x1, y1, x2, y2 int32, duration time.Duration) error {
	if err := c.touch(protocol.MotionActionDown, x1, y1, 1.0); err != nil {
		return err
	}
	steps := swipeMinSteps
	interval := duration / time.Duration(steps)
	for i := 1; i <= steps; i++ {
		progress := float64(i) / float64(steps)
		x := x1 + int32(float64(x2-x1)*progress)
		y := y1 + int32(float64(y2-y1)*progress)
		time.Sleep(interval)
		if err := c.touch(protocol.MotionActionMove, x, y, 1.0); err != nil {
			return err
		}
	}
	return c.touch(protocol.MotionActionUp, x2, y2, 0)
}

// Scroll sends a scroll event at the point; h and v are in [-1, 1]
func (c *Client) Scroll(x, y int32, h, v float64) error {
	w, ht, err := c.size()
	if err != nil {
		return err
	}
	return c.enqueue(protocol.NewScrollMessage(x, y, w, ht, h, v, 0))
}

// InjectText types UTF-8 text on the device (truncated at 300 bytes)
func (c *Client) InjectText(text string) error {
	if text == "" {
		return ErrBadArgument
	}
	return c.enqueue(protocol.NewTextMessage(text))
}

// PressKey sends a full down-up cycle for the keycode
func (c *Client) PressKey(keycode uint32) error {
	if err := c.enqueue(protocol.NewKeycodeMessage(protocol.KeyActionDown, keycode, 0, 0)); err != nil {
		return err
	}
	return c.enqueue(protocol.NewKeycodeMessage(protocol.KeyActionUp, keycode, 0, 0))
}

func (c *Client) Home() error      { return c.PressKey(protocol.KeycodeHome) }
func (c *Client) Back() error      { return c.PressKey(protocol.KeycodeBack) }
func (c *Client) Menu() error      { return c.PressKey(protocol.KeycodeMenu) }
func (c *Client) Enter() error     { return c.PressKey(protocol.KeycodeEnter) }
func (c *Client) Tab() error       { return c.PressKey(protocol.KeycodeTab) }
func (c *Client) Escape() error    { return c.PressKey(protocol.KeycodeEscape) }
func (c *Client) VolumeUp() error  { return c.PressKey(protocol.KeycodeVolumeUp) }
func (c *Client) VolumeDown() error {
	return c.PressKey(protocol.KeycodeVolumeDown)
}
func (c *Client) AppSwitch() error { return c.PressKey(protocol.KeycodeAppSwitch) }
func (c *Client) Power() error     { return c.PressKey(protocol.KeycodePower) }

func (c *Client) DpadUp() error     { return c.PressKey(protocol.KeycodeDpadUp) }
func (c *Client) DpadDown() error   { return c.PressKey(protocol.KeycodeDpadDown) }
func (c *Client) DpadLeft() error   { return c.PressKey(protocol.KeycodeDpadLeft) }
func (c *Client) DpadRight() error  { return c.PressKey(protocol.KeycodeDpadRight) }
func (c *Client) DpadCenter() error { return c.PressKey(protocol.KeycodeDpadCenter) }

// BackOrScreenOn wakes the display or navigates back when already awake
func (c *Client) BackOrScreenOn() error {
	if err := c.enqueue(protocol.NewBackOrScreenOnMessage(protocol.KeyActionDown)); err != nil {
		return err
	}
	return c.enqueue(protocol.NewBackOrScreenOnMessage(protocol.KeyActionUp))
}

// SetDisplayPower turns the device display on or off
func (c *Client) SetDisplayPower(on bool) error {
	return c.enqueue(protocol.NewSetDisplayPowerMessage(on))
}

// RotateDevice requests a rotation
func (c *Client) RotateDevice() error {
	return c.enqueue(protocol.NewEmptyMessage(protocol.ControlMsgTypeRotateDevice))
}

// ResetVideo forces a new keyframe and codec restart on the server
func (c *Client) ResetVideo() error {
	return c.enqueue(protocol.NewEmptyMessage(protocol.ControlMsgTypeResetVideo))
}

// ExpandNotificationPanel pulls down the notification shade
func (c *Client) ExpandNotificationPanel() error {
	return c.enqueue(protocol.NewEmptyMessage(protocol.ControlMsgTypeExpandNotification))
}

// ExpandSettingsPanel pulls down the quick-settings shade
func (c *Client) ExpandSettingsPanel() error {
	return c.enqueue(protocol.NewEmptyMessage(protocol.ControlMsgTypeExpandSettings))
}

// CollapsePanels closes any open shade
func (c *Client) CollapsePanels() error {
	return c.enqueue(protocol.NewEmptyMessage(protocol.ControlMsgTypeCollapsePanels))
}

// OpenHardKeyboardSettings opens the physical-keyboard settings screen
func (c *Client) OpenHardKeyboardSettings() error {
	return c.enqueue(protocol.NewEmptyMessage(protocol.ControlMsgTypeOpenHardKeyboard))
}

// StartApp launches an app by package name; prefix with '+' to force-stop it
// first, per the server's convention.
func (c *Client) StartApp(name string) error {
	if name == "" {
		return ErrBadArgument
	}
	return c.enqueue(protocol.NewStartAppMessage(name))
}

// UhidCreate registers a virtual HID device. Never dropped by the queue.
func (c *Client) UhidCreate(id, vendorID, productID uint16, name string, reportDesc []byte) error {
	return c.enqueue(protocol.NewUhidCreateMessage(id, vendorID, productID, name, reportDesc))
}

// UhidInput feeds a report to a virtual HID device
func (c *Client) UhidInput(id uint16, data []byte) error {
	return c.enqueue(protocol.NewUhidInputMessage(id, data))
}

// UhidDestroy removes a virtual HID device. Never dropped by the queue.
func (c *Client) UhidDestroy(id uint16) error {
	return c.enqueue(protocol.NewUhidDestroyMessage(id))
}
