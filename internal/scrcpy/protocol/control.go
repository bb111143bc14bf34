package protocol

import (
	"encoding/binary"
	"math"
)

// Control message types (client -> device)
const (
	ControlMsgTypeInjectKeycode      = uint8(0)
	ControlMsgTypeInjectText         = uint8(1)
	ControlMsgTypeInjectTouchEvent   = uint8(2)
	ControlMsgTypeInjectScrollEvent  = uint8(3)
	ControlMsgTypeBackOrScreenOn     = uint8(4)
	ControlMsgTypeExpandNotification = uint8(5)
	ControlMsgTypeExpandSettings     = uint8(6)
	ControlMsgTypeCollapsePanels     = uint8(7)
	ControlMsgTypeGetClipboard       = uint8(8)
	ControlMsgTypeSetClipboard       = uint8(9)
	ControlMsgTypeSetDisplayPower    = uint8(10)
	ControlMsgTypeRotateDevice       = uint8(11)
	ControlMsgTypeUhidCreate         = uint8(12)
	ControlMsgTypeUhidInput          = uint8(13)
	ControlMsgTypeUhidDestroy        = uint8(14)
	ControlMsgTypeOpenHardKeyboard   = uint8(15)
	ControlMsgTypeStartApp           = uint8(16)
	ControlMsgTypeResetVideo         = uint8(17)
	ControlMsgTypeScreenshot         = uint8(18)
	ControlMsgTypeGetAppList         = uint8(19)
)

// Payload limits from the server's message parser
const (
	InjectTextMaxLength    = 300
	ClipboardTextMaxLength = 1<<18 - 14
	StartAppNameMaxLength  = 255
	UhidNameMaxLength      = 127
)

// PointerIDGenericFinger is the pointer id for synthesized touch input (-2)
const PointerIDGenericFinger = uint64(0xFFFFFFFFFFFFFFFE)

// Clipboard copy keys for GetClipboard
const (
	CopyKeyNone = uint8(0)
	CopyKeyCopy = uint8(1)
	CopyKeyCut  = uint8(2)
)

// ControlMessage is one serialized control record: a type byte followed by a
// type-specific payload.
type ControlMessage struct {
	Type uint8
	Data []byte
}

// Droppable reports whether the queue may discard this message under
// back-pressure. UHID create/destroy must survive: losing one desynchronizes
// the kernel-side device table.
func (m *ControlMessage) Droppable() bool {
	return m.Type != ControlMsgTypeUhidCreate && m.Type != ControlMsgTypeUhidDestroy
}

// Serialize renders the full wire form
func (m *ControlMessage) Serialize() []byte {
	buf := make([]byte, 0, 1+len(m.Data))
	buf = append(buf, m.Type)
	buf = append(buf, m.Data...)
	return buf
}

// EncodePressure converts pressure in [0,1] to the u16 fixed-point wire form.
// The value for 1.0 saturates at 0xFFFE.
func EncodePressure(pressure float32) uint16 {
	v := int64(float64(pressure) * 0x10000)
	if v < 0 {
		v = 0
	}
	if v > 0xFFFE {
		v = 0xFFFE
	}
	return uint16(v)
}

// EncodeScroll converts a scroll value in [-1,1] to the i16 fixed-point wire form
func EncodeScroll(value float64) int16 {
	if value > 1 {
		value = 1
	}
	if value < -1 {
		value = -1
	}
	v := int64(math.Round(value * 0x8000))
	if v < math.MinInt16 {
		v = math.MinInt16
	}
	if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	return int16(v)
}

// NewKeycodeMessage builds INJECT_KEYCODE
func NewKeycodeMessage(action uint8, keycode, repeat, metaState uint32) *ControlMessage {
	buf := make([]byte, 13)
	buf[0] = action
	binary.BigEndian.PutUint32(buf[1:5], keycode)
	binary.BigEndian.PutUint32(buf[5:9], repeat)
	binary.BigEndian.PutUint32(buf[9:13], metaState)
	return &ControlMessage{Type: ControlMsgTypeInjectKeycode, Data: buf}
}

// NewTextMessage builds INJECT_TEXT, truncating at the server's 300-byte limit
func NewTextMessage(text string) *ControlMessage {
	raw := []byte(text)
	if len(raw) > InjectTextMaxLength {
		raw = raw[:InjectTextMaxLength]
	}
	buf := make([]byte, 4+len(raw))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(raw)))
	copy(buf[4:], raw)
	return &ControlMessage{Type: ControlMsgTypeInjectText, Data: buf}
}

// NewTouchMessage builds INJECT_TOUCH_EVENT
func NewTouchMessage(action uint8, pointerID uint64, x, y int32, width, height uint16, pressure float32, actionButton, buttons uint32) *ControlMessage {
	buf := make([]byte, 31)
	buf[0] = action
	binary.BigEndian.PutUint64(buf[1:9], pointerID)
	binary.BigEndian.PutUint32(buf[9:13], uint32(x))
	binary.BigEndian.PutUint32(buf[13:17], uint32(y))
	binary.BigEndian.PutUint16(buf[17:19], width)
	binary.BigEndian.PutUint16(buf[19:21], height)
	binary.BigEndian.PutUint16(buf[21:23], EncodePressure(pressure))
	binary.BigEndian.PutUint32(buf[23:27], actionButton)
	binary.BigEndian.PutUint32(buf[27:31], buttons)
	return &ControlMessage{Type: ControlMsgTypeInjectTouchEvent, Data: buf}
}

// NewScrollMessage builds INJECT_SCROLL_EVENT
func NewScrollMessage(x, y int32, width, height uint16, hscroll, vscroll float64, buttons uint32) *ControlMessage {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint32(buf[0:4], uint32(x))
	binary.BigEndian.PutUint32(buf[4:8], uint32(y))
	binary.BigEndian.PutUint16(buf[8:10], width)
	binary.BigEndian.PutUint16(buf[10:12], height)
	binary.BigEndian.PutUint16(buf[12:14], uint16(EncodeScroll(hscroll)))
	binary.BigEndian.PutUint16(buf[14:16], uint16(EncodeScroll(vscroll)))
	binary.BigEndian.PutUint32(buf[16:20], buttons)
	return &ControlMessage{Type: ControlMsgTypeInjectScrollEvent, Data: buf}
}

// NewBackOrScreenOnMessage builds BACK_OR_SCREEN_ON
func NewBackOrScreenOnMessage(action uint8) *ControlMessage {
	return &ControlMessage{Type: ControlMsgTypeBackOrScreenOn, Data: []byte{action}}
}

// NewGetClipboardMessage builds GET_CLIPBOARD
func NewGetClipboardMessage(copyKey uint8) *ControlMessage {
	return &ControlMessage{Type: ControlMsgTypeGetClipboard, Data: []byte{copyKey}}
}

// NewSetClipboardMessage builds SET_CLIPBOARD with the caller's sequence number
func NewSetClipboardMessage(sequence uint64, text string, paste bool) *ControlMessage {
	raw := []byte(text)
	if len(raw) > ClipboardTextMaxLength {
		raw = raw[:ClipboardTextMaxLength]
	}
	buf := make([]byte, 13+len(raw))
	binary.BigEndian.PutUint64(buf[0:8], sequence)
	if paste {
		buf[8] = 1
	}
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(raw)))
	copy(buf[13:], raw)
	return &ControlMessage{Type: ControlMsgTypeSetClipboard, Data: buf}
}

// NewSetDisplayPowerMessage builds SET_DISPLAY_POWER
func NewSetDisplayPowerMessage(on bool) *ControlMessage {
	var b byte
	if on {
		b = 1
	}
	return &ControlMessage{Type: ControlMsgTypeSetDisplayPower, Data: []byte{b}}
}

// NewUhidCreateMessage builds UHID_CREATE
func NewUhidCreateMessage(id, vendorID, productID uint16, name string, reportDesc []byte) *ControlMessage {
	rawName := []byte(name)
	if len(rawName) > UhidNameMaxLength {
		rawName = rawName[:UhidNameMaxLength]
	}
	buf := make([]byte, 0, 9+len(rawName)+len(reportDesc))
	buf = binary.BigEndian.AppendUint16(buf, id)
	buf = binary.BigEndian.AppendUint16(buf, vendorID)
	buf = binary.BigEndian.AppendUint16(buf, productID)
	buf = append(buf, uint8(len(rawName)))
	buf = append(buf, rawName...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(reportDesc)))
	buf = append(buf, reportDesc...)
	return &ControlMessage{Type: ControlMsgTypeUhidCreate, Data: buf}
}

// NewUhidInputMessage builds UHID_INPUT
func NewUhidInputMessage(id uint16, data []byte) *ControlMessage {
	buf := make([]byte, 0, 4+len(data))
	buf = binary.BigEndian.AppendUint16(buf, id)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(data)))
	buf = append(buf, data...)
	return &ControlMessage{Type: ControlMsgTypeUhidInput, Data: buf}
}

// NewUhidDestroyMessage builds UHID_DESTROY
func NewUhidDestroyMessage(id uint16) *ControlMessage {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, id)
	return &ControlMessage{Type: ControlMsgTypeUhidDestroy, Data: buf}
}

// NewStartAppMessage builds START_APP
func NewStartAppMessage(name string) *ControlMessage {
	raw := []byte(name)
	if len(raw) > StartAppNameMaxLength {
		raw = raw[:StartAppNameMaxLength]
	}
	buf := make([]byte, 0, 1+len(raw))
	buf = append(buf, uint8(len(raw)))
	buf = append(buf, raw...)
	return &ControlMessage{Type: ControlMsgTypeStartApp, Data: buf}
}

// NewEmptyMessage builds a message that is just its type byte (panels, rotate,
// reset video, screenshot, app list, keyboard settings).
func NewEmptyMessage(msgType uint8) *ControlMessage {
	return &ControlMessage{Type: msgType}
}
