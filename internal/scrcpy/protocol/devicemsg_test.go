package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendU16(buf []byte, v uint16) []byte { return binary.BigEndian.AppendUint16(buf, v) }
func appendU32(buf []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(buf, v) }
func appendU64(buf []byte, v uint64) []byte { return binary.BigEndian.AppendUint64(buf, v) }

func TestParseClipboard(t *testing.T) {
	buf := []byte{DeviceMsgTypeClipboard}
	buf = appendU32(buf, 5)
	buf = append(buf, "hello"...)

	msg, consumed, err := ParseDeviceMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, "hello", msg.ClipboardText)
}

func TestParseClipboardStripsTrailingNULs(t *testing.T) {
	buf := []byte{DeviceMsgTypeClipboard}
	buf = appendU32(buf, 7)
	buf = append(buf, 'h', 'i', 0, 0, 0, 0, 0)

	msg, consumed, err := ParseDeviceMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, 12, consumed)
	assert.Equal(t, "hi", msg.ClipboardText)
}

func TestParseClipboardIncomplete(t *testing.T) {
	buf := []byte{DeviceMsgTypeClipboard}
	buf = appendU32(buf, 10)
	buf = append(buf, "short"...) // 5 of 10 text bytes

	msg, consumed, err := ParseDeviceMessage(buf)
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Zero(t, consumed)
}

func TestParseAckClipboard(t *testing.T) {
	buf := []byte{DeviceMsgTypeAckClipboard}
	buf = appendU64(buf, 42)

	msg, consumed, err := ParseDeviceMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, 9, consumed)
	assert.Equal(t, uint64(42), msg.Sequence)
}

func TestParseUhidOutput(t *testing.T) {
	payload := []byte{0xaa, 0xbb, 0xcc}
	buf := []byte{DeviceMsgTypeUhidOutput}
	buf = appendU16(buf, 3)
	buf = appendU16(buf, uint16(len(payload)))
	buf = append(buf, payload...)

	msg, consumed, err := ParseDeviceMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, uint16(3), msg.UhidID)
	assert.Equal(t, payload, msg.UhidData)
}

func TestParseAppList(t *testing.T) {
	buf := []byte{DeviceMsgTypeAppList}
	buf = appendU16(buf, 2)

	// {name="Firefox", pkg="org.mozilla.firefox", system=false}
	buf = append(buf, 0)
	buf = appendU16(buf, 7)
	buf = append(buf, "Firefox"...)
	buf = appendU16(buf, 19)
	buf = append(buf, "org.mozilla.firefox"...)

	// {name="Camera", pkg="com.android.camera", system=true}
	buf = append(buf, 1)
	buf = appendU16(buf, 6)
	buf = append(buf, "Camera"...)
	buf = appendU16(buf, 18)
	buf = append(buf, "com.android.camera"...)

	msg, consumed, err := ParseDeviceMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	require.Len(t, msg.Apps, 2)
	assert.Equal(t, AppInfo{Name: "Firefox", Package: "org.mozilla.firefox"}, msg.Apps[0])
	assert.Equal(t, AppInfo{Name: "Camera", Package: "com.android.camera", System: true}, msg.Apps[1])
}

func TestParseAppListIncomplete(t *testing.T) {
	buf := []byte{DeviceMsgTypeAppList}
	buf = appendU16(buf, 1)
	buf = append(buf, 0)
	buf = appendU16(buf, 7)
	buf = append(buf, "Fire"...) // truncated mid-name

	msg, consumed, err := ParseDeviceMessage(buf)
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Zero(t, consumed)
}

func TestParseUnknownType(t *testing.T) {
	_, _, err := ParseDeviceMessage([]byte{0x7f, 1, 2, 3})
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestParseEmptyBuffer(t *testing.T) {
	msg, consumed, err := ParseDeviceMessage(nil)
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Zero(t, consumed)
}
