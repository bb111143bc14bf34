package protocol

import (
	"encoding/binary"
	"strings"
)

// Device message types (device -> client, on the control socket)
const (
	DeviceMsgTypeClipboard    = uint8(0)
	DeviceMsgTypeAckClipboard = uint8(1)
	DeviceMsgTypeUhidOutput   = uint8(2)
	DeviceMsgTypeAppList      = uint8(3)
)

// AppInfo is one entry of an APP_LIST record
type AppInfo struct {
	Name    string
	Package string
	System  bool
}

// DeviceMessage is a parsed device -> client record
type DeviceMessage struct {
	Type          uint8
	ClipboardText string
	Sequence      uint64
	UhidID        uint16
	UhidData      []byte
	Apps          []AppInfo
}

// ParseDeviceMessage parses one record from the front of buf. It returns the
// message and the number of bytes consumed; consumed == 0 means the record is
// not complete yet. An unknown type byte yields a ProtocolError: the caller
// has lost framing and should discard its buffer.
func ParseDeviceMessage(buf []byte) (*DeviceMessage, int, error) {
	if len(buf) < 1 {
		return nil, 0, nil
	}

	switch buf[0] {
	case DeviceMsgTypeClipboard:
		return parseClipboard(buf)
	case DeviceMsgTypeAckClipboard:
		return parseAckClipboard(buf)
	case DeviceMsgTypeUhidOutput:
		return parseUhidOutput(buf)
	case DeviceMsgTypeAppList:
		return parseAppList(buf)
	}
	return nil, 0, &ProtocolError{Reason: "unknown device message type"}
}

func parseClipboard(buf []byte) (*DeviceMessage, int, error) {
	if len(buf) < 5 {
		return nil, 0, nil
	}
	textLen := int(binary.BigEndian.Uint32(buf[1:5]))
	if len(buf) < 5+textLen {
		return nil, 0, nil
	}
	text := strings.TrimRight(string(buf[5:5+textLen]), "\x00")
	return &DeviceMessage{Type: DeviceMsgTypeClipboard, ClipboardText: text}, 5 + textLen, nil
}

func parseAckClipboard(buf []byte) (*DeviceMessage, int, error) {
	if len(buf) < 9 {
		return nil, 0, nil
	}
	seq := binary.BigEndian.Uint64(buf[1:9])
	return &DeviceMessage{Type: DeviceMsgTypeAckClipboard, Sequence: seq}, 9, nil
}

func parseUhidOutput(buf []byte) (*DeviceMessage, int, error) {
	if len(buf) < 5 {
		return nil, 0, nil
	}
	id := binary.BigEndian.Uint16(buf[1:3])
	size := int(binary.BigEndian.Uint16(buf[3:5]))
	if len(buf) < 5+size {
		return nil, 0, nil
	}
	data := make([]byte, size)
	copy(data, buf[5:5+size])
	return &DeviceMessage{Type: DeviceMsgTypeUhidOutput, UhidID: id, UhidData: data}, 5 + size, nil
}

func parseAppList(buf []byte) (*DeviceMessage, int, error) {
	if len(buf) < 3 {
		return nil, 0, nil
	}
	count := int(binary.BigEndian.Uint16(buf[1:3]))
	offset := 3

	apps := make([]AppInfo, 0, count)
	for i := 0; i < count; i++ {
		if len(buf) < offset+3 {
			return nil, 0, nil
		}
		system := buf[offset] != 0
		nameLen := int(binary.BigEndian.Uint16(buf[offset+1 : offset+3]))
		offset += 3
		if len(buf) < offset+nameLen+2 {
			return nil, 0, nil
		}
		name := string(buf[offset : offset+nameLen])
		offset += nameLen
		pkgLen := int(binary.BigEndian.Uint16(buf[offset : offset+2]))
		offset += 2
		if len(buf) < offset+pkgLen {
			return nil, 0, nil
		}
		pkg := string(buf[offset : offset+pkgLen])
		offset += pkgLen

		apps = append(apps, AppInfo{Name: name, Package: pkg, System: system})
	}

	return &DeviceMessage{Type: DeviceMsgTypeAppList, Apps: apps}, offset, nil
}
