package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Scrcpy packet header size
const PacketHeaderSize = 12

// MaxPacketSize caps a single media payload. The server never produces frames
// this large; anything bigger means the stream is desynchronized.
const MaxPacketSize = 16 * 1024 * 1024

// Packet flags occupy the top two bits of the pts_flags field
const (
	PacketFlagConfig   = uint64(1) << 63
	PacketFlagKeyFrame = uint64(1) << 62
	PacketPTSMask      = PacketFlagKeyFrame - 1
)

// Codec IDs (4-char FourCC tags as big-endian u32)
const (
	CodecIDH264     = uint32(0x68323634) // "h264"
	CodecIDH265     = uint32(0x68323635) // "h265"
	CodecIDAV1      = uint32(0x00617631) // "av1"
	CodecIDOPUS     = uint32(0x6f707573) // "opus"
	CodecIDAAC      = uint32(0x00616163) // "aac"
	CodecIDFLAC     = uint32(0x666c6163) // "flac"
	CodecIDRAW      = uint32(0x00726177) // "raw"
	CodecIDDisabled = uint32(0x80000000) // stream disabled by the server
)

// CodecName renders a codec ID as its printable tag
func CodecName(id uint32) string {
	switch id {
	case CodecIDH264:
		return "h264"
	case CodecIDH265:
		return "h265"
	case CodecIDAV1:
		return "av1"
	case CodecIDOPUS:
		return "opus"
	case CodecIDAAC:
		return "aac"
	case CodecIDFLAC:
		return "flac"
	case CodecIDRAW:
		return "raw"
	case CodecIDDisabled:
		return "disabled"
	}
	return fmt.Sprintf("0x%08x", id)
}

// IncompleteReadError reports a socket that closed or stalled in the middle
// of a frame. Cause carries the underlying read error when there was one.
type IncompleteReadError struct {
	Expected int
	Actual   int
	Cause    error
}

func (e *IncompleteReadError) Error() string {
	return fmt.Sprintf("incomplete read: expected %d bytes, got %d", e.Expected, e.Actual)
}

func (e *IncompleteReadError) Unwrap() error { return e.Cause }

// ProtocolError reports a wire-level violation (bad size, bad tag, ...)
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// PacketHeader is the 12-byte frame header shared by video and audio streams
type PacketHeader struct {
	PTSFlags uint64
	Size     uint32
}

// PTS returns the presentation timestamp without the flag bits
func (h PacketHeader) PTS() uint64 { return h.PTSFlags & PacketPTSMask }

// IsConfig reports whether the payload is codec configuration (SPS/PPS etc.)
func (h PacketHeader) IsConfig() bool { return h.PTSFlags&PacketFlagConfig != 0 }

// IsKeyFrame reports whether the payload is a key frame
func (h PacketHeader) IsKeyFrame() bool { return h.PTSFlags&PacketFlagKeyFrame != 0 }

// EncodeHeader builds the wire form of a packet header
func EncodeHeader(pts uint64, config, keyFrame bool, size uint32) [PacketHeaderSize]byte {
	ptsFlags := pts & PacketPTSMask
	if config {
		ptsFlags |= PacketFlagConfig
	}
	if keyFrame {
		ptsFlags |= PacketFlagKeyFrame
	}
	var buf [PacketHeaderSize]byte
	binary.BigEndian.PutUint64(buf[0:8], ptsFlags)
	binary.BigEndian.PutUint32(buf[8:12], size)
	return buf
}

// DecodeHeader parses the wire form of a packet header
func DecodeHeader(buf []byte) (PacketHeader, error) {
	if len(buf) < PacketHeaderSize {
		return PacketHeader{}, &IncompleteReadError{Expected: PacketHeaderSize, Actual: len(buf)}
	}
	h := PacketHeader{
		PTSFlags: binary.BigEndian.Uint64(buf[0:8]),
		Size:     binary.BigEndian.Uint32(buf[8:12]),
	}
	if h.Size > MaxPacketSize {
		return PacketHeader{}, &ProtocolError{Reason: fmt.Sprintf("packet size too large: %d", h.Size)}
	}
	return h, nil
}

// Packet is a framed media payload from either stream
type Packet struct {
	PTS        uint64
	IsConfig   bool
	IsKeyFrame bool
	Data       []byte
	Codec      uint32
}

// ReadExact fills buf from reader, looping on short reads. A short read is
// surfaced as IncompleteReadError with the byte counts; an error before any
// byte arrived (EOF, read deadline) passes through so the caller can decide
// whether the stream position is still intact.
func ReadExact(reader io.Reader, buf []byte) error {
	n, err := io.ReadFull(reader, buf)
	if err != nil {
		if n == 0 {
			return err
		}
		return &IncompleteReadError{Expected: len(buf), Actual: n, Cause: err}
	}
	return nil
}

// ReadPacket reads one header-framed packet from the stream
func ReadPacket(reader io.Reader, codec uint32) (*Packet, error) {
	var header [PacketHeaderSize]byte
	if err := ReadExact(reader, header[:]); err != nil {
		return nil, err
	}

	h, err := DecodeHeader(header[:])
	if err != nil {
		return nil, err
	}
	if h.Size == 0 {
		return nil, &ProtocolError{Reason: "invalid packet size: 0"}
	}

	data := make([]byte, h.Size)
	if err := ReadExact(reader, data); err != nil {
		// The header was consumed, so any payload-side failure leaves the
		// stream desynchronized and must read as truncation, never as a
		// clean end or a retryable timeout.
		var incomplete *IncompleteReadError
		if !errors.As(err, &incomplete) {
			err = &IncompleteReadError{Expected: len(data), Cause: err}
		}
		return nil, err
	}

	return &Packet{
		PTS:        h.PTS(),
		IsConfig:   h.IsConfig(),
		IsKeyFrame: h.IsKeyFrame(),
		Data:       data,
		Codec:      codec,
	}, nil
}

// ReadAudioCodecID reads the 4-byte codec tag the audio stream opens with
func ReadAudioCodecID(reader io.Reader) (uint32, error) {
	var buf [4]byte
	if err := ReadExact(reader, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// DeviceMeta is the handshake the server sends on the video socket
type DeviceMeta struct {
	DeviceName string
	CodecID    uint32
	Width      uint32
	Height     uint32
}

const deviceNameFieldLength = 64

// ReadDeviceMeta reads the metadata handshake: 64 NUL-padded name bytes, then
// codec ID and frame dimensions when video is enabled.
func ReadDeviceMeta(reader io.Reader, video bool) (*DeviceMeta, error) {
	nameBytes := make([]byte, deviceNameFieldLength)
	if err := ReadExact(reader, nameBytes); err != nil {
		return nil, err
	}

	meta := &DeviceMeta{
		DeviceName: strings.TrimRight(string(nameBytes), "\x00"),
	}
	if !video {
		return meta, nil
	}

	var rest [12]byte
	if err := ReadExact(reader, rest[:]); err != nil {
		return nil, err
	}
	meta.CodecID = binary.BigEndian.Uint32(rest[0:4])
	meta.Width = binary.BigEndian.Uint32(rest[4:8])
	meta.Height = binary.BigEndian.Uint32(rest[8:12])
	return meta, nil
}
