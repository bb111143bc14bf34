package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// oneByteReader delivers the underlying stream one byte at a time, simulating
// a heavily fragmented TCP connection.
type oneByteReader struct {
	r io.Reader
}

func (o *oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestHeaderRoundtrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pts := rapid.Uint64Range(0, PacketPTSMask).Draw(t, "pts")
		config := rapid.Bool().Draw(t, "config")
		keyFrame := rapid.Bool().Draw(t, "keyFrame")
		size := rapid.Uint32Range(0, MaxPacketSize).Draw(t, "size")

		wire := EncodeHeader(pts, config, keyFrame, size)
		h, err := DecodeHeader(wire[:])
		require.NoError(t, err)
		assert.Equal(t, pts, h.PTS())
		assert.Equal(t, config, h.IsConfig())
		assert.Equal(t, keyFrame, h.IsKeyFrame())
		assert.Equal(t, size, h.Size)
	})
}

func TestDecodeHeaderRejectsOversizedPayload(t *testing.T) {
	wire := EncodeHeader(42, false, false, MaxPacketSize+1)
	_, err := DecodeHeader(wire[:])
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestReadPacket(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	header := EncodeHeader(1234, false, true, uint32(len(payload)))

	var stream bytes.Buffer
	stream.Write(header[:])
	stream.Write(payload)

	pkt, err := ReadPacket(&stream, CodecIDH264)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), pkt.PTS)
	assert.True(t, pkt.IsKeyFrame)
	assert.False(t, pkt.IsConfig)
	assert.Equal(t, payload, pkt.Data)
	assert.Equal(t, CodecIDH264, pkt.Codec)
}

func TestReadPacketFragmented(t *testing.T) {
	// A reader that returns one byte at a time must yield the same packet as
	// one that returns everything at once.
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	header := EncodeHeader(77, true, false, uint32(len(payload)))

	var stream bytes.Buffer
	stream.Write(header[:])
	stream.Write(payload)

	pkt, err := ReadPacket(&oneByteReader{r: &stream}, CodecIDH265)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), pkt.PTS)
	assert.True(t, pkt.IsConfig)
	assert.Equal(t, payload, pkt.Data)
}

func TestReadPacketIncomplete(t *testing.T) {
	header := EncodeHeader(0, false, false, 100)

	var stream bytes.Buffer
	stream.Write(header[:])
	stream.Write([]byte{1, 2, 3}) // 3 of 100 payload bytes

	_, err := ReadPacket(&stream, CodecIDH264)
	var ierr *IncompleteReadError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, 100, ierr.Expected)
	assert.Equal(t, 3, ierr.Actual)
}

func TestReadPacketCleanEOF(t *testing.T) {
	_, err := ReadPacket(bytes.NewReader(nil), CodecIDH264)
	assert.Equal(t, io.EOF, err)
}

// headerThenError delivers a complete header, then fails every read
type headerThenError struct {
	header []byte
	err    error
}

func (r *headerThenError) Read(p []byte) (int, error) {
	if len(r.header) == 0 {
		return 0, r.err
	}
	n := copy(p, r.header)
	r.header = r.header[n:]
	return n, nil
}

func TestReadPacketPayloadErrorReadsAsTruncation(t *testing.T) {
	// Once the header is consumed, even a zero-byte payload failure leaves the
	// stream desynchronized, so the original error must surface wrapped, never
	// bare.
	header := EncodeHeader(0, false, false, 100)
	cause := errors.New("i/o timeout")

	_, err := ReadPacket(&headerThenError{header: header[:], err: cause}, CodecIDH264)
	var ierr *IncompleteReadError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, 100, ierr.Expected)
	assert.ErrorIs(t, err, cause)
}

func TestReadDeviceMeta(t *testing.T) {
	var stream bytes.Buffer
	name := make([]byte, 64)
	copy(name, "Pixel 7")
	stream.Write(name)
	stream.Write([]byte{0x68, 0x32, 0x36, 0x34}) // "h264"
	stream.Write([]byte{0x00, 0x00, 0x04, 0x38}) // 1080
	stream.Write([]byte{0x00, 0x00, 0x09, 0x60}) // 2400

	meta, err := ReadDeviceMeta(&stream, true)
	require.NoError(t, err)
	assert.Equal(t, "Pixel 7", meta.DeviceName)
	assert.Equal(t, CodecIDH264, meta.CodecID)
	assert.Equal(t, uint32(1080), meta.Width)
	assert.Equal(t, uint32(2400), meta.Height)
}

func TestReadDeviceMetaNameOnly(t *testing.T) {
	var stream bytes.Buffer
	name := make([]byte, 64)
	copy(name, "emulator-5554")
	stream.Write(name)

	meta, err := ReadDeviceMeta(&stream, false)
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", meta.DeviceName)
	assert.Zero(t, meta.CodecID)
}

func TestReadAudioCodecID(t *testing.T) {
	stream := bytes.NewReader([]byte{0x6f, 0x70, 0x75, 0x73})
	id, err := ReadAudioCodecID(stream)
	require.NoError(t, err)
	assert.Equal(t, CodecIDOPUS, id)
	assert.Equal(t, "opus", CodecName(id))
}
