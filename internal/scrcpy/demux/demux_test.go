package demux

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

func appendPacket(buf []byte, pts uint64, config, keyFrame bool, data []byte) []byte {
	header := protocol.EncodeHeader(pts, config, keyFrame, uint32(len(data)))
	buf = append(buf, header[:]...)
	return append(buf, data...)
}

func collect(t *testing.T, d *Demuxer) []*protocol.Packet {
	t.Helper()
	var packets []*protocol.Packet
	timeout := time.After(2 * time.Second)
	for {
		select {
		case p, ok := <-d.Packets():
			if !ok {
				return packets
			}
			packets = append(packets, p)
		case <-timeout:
			t.Fatal("timed out draining demuxer")
		}
	}
}

func TestVideoConfigMerge(t *testing.T) {
	config := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0xAA, 0x00, 0x00, 0x00, 0x01, 0x68, 0xBB}
	frame1 := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x11, 0x22}
	frame2 := []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x33}

	var stream []byte
	stream = appendPacket(stream, 0, true, false, config)
	stream = appendPacket(stream, 1000, false, true, frame1)
	stream = appendPacket(stream, 2000, false, false, frame2)

	d := NewVideo(bytes.NewReader(stream), protocol.CodecIDH264)
	go d.Run()
	packets := collect(t, d)
	require.Len(t, packets, 3)

	assert.True(t, packets[0].IsConfig)
	assert.Equal(t, config, packets[0].Data)

	// The keyframe after a config packet carries the config prepended
	assert.False(t, packets[1].IsConfig)
	assert.Equal(t, append(append([]byte(nil), config...), frame1...), packets[1].Data)
	assert.Equal(t, uint64(1000), packets[1].PTS)

	// Config is consumed once; later frames are untouched
	assert.Equal(t, frame2, packets[2].Data)
}

func TestVideoAV1Bypass(t *testing.T) {
	config := []byte{0x0A, 0x0B}
	frame := []byte{0x32, 0x01, 0x02}

	var stream []byte
	stream = appendPacket(stream, 0, true, false, config)
	stream = appendPacket(stream, 1000, false, true, frame)

	d := NewVideo(bytes.NewReader(stream), protocol.CodecIDAV1)
	go d.Run()
	packets := collect(t, d)
	require.Len(t, packets, 2)
	assert.Equal(t, frame, packets[1].Data)
}

// oneByteReader simulates a socket delivering one byte per read
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return o.r.Read(p)
}

func TestFragmentedStream(t *testing.T) {
	frame := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	var stream []byte
	stream = appendPacket(stream, 500, false, false, frame)

	d := NewVideo(oneByteReader{bytes.NewReader(stream)}, protocol.CodecIDH264)
	go d.Run()
	packets := collect(t, d)
	require.Len(t, packets, 1)
	assert.Equal(t, frame, packets[0].Data)

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.PacketsParsed)
	assert.Equal(t, uint64(protocol.PacketHeaderSize+len(frame)), stats.BytesReceived)
	assert.Zero(t, stats.IncompleteReads)
}

func TestPauseDrainKeepsConfig(t *testing.T) {
	config := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0xAA}
	dropped := []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x99}

	var stream []byte
	stream = appendPacket(stream, 0, true, false, config)
	stream = appendPacket(stream, 1000, false, false, dropped)

	d := NewVideo(bytes.NewReader(stream), protocol.CodecIDH264)
	d.SetPaused(true)
	go d.Run()
	packets := collect(t, d)
	assert.Empty(t, packets)

	stats := d.Stats()
	assert.Equal(t, uint64(2), stats.PacketsParsed)
	assert.NotZero(t, stats.BytesDropped)
}

func TestTruncatedStream(t *testing.T) {
	var stream []byte
	stream = appendPacket(stream, 0, false, false, []byte{1, 2, 3, 4})
	// Second packet promises 100 bytes but the stream ends after 3
	header := protocol.EncodeHeader(1000, false, false, 100)
	stream = append(stream, header[:]...)
	stream = append(stream, 0xAA, 0xBB, 0xCC)

	d := NewVideo(bytes.NewReader(stream), protocol.CodecIDH264)
	go d.Run()
	packets := collect(t, d)
	require.Len(t, packets, 1)
	assert.Equal(t, uint64(1), d.Stats().IncompleteReads)
}

func TestAudioCodecTag(t *testing.T) {
	sample := []byte{0x01, 0x02, 0x03}
	stream := []byte{'o', 'p', 'u', 's'}
	stream = appendPacket(stream, 3000, false, false, sample)

	d, err := NewAudio(bytes.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, protocol.CodecIDOPUS, d.Codec())

	go d.Run()
	packets := collect(t, d)
	require.Len(t, packets, 1)
	assert.Equal(t, sample, packets[0].Data)
	assert.Equal(t, protocol.CodecIDOPUS, packets[0].Codec)
}

func TestAudioMissingTag(t *testing.T) {
	_, err := NewAudio(bytes.NewReader([]byte{'o', 'p'}))
	require.Error(t, err)
}

// timeoutError mimics the net package's deadline expiry
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// deadlineConn replays a script of reads; a nil entry expires the deadline
type deadlineConn struct {
	script    []io.Reader
	deadlines int
}

func (c *deadlineConn) SetReadDeadline(time.Time) error { c.deadlines++; return nil }

func (c *deadlineConn) Read(p []byte) (int, error) {
	for len(c.script) > 0 {
		r := c.script[0]
		if r == nil {
			c.script = c.script[1:]
			return 0, timeoutError{}
		}
		n, err := r.Read(p)
		if err == io.EOF {
			c.script = c.script[1:]
			continue
		}
		return n, err
	}
	return 0, io.EOF
}

func TestIdleTimeoutsKeepStreamAlive(t *testing.T) {
	frame := []byte{1, 2, 3, 4}
	var stream []byte
	stream = appendPacket(stream, 100, false, false, frame)

	// Two deadline expiries before any bytes arrive: an idle screen, not an
	// error.
	conn := &deadlineConn{script: []io.Reader{nil, nil, bytes.NewReader(stream)}}
	d := NewVideo(conn, protocol.CodecIDH264)
	d.SetReadTimeout(50 * time.Millisecond)
	go d.Run()

	packets := collect(t, d)
	require.Len(t, packets, 1)
	assert.Equal(t, frame, packets[0].Data)

	stats := d.Stats()
	assert.Zero(t, stats.ParseErrors)
	assert.Zero(t, stats.IncompleteReads)
	assert.Positive(t, conn.deadlines)
}

func TestMidPacketTimeoutIsAStall(t *testing.T) {
	// Header promises 10 payload bytes, only 2 arrive before the deadline
	header := protocol.EncodeHeader(100, false, false, 10)
	partial := append(append([]byte(nil), header[:]...), 0xAA, 0xBB)

	conn := &deadlineConn{script: []io.Reader{bytes.NewReader(partial), nil}}
	d := NewVideo(conn, protocol.CodecIDH264)
	d.SetReadTimeout(50 * time.Millisecond)
	go d.Run()

	packets := collect(t, d)
	assert.Empty(t, packets)
	assert.Equal(t, uint64(1), d.Stats().IncompleteReads)
}

// idleConn never delivers data; every read expires the deadline
type idleConn struct{}

func (idleConn) SetReadDeadline(time.Time) error { return nil }

func (idleConn) Read([]byte) (int, error) {
	time.Sleep(5 * time.Millisecond)
	return 0, timeoutError{}
}

func TestStopExitsIdleLoop(t *testing.T) {
	d := NewVideo(idleConn{}, protocol.CodecIDH264)
	d.SetReadTimeout(10 * time.Millisecond)
	go d.Run()

	time.Sleep(20 * time.Millisecond)
	d.Stop()

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("demuxer did not stop")
	}
	assert.Zero(t, d.Stats().PacketsParsed)
}
