package decode

import (
	"encoding/binary"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// stubPixelDecoder emits a fixed-size frame per decode call, or fails
type stubPixelDecoder struct {
	width  int
	height int
	err    error
	calls  int
	closed bool
}

func (s *stubPixelDecoder) Decode(data []byte, pts uint64) ([]*Frame, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []*Frame{{
		Data:   make([]byte, s.width*s.height*3),
		PTS:    pts,
		Width:  s.width,
		Height: s.height,
	}}, nil
}

func (s *stubPixelDecoder) Close() { s.closed = true }

type stubPCMDecoder struct {
	samples  []float32
	rate     int
	channels int
	err      error
	config   []byte
	closed   bool
}

func (s *stubPCMDecoder) SetConfig(data []byte) { s.config = append([]byte(nil), data...) }

func (s *stubPCMDecoder) Decode(data []byte) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.samples, nil
}

func (s *stubPCMDecoder) Format() (int, int, bool) { return s.rate, s.channels, s.rate > 0 }

func (s *stubPCMDecoder) Close() { s.closed = true }

type countingSink struct {
	frames int
	fail   bool
}

func (s *countingSink) WriteFrame(*Frame) error {
	if s.fail {
		return errors.New("sink broken")
	}
	s.frames++
	return nil
}

func TestFrameTeeDetachesBrokenSink(t *testing.T) {
	tee := &FrameTee{}
	good := &countingSink{}
	bad := &countingSink{fail: true}
	tee.Attach(good)
	tee.Attach(bad)

	tee.WriteFrame(&Frame{})
	tee.WriteFrame(&Frame{})

	assert.Equal(t, 2, good.frames)
	assert.Equal(t, 0, bad.frames)
}

func TestPCMS16ToFloat32(t *testing.T) {
	data := make([]byte, 0, 6)
	data = binary.LittleEndian.AppendUint16(data, 0)
	data = binary.LittleEndian.AppendUint16(data, uint16(int16(32767)))
	data = binary.LittleEndian.AppendUint16(data, uint16(int16(-32768)))

	samples := pcmS16ToFloat32(data)
	require.Len(t, samples, 3)
	assert.Equal(t, float32(0), samples[0])
	assert.InDelta(t, 1.0, samples[1], 0.0001)
	assert.Equal(t, float32(-1), samples[2])

	// Odd trailing byte is ignored
	assert.Len(t, pcmS16ToFloat32([]byte{1, 2, 3}), 1)
}

func TestVideoDecoderProducesFrames(t *testing.T) {
	packets := make(chan *protocol.Packet, 4)
	pix := &stubPixelDecoder{width: 1080, height: 2400}
	d := newVideoDecoderWith(packets, protocol.CodecIDH264, 1080, 2400, pix)
	go d.Run()

	packets <- &protocol.Packet{PTS: 100, IsKeyFrame: true, Data: []byte{0xDE, 0xAD}}
	packets <- &protocol.Packet{PTS: 200, Data: []byte{0xBE, 0xEF}}
	close(packets)
	<-d.Done()

	assert.Equal(t, uint64(2), d.FramesProduced())
	// Nothing consumed the first frame, so the second overwrote it
	assert.Equal(t, uint64(1), d.FramesSkipped())
	assert.True(t, pix.closed)

	frame := d.Buffer().Consume()
	require.NotNil(t, frame)
	assert.Equal(t, uint64(200), frame.PTS)
	assert.Equal(t, 1080, frame.Width)
	assert.Equal(t, 2400, frame.Height)
}

func TestVideoDecoderConfigNotPublished(t *testing.T) {
	packets := make(chan *protocol.Packet, 2)
	pix := &stubPixelDecoder{width: 2, height: 2}
	d := newVideoDecoderWith(packets, protocol.CodecIDH264, 0, 0, pix)
	go d.Run()

	packets <- &protocol.Packet{IsConfig: true, Data: []byte{0x67, 0x42}}
	close(packets)
	<-d.Done()

	// Parameter sets feed the decoder but yield no published frame
	assert.Equal(t, 1, pix.calls)
	assert.Zero(t, d.FramesProduced())
	assert.Nil(t, d.Buffer().Consume())
}

func TestVideoDecoderPublishesUnits(t *testing.T) {
	packets := make(chan *protocol.Packet, 2)
	d := newVideoDecoderWith(packets, protocol.CodecIDH264, 0, 0, &stubPixelDecoder{width: 2, height: 2})

	var got []*AccessUnit
	d.Units().Attach(unitSinkFunc(func(u *AccessUnit) error {
		got = append(got, u)
		return nil
	}))
	go d.Run()

	packets <- &protocol.Packet{IsConfig: true, Data: []byte{0x67}}
	packets <- &protocol.Packet{PTS: 300, IsKeyFrame: true, Data: []byte{0xAA, 0xBB}}
	close(packets)
	<-d.Done()

	// Only media units reach the tee, never config packets
	require.Len(t, got, 1)
	assert.Equal(t, []byte{0xAA, 0xBB}, got[0].Data)
	assert.Equal(t, uint64(300), got[0].PTS)
	assert.True(t, got[0].KeyFrame)
}

func TestVideoDecoderCountsDecodeFailures(t *testing.T) {
	packets := make(chan *protocol.Packet, 2)
	pix := &stubPixelDecoder{err: errors.New("corrupt unit")}
	d := newVideoDecoderWith(packets, protocol.CodecIDH264, 0, 0, pix)
	go d.Run()

	packets <- &protocol.Packet{PTS: 100, Data: []byte{1, 2, 3}}
	close(packets)
	<-d.Done()

	assert.Equal(t, uint64(1), d.DecodeErrors())
	assert.Zero(t, d.FramesProduced())
}

func TestVideoDecoderPauseResume(t *testing.T) {
	packets := make(chan *protocol.Packet, 2)
	d := newVideoDecoderWith(packets, protocol.CodecIDH264, 0, 0, &stubPixelDecoder{width: 2, height: 2})
	d.SetPaused(true)
	go d.Run()

	packets <- &protocol.Packet{PTS: 100, Data: []byte{1}}
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, d.FramesProduced())

	d.SetPaused(false)
	close(packets)
	<-d.Done()
	assert.Equal(t, uint64(1), d.FramesProduced())
}

func TestVideoDecoderStopWhilePaused(t *testing.T) {
	packets := make(chan *protocol.Packet, 1)
	d := newVideoDecoderWith(packets, protocol.CodecIDH264, 0, 0, &stubPixelDecoder{width: 2, height: 2})
	d.SetPaused(true)
	go d.Run()

	packets <- &protocol.Packet{PTS: 100, Data: []byte{1}}
	time.Sleep(20 * time.Millisecond)
	d.Stop()

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("decoder did not stop")
	}
}

type unitSinkFunc func(*AccessUnit) error

func (f unitSinkFunc) WriteUnit(u *AccessUnit) error { return f(u) }

func TestUnitTeeDetachesBrokenSink(t *testing.T) {
	tee := &UnitTee{}
	good := 0
	tee.Attach(unitSinkFunc(func(*AccessUnit) error { good++; return nil }))
	tee.Attach(unitSinkFunc(func(*AccessUnit) error { return errors.New("sink broken") }))

	tee.WriteUnit(&AccessUnit{})
	tee.WriteUnit(&AccessUnit{})

	assert.Equal(t, 2, good)
}

func TestFrameImage(t *testing.T) {
	frame := &Frame{
		Data:   []byte{255, 0, 0, 0, 255, 0},
		Width:  2,
		Height: 1,
	}
	img := frame.Image()
	require.Equal(t, 2, img.Bounds().Dx())
	require.Equal(t, 1, img.Bounds().Dy())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, img.RGBAAt(1, 0))
}

func TestAudioDecoderRawPCM(t *testing.T) {
	packets := make(chan *protocol.Packet, 2)
	d, err := NewAudioDecoder(packets, protocol.CodecIDRAW)
	require.NoError(t, err)

	var got []*AudioChunk
	d.Sinks().Attach(sampleSinkFunc(func(c *AudioChunk) error {
		got = append(got, c)
		return nil
	}))
	go d.Run()

	data := binary.LittleEndian.AppendUint16(nil, uint16(int16(16384)))
	packets <- &protocol.Packet{PTS: 100, Data: data}
	close(packets)
	<-d.Done()

	require.Len(t, got, 1)
	assert.True(t, got[0].IsPCM())
	require.Len(t, got[0].PCM, 1)
	assert.InDelta(t, 0.5, got[0].PCM[0], 0.0001)

	rate, channels := d.Format()
	assert.Equal(t, DefaultSampleRate, rate)
	assert.Equal(t, DefaultChannels, channels)
}

func TestAudioDecoderDecodesEncodedStream(t *testing.T) {
	packets := make(chan *protocol.Packet, 3)
	pcm := &stubPCMDecoder{samples: []float32{0.25, -0.25}, rate: 44100, channels: 1}
	d := newAudioDecoderWith(packets, protocol.CodecIDOPUS, pcm)

	var got []*AudioChunk
	d.Sinks().Attach(sampleSinkFunc(func(c *AudioChunk) error {
		got = append(got, c)
		return nil
	}))
	go d.Run()

	packets <- &protocol.Packet{IsConfig: true, Data: []byte{0x4F, 0x70}}
	packets <- &protocol.Packet{PTS: 100, Data: []byte{0xFC, 0x01}}
	close(packets)
	<-d.Done()

	// The config packet reaches the decoder as extradata, not the sinks
	assert.Equal(t, []byte{0x4F, 0x70}, pcm.config)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsPCM())
	assert.Equal(t, []float32{0.25, -0.25}, got[0].PCM)
	// Compressed payload rides along for container recorders
	assert.Equal(t, []byte{0xFC, 0x01}, got[0].Packet)

	rate, channels := d.Format()
	assert.Equal(t, 44100, rate)
	assert.Equal(t, 1, channels)
	assert.True(t, pcm.closed)
}

func TestAudioDecoderCountsDecodeFailures(t *testing.T) {
	packets := make(chan *protocol.Packet, 1)
	pcm := &stubPCMDecoder{err: errors.New("corrupt packet")}
	d := newAudioDecoderWith(packets, protocol.CodecIDOPUS, pcm)
	go d.Run()

	packets <- &protocol.Packet{PTS: 100, Data: []byte{0xFC}}
	close(packets)
	<-d.Done()

	assert.Equal(t, uint64(1), d.DecodeErrors())
}

type sampleSinkFunc func(*AudioChunk) error

func (f sampleSinkFunc) WriteChunk(c *AudioChunk) error { return f(c) }

func TestVideoRecorderWaitsForKeyframe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.h264")
	r, err := NewVideoRecorder(path)
	require.NoError(t, err)

	require.NoError(t, r.WriteUnit(&AccessUnit{Data: []byte{1, 2}}))
	assert.Zero(t, r.Frames())

	require.NoError(t, r.WriteUnit(&AccessUnit{Data: []byte{3, 4}, KeyFrame: true}))
	require.NoError(t, r.WriteUnit(&AccessUnit{Data: []byte{5}}))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5}, data)
}

func TestWAVRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	r, err := NewWAVRecorder(path, 48000, 2)
	require.NoError(t, err)

	require.NoError(t, r.WriteChunk(&AudioChunk{Codec: protocol.CodecIDRAW, PCM: []float32{0, 0.5, -0.5, 1}}))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, wavHeaderSize+16)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	// IEEE float format tag
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(data[20:22]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[22:24]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(data[24:28]))
	// Patched sizes
	assert.Equal(t, uint32(36+16), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(data[40:44]))
}

func TestWebMRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.webm")
	r, err := NewWebMRecorder(path)
	require.NoError(t, err)

	require.NoError(t, r.WriteChunk(&AudioChunk{Codec: protocol.CodecIDOPUS, Packet: []byte{0xFC, 0x01, 0x02}}))
	// Non-Opus chunks are ignored without error
	require.NoError(t, r.WriteChunk(&AudioChunk{Codec: protocol.CodecIDRAW, PCM: []float32{0}}))
	require.NoError(t, r.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
