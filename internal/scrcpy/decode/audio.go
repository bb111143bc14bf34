package decode

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
	"github.com/droidcast/droidcast/internal/util"
)

// Defaults before the stream tells us otherwise. Opus over this protocol is
// always 48 kHz stereo; raw streams are s16le at the same rate.
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
)

// AudioDecoder consumes the audio packet channel and produces chunks carrying
// interleaved float32 PCM: raw streams are converted directly, encoded codecs
// go through ffmpeg. The compressed payload rides along in the chunk for
// container sinks, and the detected sample rate and channel count are exposed
// once the first decoded frame is seen.
type AudioDecoder struct {
	codec   uint32
	packets <-chan *protocol.Packet
	sinks   *SampleTee
	pcm     pcmDecoder
	log     *slog.Logger

	mu         sync.Mutex
	cond       *sync.Cond
	paused     bool
	stopped    bool
	sampleRate int
	channels   int
	detected   bool

	chunksProduced atomic.Uint64
	decodeErrors   atomic.Uint64
	done           chan struct{}
}

// NewAudioDecoder builds a decoder over the given packet channel. Raw streams
// need no codec; for Opus, AAC and FLAC a missing ffmpeg decoder surfaces as
// DecoderInitError.
func NewAudioDecoder(packets <-chan *protocol.Packet, codec uint32) (*AudioDecoder, error) {
	var pcm pcmDecoder
	if codec != protocol.CodecIDRAW {
		var err error
		pcm, err = newPCMDecoder(codec)
		if err != nil {
			return nil, err
		}
	}
	return newAudioDecoderWith(packets, codec, pcm), nil
}

func newAudioDecoderWith(packets <-chan *protocol.Packet, codec uint32, pcm pcmDecoder) *AudioDecoder {
	d := &AudioDecoder{
		codec:      codec,
		packets:    packets,
		sinks:      &SampleTee{},
		pcm:        pcm,
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
		done:       make(chan struct{}),
		log:        util.ComponentLogger("audio-decoder"),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Sinks returns the chunk tee for recorders and players
func (d *AudioDecoder) Sinks() *SampleTee { return d.sinks }

// Done closes when the decode loop exits
func (d *AudioDecoder) Done() <-chan struct{} { return d.done }

// Codec returns the stream codec id
func (d *AudioDecoder) Codec() uint32 { return d.codec }

// Format returns the stream's sample rate and channel count
func (d *AudioDecoder) Format() (sampleRate, channels int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate, d.channels
}

// ChunksProduced returns the number of chunks published so far
func (d *AudioDecoder) ChunksProduced() uint64 { return d.chunksProduced.Load() }

// DecodeErrors returns how many packets failed to decode
func (d *AudioDecoder) DecodeErrors() uint64 { return d.decodeErrors.Load() }

// SetPaused blocks or unblocks the decode loop
func (d *AudioDecoder) SetPaused(paused bool) {
	d.mu.Lock()
	d.paused = paused
	d.mu.Unlock()
	d.cond.Broadcast()
}

// Paused reports the pause flag
func (d *AudioDecoder) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Stop unblocks a paused loop so it can observe channel closure
func (d *AudioDecoder) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.cond.Broadcast()
}

func (d *AudioDecoder) waitResumed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.paused && !d.stopped {
		d.cond.Wait()
	}
	return !d.stopped
}

// Run consumes packets until the channel closes or Stop is called
func (d *AudioDecoder) Run() {
	defer close(d.done)
	defer func() {
		if d.pcm != nil {
			d.pcm.Close()
		}
	}()
	for packet := range d.packets {
		if !d.waitResumed() {
			return
		}
		d.handlePacket(packet)
	}
	d.log.Info("audio stream finished", "chunks", d.chunksProduced.Load())
}

func (d *AudioDecoder) handlePacket(packet *protocol.Packet) {
	if packet.IsConfig {
		// Codec config (Opus header, AAC esds) carries no samples but may
		// be required as decoder extradata.
		if d.pcm != nil {
			d.pcm.SetConfig(packet.Data)
		}
		return
	}
	chunk := &AudioChunk{
		PTS:    packet.PTS,
		Codec:  d.codec,
		Packet: append([]byte(nil), packet.Data...),
	}
	if d.pcm != nil {
		samples, err := d.pcm.Decode(packet.Data)
		if err != nil {
			d.decodeErrors.Add(1)
			d.log.Warn("audio packet decode failed", "error", err)
		}
		chunk.PCM = samples
	} else {
		chunk.PCM = pcmS16ToFloat32(packet.Data)
	}
	d.recordFormat()
	d.sinks.WriteChunk(chunk)
	d.chunksProduced.Add(1)
}

func (d *AudioDecoder) recordFormat() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pcm != nil {
		if rate, channels, known := d.pcm.Format(); known {
			d.sampleRate, d.channels = rate, channels
		}
	}
	if d.detected {
		return
	}
	d.detected = true
	d.log.Info("audio stream format",
		"codec", protocol.CodecName(d.codec),
		"sample_rate", d.sampleRate,
		"channels", d.channels)
}

// pcmS16ToFloat32 converts little-endian signed 16-bit samples to float32 in
// [-1, 1). An odd trailing byte is ignored.
func pcmS16ToFloat32(data []byte) []float32 {
	samples := make([]float32, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		v := int16(binary.LittleEndian.Uint16(data[i:]))
		samples = append(samples, float32(v)/float32(math.MaxInt16+1))
	}
	return samples
}
