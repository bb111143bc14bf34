package decode

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
	"github.com/droidcast/droidcast/internal/util"
)

// VideoDecoder consumes the video packet channel, tracks parameter sets and
// display dimensions from the bitstream, and decodes every access unit to an
// RGB24 picture. Compressed units are teed to recorders and previews before
// decode; decoded frames go to the delay buffer and the frame sinks.
type VideoDecoder struct {
	codec   uint32
	packets <-chan *protocol.Packet
	buffer  *DelayBuffer
	sinks   *FrameTee
	units   *UnitTee
	pix     pixelDecoder
	log     *slog.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	paused    bool
	stopped   bool
	width     int
	height    int
	extradata []byte

	framesProduced atomic.Uint64
	framesSkipped  atomic.Uint64
	decodeErrors   atomic.Uint64
	done           chan struct{}
}

// NewVideoDecoder builds a decoder over the given packet channel. The initial
// width and height come from the session metadata and are replaced by SPS
// dimensions as soon as the bitstream provides them. Returns DecoderInitError
// when the ffmpeg build has no decoder for the stream codec.
func NewVideoDecoder(packets <-chan *protocol.Packet, codec uint32, width, height int) (*VideoDecoder, error) {
	pix, err := newPixelDecoder(codec)
	if err != nil {
		return nil, err
	}
	return newVideoDecoderWith(packets, codec, width, height, pix), nil
}

func newVideoDecoderWith(packets <-chan *protocol.Packet, codec uint32, width, height int, pix pixelDecoder) *VideoDecoder {
	d := &VideoDecoder{
		codec:   codec,
		packets: packets,
		buffer:  &DelayBuffer{},
		sinks:   &FrameTee{},
		units:   &UnitTee{},
		pix:     pix,
		width:   width,
		height:  height,
		done:    make(chan struct{}),
		log:     util.ComponentLogger("video-decoder"),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Buffer returns the renderer-facing delay buffer of decoded frames
func (d *VideoDecoder) Buffer() *DelayBuffer { return d.buffer }

// Sinks returns the tee of decoded RGB24 frames
func (d *VideoDecoder) Sinks() *FrameTee { return d.sinks }

// Units returns the tee of compressed access units
func (d *VideoDecoder) Units() *UnitTee { return d.units }

// Done closes when the decode loop exits
func (d *VideoDecoder) Done() <-chan struct{} { return d.done }

// Dimensions returns the current display size as tracked from the bitstream
func (d *VideoDecoder) Dimensions() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// FramesProduced returns the number of decoded frames published so far
func (d *VideoDecoder) FramesProduced() uint64 { return d.framesProduced.Load() }

// FramesSkipped returns frames overwritten in the delay buffer unconsumed
func (d *VideoDecoder) FramesSkipped() uint64 { return d.framesSkipped.Load() }

// DecodeErrors returns how many access units failed to decode
func (d *VideoDecoder) DecodeErrors() uint64 { return d.decodeErrors.Load() }

// SetPaused blocks or unblocks the decode loop. The caller coordinates the
// demuxer pause so packets do not pile up in the channel meanwhile.
func (d *VideoDecoder) SetPaused(paused bool) {
	d.mu.Lock()
	d.paused = paused
	d.mu.Unlock()
	d.cond.Broadcast()
}

// Paused reports the pause flag
func (d *VideoDecoder) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Stop unblocks a paused loop so it can observe channel closure
func (d *VideoDecoder) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.cond.Broadcast()
}

func (d *VideoDecoder) waitResumed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.paused && !d.stopped {
		d.cond.Wait()
	}
	return !d.stopped
}

// Run consumes packets until the channel closes or Stop is called
func (d *VideoDecoder) Run() {
	defer close(d.done)
	defer d.pix.Close()
	for packet := range d.packets {
		if !d.waitResumed() {
			return
		}
		d.handlePacket(packet)
	}
	d.log.Info("video stream finished",
		"frames", d.framesProduced.Load(), "decode_errors", d.decodeErrors.Load())
}

func (d *VideoDecoder) handlePacket(packet *protocol.Packet) {
	keyFrame := packet.IsKeyFrame
	switch d.codec {
	case protocol.CodecIDH264, protocol.CodecIDH265:
		keyFrame = d.scanBitstream(packet.Data) || keyFrame
	}

	if packet.IsConfig {
		d.mu.Lock()
		if d.extradata == nil {
			d.extradata = append([]byte(nil), packet.Data...)
		}
		d.mu.Unlock()
		// Parameter sets prime the decoder but never yield a picture
		if _, err := d.pix.Decode(packet.Data, packet.PTS); err != nil {
			d.recordDecodeError(err)
		}
		return
	}

	unit := &AccessUnit{
		Data:     append([]byte(nil), packet.Data...),
		PTS:      packet.PTS,
		KeyFrame: keyFrame,
	}
	d.units.WriteUnit(unit)

	frames, err := d.pix.Decode(packet.Data, packet.PTS)
	if err != nil {
		d.recordDecodeError(err)
	}
	for _, frame := range frames {
		frame.KeyFrame = keyFrame
		if d.buffer.Push(frame) {
			d.framesSkipped.Add(1)
		}
		d.sinks.WriteFrame(frame)
		d.framesProduced.Add(1)
	}
}

func (d *VideoDecoder) recordDecodeError(err error) {
	d.decodeErrors.Add(1)
	d.log.Warn("access unit decode failed", "error", err)
}

// scanBitstream walks the unit's NALUs, updating dimensions from any SPS and
// reporting whether an IDR/IRAP slice is present. H.265 shares the Annex-B
// byte-stream format, so the H.264 splitter handles both.
func (d *VideoDecoder) scanBitstream(data []byte) bool {
	var annexB h264.AnnexB
	if err := annexB.Unmarshal(data); err != nil {
		return false
	}
	keyFrame := false
	for _, nalu := range annexB {
		if len(nalu) == 0 {
			continue
		}
		switch d.codec {
		case protocol.CodecIDH264:
			switch h264.NALUType(nalu[0] & 0x1F) {
			case h264.NALUTypeSPS:
				var sps h264.SPS
				if err := sps.Unmarshal(nalu); err == nil {
					d.setDimensions(sps.Width(), sps.Height())
				}
			case h264.NALUTypeIDR:
				keyFrame = true
			}
		case protocol.CodecIDH265:
			typ := h265.NALUType((nalu[0] >> 1) & 0x3F)
			switch {
			case typ == h265.NALUType_SPS_NUT:
				var sps h265.SPS
				if err := sps.Unmarshal(nalu); err == nil {
					d.setDimensions(sps.Width(), sps.Height())
				}
			case typ >= h265.NALUType_BLA_W_LP && typ <= h265.NALUType_CRA_NUT:
				keyFrame = true
			}
		}
	}
	return keyFrame
}

func (d *VideoDecoder) setDimensions(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if width != d.width || height != d.height {
		d.log.Info("display size changed", "width", width, "height", height)
		d.width, d.height = width, height
	}
}
