package decode

import (
	"encoding/binary"
	"errors"
	"math"

	astiav "github.com/asticode/go-astiav"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// pixelDecoder turns compressed access units into RGB24 pictures. The ffmpeg
// implementation is the production one; tests substitute their own.
type pixelDecoder interface {
	Decode(data []byte, pts uint64) ([]*Frame, error)
	Close()
}

// pcmDecoder turns compressed audio packets into interleaved float32 samples
type pcmDecoder interface {
	SetConfig(data []byte)
	Decode(data []byte) ([]float32, error)
	Format() (sampleRate, channels int, known bool)
	Close()
}

func videoCodecID(codec uint32) (astiav.CodecID, bool) {
	switch codec {
	case protocol.CodecIDH264:
		return astiav.CodecIDH264, true
	case protocol.CodecIDH265:
		return astiav.CodecIDHevc, true
	case protocol.CodecIDAV1:
		return astiav.CodecIDAv1, true
	}
	return 0, false
}

func audioCodecID(codec uint32) (astiav.CodecID, bool) {
	switch codec {
	case protocol.CodecIDOPUS:
		return astiav.CodecIDOpus, true
	case protocol.CodecIDAAC:
		return astiav.CodecIDAac, true
	case protocol.CodecIDFLAC:
		return astiav.CodecIDFlac, true
	}
	return 0, false
}

// ffmpegVideo decodes one video stream through avcodec and converts every
// picture to tightly packed RGB24 via swscale.
type ffmpegVideo struct {
	ctx    *astiav.CodecContext
	pkt    *astiav.Packet
	frame  *astiav.Frame
	scaler rgbScaler
}

func newPixelDecoder(codec uint32) (pixelDecoder, error) {
	name := protocol.CodecName(codec)
	id, ok := videoCodecID(codec)
	if !ok {
		return nil, &DecoderInitError{Codec: name}
	}
	dec := astiav.FindDecoder(id)
	if dec == nil {
		return nil, &DecoderInitError{Codec: name}
	}
	ctx := astiav.AllocCodecContext(dec)
	if ctx == nil {
		return nil, &DecoderInitError{Codec: name}
	}
	// Frame threading buffers pictures; this stream is latency-critical
	ctx.SetFlags(astiav.NewCodecContextFlags(astiav.CodecContextFlagLowDelay))
	ctx.SetThreadCount(1)
	if err := ctx.Open(dec, nil); err != nil {
		ctx.Free()
		return nil, &DecoderInitError{Codec: name, Cause: err}
	}
	return &ffmpegVideo{
		ctx:   ctx,
		pkt:   astiav.AllocPacket(),
		frame: astiav.AllocFrame(),
	}, nil
}

func (v *ffmpegVideo) Decode(data []byte, pts uint64) ([]*Frame, error) {
	if err := v.pkt.FromData(data); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	v.pkt.SetPts(int64(pts))
	err := v.ctx.SendPacket(v.pkt)
	v.pkt.Unref()
	if err != nil && !errors.Is(err, astiav.ErrEagain) {
		return nil, &DecodeError{Cause: err}
	}

	var frames []*Frame
	for {
		if err := v.ctx.ReceiveFrame(v.frame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return frames, nil
			}
			return frames, &DecodeError{Cause: err}
		}
		width, height, rgb, err := v.scaler.toRGB(v.frame)
		v.frame.Unref()
		if err != nil {
			return frames, &DecodeError{Cause: err}
		}
		frames = append(frames, &Frame{
			Data:   rgb,
			PTS:    pts,
			Width:  width,
			Height: height,
		})
	}
}

func (v *ffmpegVideo) Close() {
	v.scaler.close()
	if v.frame != nil {
		v.frame.Free()
		v.frame = nil
	}
	if v.pkt != nil {
		v.pkt.Free()
		v.pkt = nil
	}
	if v.ctx != nil {
		v.ctx.Free()
		v.ctx = nil
	}
}

// rgbScaler converts decoded frames to packed RGB24 without ever touching the
// planar Y/U/V data from Go. It is rebuilt whenever the source geometry
// changes, which covers device rotation.
type rgbScaler struct {
	ssc        *astiav.SoftwareScaleContext
	dst        *astiav.Frame
	srcW, srcH int
	srcPix     astiav.PixelFormat
}

func (s *rgbScaler) ensure(src *astiav.Frame) error {
	sw, sh, sp := src.Width(), src.Height(), src.PixelFormat()
	if s.ssc != nil && sw == s.srcW && sh == s.srcH && sp == s.srcPix {
		return nil
	}
	s.close()

	ssc, err := astiav.CreateSoftwareScaleContext(
		sw, sh, sp,
		sw, sh, astiav.PixelFormatRgb24,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		return err
	}
	dst := astiav.AllocFrame()
	dst.SetWidth(sw)
	dst.SetHeight(sh)
	dst.SetPixelFormat(astiav.PixelFormatRgb24)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return err
	}

	s.ssc = ssc
	s.dst = dst
	s.srcW, s.srcH, s.srcPix = sw, sh, sp
	return nil
}

func (s *rgbScaler) toRGB(src *astiav.Frame) (width, height int, rgb []byte, err error) {
	if err := s.ensure(src); err != nil {
		return 0, 0, nil, err
	}
	if err := s.ssc.ScaleFrame(src, s.dst); err != nil {
		return 0, 0, nil, err
	}
	n, err := s.dst.ImageBufferSize(1)
	if err != nil {
		return 0, 0, nil, err
	}
	out := make([]byte, n)
	if _, err := s.dst.ImageCopyToBuffer(out, 1); err != nil {
		return 0, 0, nil, err
	}
	return s.srcW, s.srcH, out, nil
}

func (s *rgbScaler) close() {
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.ssc != nil {
		s.ssc.Free()
		s.ssc = nil
	}
}

// ffmpegAudio decodes one audio stream and resamples every frame to packed
// float32. The context is opened lazily so a codec config packet seen before
// the first media packet can be installed as extradata (AAC needs it; Opus
// and FLAC open fine without).
type ffmpegAudio struct {
	dec       *astiav.Codec
	ctx       *astiav.CodecContext
	pkt       *astiav.Packet
	frame     *astiav.Frame
	converted *astiav.Frame
	swr       *astiav.SoftwareResampleContext

	opened   bool
	rate     int
	channels int
}

func newPCMDecoder(codec uint32) (pcmDecoder, error) {
	name := protocol.CodecName(codec)
	id, ok := audioCodecID(codec)
	if !ok {
		return nil, &DecoderInitError{Codec: name}
	}
	dec := astiav.FindDecoder(id)
	if dec == nil {
		return nil, &DecoderInitError{Codec: name}
	}
	ctx := astiav.AllocCodecContext(dec)
	if ctx == nil {
		return nil, &DecoderInitError{Codec: name}
	}
	return &ffmpegAudio{
		dec:       dec,
		ctx:       ctx,
		pkt:       astiav.AllocPacket(),
		frame:     astiav.AllocFrame(),
		converted: astiav.AllocFrame(),
		swr:       astiav.AllocSoftwareResampleContext(),
	}, nil
}

func (a *ffmpegAudio) SetConfig(data []byte) {
	if a.opened || len(data) == 0 {
		return
	}
	a.ctx.SetExtraData(append([]byte(nil), data...))
}

func (a *ffmpegAudio) open() error {
	if a.opened {
		return nil
	}
	if err := a.ctx.Open(a.dec, nil); err != nil {
		return &DecoderInitError{Codec: a.dec.Name(), Cause: err}
	}
	a.opened = true
	return nil
}

func (a *ffmpegAudio) Decode(data []byte) ([]float32, error) {
	if err := a.open(); err != nil {
		return nil, err
	}
	if err := a.pkt.FromData(data); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	err := a.ctx.SendPacket(a.pkt)
	a.pkt.Unref()
	if err != nil && !errors.Is(err, astiav.ErrEagain) {
		return nil, &DecodeError{Cause: err}
	}

	var samples []float32
	for {
		if err := a.ctx.ReceiveFrame(a.frame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return samples, nil
			}
			return samples, &DecodeError{Cause: err}
		}
		pcm, err := a.frameToFloat32(a.frame)
		a.frame.Unref()
		if err != nil {
			return samples, &DecodeError{Cause: err}
		}
		samples = append(samples, pcm...)
	}
}

// frameToFloat32 converts one decoded frame to interleaved float32, going
// through swresample so planar formats never leak into Go.
func (a *ffmpegAudio) frameToFloat32(src *astiav.Frame) ([]float32, error) {
	a.rate = src.SampleRate()
	a.channels = src.ChannelLayout().Channels()

	a.converted.SetChannelLayout(src.ChannelLayout())
	a.converted.SetSampleRate(src.SampleRate())
	a.converted.SetSampleFormat(astiav.SampleFormatFlt)
	a.converted.SetNbSamples(src.NbSamples())
	if err := a.converted.AllocBuffer(0); err != nil {
		return nil, err
	}
	defer a.converted.Unref()

	if err := a.swr.ConvertFrame(src, a.converted); err != nil {
		return nil, err
	}

	raw, err := a.converted.Data().Bytes(0)
	if err != nil {
		return nil, err
	}
	need := a.converted.NbSamples() * a.channels * 4
	if need > len(raw) {
		need = len(raw)
	}
	samples := make([]float32, 0, need/4)
	for i := 0; i+3 < need; i += 4 {
		samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(raw[i:])))
	}
	return samples, nil
}

func (a *ffmpegAudio) Format() (sampleRate, channels int, known bool) {
	return a.rate, a.channels, a.rate > 0
}

func (a *ffmpegAudio) Close() {
	if a.swr != nil {
		a.swr.Free()
		a.swr = nil
	}
	if a.converted != nil {
		a.converted.Free()
		a.converted = nil
	}
	if a.frame != nil {
		a.frame.Free()
		a.frame = nil
	}
	if a.pkt != nil {
		a.pkt.Free()
		a.pkt = nil
	}
	if a.ctx != nil {
		a.ctx.Free()
		a.ctx = nil
	}
}
