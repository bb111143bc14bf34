// Package decode turns demuxed packets into usable media: the video path
// decodes access units to RGB24 pictures through ffmpeg, the audio path
// produces interleaved float32 PCM. Decoded frames flow into a single-slot
// delay buffer (latest wins) and into any attached sinks; the compressed
// access units are teed separately for recorders and stream previews.
package decode

import "image"

// AccessUnit is one compressed video unit as it came off the wire. For
// H.264/H.265 the data is complete Annex-B (parameter sets prepended by the
// demuxer after config packets), so a unit flagged KeyFrame is independently
// decodable.
type AccessUnit struct {
	Data     []byte
	PTS      uint64
	KeyFrame bool
}

// Frame is one decoded video picture as tightly packed RGB24 rows. Width and
// height are the decoder's output geometry, so they track device rotation,
// not the session's original size.
type Frame struct {
	Data     []byte
	PTS      uint64
	KeyFrame bool
	Width    int
	Height   int
}

// Clone returns a deep copy. The decoder reuses buffers; consumers get copies.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c
}

// Image converts the frame to a stdlib RGBA image for encoding or inspection
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	src, dst := 0, 0
	for p := 0; p < f.Width*f.Height && src+2 < len(f.Data); p++ {
		img.Pix[dst] = f.Data[src]
		img.Pix[dst+1] = f.Data[src+1]
		img.Pix[dst+2] = f.Data[src+2]
		img.Pix[dst+3] = 0xFF
		src += 3
		dst += 4
	}
	return img
}

// AudioChunk is one unit of audio output. PCM carries the decoded samples;
// encoded codecs additionally keep their compressed payload in Packet for
// container recorders.
type AudioChunk struct {
	PTS    uint64
	Codec  uint32
	PCM    []float32
	Packet []byte
}

// IsPCM reports whether the chunk carries decoded samples
func (c *AudioChunk) IsPCM() bool { return len(c.PCM) > 0 }
