package demux

import (
	"io"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// videoMerger holds the latest codec config (SPS/PPS for H.264, VPS/SPS/PPS
// for H.265) and prepends it to the next media packet. The config packet is
// still emitted on its own so consumers that track parameter sets see it
// immediately; the merged copy is what makes the next keyframe decodable by
// a freshly opened decoder.
type videoMerger struct {
	config []byte
}

func (m *videoMerger) filter(p *protocol.Packet) *protocol.Packet {
	if p.IsConfig {
		m.config = append([]byte(nil), p.Data...)
		return p
	}
	if m.config != nil {
		merged := make([]byte, 0, len(m.config)+len(p.Data))
		merged = append(merged, m.config...)
		merged = append(merged, p.Data...)
		p.Data = merged
		m.config = nil
	}
	return p
}

// NewVideo builds a demuxer for the video socket. Annex-B codecs get the
// config merger; AV1 carries its sequence header in-band, so its packets pass
// through untouched.
func NewVideo(reader io.Reader, codecID uint32) *Demuxer {
	switch codecID {
	case protocol.CodecIDH264, protocol.CodecIDH265:
		m := &videoMerger{}
		return newDemuxer("video", reader, codecID, m.filter)
	default:
		return newDemuxer("video", reader, codecID, nil)
	}
}
