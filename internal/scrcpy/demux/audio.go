package demux

import (
	"io"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// NewAudio builds a demuxer for the audio socket. The device sends a 4-byte
// codec tag before the first packet; it is consumed here so the returned
// demuxer starts at a packet boundary.
func NewAudio(reader io.Reader) (*Demuxer, error) {
	codecID, err := protocol.ReadAudioCodecID(reader)
	if err != nil {
		return nil, err
	}
	return newDemuxer("audio", reader, codecID, nil), nil
}
