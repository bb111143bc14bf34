package decode

import (
	"encoding/binary"
	"math"
	"os"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/pkg/errors"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
	"github.com/droidcast/droidcast/internal/util"
)

// VideoRecorder writes the Annex-B elementary stream to a file, consuming
// compressed access units straight off the unit tee. Recording starts at the
// first keyframe so the file opens on a decodable unit; the merger guarantees
// that unit carries its parameter sets.
type VideoRecorder struct {
	mu      sync.Mutex
	file    *os.File
	started bool
	frames  uint64
}

// NewVideoRecorder opens (truncates) the target file
func NewVideoRecorder(path string) (*VideoRecorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create video record file")
	}
	return &VideoRecorder{file: file}, nil
}

func (r *VideoRecorder) WriteUnit(u *AccessUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return os.ErrClosed
	}
	if !r.started {
		if !u.KeyFrame {
			return nil
		}
		r.started = true
	}
	if _, err := r.file.Write(u.Data); err != nil {
		return err
	}
	r.frames++
	return nil
}

// Frames returns how many access units have been written
func (r *VideoRecorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *VideoRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// WAVRecorder writes float32 PCM chunks as an IEEE-float WAV file. The RIFF
// and data sizes are unknown until the end, so placeholders are written first
// and patched on Close.
type WAVRecorder struct {
	mu        sync.Mutex
	file      *os.File
	dataBytes uint32
}

const wavHeaderSize = 44

// NewWAVRecorder opens the target file and writes a provisional header
func NewWAVRecorder(path string, sampleRate, channels int) (*WAVRecorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create wav file")
	}
	if err := writeWAVHeader(file, sampleRate, channels, 0); err != nil {
		file.Close()
		return nil, err
	}
	return &WAVRecorder{file: file}, nil
}

func writeWAVHeader(file *os.File, sampleRate, channels int, dataBytes uint32) error {
	const bitsPerSample = 32
	blockAlign := channels * bitsPerSample / 8
	header := make([]byte, 0, wavHeaderSize)
	header = append(header, "RIFF"...)
	header = binary.LittleEndian.AppendUint32(header, 36+dataBytes)
	header = append(header, "WAVE"...)
	header = append(header, "fmt "...)
	header = binary.LittleEndian.AppendUint32(header, 16)
	header = binary.LittleEndian.AppendUint16(header, 3) // IEEE float
	header = binary.LittleEndian.AppendUint16(header, uint16(channels))
	header = binary.LittleEndian.AppendUint32(header, uint32(sampleRate))
	header = binary.LittleEndian.AppendUint32(header, uint32(sampleRate*blockAlign))
	header = binary.LittleEndian.AppendUint16(header, uint16(blockAlign))
	header = binary.LittleEndian.AppendUint16(header, bitsPerSample)
	header = append(header, "data"...)
	header = binary.LittleEndian.AppendUint32(header, dataBytes)

	if _, err := file.Seek(0, 0); err != nil {
		return err
	}
	_, err := file.Write(header)
	return err
}

func (r *WAVRecorder) WriteChunk(c *AudioChunk) error {
	if len(c.PCM) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return os.ErrClosed
	}
	buf := make([]byte, 0, len(c.PCM)*4)
	for _, sample := range c.PCM {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(sample))
	}
	if _, err := r.file.Write(buf); err != nil {
		return err
	}
	r.dataBytes += uint32(len(buf))
	return nil
}

// Close patches the header sizes and closes the file
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	// The format fields are already correct; rewriting the header with the
	// final data size patches both RIFF and data chunk lengths.
	sampleRate, channels := readBackFormat(r.file)
	err := writeWAVHeader(r.file, sampleRate, channels, r.dataBytes)
	if closeErr := r.file.Close(); err == nil {
		err = closeErr
	}
	r.file = nil
	return err
}

func readBackFormat(file *os.File) (sampleRate, channels int) {
	var buf [8]byte
	if _, err := file.ReadAt(buf[:], 22); err != nil {
		return DefaultSampleRate, DefaultChannels
	}
	channels = int(binary.LittleEndian.Uint16(buf[0:2]))
	sampleRate = int(binary.LittleEndian.Uint32(buf[2:6]))
	return sampleRate, channels
}


// WebMRecorder writes Opus packets into a WebM container; no transcode is
// needed, the encoded payload goes in as-is at a fixed 20 ms cadence.
type WebMRecorder struct {
	mu        sync.Mutex
	file      *os.File
	writer    webm.BlockWriteCloser
	timestamp time.Duration
	frames    uint64
}

// NewWebMRecorder opens the target file and writes the container header
func NewWebMRecorder(path string) (*WebMRecorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create webm file")
	}
	log := util.ComponentLogger("webm-recorder")
	writers, err := webm.NewSimpleBlockWriter(file, []webm.TrackEntry{
		{
			Name:            "Audio",
			TrackNumber:     1,
			TrackUID:        1,
			CodecID:         "A_OPUS",
			TrackType:       2,
			DefaultDuration: 20_000_000, // 20 ms Opus frames, in nanoseconds
			Audio: &webm.Audio{
				SamplingFrequency: float64(DefaultSampleRate),
				Channels:          uint64(DefaultChannels),
			},
		},
	}, mkvcore.WithOnFatalHandler(func(err error) {
		log.Warn("webm writer error", "error", err)
	}))
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "failed to initialize webm container")
	}
	return &WebMRecorder{file: file, writer: writers[0]}, nil
}

func (r *WebMRecorder) WriteChunk(c *AudioChunk) error {
	if c.Codec != protocol.CodecIDOPUS || len(c.Packet) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return os.ErrClosed
	}
	r.timestamp += 20 * time.Millisecond
	if _, err := r.writer.Write(true, int64(r.timestamp/time.Millisecond), c.Packet); err != nil {
		return err
	}
	r.frames++
	return nil
}

func (r *WebMRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return nil
	}
	err := r.writer.Close()
	r.writer = nil
	r.file = nil
	return err
}
