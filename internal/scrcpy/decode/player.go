package decode

import (
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"github.com/droidcast/droidcast/internal/util"
)

const playerFramesPerBuffer = 960 // 20 ms at 48 kHz

// Player plays float32 PCM chunks on the default output device. Chunks are
// queued shallowly and dropped when playback falls behind; live latency beats
// completeness here just like everywhere else in the pipeline.
type Player struct {
	stream   *portaudio.Stream
	buf      []float32
	channels int
	queue    chan []float32
	pending  []float32
	stop     chan struct{}
	done     chan struct{}
	closeMu  sync.Mutex
	closed   bool
	log      *slog.Logger

	dropped uint64
}

// NewPlayer opens and starts the default output stream
func NewPlayer(sampleRate, channels int) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize audio host")
	}
	buf := make([]float32, playerFramesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), playerFramesPerBuffer, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, errors.Wrap(err, "failed to open output stream")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, errors.Wrap(err, "failed to start output stream")
	}
	p := &Player{
		stream:   stream,
		buf:      buf,
		channels: channels,
		queue:    make(chan []float32, 8),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      util.ComponentLogger("audio-player"),
	}
	go p.loop()
	return p, nil
}

// WriteChunk queues PCM for playback. Encoded chunks and overflow are dropped.
func (p *Player) WriteChunk(c *AudioChunk) error {
	if len(c.PCM) == 0 {
		return nil
	}
	select {
	case p.queue <- c.PCM:
	default:
		p.dropped++
	}
	return nil
}

func (p *Player) loop() {
	defer close(p.done)
	for {
		if !p.fillBuffer() {
			return
		}
		if err := p.stream.Write(); err != nil {
			// Underflow is routine right after start; keep going
			p.log.Debug("output write", "error", err)
		}
	}
}

// fillBuffer assembles exactly one hardware buffer from queued chunks,
// padding with silence when the queue runs dry mid-buffer.
func (p *Player) fillBuffer() bool {
	n := 0
	for n < len(p.buf) {
		if len(p.pending) > 0 {
			copied := copy(p.buf[n:], p.pending)
			p.pending = p.pending[copied:]
			n += copied
			continue
		}
		if n == 0 {
			select {
			case <-p.stop:
				return false
			case p.pending = <-p.queue:
			}
			continue
		}
		select {
		case p.pending = <-p.queue:
		default:
			for ; n < len(p.buf); n++ {
				p.buf[n] = 0
			}
		}
	}
	return true
}

// Close stops playback and releases the audio host
func (p *Player) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.stop)
	// Stop unblocks a blocked stream.Write so the loop can exit
	err := p.stream.Stop()
	<-p.done
	if closeErr := p.stream.Close(); err == nil {
		err = closeErr
	}
	portaudio.Terminate()
	return err
}
