// Package demux pumps length-prefixed media packets off the device sockets
// and hands them to the decode layer over bounded channels. One demuxer owns
// one socket; it never blocks the socket on a slow consumer.
package demux

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
	"github.com/droidcast/droidcast/internal/util"
)

const (
	// Depth of the packet channel toward the decoder
	channelDepth = 3
	// How long to wait for the decoder before dropping a packet
	putTimeout = time.Second
)

// Stats is a point-in-time snapshot of a demuxer's counters
type Stats struct {
	BytesReceived   uint64
	PacketsParsed   uint64
	ParseErrors     uint64
	IncompleteReads uint64
	BytesDropped    uint64
	PacketsDropped  uint64
}

// deadlineReader is the slice of net.Conn the demuxer needs to bound reads
type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// Demuxer reads packets from one media socket. The filter hook lets the video
// variant merge config packets into the following media packet.
type Demuxer struct {
	name        string
	codec       uint32
	reader      io.Reader
	filter      func(*protocol.Packet) *protocol.Packet
	out         chan *protocol.Packet
	paused      atomic.Bool
	stopping    atomic.Bool
	readTimeout time.Duration
	done        chan struct{}
	log         *slog.Logger

	bytesReceived   atomic.Uint64
	packetsParsed   atomic.Uint64
	parseErrors     atomic.Uint64
	incompleteReads atomic.Uint64
	bytesDropped    atomic.Uint64
	packetsDropped  atomic.Uint64
}

func newDemuxer(name string, reader io.Reader, codec uint32, filter func(*protocol.Packet) *protocol.Packet) *Demuxer {
	if filter == nil {
		filter = func(p *protocol.Packet) *protocol.Packet { return p }
	}
	return &Demuxer{
		name:   name,
		codec:  codec,
		reader: reader,
		filter: filter,
		out:    make(chan *protocol.Packet, channelDepth),
		done:   make(chan struct{}),
		log:    util.ComponentLogger("demux-" + name),
	}
}

// Codec returns the stream's codec identifier
func (d *Demuxer) Codec() uint32 { return d.codec }

// Packets is the channel of parsed packets. It closes when the stream ends.
func (d *Demuxer) Packets() <-chan *protocol.Packet { return d.out }

// Done closes when the read loop has exited
func (d *Demuxer) Done() <-chan struct{} { return d.done }

// SetPaused switches drain mode. While paused the demuxer keeps reading the
// socket, keeps any codec config it sees, and discards everything else.
func (d *Demuxer) SetPaused(paused bool) {
	if d.paused.Swap(paused) != paused {
		d.log.Debug("pause state changed", "paused", paused)
	}
}

// Paused reports whether drain mode is active
func (d *Demuxer) Paused() bool { return d.paused.Load() }

// SetReadTimeout bounds every socket read. Must be set before Run; a reader
// without deadlines (tests, pipes) ignores it.
func (d *Demuxer) SetReadTimeout(timeout time.Duration) { d.readTimeout = timeout }

// Stop asks the read loop to exit at the next deadline expiry. Closing the
// socket remains the immediate way out; Stop covers readers that outlive it.
func (d *Demuxer) Stop() { d.stopping.Store(true) }

// Stats snapshots the counters
func (d *Demuxer) Stats() Stats {
	return Stats{
		BytesReceived:   d.bytesReceived.Load(),
		PacketsParsed:   d.packetsParsed.Load(),
		ParseErrors:     d.parseErrors.Load(),
		IncompleteReads: d.incompleteReads.Load(),
		BytesDropped:    d.bytesDropped.Load(),
		PacketsDropped:  d.packetsDropped.Load(),
	}
}

// Run reads packets until the stream ends or breaks. It owns the output
// channel and closes it on exit.
func (d *Demuxer) Run() {
	defer close(d.done)
	defer close(d.out)

	timer := time.NewTimer(putTimeout)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	deadliner, hasDeadline := d.reader.(deadlineReader)
	for {
		if d.stopping.Load() {
			return
		}
		if hasDeadline && d.readTimeout > 0 {
			deadliner.SetReadDeadline(time.Now().Add(d.readTimeout))
		}
		packet, err := protocol.ReadPacket(d.reader, d.codec)
		if err != nil {
			// A deadline expiring between packets just means the screen is
			// idle; one expiring mid-packet is a stall.
			if isIdleTimeout(err) && !d.stopping.Load() {
				continue
			}
			d.recordReadError(err)
			return
		}
		d.bytesReceived.Add(protocol.PacketHeaderSize + uint64(len(packet.Data)))
		d.packetsParsed.Add(1)

		// The filter must see config packets even in drain mode so that
		// stream state survives a pause.
		packet = d.filter(packet)
		if packet == nil {
			continue
		}

		if d.paused.Load() {
			d.bytesDropped.Add(uint64(len(packet.Data)))
			continue
		}

		select {
		case d.out <- packet:
		default:
			timer.Reset(putTimeout)
			select {
			case d.out <- packet:
				if !timer.Stop() {
					<-timer.C
				}
			case <-timer.C:
				d.packetsDropped.Add(1)
				d.log.Warn("decoder stalled, dropping packet", "size", len(packet.Data))
			}
		}
	}
}

// isIdleTimeout reports a read deadline that expired with no bytes consumed.
// ReadPacket wraps mid-packet failures in IncompleteReadError, so a bare
// timeout can only come from the gap between packets.
func isIdleTimeout(err error) bool {
	var incomplete *protocol.IncompleteReadError
	if errors.As(err, &incomplete) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (d *Demuxer) recordReadError(err error) {
	if err == io.EOF {
		d.log.Info("stream ended")
		return
	}
	switch err.(type) {
	case *protocol.IncompleteReadError:
		d.incompleteReads.Add(1)
		d.log.Warn("stream truncated mid-packet", "error", err)
	case *protocol.ProtocolError:
		d.parseErrors.Add(1)
		d.log.Error("stream desynchronized", "error", err)
	default:
		d.log.Warn("stream read failed", "error", err)
	}
}
