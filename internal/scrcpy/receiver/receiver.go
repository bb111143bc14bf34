// Package receiver reads device messages off the control socket: clipboard
// updates, clipboard acks, UHID output reports, and app-list replies.
package receiver

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

const readChunkSize = 4096

// Callbacks delivers parsed device messages. Nil fields are skipped. They are
// invoked from the receiver goroutine; implementations must not block.
type Callbacks struct {
	OnClipboard    func(text string)
	OnClipboardAck func(sequence uint64)
	OnUhidOutput   func(id uint16, data []byte)
	OnAppList      func(apps []protocol.AppInfo)
}

// Receiver owns the control socket's read side. It accumulates bytes in a
// growing buffer, parses as many complete records as possible after each read,
// and moves any tail to the front.
type Receiver struct {
	conn        io.Reader
	callbacks   Callbacks
	readTimeout time.Duration
	stopping    atomic.Bool
	done        chan struct{}
	log         *slog.Logger

	messagesParsed atomic.Uint64
	buf            []byte
}

// deadlineReader is the slice of net.Conn needed to bound reads
type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

func New(conn io.Reader, callbacks Callbacks) *Receiver {
	return &Receiver{
		conn:      conn,
		callbacks: callbacks,
		done:      make(chan struct{}),
		log:       util.ComponentLogger("receiver"),
	}
}

// Done closes when the read loop exits
func (r *Receiver) Done() <-chan struct{} { return r.done }

// SetReadTimeout bounds every socket read. Must be set before Run.
func (r *Receiver) SetReadTimeout(timeout time.Duration) { r.readTimeout = timeout }

// Stop asks the read loop to exit at the next deadline expiry
func (r *Receiver) Stop() { r.stopping.Store(true) }

// MessagesParsed returns the number of complete records handled
func (r *Receiver) MessagesParsed() uint64 { return r.messagesParsed.Load() }

// Run reads until the socket closes or errors. Device messages are sparse, so
// reads are bounded by the configured timeout and idle expiries just loop; the
// raw Read never splits records, the drain step reassembles them.
func (r *Receiver) Run() {
	defer close(r.done)
	chunk := make([]byte, readChunkSize)
	deadliner, hasDeadline := r.conn.(deadlineReader)
	for {
		if r.stopping.Load() {
			return
		}
		if hasDeadline && r.readTimeout > 0 {
			deadliner.SetReadDeadline(time.Now().Add(r.readTimeout))
		}
		n, err := r.conn.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
			r.drain()
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && !r.stopping.Load() {
				continue
			}
			if err != io.EOF {
				r.log.Debug("control socket read ended", "error", err)
			}
			return
		}
	}
}

// drain parses complete records from the front of the buffer. On an unknown
// type byte the whole buffer is discarded: the stream has lost sync and
// resuming at the next read is the only recovery.
func (r *Receiver) drain() {
	for len(r.buf) > 0 {
		msg, consumed, err := protocol.ParseDeviceMessage(r.buf)
		if err != nil {
			r.log.Warn("unrecognized device message, discarding buffer",
				"size", len(r.buf), "error", err)
			r.buf = r.buf[:0]
			return
		}
		if consumed == 0 {
			break
		}
		r.buf = r.buf[:copy(r.buf, r.buf[consumed:])]
		r.messagesParsed.Add(1)
		r.dispatch(msg)
	}
}

func (r *Receiver) dispatch(msg *protocol.DeviceMessage) {
	switch msg.Type {
	case protocol.DeviceMsgTypeClipboard:
		if r.callbacks.OnClipboard != nil {
			r.callbacks.OnClipboard(msg.ClipboardText)
		}
	case protocol.DeviceMsgTypeAckClipboard:
		if r.callbacks.OnClipboardAck != nil {
			r.callbacks.OnClipboardAck(msg.Sequence)
		}
	case protocol.DeviceMsgTypeUhidOutput:
		if r.callbacks.OnUhidOutput != nil {
			r.callbacks.OnUhidOutput(msg.UhidID, msg.UhidData)
		}
	case protocol.DeviceMsgTypeAppList:
		if r.callbacks.OnAppList != nil {
			r.callbacks.OnAppList(msg.Apps)
		}
	}
}
