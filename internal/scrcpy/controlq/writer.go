package controlq

import (
	"io"
	"log/slog"
	"time"

	"github.com/droidcast/droidcast/internal/util"
)

const dequeuePoll = 100 * time.Millisecond

// Writer drains the queue onto one connection. The session passes the control
// socket when it exists, otherwise the video socket (best-effort fallback for
// video-only peers). A write error is fatal to the session: onError fires once
// and the loop exits.
type Writer struct {
	queue   *Queue
	conn    io.Writer
	onError func(error)
	done    chan struct{}
	log     *slog.Logger

	written uint64
}

func NewWriter(queue *Queue, conn io.Writer, onError func(error)) *Writer {
	if onError == nil {
		onError = func(error) {}
	}
	return &Writer{
		queue:   queue,
		conn:    conn,
		onError: onError,
		done:    make(chan struct{}),
		log:     util.ComponentLogger("control-writer"),
	}
}

// Done closes when the write loop has exited
func (w *Writer) Done() <-chan struct{} { return w.done }

// Written returns the number of messages sent
func (w *Writer) Written() uint64 { return w.written }

// Run drains the queue until it closes and empties, or a write fails
func (w *Writer) Run() {
	defer close(w.done)
	for {
		m, ok := w.queue.Dequeue(dequeuePoll)
		if !ok {
			if w.queue.Closed() {
				return
			}
			continue
		}
		if _, err := w.conn.Write(m.Serialize()); err != nil {
			w.log.Error("control write failed", "type", m.Type, "error", err)
			w.onError(err)
			return
		}
		w.written++
	}
}
