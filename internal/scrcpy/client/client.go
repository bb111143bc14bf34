// Package client is the public façade over a scrcpy session: connection
// lifecycle, input injection, clipboard, screenshots, recording, and app
// listing. One Client drives at most one session at a time.
package client

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/droidcast/droidcast/internal/adb"
	"github.com/droidcast/droidcast/internal/scrcpy/controlq"
	"github.com/droidcast/droidcast/internal/scrcpy/decode"
	"github.com/droidcast/droidcast/internal/scrcpy/demux"
	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
	"github.com/droidcast/droidcast/internal/scrcpy/receiver"
	"github.com/droidcast/droidcast/internal/scrcpy/session"
	"github.com/droidcast/droidcast/internal/util"
)

// State is a read-consistent snapshot of the session
type State struct {
	Connected   bool
	DeviceName  string
	Serial      string
	Width       int
	Height      int
	VideoCodec  uint32
	ForwardMode bool
	Tcpip       bool
	LazyDecode  bool
}

// Client owns the session and every per-session task
type Client struct {
	adbDriver     *adb.Adb
	hostClipboard HostClipboard
	log           *slog.Logger

	mu   sync.Mutex
	sess *session.Session

	videoDemux *demux.Demuxer
	audioDemux *demux.Demuxer
	videoDec   *decode.VideoDecoder
	audioDec   *decode.AudioDecoder
	queue      *controlq.Queue
	writer     *controlq.Writer
	recv       *receiver.Receiver

	clipboardSeq    uint64
	deviceClipboard string
	appListCh       chan []protocol.AppInfo

	lastScreenshot time.Time
	lazyDecode     bool
	videoDisabled  bool
	audioDisabled  bool

	audioRecorder interface{ Close() error }
	audioSink     decode.SampleSink
	audioRecTimer *time.Timer
	videoRecorder *decode.VideoRecorder
	player        *decode.Player
	monitorStop   chan struct{}
}

// New builds a client over the given adb driver. The host clipboard may be
// nil; clipboard sync operations then report ErrBadArgument.
func New(driver *adb.Adb, hostClipboard HostClipboard) *Client {
	return &Client{
		adbDriver:     driver,
		hostClipboard: hostClipboard,
		log:           util.ComponentLogger("client"),
	}
}

// Connect builds a session from cfg and starts the pipeline tasks
func (c *Client) Connect(cfg session.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return ErrAlreadyConnected
	}

	sessionID := uuid.NewString()
	c.log.Info("Connecting", "session_id", sessionID, "serial", cfg.Serial)

	builder := session.NewBuilder(c.adbDriver)
	sess, err := builder.Build(cfg)
	if err != nil {
		return err
	}
	c.sess = sess
	c.lazyDecode = cfg.LazyDecode
	c.appListCh = make(chan []protocol.AppInfo, 1)

	if sess.VideoConn != nil {
		c.videoDemux = demux.NewVideo(sess.VideoConn, sess.VideoCodec)
		if cfg.SocketTimeout > 0 {
			c.videoDemux.SetReadTimeout(cfg.SocketTimeout)
		}
		go c.videoDemux.Run()
		videoDec, err := decode.NewVideoDecoder(c.videoDemux.Packets(), sess.VideoCodec, sess.Width, sess.Height)
		if err != nil {
			c.teardownLocked()
			return err
		}
		c.videoDec = videoDec
		go c.videoDec.Run()
	}

	if sess.AudioConn != nil {
		audioDemux, err := demux.NewAudio(sess.AudioConn)
		if err != nil {
			c.teardownLocked()
			return err
		}
		c.audioDemux = audioDemux
		if cfg.SocketTimeout > 0 {
			c.audioDemux.SetReadTimeout(cfg.SocketTimeout)
		}
		go c.audioDemux.Run()
		audioDec, err := decode.NewAudioDecoder(audioDemux.Packets(), audioDemux.Codec())
		if err != nil {
			c.teardownLocked()
			return err
		}
		c.audioDec = audioDec
		go c.audioDec.Run()
	}

	c.queue = controlq.New()
	writeConn := sess.ControlConn
	if writeConn == nil {
		writeConn = sess.VideoConn
	}
	if writeConn != nil {
		c.writer = controlq.NewWriter(c.queue, writeConn, func(error) {
			// A control write failure is fatal to the session
			go c.Disconnect()
		})
		go c.writer.Run()
	}

	if sess.ControlConn != nil {
		c.recv = receiver.New(sess.ControlConn, receiver.Callbacks{
			OnClipboard:    c.onDeviceClipboard,
			OnClipboardAck: c.onClipboardAck,
			OnAppList:      c.onAppList,
		})
		if cfg.SocketTimeout > 0 {
			c.recv.SetReadTimeout(cfg.SocketTimeout)
		}
		go c.recv.Run()
	}

	if c.lazyDecode {
		c.setVideoPausedLocked(true)
		c.setAudioPausedLocked(true)
	}

	if cfg.RecordFile != "" && c.videoDec != nil {
		if err := c.startVideoRecordingLocked(cfg.RecordFile, cfg.RecordFormat); err != nil {
			c.log.Warn("Video recording unavailable", "error", err)
		}
	}

	if cfg.ClipboardAutosync && c.hostClipboard != nil && sess.ControlConn != nil {
		c.startClipboardMonitorLocked()
	}

	return nil
}

// Disconnect tears the session down. Idempotent: extra calls return nil.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	c.teardownLocked()
	return nil
}

func (c *Client) teardownLocked() {
	if c.monitorStop != nil {
		close(c.monitorStop)
		c.monitorStop = nil
	}
	c.stopRecordersLocked()
	if c.player != nil {
		c.player.Close()
		c.player = nil
	}
	if c.queue != nil {
		c.queue.Close()
	}
	if c.videoDemux != nil {
		c.videoDemux.Stop()
	}
	if c.audioDemux != nil {
		c.audioDemux.Stop()
	}
	if c.recv != nil {
		c.recv.Stop()
	}
	if c.videoDec != nil {
		c.videoDec.Stop()
	}
	if c.audioDec != nil {
		c.audioDec.Stop()
	}
	// Closing sockets unblocks the demuxer and receiver loops
	c.sess.Close()
	if c.writer != nil {
		<-c.writer.Done()
	}
	if c.videoDemux != nil {
		<-c.videoDemux.Done()
	}
	if c.videoDec != nil {
		<-c.videoDec.Done()
	}
	if c.audioDemux != nil {
		<-c.audioDemux.Done()
	}
	if c.audioDec != nil {
		<-c.audioDec.Done()
	}
	if c.recv != nil {
		<-c.recv.Done()
	}

	c.sess = nil
	c.videoDemux, c.audioDemux = nil, nil
	c.videoDec, c.audioDec = nil, nil
	c.queue, c.writer, c.recv = nil, nil, nil
	c.videoDisabled, c.audioDisabled = false, false
	c.log.Info("Disconnected")
}

// IsConnected reports whether a session is live
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// StateSnapshot returns a consistent view of the session state
func (c *Client) StateSnapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return State{}
	}
	width, height := c.sess.Width, c.sess.Height
	if c.videoDec != nil {
		width, height = c.videoDec.Dimensions()
	}
	return State{
		Connected:   true,
		DeviceName:  c.sess.DeviceName,
		Serial:      c.sess.Device.Serial,
		Width:       width,
		Height:      height,
		VideoCodec:  c.sess.VideoCodec,
		ForwardMode: c.sess.ForwardMode,
		Tcpip:       c.sess.TcpipConnected,
		LazyDecode:  c.lazyDecode,
	}
}

// DeviceName returns the name read during the metadata handshake
func (c *Client) DeviceName() string { return c.StateSnapshot().DeviceName }

// DeviceSize returns the current display dimensions
func (c *Client) DeviceSize() (int, int) {
	s := c.StateSnapshot()
	return s.Width, s.Height
}

// VideoBuffer exposes the delay buffer for external renderers; nil without a
// video stream. Renderers hold this reference only, never the decoder.
func (c *Client) VideoBuffer() *decode.DelayBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.videoDec == nil {
		return nil
	}
	return c.videoDec.Buffer()
}

// VideoSinks exposes the decoded-frame tee for renderers
func (c *Client) VideoSinks() *decode.FrameTee {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.videoDec == nil {
		return nil
	}
	return c.videoDec.Sinks()
}

// VideoUnits exposes the compressed access-unit tee for stream recorders and
// previews
func (c *Client) VideoUnits() *decode.UnitTee {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.videoDec == nil {
		return nil
	}
	return c.videoDec.Units()
}

// enqueue pushes a control message; best-effort per the drop policy
func (c *Client) enqueue(m *protocol.ControlMessage) error {
	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()
	if queue == nil {
		return ErrNotConnected
	}
	if err := queue.Enqueue(m); err != nil {
		c.log.Debug("control enqueue failed", "type", m.Type, "error", err)
		return err
	}
	return nil
}

// EnableVideo resumes the video demuxer and decoder
func (c *Client) EnableVideo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNotConnected
	}
	if c.videoDec == nil {
		return ErrNoVideo
	}
	c.videoDisabled = false
	if !c.lazyDecode {
		c.setVideoPausedLocked(false)
	}
	return nil
}

// DisableVideo pauses the video pipeline; the demuxer keeps draining
func (c *Client) DisableVideo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNotConnected
	}
	if c.videoDec == nil {
		return ErrNoVideo
	}
	c.videoDisabled = true
	c.setVideoPausedLocked(true)
	return nil
}

// EnableAudio resumes the audio pipeline
func (c *Client) EnableAudio() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNotConnected
	}
	if c.audioDec == nil {
		return ErrNoAudio
	}
	c.audioDisabled = false
	if !c.lazyDecode {
		c.setAudioPausedLocked(false)
	}
	return nil
}

// DisableAudio pauses the audio pipeline; the demuxer keeps draining
func (c *Client) DisableAudio() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNotConnected
	}
	if c.audioDec == nil {
		return ErrNoAudio
	}
	c.audioDisabled = true
	c.setAudioPausedLocked(true)
	return nil
}

// SetLazyDecode toggles the energy-saving mode at runtime
func (c *Client) SetLazyDecode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lazyDecode = enabled
	if c.sess == nil {
		return
	}
	if enabled {
		c.setVideoPausedLocked(true)
		c.setAudioPausedLocked(true)
	} else {
		if !c.videoDisabled {
			c.setVideoPausedLocked(false)
		}
		if !c.audioDisabled {
			c.setAudioPausedLocked(false)
		}
	}
}

// Demuxer pause keeps the socket drained so the device encoder never stalls
func (c *Client) setVideoPausedLocked(paused bool) {
	if c.videoDemux != nil {
		c.videoDemux.SetPaused(paused)
	}
	if c.videoDec != nil {
		c.videoDec.SetPaused(paused)
	}
}

func (c *Client) setAudioPausedLocked(paused bool) {
	if c.audioDemux != nil {
		c.audioDemux.SetPaused(paused)
	}
	if c.audioDec != nil {
		c.audioDec.SetPaused(paused)
	}
}
