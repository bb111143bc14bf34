// Package session negotiates one scrcpy connection: device selection, server
// push and launch, tunnel setup, ordered socket establishment, and metadata
// handshake. The result is a Session owning the raw sockets; demuxing and
// control live in their own packages.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"time"

	"github.com/pkg/errors"

	"github.com/droidcast/droidcast/internal/adb"
	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
	"github.com/droidcast/droidcast/internal/util"
)

const (
	forwardConnectRetries  = 100
	forwardConnectInterval = 100 * time.Millisecond
)

// Config enumerates the session options
type Config struct {
	Serial              string
	Video               bool
	Audio               bool
	Control             bool
	VideoCodec          string
	AudioCodec          string
	Bitrate             int
	MaxFPS              int
	MaxSize             int
	StayAwake           bool
	ClipboardAutosync   bool
	LazyDecode          bool
	Tcpip               bool
	TcpipIP             string
	TcpipPort           int
	TcpipAutoDisconnect bool
	ForceForward        bool
	RecordFile          string
	RecordFormat        string
	PortStart           int
	PortEnd             int
	ServerBlob          string
	ServerVersion       string
	ConnectionTimeout   time.Duration
	SocketTimeout       time.Duration
}

// Session is one live connection to the on-device server
type Session struct {
	Config      Config
	Device      adb.Device
	DeviceName  string
	Width       int
	Height      int
	VideoCodec  uint32
	SCID        uint32
	SocketName  string
	ForwardMode bool

	VideoConn   net.Conn
	AudioConn   net.Conn
	ControlConn net.Conn

	TcpipConnected bool
	TcpipIP        string
	TcpipPort      int
	TcpipSerial    string

	adb       *adb.Adb
	tunnels   []*adb.Tunnel
	listeners []net.Listener
	serverCmd *exec.Cmd
	log       *slog.Logger
}

// Builder runs the ordered connection steps
type Builder struct {
	adb *adb.Adb
	log *slog.Logger
}

func NewBuilder(driver *adb.Adb) *Builder {
	return &Builder{adb: driver, log: util.ComponentLogger("session")}
}

// Build executes the full connect sequence. Any failure tears down everything
// opened so far and returns the causal error.
func (b *Builder) Build(cfg Config) (*Session, error) {
	s := &Session{Config: cfg, adb: b.adb, log: b.log}

	devices, err := b.adb.ListDevices()
	if err != nil {
		return nil, err
	}
	device, err := adb.SelectDevice(devices, cfg.Serial)
	if err != nil {
		return nil, err
	}
	s.Device = device
	b.log.Info("Device selected", "serial", device.Serial, "kind", device.Kind, "model", device.Model)

	// Wireless path is additive: failures leave the USB session intact
	if cfg.Tcpip && device.Kind != adb.DeviceKindTCPIP {
		if err := b.enableParallelTcpip(s); err != nil {
			b.log.Warn("TCP/IP parallel path unavailable, continuing on USB", "error", err)
		}
	}

	if err := b.connect(s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (b *Builder) connect(s *Session) error {
	cfg := s.Config

	if err := b.adb.PushServer(s.Device.Serial, cfg.ServerBlob); err != nil {
		return err
	}

	s.SCID = newSCID()
	s.SocketName = fmt.Sprintf("scrcpy_%08x", s.SCID)

	s.ForwardMode = cfg.ForceForward
	if !s.ForwardMode {
		if err := b.setupReverse(s); err != nil {
			b.log.Warn("Reverse tunnel setup failed, falling back to forward mode", "error", err)
			s.closeListeners()
			s.removeTunnels()
			s.ForwardMode = true
		}
	}
	if s.ForwardMode {
		tunnel, err := b.adb.CreateTunnel(s.Device.Serial, s.SocketName, cfg.PortStart, cfg.PortEnd, true)
		if err != nil {
			return errors.Wrap(err, "failed to create tunnel")
		}
		s.tunnels = append(s.tunnels, tunnel)
	}

	params := &ServerParams{
		SCID:              fmt.Sprintf("%08x", s.SCID),
		Video:             cfg.Video,
		Audio:             cfg.Audio,
		Control:           cfg.Control,
		TunnelForward:     s.ForwardMode,
		ClipboardAutosync: cfg.ClipboardAutosync,
		VideoCodec:        cfg.VideoCodec,
		AudioCodec:        cfg.AudioCodec,
		VideoBitRate:      cfg.Bitrate,
		MaxFPS:            cfg.MaxFPS,
		MaxSize:           cfg.MaxSize,
		StayAwake:         cfg.StayAwake,
	}
	if err := params.Validate(); err != nil {
		return err
	}
	cmd, err := b.adb.StartServer(s.Device.Serial, cfg.ServerVersion, params.Args(), true, cfg.ConnectionTimeout)
	if err != nil {
		return err
	}
	s.serverCmd = cmd

	if s.ForwardMode {
		if err := b.connectForward(s); err != nil {
			return err
		}
	} else {
		if err := b.acceptReverse(s); err != nil {
			return err
		}
	}

	return b.readMetadata(s)
}

// setupReverse binds one listener per enabled stream on consecutive local
// ports and registers the matching reverse entries. Audio and control use
// derived socket names so the server's connections land on the right ports.
func (b *Builder) setupReverse(s *Session) error {
	cfg := s.Config
	start, end := portRange(cfg)

	names := s.streamSocketNames()
	for port := start; port+len(names)-1 <= end; port++ {
		listeners, ok := bindConsecutive(port, len(names))
		if !ok {
			continue
		}
		for i, name := range names {
			if err := b.adb.AddReverse(s.Device.Serial, name, port+i); err != nil {
				for _, l := range listeners {
					l.Close()
				}
				return err
			}
			s.tunnels = append(s.tunnels, &adb.Tunnel{
				Enabled: true, Forward: false, LocalPort: port + i, SocketName: name,
			})
		}
		s.listeners = listeners
		b.log.Info("Reverse tunnels registered", "base", s.SocketName, "port", port, "streams", len(names))
		return nil
	}
	return errors.Errorf("no %d consecutive free ports in %d-%d", len(names), start, end)
}

// streamSocketNames returns the socket name per enabled stream in connect
// order: base for the first, then derived suffixes.
func (s *Session) streamSocketNames() []string {
	var names []string
	if s.Config.Video {
		names = append(names, s.SocketName)
	}
	if s.Config.Audio {
		names = append(names, s.suffixedName("_audio", len(names) == 0))
	}
	if s.Config.Control {
		names = append(names, s.suffixedName("_control", len(names) == 0))
	}
	return names
}

func (s *Session) suffixedName(suffix string, first bool) string {
	if first {
		return s.SocketName
	}
	return s.SocketName + suffix
}

func bindConsecutive(start, count int) ([]net.Listener, bool) {
	var listeners []net.Listener
	for i := 0; i < count; i++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", start+i))
		if err != nil {
			for _, open := range listeners {
				open.Close()
			}
			return nil, false
		}
		listeners = append(listeners, l)
	}
	return listeners, true
}

func portRange(cfg Config) (int, int) {
	start, end := cfg.PortStart, cfg.PortEnd
	if start <= 0 {
		start = adb.DefaultPortRangeStart
	}
	if end < start {
		end = adb.DefaultPortRangeEnd
	}
	return start, end
}

// connectForward dials the tunnel port once per enabled stream, in the strict
// video, audio, control order. The server may not be listening yet, so the
// first dial retries; the first established socket carries a dummy byte that
// must be consumed (zero bytes means the server refused the connection).
func (b *Builder) connectForward(s *Session) error {
	port := s.tunnels[0].LocalPort
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	first := true
	dial := func(stream string) (net.Conn, error) {
		var conn net.Conn
		var err error
		retries := 1
		if first {
			retries = forwardConnectRetries
		}
		for attempt := 0; attempt < retries; attempt++ {
			conn, err = net.DialTimeout("tcp", addr, s.socketTimeout())
			if err == nil {
				break
			}
			time.Sleep(forwardConnectInterval)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to connect %s stream", stream)
		}
		if first {
			first = false
			var dummy [1]byte
			if err := protocol.ReadExact(conn, dummy[:]); err != nil {
				conn.Close()
				return nil, &protocol.ProtocolError{Reason: "server refused connection (no dummy byte)"}
			}
		}
		return conn, nil
	}

	return s.establishStreams(dial)
}

// acceptReverse accepts one connection per listener in stream order
func (b *Builder) acceptReverse(s *Session) error {
	index := 0
	accept := func(stream string) (net.Conn, error) {
		l := s.listeners[index]
		index++
		if tcp, ok := l.(*net.TCPListener); ok {
			tcp.SetDeadline(time.Now().Add(s.connectionTimeout()))
		}
		conn, err := l.Accept()
		if err != nil {
			return nil, errors.Wrapf(err, "timed out waiting for %s stream", stream)
		}
		return conn, nil
	}
	return s.establishStreams(accept)
}

// establishStreams runs the per-stream establishment callback in the required
// order and disables Nagle on the latency-critical sockets.
func (s *Session) establishStreams(establish func(stream string) (net.Conn, error)) error {
	if s.Config.Video {
		conn, err := establish("video")
		if err != nil {
			return err
		}
		s.VideoConn = conn
	}
	if s.Config.Audio {
		conn, err := establish("audio")
		if err != nil {
			return err
		}
		setNoDelay(conn)
		s.AudioConn = conn
	}
	if s.Config.Control {
		conn, err := establish("control")
		if err != nil {
			return err
		}
		setNoDelay(conn)
		s.ControlConn = conn
	}
	return nil
}

func setNoDelay(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
}

// readMetadata reads the device name from the first socket, plus codec id and
// dimensions when that socket is the video stream.
func (b *Builder) readMetadata(s *Session) error {
	first := s.firstConn()
	if first == nil {
		return &protocol.ProtocolError{Reason: "no streams enabled"}
	}
	meta, err := protocol.ReadDeviceMeta(first, first == s.VideoConn)
	if err != nil {
		return err
	}
	s.DeviceName = meta.DeviceName
	if first == s.VideoConn {
		s.VideoCodec = meta.CodecID
		s.Width = int(meta.Width)
		s.Height = int(meta.Height)
	}
	b.log.Info("Session established",
		"device", s.DeviceName,
		"codec", protocol.CodecName(s.VideoCodec),
		"width", s.Width,
		"height", s.Height,
		"forward", s.ForwardMode)
	return nil
}

func (s *Session) firstConn() net.Conn {
	switch {
	case s.VideoConn != nil:
		return s.VideoConn
	case s.AudioConn != nil:
		return s.AudioConn
	default:
		return s.ControlConn
	}
}

func (s *Session) connectionTimeout() time.Duration {
	if s.Config.ConnectionTimeout > 0 {
		return s.Config.ConnectionTimeout
	}
	return 10 * time.Second
}

func (s *Session) socketTimeout() time.Duration {
	if s.Config.SocketTimeout > 0 {
		return s.Config.SocketTimeout
	}
	return 5 * time.Second
}

// ActiveSerial returns the serial adb commands should target: the wireless
// serial once the TCP/IP route is up, otherwise the USB one. The wireless
// route is the one guaranteed to survive an unplugged cable.
func (s *Session) ActiveSerial() string {
	if s.TcpipConnected && s.TcpipSerial != "" {
		return s.TcpipSerial
	}
	return s.Device.Serial
}

// Close tears the session down: sockets, tunnels, the on-device server, and
// optionally the TCP/IP route. Safe to call more than once.
func (s *Session) Close() {
	for _, conn := range []net.Conn{s.VideoConn, s.AudioConn, s.ControlConn} {
		if conn != nil {
			conn.Close()
		}
	}
	s.VideoConn, s.AudioConn, s.ControlConn = nil, nil, nil
	s.closeListeners()
	s.removeTunnels()

	if s.adb != nil {
		s.adb.KillServer(s.ActiveSerial())
		if s.TcpipConnected && s.Config.TcpipAutoDisconnect {
			s.adb.DisconnectTcpip(s.TcpipIP, s.TcpipPort)
			s.TcpipConnected = false
		}
	}
}

func (s *Session) closeListeners() {
	for _, l := range s.listeners {
		l.Close()
	}
	s.listeners = nil
}

func (s *Session) removeTunnels() {
	if s.adb != nil {
		for _, tunnel := range s.tunnels {
			// Tunnels were registered on the USB transport; fall back to the
			// wireless serial in case that transport is already gone.
			if err := s.adb.RemoveTunnel(s.Device.Serial, tunnel); err != nil {
				if active := s.ActiveSerial(); active != s.Device.Serial {
					s.adb.RemoveTunnel(active, tunnel)
				}
			}
		}
	}
	s.tunnels = nil
}

// newSCID draws a uniform 31-bit connection id
func newSCID() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return uint32(time.Now().UnixNano()) & 0x7FFFFFFF
	}
	return binary.BigEndian.Uint32(buf[:]) & 0x7FFFFFFF
}
