// Package preview serves the live H.264 elementary stream to websocket
// clients, one binary message per access unit. It exists for quick visual
// checks (pipe into a browser-side decoder or ffplay via websocat), not as a
// production transport.
package preview

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/droidcast/droidcast/internal/scrcpy/decode"
	"github.com/droidcast/droidcast/internal/util"
)

const clientQueueDepth = 8

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Preview is a local debugging endpoint
	CheckOrigin: func(*http.Request) bool { return true },
}

type previewClient struct {
	conn    *websocket.Conn
	send    chan []byte
	waitKey bool
}

// Server broadcasts compressed access units to all connected websocket
// clients. It implements decode.UnitSink and attaches to the unit tee.
type Server struct {
	addr string
	log  *slog.Logger

	mu      sync.Mutex
	clients map[*previewClient]struct{}
	httpSrv *http.Server
}

func NewServer(addr string) *Server {
	return &Server{
		addr:    addr,
		clients: make(map[*previewClient]struct{}),
		log:     util.ComponentLogger("preview"),
	}
}

// Start begins listening; it returns immediately and serves in background
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)

	s.httpSrv = &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("preview server failed", "error", err)
		}
	}()
	s.log.Info("Preview endpoint listening", "addr", s.addr, "path", "/stream")
	return nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	// Late joiners must start on a keyframe to be decodable
	client := &previewClient{
		conn:    conn,
		send:    make(chan []byte, clientQueueDepth),
		waitKey: true,
	}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.log.Info("Preview client connected", "remote", conn.RemoteAddr().String(), "clients", count)

	go s.writeLoop(client)

	// Discard inbound messages; a read error means the client left
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.dropClient(client)
}

func (s *Server) writeLoop(client *previewClient) {
	for data := range client.send {
		if err := client.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			s.dropClient(client)
			return
		}
	}
	client.conn.Close()
}

func (s *Server) dropClient(client *previewClient) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
	s.mu.Unlock()
}

// WriteUnit broadcasts one access unit. A slow client's queue overflow
// drops the unit for that client and re-arms its keyframe wait.
func (s *Server) WriteUnit(u *decode.AccessUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		if client.waitKey {
			if !u.KeyFrame {
				continue
			}
			client.waitKey = false
		}
		select {
		case client.send <- u.Data:
		default:
			client.waitKey = true
		}
	}
	return nil
}

// ClientCount returns the number of connected preview clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown closes the listener and disconnects every client
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
	}
	s.mu.Unlock()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
