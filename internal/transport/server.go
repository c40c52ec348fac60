// Package transport wraps gorilla/websocket for the two transport roles
// spec.md §4.5/§4.7 need: a Gateway Server accepting many named
// connections, and a User Client holding one reconnecting connection to
// it. Both speak the framed envelope of spec.md §3/§6.
package transport

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ngee044/realtimechat/internal/envelope"
	"github.com/ngee044/realtimechat/internal/logging"
)

// ConnectionCallback fires once per connect/disconnect transition, the Go
// shape of received_connection(id, sub_id, condition).
type ConnectionCallback func(id, subID string, connected bool)

// MessageCallback fires once per framed message received on a connection.
type MessageCallback func(id, subID string, text, binary []byte)

// Server is the transport half of the Gateway Server role: it accepts
// websocket upgrades, identifies each connection by the id/sub_id query
// parameters carried on the handshake (the Go stand-in for the source's
// connection-key registration, since gorilla/websocket carries no
// built-in session identity), and frames every inbound/outbound payload
// through internal/envelope.
type Server struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[connKey]*websocket.Conn

	onConnect ConnectionCallback
	onMessage MessageCallback

	httpServer *http.Server
}

type connKey struct {
	id    string
	subID string
}

func NewServer(bufferSize int, onConnect ConnectionCallback, onMessage MessageCallback) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:     make(map[connKey]*websocket.Conn),
		onConnect: onConnect,
		onMessage: onMessage,
	}
}

// Start listens on addr and upgrades every request to /ws. It returns
// immediately; serving happens on a background goroutine, mirroring the
// source's NetworkServer::start returning once listening begins.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start transport server: %w", err)
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Errorf("transport server stopped: %v", err)
		}
	}()

	logging.Infof("transport server listening on %s", addr)
	return nil
}

// Handler returns the /ws upgrade endpoint as an http.Handler, usable
// standalone with httptest.NewServer for tests, or mounted into a larger
// mux in production.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	return mux
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	subID := r.URL.Query().Get("sub_id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Errorf("failed to upgrade connection for [%s,%s]: %v", id, subID, err)
		return
	}

	key := connKey{id: id, subID: subID}
	s.mu.Lock()
	s.conns[key] = conn
	s.mu.Unlock()

	if s.onConnect != nil {
		s.onConnect(id, subID, true)
	}

	s.readLoop(key, conn)
}

func (s *Server) readLoop(key connKey, conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, key)
		s.mu.Unlock()
		conn.Close()

		if s.onConnect != nil {
			s.onConnect(key.id, key.subID, false)
		}
	}()

	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}

		text, binary, err := envelope.Decode(frame)
		if err != nil {
			logging.Errorf("malformed frame from [%s,%s]: %v", key.id, key.subID, err)
			continue
		}

		if s.onMessage != nil {
			s.onMessage(key.id, key.subID, text, binary)
		}
	}
}

// SendTo delivers raw to exactly one connection, framed with no binary
// part. It is a no-op, not an error, if the session has disconnected.
func (s *Server) SendTo(id, subID string, raw []byte) error {
	s.mu.Lock()
	conn, ok := s.conns[connKey{id: id, subID: subID}]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.WriteMessage(websocket.BinaryMessage, envelope.Encode(raw, nil))
}

// SendAll implements broadcast.Sender: "send to empty id/sub_id" means
// fan out to every currently connected session.
func (s *Server) SendAll(raw []byte) error {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	frame := envelope.Encode(raw, nil)
	var firstErr error
	for _, c := range conns {
		if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ConnectionCount returns the number of sessions currently upgraded.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
