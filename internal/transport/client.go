package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ngee044/realtimechat/internal/envelope"
	"github.com/ngee044/realtimechat/internal/logging"
)

// ClientMessageCallback fires once per framed message received from the
// server this client is connected to.
type ClientMessageCallback func(text, binary []byte)

// Client is the User Client role's transport: a single connection to a
// Gateway Server that reconnects on its own, per spec.md §4.7's
// "reconnect handled by the transport".
type Client struct {
	url        string
	onMsg      ClientMessageCallback
	onConnect  func()
	retryAfter time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewClient(url string, onMsg ClientMessageCallback) *Client {
	return &Client{url: url, onMsg: onMsg, retryAfter: 2 * time.Second}
}

// OnConnect registers a callback fired every time (re)connection
// succeeds — the hook the User Client role uses to re-send its
// request_client_status_update heartbeat after a reconnect.
func (c *Client) OnConnect(fn func()) {
	c.onConnect = fn
}

// Run connects and reconnects in a loop until Close is called. It blocks
// the calling goroutine; callers invoke it as `go client.Run()`.
func (c *Client) Run() {
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			logging.Errorf("failed to connect to %s: %v, retrying in %s", c.url, err, c.retryAfter)
			time.Sleep(c.retryAfter)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		logging.Infof("connected to %s", c.url)
		if c.onConnect != nil {
			c.onConnect()
		}
		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		closed = c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		time.Sleep(c.retryAfter)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}

		text, binary, err := envelope.Decode(frame)
		if err != nil {
			logging.Errorf("malformed frame from server: %v", err)
			continue
		}

		if c.onMsg != nil {
			c.onMsg(text, binary)
		}
	}
}

// Send frames text (plus optional binary) and writes it to the current
// connection. It fails if the client is currently between connections.
func (c *Client) Send(text, binary []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("client is not connected")
	}
	return conn.WriteMessage(websocket.BinaryMessage, envelope.Encode(text, binary))
}

// Close stops the reconnect loop and closes the active connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
