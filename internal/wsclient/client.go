package wsclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davidmehren/workadventure/internal/codec"
	"github.com/davidmehren/workadventure/internal/messages"
)

// ErrStaleConnection is reported when the gateway stopped pinging.
var ErrStaleConnection = errors.New("connection stale (no ping)")

// Client is one simulated browser connection.
type Client struct {
	cfg    Config
	logger *slog.Logger

	conn *websocket.Conn

	messages chan *messages.ServerMessage
	errors   chan error
	done     chan struct{}

	writeMu sync.Mutex

	mu         sync.RWMutex
	connected  bool
	lastPingAt time.Time
	closed     bool
}

func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan *messages.ServerMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the gateway. A refused upgrade returns the HTTP status in
// the error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, http.Header{})
	if err != nil {
		if resp != nil {
			return &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPingAt = time.Now()
	c.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		c.mu.Lock()
		c.lastPingAt = time.Now()
		c.mu.Unlock()

		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	go c.readLoop()
	if c.cfg.PingTimeout > 0 {
		go c.heartbeatLoop()
	}

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

// HandshakeError is a websocket upgrade refused by the gateway.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return "handshake failed with status " + http.StatusText(e.StatusCode) + ": " + e.Err.Error()
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Close sends a normal closure and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	close(c.done)

	if c.conn != nil {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return c.conn.Close()
	}
	return nil
}

// Send encodes msg into one binary frame.
func (c *Client) Send(msg *messages.ClientMessage) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	data, err := codec.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Messages returns the decoded server messages. It is closed when the
// connection ends.
func (c *Client) Messages() <-chan *messages.ServerMessage {
	return c.messages
}

// Errors returns the error that ended the connection. A close frame from
// the gateway arrives as a *websocket.CloseError.
func (c *Client) Errors() <-chan error {
	return c.errors
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.messages)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				select {
				case c.errors <- err:
				default:
				}
			}
			return
		}

		var msg messages.ServerMessage
		if err := codec.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}

		select {
		case c.messages <- &msg:
		case <-c.done:
			return
		}
	}
}

// heartbeatLoop reports a stale connection when the gateway stops pinging.
func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingTimeout / 3)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			lastPing := c.lastPingAt
			c.mu.RUnlock()

			if time.Since(lastPing) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", c.cfg.PingTimeout,
				)
				select {
				case c.errors <- ErrStaleConnection:
				default:
				}
				return
			}
		}
	}
}
