// Package opsocket owns the operator console's WebSocket connection to the
// chat server. It connects using gobwas/ws, identifies the operator through
// query parameters, runs a background read loop, and dispatches parsed server
// events to handlers registered per event type. Handlers are registered once,
// before Connect, and are never re-bound for the lifetime of the client.
package opsocket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/counseldesk/operator-console/internal/protocol"
)

// ErrNotConnected is returned by Send while the transport is down. Callers
// that must degrade to silent no-ops check for it explicitly.
var ErrNotConnected = errors.New("opsocket: not connected")

// Config holds the connection settings for the operator socket.
type Config struct {
	URL           string        // ws://host/socket
	OperatorID    string        // sent as the operatorId query parameter
	Role          string        // sent as the role query parameter
	DialTimeout   time.Duration // timeout for the WebSocket handshake
	ReconnectWait time.Duration // wait between reconnect attempts; 0 disables auto-reconnect
}

// DefaultConfig returns a Config with production defaults. Auto-reconnect is
// off by default; intervening events are lost across a disconnect gap, so a
// console that opts in must treat the server's chat_list_update full sync as
// the only recovery mechanism.
func DefaultConfig() Config {
	return Config{
		DialTimeout: 10 * time.Second,
	}
}

// EventHandler is the callback signature for handling a parsed server event.
// The msg parameter is the concrete struct returned by
// protocol.ParseServerEvent (e.g., protocol.NewMessageEvent).
type EventHandler func(msg interface{})

// Client is the single bidirectional connection an operator session owns.
type Client struct {
	config   Config
	handlers map[string]EventHandler

	onConnect    func()
	onDisconnect func()

	writeMu   sync.Mutex // serializes outbound frames
	connMu    sync.Mutex // guards conn swaps across reconnects
	conn      net.Conn
	connected atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Client for the given config. No connection is made until
// Connect is called.
func New(config Config) *Client {
	return &Client{
		config:   config,
		handlers: make(map[string]EventHandler),
		done:     make(chan struct{}),
	}
}

// On registers a handler for a server event type. Only one handler per type
// is supported; registering a second handler for the same type replaces the
// first. Must be called before Connect.
func (c *Client) On(eventType string, handler EventHandler) {
	c.handlers[eventType] = handler
}

// OnConnect registers a callback fired after every successful connection,
// including reconnects. Must be called before Connect.
func (c *Client) OnConnect(fn func()) {
	c.onConnect = fn
}

// OnDisconnect registers a callback fired when the connection drops for any
// reason other than Close. Must be called before Connect.
func (c *Client) OnDisconnect(fn func()) {
	c.onDisconnect = fn
}

// Connect dials the server and starts the background read loop. The operator
// identity travels in the URL query string per the server's contract.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)

	if c.onConnect != nil {
		c.onConnect()
	}

	go c.readLoop(conn)
	return nil
}

// dial performs one WebSocket handshake attempt.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("opsocket: invalid url %q: %w", c.config.URL, err)
	}
	q := u.Query()
	q.Set("operatorId", c.config.OperatorID)
	q.Set("role", c.config.Role)
	u.RawQuery = q.Encode()

	if c.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()
	}

	conn, _, _, err := ws.Dial(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("opsocket: dial %s: %w", c.config.URL, err)
	}
	return conn, nil
}

// Send builds a client event and writes it as a text frame. Returns
// ErrNotConnected while the transport is down.
func (c *Client) Send(eventType string, payload interface{}) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	data, err := protocol.NewClientEvent(eventType, payload)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wsutil.WriteClientMessage(conn, ws.OpText, data); err != nil {
		return fmt.Errorf("opsocket: write %s: %w", eventType, err)
	}
	return nil
}

// Connected reports whether the transport currently has a live connection.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close tears the connection down exactly once. Once the read loop observes
// the closed state no further handlers fire. Safe to call multiple times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.connected.Store(false)
		c.connMu.Lock()
		if c.conn != nil {
			err = c.conn.Close()
		}
		c.connMu.Unlock()
	})
	return err
}

// readLoop reads server frames until the connection drops or the client is
// closed. On an unexpected drop it marks the client disconnected and, if
// configured, keeps redialing until it succeeds or Close is called.
func (c *Client) readLoop(conn net.Conn) {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			select {
			case <-c.done:
				// Intentional close; stay silent.
				return
			default:
			}

			c.connected.Store(false)
			log.Printf("[opsocket] connection lost operator=%s: %v", c.config.OperatorID, err)
			if c.onDisconnect != nil {
				c.onDisconnect()
			}
			conn.Close()

			if c.config.ReconnectWait > 0 {
				c.reconnectLoop()
			}
			return
		}

		c.dispatch(data)
	}
}

// dispatch parses one server frame and routes it to the registered handler.
func (c *Client) dispatch(data []byte) {
	eventType, msg, err := protocol.ParseServerEvent(data)
	if err != nil {
		log.Printf("[opsocket] dropping unparseable event operator=%s: %v", c.config.OperatorID, err)
		return
	}

	handler, ok := c.handlers[eventType]
	if !ok {
		log.Printf("[opsocket] no handler for event type=%q", eventType)
		return
	}
	handler(msg)
}

// reconnectLoop redials with a fixed wait until success or Close. Events sent
// by the server during the gap are lost; recovery relies on the full
// chat_list_update sync the server pushes to a freshly joined operator.
func (c *Client) reconnectLoop() {
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(c.config.ReconnectWait):
		}

		conn, err := c.dial(context.Background())
		if err != nil {
			log.Printf("[opsocket] reconnect attempt %d failed: %v", attempt, err)
			continue
		}

		log.Printf("[opsocket] reconnected operator=%s after %d attempt(s)", c.config.OperatorID, attempt)
		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()
		c.connected.Store(true)

		if c.onConnect != nil {
			c.onConnect()
		}
		go c.readLoop(conn)
		return
	}
}
