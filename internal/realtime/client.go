package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Dialer opens a WebSocket connection.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer dials with fasthttp/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ClientConfig identifies the session a Client authenticates as.
type ClientConfig struct {
	URL            string
	Token          string
	UserID         string
	IsAdmin        bool
	ReconnectDelay time.Duration
	// LastEventID seeds the replay cursor for the first connect.
	LastEventID string
}

// MessageHandler receives every frame the server sends.
type MessageHandler func(Message)

// Client keeps one propagation connection open, reconnecting after a fixed
// delay and resuming from the last event it saw.
type Client struct {
	cfg     ClientConfig
	dialer  Dialer
	handler MessageHandler
	logger  *zap.Logger

	mu          sync.Mutex
	state       State
	conn        Conn
	lastEventID string
	onState     func(State)

	writeMu sync.Mutex
}

// NewClient constructs a Client. A nil dialer uses WebsocketDialer.
func NewClient(cfg ClientConfig, dialer Dialer, handler MessageHandler, logger *zap.Logger) *Client {
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	if handler == nil {
		handler = func(Message) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Client{
		cfg:         cfg,
		dialer:      dialer,
		handler:     handler,
		logger:      logger,
		lastEventID: cfg.LastEventID,
	}
}

// OnStateChange registers fn to observe state transitions.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastEventID returns the replay cursor sent on the next AUTH.
func (c *Client) LastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

// Run connects and reconnects until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected, nil)
			return nil
		}

		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("propagation connection lost",
				zap.Error(err),
				zap.Duration("retry_in", c.cfg.ReconnectDelay))
		}

		select {
		case <-ctx.Done():
			c.setState(StateDisconnected, nil)
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	c.setState(StateConnecting, nil)

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, err := c.dialer.Dial(ctx, c.cfg.URL, header)
	if err != nil {
		c.setState(StateDisconnected, nil)
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer func() {
		c.setState(StateDisconnected, nil)
		_ = conn.Close()
	}()

	auth, err := NewMessage(MessageAuth, "", AuthPayload{
		UserID:      c.cfg.UserID,
		IsAdmin:     c.cfg.IsAdmin,
		LastEventID: c.LastEventID(),
	})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	err = writeJSON(conn, auth)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}
	c.setState(StateConnected, conn)
	c.logger.Info("propagation connected", zap.String("url", c.cfg.URL))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("discarding malformed frame", zap.Error(err))
			continue
		}
		c.track(msg)
		c.handler(msg)
	}
}

func (c *Client) track(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case msg.Type == MessageResync:
		c.lastEventID = ""
	case msg.ID != "":
		c.lastEventID = msg.ID
	}
}

// Send writes a frame. It fails with a transport error while disconnected;
// callers keep their local change and rely on the next refresh.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		c.logger.Warn("propagation send while disconnected", zap.String("type", string(msg.Type)))
		return errorutil.WrapCause(errorutil.ErrTransportFailure, errors.New("propagation channel not connected"))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := writeJSON(conn, msg); err != nil {
		return errorutil.WrapCause(errorutil.ErrTransportFailure, err)
	}
	return nil
}

func (c *Client) setState(state State, conn Conn) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.conn = conn
	fn := c.onState
	c.mu.Unlock()
	if changed && fn != nil {
		fn(state)
	}
}
