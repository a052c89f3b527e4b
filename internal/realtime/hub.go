package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/events"
	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

const (
	defaultAuthTimeout  = 10 * time.Second
	defaultSessionCheck = 30 * time.Second
)

// ComplaintRegistry is the set of registry operations a client may trigger.
type ComplaintRegistry interface {
	Create(ctx context.Context, submitter *domain.User, fields domain.ComplaintFields) (*domain.Complaint, error)
	UpdateStatus(ctx context.Context, actor *domain.User, id string, status domain.ComplaintStatus, notes *string) (*domain.Complaint, error)
	Delete(ctx context.Context, actor *domain.User, id string) error
}

// SessionChecker resolves a session id to a live session.
type SessionChecker interface {
	CurrentSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// FrameValidator checks a raw inbound frame against the wire schema.
type FrameValidator interface {
	ValidateFrame(raw []byte) error
}

// HubConfig tunes per-connection limits.
type HubConfig struct {
	SendBuffer       int
	InboundPerSecond float64
	InboundBurst     int
	AuthTimeout      time.Duration
	// SessionCheck is how often a connected client's session is re-resolved.
	SessionCheck time.Duration
}

// HubDependencies bundles collaborators for the hub.
type HubDependencies struct {
	Dispatcher events.Dispatcher
	Complaints ComplaintRegistry
	Validator  FrameValidator
	Sessions   SessionChecker
	Logger     *zap.Logger
	Config     HubConfig
}

// Hub fans registry events out to authenticated WebSocket clients and routes
// their change frames through the registry.
type Hub struct {
	dispatcher events.Dispatcher
	complaints ComplaintRegistry
	validator  FrameValidator
	sessions   SessionChecker
	logger     *zap.Logger
	cfg        HubConfig

	mu          sync.RWMutex
	clients     map[*hubClient]struct{}
	closed      bool
	unsubscribe func()
}

// NewHub creates a hub subscribed to every dispatcher event.
func NewHub(deps HubDependencies) *Hub {
	cfg := deps.Config
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.InboundPerSecond <= 0 {
		cfg.InboundPerSecond = 5
	}
	if cfg.InboundBurst <= 0 {
		cfg.InboundBurst = 10
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	if cfg.SessionCheck <= 0 {
		cfg.SessionCheck = defaultSessionCheck
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Hub{
		dispatcher: deps.Dispatcher,
		complaints: deps.Complaints,
		validator:  deps.Validator,
		sessions:   deps.Sessions,
		logger:     logger,
		cfg:        cfg,
		clients:    make(map[*hubClient]struct{}),
	}
	h.unsubscribe = deps.Dispatcher.Subscribe(h.broadcast)
	return h
}

// ClientCount reports connected, authenticated clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and stops receiving events.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.unsubscribe()
	for _, c := range clients {
		c.close()
	}
}

// Serve runs one connection for session until it closes, the session ends,
// or ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, conn Conn, session domain.Session) error {
	defer conn.Close()

	user := session.User
	auth, err := h.handshake(conn, user)
	if err != nil {
		return err
	}

	c := newHubClient(conn, session.ID, user, h.cfg)
	if !h.register(c) {
		return errors.New("realtime: hub closed")
	}
	defer h.unregister(c)

	go c.writeLoop(h.logger)
	go h.watch(ctx, c)

	h.catchUp(ctx, c, auth.LastEventID)
	h.logger.Info("realtime client connected",
		zap.String("user_id", user.ID),
		zap.Bool("is_admin", user.IsAdmin),
		zap.String("last_event_id", auth.LastEventID))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.close()
			if c.isRevoked() {
				return errorutil.Wrap(errorutil.ErrNotAuthenticated, "session ended")
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.isClosed() {
				return nil
			}
			return err
		}
		h.handleFrame(ctx, c, raw)
	}
}

// watch closes c when ctx ends and re-resolves its session periodically.
func (h *Hub) watch(ctx context.Context, c *hubClient) {
	var tick <-chan time.Time
	if h.sessions != nil {
		ticker := time.NewTicker(h.cfg.SessionCheck)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case <-c.done:
			return
		case <-tick:
			if err := h.checkSession(ctx, c); errors.Is(err, errorutil.ErrNotAuthenticated) {
				tick = nil
			}
		}
	}
}

// checkSession re-resolves the client's session. A session that is gone or
// expired expels the client and yields ErrNotAuthenticated; lookup failures
// are returned as-is and leave the connection open.
func (h *Hub) checkSession(ctx context.Context, c *hubClient) error {
	if h.sessions == nil {
		return nil
	}
	_, err := h.sessions.CurrentSession(ctx, c.sessionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errorutil.ErrNotAuthenticated):
		h.logger.Info("realtime session ended; disconnecting",
			zap.String("user_id", c.user.ID),
			zap.String("session_id", c.sessionID))
		c.expel(errorutil.ErrNotAuthenticated.Code, "session ended", h.logger)
		return errorutil.ErrNotAuthenticated
	default:
		h.logger.Warn("session lookup failed", zap.String("session_id", c.sessionID), zap.Error(err))
		return err
	}
}

func (h *Hub) handshake(conn Conn, user domain.User) (*AuthPayload, error) {
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.AuthTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	reject := func(code, message string) (*AuthPayload, error) {
		if msg, err := NewMessage(MessageError, "", ErrorPayload{Code: code, Message: message}); err == nil {
			_ = writeJSON(conn, msg)
		}
		return nil, errorutil.Wrap(errorutil.ErrNotAuthenticated, message)
	}

	if h.validator != nil {
		if err := h.validator.ValidateFrame(raw); err != nil {
			return reject("VALIDATION_FAILED", err.Error())
		}
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != MessageAuth {
		return reject(errorutil.ErrNotAuthenticated.Code, "first frame must be AUTH")
	}
	var auth AuthPayload
	if err := json.Unmarshal(msg.Payload, &auth); err != nil {
		return reject(errorutil.ErrNotAuthenticated.Code, "malformed AUTH payload")
	}
	if auth.UserID != user.ID || auth.IsAdmin != user.IsAdmin {
		return reject(errorutil.ErrNotAuthenticated.Code, "AUTH does not match session")
	}
	return &auth, nil
}

// catchUp replays events after cursor, then releases live events queued meanwhile.
func (h *Hub) catchUp(ctx context.Context, c *hubClient, cursor string) {
	replay, err := h.dispatcher.Since(ctx, cursor)
	var prefix []Message
	switch {
	case errors.Is(err, events.ErrCursorExpired):
		if msg, encErr := NewMessage(MessageResync, "", ResyncPayload{Reason: "cursor expired"}); encErr == nil {
			prefix = append(prefix, msg)
		}
	case err != nil:
		h.logger.Warn("replay failed", zap.String("cursor", cursor), zap.Error(err))
		if msg, encErr := NewMessage(MessageResync, "", ResyncPayload{Reason: "replay unavailable"}); encErr == nil {
			prefix = append(prefix, msg)
		}
	}
	for _, e := range replay {
		if visible(c.user, e) {
			prefix = append(prefix, MessageFromEvent(e))
		}
	}
	c.activate(prefix, h.logger)
}

func (h *Hub) broadcast(_ context.Context, e events.Event) error {
	h.mu.RLock()
	targets := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		if visible(c.user, e) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	msg := MessageFromEvent(e)
	for _, c := range targets {
		c.enqueue(msg, h.logger)
	}
	return nil
}

func (h *Hub) handleFrame(ctx context.Context, c *hubClient, raw []byte) {
	if !c.limiter.Allow() {
		c.sendError("RATE_LIMITED", "too many frames", h.logger)
		return
	}
	if h.validator != nil {
		if err := h.validator.ValidateFrame(raw); err != nil {
			c.sendError("VALIDATION_FAILED", err.Error(), h.logger)
			return
		}
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("VALIDATION_FAILED", "malformed frame", h.logger)
		return
	}
	if err := h.checkSession(ctx, c); err != nil {
		if !errors.Is(err, errorutil.ErrNotAuthenticated) {
			de := errorutil.ToDomainError(err)
			c.sendError(de.Code, de.Message, h.logger)
		}
		return
	}

	user := c.user
	var err error
	switch msg.Type {
	case MessageComplaintAdded:
		var submission ComplaintSubmission
		if err = json.Unmarshal(msg.Payload, &submission); err == nil {
			_, err = h.complaints.Create(ctx, &user, submission.Fields())
		}
	case MessageComplaintUpdated:
		var update events.ComplaintUpdatedPayload
		if err = json.Unmarshal(msg.Payload, &update); err == nil {
			_, err = h.complaints.UpdateStatus(ctx, &user, update.ID, update.Status, update.AdminNotes)
		}
	case MessageComplaintDeleted:
		var target events.IDPayload
		if err = json.Unmarshal(msg.Payload, &target); err == nil {
			err = h.complaints.Delete(ctx, &user, target.ID)
		}
	default:
		c.sendError("UNSUPPORTED", "unsupported frame type "+string(msg.Type), h.logger)
		return
	}

	if err != nil {
		de := errorutil.ToDomainError(err)
		h.logger.Debug("client frame rejected",
			zap.String("user_id", user.ID),
			zap.String("type", string(msg.Type)),
			zap.Error(err))
		c.sendError(de.Code, de.Message, h.logger)
	}
}

func (h *Hub) register(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// visible reports whether user may observe e. Complaint events reach the
// administrator and the owning citizen; announcement events reach everyone.
func visible(user domain.User, e events.Event) bool {
	switch {
	case e.Type.IsAnnouncement():
		return true
	case e.Type.IsComplaint():
		return user.IsAdmin || (e.OwnerID != "" && e.OwnerID == user.ID)
	}
	return user.IsAdmin
}

// hubClient is one authenticated connection. Frames are queued on send and
// written by writeLoop; a full queue disconnects the client. A nil frame on
// send closes the connection once everything before it is written.
type hubClient struct {
	conn      Conn
	sessionID string
	user      domain.User
	send    chan []byte
	limiter *rate.Limiter
	done    chan struct{}
	once    sync.Once

	mu       sync.Mutex
	ready    bool
	revoked  bool
	pending  []Message
	replayed map[string]struct{}
}

func newHubClient(conn Conn, sessionID string, user domain.User, cfg HubConfig) *hubClient {
	return &hubClient{
		conn:      conn,
		sessionID: sessionID,
		user:      user,
		send:    make(chan []byte, cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(cfg.InboundPerSecond), cfg.InboundBurst),
		done:    make(chan struct{}),
	}
}

func (c *hubClient) activate(prefix []Message, logger *zap.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked {
		c.pending = nil
		return
	}

	c.replayed = make(map[string]struct{}, len(prefix))
	for _, msg := range prefix {
		if msg.ID != "" {
			c.replayed[msg.ID] = struct{}{}
		}
		c.push(msg, logger)
	}
	for _, msg := range c.pending {
		if _, dup := c.replayed[msg.ID]; dup {
			continue
		}
		c.push(msg, logger)
	}
	c.pending = nil
	c.ready = true
}

func (c *hubClient) enqueue(msg Message, logger *zap.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked {
		return
	}
	if !c.ready {
		c.pending = append(c.pending, msg)
		return
	}
	if _, dup := c.replayed[msg.ID]; dup {
		return
	}
	c.push(msg, logger)
}

// push must be called with c.mu held.
func (c *hubClient) push(msg Message, logger *zap.Logger) {
	if c.isClosed() {
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		logger.Error("encode frame", zap.Error(err))
		return
	}
	select {
	case c.send <- raw:
	default:
		logger.Warn("realtime client too slow; disconnecting", zap.String("user_id", c.user.ID))
		c.close()
	}
}

func (c *hubClient) sendError(code, message string, logger *zap.Logger) {
	msg, err := NewMessage(MessageError, "", ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.push(msg, logger)
}

// expel sends a final ERROR frame, stops event delivery and closes the
// connection after the frame is written.
func (c *hubClient) expel(code, message string, logger *zap.Logger) {
	msg, err := NewMessage(MessageError, "", ErrorPayload{Code: code, Message: message})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked {
		return
	}
	c.revoked = true
	c.pending = nil
	if err == nil {
		c.push(msg, logger)
	}
	if c.isClosed() {
		return
	}
	select {
	case c.send <- nil:
	default:
		c.close()
	}
}

func (c *hubClient) isRevoked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked
}

func (c *hubClient) writeLoop(logger *zap.Logger) {
	for {
		select {
		case <-c.done:
			return
		case raw := <-c.send:
			if raw == nil {
				c.close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				logger.Debug("realtime write failed", zap.String("user_id", c.user.ID), zap.Error(err))
				c.close()
				return
			}
		}
	}
}

func (c *hubClient) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
