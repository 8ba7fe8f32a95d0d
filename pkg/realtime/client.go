// Package realtime implements the WebSocket sync client: session lifecycle,
// heartbeat, viewport subscriptions and message dispatch.
//
// The session state machine is
//
//	StateDisconnected -> StateConnecting (Connect called)
//	StateConnecting   -> StateOpen          (dial succeeded)
//	StateConnecting   -> StateDisconnected  (dial failed)
//	StateOpen         -> StateDisconnected  (Close called, or read error)
//
// There is no automatic reconnection: after an unexpected close the client
// lands in StateDisconnected and the caller decides whether to call Connect
// again on the same client. Tracked viewports survive a reconnect and are
// re-requested once the new session opens.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LokeshNardil/annotation-b-f/internal/codec"
	"github.com/LokeshNardil/annotation-b-f/internal/rand"
	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
	"github.com/LokeshNardil/annotation-b-f/pkg/auth"
	"github.com/LokeshNardil/annotation-b-f/pkg/logger"
)

// State of a sync session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

var (
	ErrAlreadyConnected = errors.New("sync client is already connected or connecting")
	ErrNotOpen          = errors.New("sync client is not open")
)

// DefaultHeartbeat is the presence ping interval; each tick also reflushes
// any queued viewport subscriptions.
const DefaultHeartbeat = 15 * time.Second

// DefaultDialer mirrors the gorilla default dialer.
var DefaultDialer = &websocket.Dialer{
	Proxy:            websocket.DefaultDialer.Proxy,
	HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
}

// Options tunes a Client; zero values get defaults.
type Options struct {
	Handler   Handler
	Logger    logger.Logger
	Heartbeat time.Duration
	Dialer    *websocket.Dialer
}

// Client is one sync session per (project, credential) pair.
type Client struct {
	baseURL  string
	creds    auth.Credentials
	identity auth.Identity

	handler   Handler
	log       logger.Logger
	wire      codec.Codec
	dialer    *websocket.Dialer
	heartbeat time.Duration

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	closeCh   chan struct{}
	sessionID string

	// dialGen is bumped on every Connect attempt; a dial that finishes
	// after Close (or after a newer attempt) is discarded by comparing it.
	dialGen int

	// tracked is the set of subscribed viewport (profile) ids; queue holds
	// the ids whose annotation:list request has not been delivered yet.
	tracked map[string]struct{}
	queue   []string
}

// NewClient builds a client for the given server base URL ("ws://host" or
// "wss://host"). The local user identity is decoded, unverified, from the
// bearer token; a token without an identity is rejected up front since the
// server would close the session anyway.
func NewClient(baseURL string, creds auth.Credentials, opts Options) (*Client, error) {
	identity, err := auth.DecodeIdentity(creds.Token)
	if err != nil {
		return nil, err
	}
	if opts.Handler == nil {
		return nil, errors.New("realtime: a Handler is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.Dialer == nil {
		opts.Dialer = DefaultDialer
	}
	return &Client{
		baseURL:   baseURL,
		creds:     creds,
		identity:  identity,
		handler:   opts.Handler,
		log:       opts.Logger,
		wire:      codec.JSON{},
		dialer:    opts.Dialer,
		heartbeat: opts.Heartbeat,
		state:     StateDisconnected,
		tracked:   make(map[string]struct{}),
	}, nil
}

// UserID is the locally decoded user id; inbound frames about this id are
// self echoes and are dropped.
func (c *Client) UserID() string { return c.identity.UserID }

// UserName is the display name decoded from the token.
func (c *Client) UserName() string { return c.identity.Name }

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL returns the session address: the path encodes the project id and the
// query string carries the bearer token.
func (c *Client) URL() string {
	return fmt.Sprintf("%s/ws/projects/%s?token=%s",
		c.baseURL, url.PathEscape(c.creds.ProjectID), url.QueryEscape(c.creds.Token))
}

// Connect dials the session. It fails with ErrAlreadyConnected unless the
// client is disconnected. On success the read loop and heartbeat start and
// queued viewport subscriptions are flushed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.dialGen++
	gen := c.dialGen
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, c.URL(), nil)
	if err != nil {
		c.mu.Lock()
		if c.state == StateConnecting && c.dialGen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		c.log.Error("sync dial failed", "url", c.baseURL, "error", err)
		return err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	if c.state != StateConnecting || c.dialGen != gen {
		// Close ran while the dial was in flight; abandon the connection.
		c.mu.Unlock()
		conn.Close()
		return ErrNotOpen
	}
	c.conn = conn
	c.closeCh = make(chan struct{})
	c.state = StateOpen
	c.sessionID = rand.String(8)
	// Every tracked viewport is re-requested on a fresh session.
	c.queue = c.queue[:0]
	for id := range c.tracked {
		c.queue = append(c.queue, id)
	}
	closeCh := c.closeCh
	sid := c.sessionID
	c.mu.Unlock()

	c.log.Info("sync session open",
		"project", c.creds.ProjectID, "user", c.identity.UserID, "session", sid)

	go c.readLoop(conn, closeCh)
	go c.heartbeatLoop(closeCh)

	c.flushQueue()
	return nil
}

// Close tears the session down: the heartbeat stops, the connection closes
// and the subscription queue is cleared. No messages are sent after Close.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateConnecting {
		// The in-flight Connect sees the state change and abandons its
		// connection instead of opening the session.
		c.state = StateDisconnected
		c.queue = nil
		c.mu.Unlock()
		return nil
	}
	if c.state != StateOpen {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	close(c.closeCh)
	c.conn = nil
	c.queue = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	// Best effort: the session is considered gone either way.
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// TrackViewport subscribes to the annotations of a parent profile. Already
// tracked ids are a no-op. The annotation:list request goes out immediately
// when the session is open, otherwise it queues and is flushed when the
// session opens and on every heartbeat tick.
func (c *Client) TrackViewport(id string) {
	c.mu.Lock()
	if _, ok := c.tracked[id]; ok {
		c.mu.Unlock()
		return
	}
	c.tracked[id] = struct{}{}
	c.queue = append(c.queue, id)
	c.mu.Unlock()

	c.flushQueue()
}

// TrackedViewports returns the subscribed viewport ids.
func (c *Client) TrackedViewports() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.tracked))
	for id := range c.tracked {
		out = append(out, id)
	}
	return out
}

// SendCursor broadcasts the local pointer position.
func (c *Client) SendCursor(cur CursorPayload) error {
	return c.send(outbound{Type: TypeCursorUpdate, Payload: cur})
}

// SendSelection broadcasts the local selection.
func (c *Client) SendSelection(annotationID, imageID string) error {
	return c.send(outbound{Type: TypeSelectionUpdate, Payload: SelectionPayload{
		AnnotationID: annotationID,
		ImageID:      imageID,
	}})
}

// SendSelectionClear broadcasts that the local selection was emptied.
func (c *Client) SendSelectionClear() error {
	return c.send(outbound{Type: TypeSelectionClear})
}

// SendCreate submits a local create; the annotation carries its version.
func (c *Client) SendCreate(a *annotation.Annotation) error {
	return c.send(outbound{Type: TypeAnnotationCreate, Payload: a})
}

// SendUpdate submits a local update; the annotation carries its version.
func (c *Client) SendUpdate(a *annotation.Annotation) error {
	return c.send(outbound{Type: TypeAnnotationUpdate, Payload: a})
}

// SendDelete submits a versioned delete.
func (c *Client) SendDelete(id string, version int64) error {
	return c.send(outbound{Type: TypeAnnotationDelete, Payload: DeletePayload{ID: id, Version: version}})
}

func (c *Client) send(v any) error {
	data, err := c.wire.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen || c.conn == nil {
		return ErrNotOpen
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// flushQueue sends the pending annotation:list requests; ids whose write
// fails stay queued for the next heartbeat tick.
func (c *Client) flushQueue() {
	c.mu.Lock()
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	var kept []string
	for i, id := range pending {
		err := c.send(outbound{Type: TypeAnnotationList, Payload: ListPayload{ViewportID: id}})
		if err != nil {
			kept = append(kept, pending[i:]...)
			break
		}
	}
	if len(kept) > 0 {
		c.mu.Lock()
		if c.state != StateDisconnected {
			c.queue = append(kept, c.queue...)
		}
		c.mu.Unlock()
	}
}

func (c *Client) heartbeatLoop(closeCh chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-closeCh:
			return
		case <-ticker.C:
			if err := c.send(outbound{Type: TypePresencePing}); err != nil {
				c.log.Debug("heartbeat skipped", "error", err)
			}
			c.flushQueue()
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, closeCh chan struct{}) {
	for {
		select {
		case <-closeCh:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			// Only tear down the session this loop belongs to; a stale
			// loop from a previous session must not touch a fresh one.
			if c.state == StateOpen && c.conn == conn {
				c.state = StateDisconnected
				c.conn = nil
				c.queue = nil
				select {
				case <-c.closeCh:
				default:
					close(c.closeCh)
				}
				c.log.Error("sync connection lost", "error", err)
			}
			c.mu.Unlock()
			return
		}
		c.dispatch(data)
	}
}

// dispatch decodes one server frame and routes it. A frame that fails to
// parse is logged and skipped; it never tears the session down. Frames
// whose embedded user id equals the local user id are self echoes and are
// dropped.
func (c *Client) dispatch(data []byte) {
	var env Envelope
	if err := c.wire.Unmarshal(data, &env); err != nil {
		c.log.Error("undecodable sync frame", "error", err)
		return
	}

	if env.User != nil && env.User.ID == c.identity.UserID {
		return
	}

	switch env.Type {
	case TypePresenceJoin:
		if env.User != nil {
			c.handler.HandlePresenceJoin(*env.User)
		}
	case TypePresenceLeave:
		if env.User != nil {
			c.handler.HandlePresenceLeave(*env.User)
		}
	case TypeCursorUpdate:
		if env.User == nil {
			return
		}
		var cur CursorPayload
		if err := c.wire.Unmarshal(env.Payload, &cur); err != nil {
			c.log.Error("undecodable cursor payload", "error", err)
			return
		}
		c.handler.HandleCursor(*env.User, cur)
	case TypeSelectionUpdate:
		if env.User != nil {
			c.handler.HandleSelection(*env.User, env.SelectionID)
		}
	case TypeSelectionClear:
		if env.User != nil {
			c.handler.HandleSelectionClear(*env.User)
		}
	case TypeAnnotationList:
		c.handler.HandleAnnotationList(env.ViewportID, env.Annotations)
	case TypeAnnotationCreated, TypeAnnotationUpdated, TypeAnnotationConflict:
		// A conflict is not an error: it is the authority instructing us to
		// overwrite our copy with its state, same as any update.
		if env.Annotation != nil {
			c.handler.HandleAnnotationUpsert(env.Annotation)
		}
	case TypeAnnotationDeleted:
		if env.Annotation != nil {
			c.handler.HandleAnnotationDelete(env.Annotation)
		}
	case TypeAck:
		c.log.Debug("mutation acknowledged", "event", env.Event)
	case TypeError:
		c.log.Error("server rejected event", "event", env.Event, "message", env.Message)
		c.handler.HandleProtocolError(env.Event, env.Message)
	default:
		c.log.Debug("unknown sync frame", "type", env.Type)
	}
}
