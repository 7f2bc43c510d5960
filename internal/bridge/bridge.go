package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/companion/conversation"
	"github.com/BaSui01/companion/flow"
	"github.com/BaSui01/companion/internal/metrics"
	"github.com/BaSui01/companion/types"
)

// Session is the orchestrator surface the bridge drives.
type Session interface {
	Subscribe(l flow.Listener) (unsubscribe func())
	Status() flow.Status
	Snapshot() conversation.Snapshot
	Initialize(ctx context.Context, opts flow.InitOptions) error
	ForceNewConversation(ctx context.Context, opts flow.InitOptions) error
	HandleUserMessage(ctx context.Context, text string) error
	HandleUserActivity(ctx context.Context, md types.Metadata) error
	HandleButtonClick(ctx context.Context, identifier string) error
}

var _ Session = (*flow.Orchestrator)(nil)

// Config configures a Handler.
type Config struct {
	// OriginPatterns are accepted cross-origin hosts. Empty allows only
	// same-origin requests.
	OriginPatterns []string

	// WriteTimeout bounds one frame write. Defaults to 15s.
	WriteTimeout time.Duration

	// Buffer is the per-connection outbound queue length. Defaults to 256.
	Buffer int

	// InitOptions is used when a client connects to an uninitialized
	// session.
	InitOptions flow.InitOptions
}

// Handler upgrades requests to WebSocket connections that relay inputs to
// a Session and stream its events back.
type Handler struct {
	session Session
	cfg     Config
	metrics *metrics.Collector
	logger  *zap.Logger

	// turns outlive their connection so a reply is persisted even if the
	// client drops mid-turn.
	turns sync.WaitGroup

	// closing is cancelled by CloseAll and ends every connection.
	closing  context.Context
	closeAll context.CancelFunc
}

// NewHandler creates a Handler for session.
func NewHandler(session Session, cfg Config, collector *metrics.Collector, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	closing, closeAll := context.WithCancel(context.Background())
	return &Handler{
		session:  session,
		cfg:      cfg,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "bridge")),
		closing:  closing,
		closeAll: closeAll,
	}
}

// Wait blocks until every dispatched turn has finished.
func (h *Handler) Wait() {
	h.turns.Wait()
}

// CloseAll ends every open connection with StatusGoingAway and refuses new
// ones. Hijacked connections are not tracked by http.Server.Shutdown, so the
// server calls this from its shutdown hook.
func (h *Handler) CloseAll() {
	h.closeAll()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closing.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer ws.CloseNow()

	h.metrics.BridgeConnected(1)
	defer h.metrics.BridgeConnected(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stopOnClose := context.AfterFunc(h.closing, func() {
		ws.Close(websocket.StatusGoingAway, "server shutting down")
	})
	defer stopOnClose()

	c := &conn{
		h:   h,
		ws:  ws,
		out: make(chan any, h.cfg.Buffer),
	}
	unsubscribe := h.session.Subscribe(c.enqueueEvent)
	defer unsubscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
		cancel()
	}()

	snap := h.session.Snapshot()
	c.enqueue(SnapshotFrame{
		Type:           FrameSnapshot,
		Status:         h.session.Status().String(),
		ConversationID: snap.ConversationID,
		History:        snap.History,
	})
	if h.session.Status() == flow.StatusUninitialized {
		h.dispatch(ctx, c, "initialize", func(ctx context.Context) error {
			return h.session.Initialize(ctx, h.cfg.InitOptions)
		})
	}

	err = c.readLoop(ctx)
	cancel()
	<-writerDone

	switch {
	case h.closing.Err() != nil:
		// closed by CloseAll
	case err == nil, errors.Is(err, context.Canceled):
		ws.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
	default:
		h.logger.Debug("websocket read ended", zap.Error(err))
		ws.Close(websocket.StatusInternalError, "read failed")
	}
}

// dispatch runs one input on its own goroutine so the read loop keeps
// serving control frames during a long turn.
func (h *Handler) dispatch(ctx context.Context, c *conn, input string, fn func(context.Context) error) {
	h.turns.Add(1)
	go func() {
		defer h.turns.Done()
		err := fn(context.WithoutCancel(ctx))
		if err == nil {
			return
		}
		if silentRejection(err) {
			if input == "initialize" && types.IsErrorCode(err, types.ErrTurnInProgress) {
				// Another connection is already initializing.
				return
			}
			c.enqueue(rejected(input, types.GetErrorCode(err), err.Error()))
			return
		}
		h.logger.Debug("input failed", zap.String("input", input), zap.Error(err))
	}()
}

func (h *Handler) route(ctx context.Context, c *conn, frame ClientFrame) {
	switch frame.Type {
	case FrameMessage:
		h.dispatch(ctx, c, frame.Type, func(ctx context.Context) error {
			return h.session.HandleUserMessage(ctx, frame.Text)
		})
	case FrameButton:
		h.dispatch(ctx, c, frame.Type, func(ctx context.Context) error {
			return h.session.HandleButtonClick(ctx, frame.Identifier)
		})
	case FrameActivity:
		h.dispatch(ctx, c, frame.Type, func(ctx context.Context) error {
			return h.session.HandleUserActivity(ctx, frame.Metadata)
		})
	case FrameReset:
		opts := h.cfg.InitOptions
		if len(frame.Metadata) > 0 {
			opts.Metadata = frame.Metadata
		}
		h.dispatch(ctx, c, frame.Type, func(ctx context.Context) error {
			return h.session.ForceNewConversation(ctx, opts)
		})
	default:
		c.enqueue(rejected(frame.Type, types.ErrInvalidInput, "unknown frame type"))
	}
}

// =============================================================================
// Connection
// =============================================================================

type conn struct {
	h   *Handler
	ws  *websocket.Conn
	out chan any

	mu     sync.Mutex
	closed bool
}

// enqueueEvent is the bus listener. It never blocks the emitting turn: a
// client that cannot keep up loses frames.
func (c *conn) enqueueEvent(e flow.Event) {
	c.enqueue(e)
}

func (c *conn) enqueue(frame any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.out <- frame:
	default:
		c.h.logger.Warn("bridge queue full, dropping frame")
	}
}

func (c *conn) writeLoop(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.out:
			writeCtx, cancel := context.WithTimeout(ctx, c.h.cfg.WriteTimeout)
			err := wsjson.Write(writeCtx, c.ws, frame)
			cancel()
			if err != nil {
				c.h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *conn) readLoop(ctx context.Context) error {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return err
		}
		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.enqueue(rejected("", types.ErrInvalidInput, "malformed frame"))
			continue
		}
		c.h.route(ctx, c, frame)
	}
}
