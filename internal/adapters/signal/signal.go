package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkrush/signald/internal/app"
	"github.com/dkrush/signald/internal/config"
	"github.com/dkrush/signald/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// SignalWSController owns the WebSocket side of the signaling protocol:
// upgrades, per-connection pumps, payload validation and dispatch into the
// coordinator.
type SignalWSController struct {
	Coord    *app.Coordinator
	cfg      *config.Config
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewSignalWSController(cfg *config.Config, coord *app.Coordinator) *SignalWSController {
	ctl := &SignalWSController{
		Coord:    coord,
		cfg:      cfg,
		validate: validator.New(),
	}
	ctl.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if cfg.AllowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == cfg.AllowedOrigin
		},
	}
	return ctl
}

// WsSignalConn implements core.Conn over a gorilla websocket with a buffered
// send channel drained by writePump.
type WsSignalConn struct {
	sid  core.SessionID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

// newWsSignalConn mints the session id per upgraded link. The browser cookie
// identifies a client, not a connection: a reload or second tab opens a new
// link under the same token, and its late teardown must never evict the
// replacement's registration.
func newWsSignalConn(ws *websocket.Conn, buf int) *WsSignalConn {
	return &WsSignalConn{
		sid:  core.SessionID(uuid.NewString()),
		conn: ws,
		send: make(chan core.Frame, buf),
	}
}

func (c *WsSignalConn) ID() core.SessionID { return c.sid }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.cfg.ReadLimit)

	conn := newWsSignalConn(ws, ctl.cfg.SendBuffer)
	log.Info().Str("module", "signal").Str("client", c.GetString("client_token")).
		Str("sid", string(conn.sid)).Msg("new WS connection")

	ctl.Coord.OnConnect(conn)

	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn.sid, conn)
	}()
}
