package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kwahn/chess-arena/internal/arena"
	"github.com/kwahn/chess-arena/internal/obslog"
)

const writeTimeout = 5 * time.Second

// Server upgrades HTTP requests to websocket connections and pumps decoded
// frames into the coordinator. One goroutine per connection; frames from a
// single connection are handled in arrival order.
type Server struct {
	registry *arena.Registry
	coord    *arena.Coordinator
	origins  []string
	log      *zap.Logger
}

func NewServer(registry *arena.Registry, coord *arena.Coordinator, origins []string) *Server {
	return &Server{
		registry: registry,
		coord:    coord,
		origins:  origins,
		log:      obslog.L(),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: s.origins}
	if len(s.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.log.Warn("ws_accept_error", zap.Error(err))
		return
	}

	peer := &conn{ws: c}
	identity := s.registry.Register(peer)
	s.log.Info("ws_connect", zap.String("identity", identity), zap.String("remote", r.RemoteAddr))

	defer func() {
		s.registry.Unregister(peer)
		_ = c.Close(websocket.StatusNormalClosure, "bye")
		s.log.Info("ws_disconnect", zap.String("identity", identity))
	}()

	ctx := r.Context()
	for {
		var frame arena.ClientFrame
		if err := wsjson.Read(ctx, c, &frame); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return
			}
			s.log.Debug("ws_read_error", zap.String("identity", identity), zap.Error(err))
			return
		}
		s.coord.HandleFrame(ctx, identity, frame)
	}
}

// conn adapts a websocket connection to arena.Peer. The mutex serializes
// writes: the coordinator may dispatch to the same peer from several
// connections' read loops at once.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) Send(ctx context.Context, frame arena.ServerFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.ws, frame)
}
