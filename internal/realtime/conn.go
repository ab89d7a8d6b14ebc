package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jerkyranks/jerkyranks-backend/pkg/auth"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

// clientMessage is the inbound command frame. The first frame on a socket
// must be an auth command; everything else is rejected until then.
type clientMessage struct {
	Action string `json:"action"`
	Token  string `json:"token,omitempty"`
	Topic  string `json:"topic,omitempty"`
}

type serverMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// safeConn serializes writes; the read loop and the write pump both emit
// frames.
type safeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *safeConn) writeJSON(value any, deadline time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(deadline))
	return c.conn.WriteJSON(value)
}

type sessionVerifier interface {
	HasSession(ctx context.Context, jti string) (bool, error)
}

// Gateway upgrades websocket connections and bridges them onto the hub.
type Gateway struct {
	hub      *Hub
	jwtCfg   config.JWTConfig
	cfg      config.RealtimeConfig
	sessions sessionVerifier
	upgrader websocket.Upgrader
	logg     *logger.Logger
}

// NewGateway constructs the websocket gateway.
func NewGateway(hub *Hub, jwtCfg config.JWTConfig, cfg config.RealtimeConfig, sessions sessionVerifier, logg *logger.Logger) (*Gateway, error) {
	if hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session verifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if cfg.AllowedOriginAny {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return &Gateway{
		hub:      hub,
		jwtCfg:   jwtCfg,
		cfg:      cfg,
		sessions: sessions,
		upgrader: upgrader,
		logg:     logg,
	}, nil
}

// Hub exposes the underlying hub for broadcasters.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// ServeHTTP upgrades the request and runs the connection loops.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logg.Warn(g.logg.WithField(r.Context(), "remote", r.RemoteAddr), "websocket upgrade rejected")
		return
	}
	go g.run(&safeConn{conn: conn})
}

func (g *Gateway) run(conn *safeConn) {
	ctx := context.Background()
	defer conn.conn.Close()

	if g.cfg.ReadLimitBytes > 0 {
		conn.conn.SetReadLimit(g.cfg.ReadLimitBytes)
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	})

	var session *Session
	done := make(chan struct{})
	defer func() {
		if session != nil {
			g.hub.Unregister(ctx, session)
		}
		close(done)
	}()

	for {
		_ = conn.conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
		var msg clientMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Action {
		case "auth":
			next, err := g.authenticate(ctx, msg.Token)
			if err != nil {
				g.writeError(conn, "authentication failed")
				return
			}
			// Re-auth as a different user releases the old memberships.
			if session != nil {
				g.hub.Unregister(ctx, session)
			}
			session = next
			go g.writePump(conn, session, done)
			g.writeAck(conn, "auth:ok")
		case "subscribe":
			if session == nil {
				g.writeError(conn, "authenticate first")
				return
			}
			if err := g.hub.Subscribe(session, msg.Topic); err != nil {
				g.writeError(conn, fmt.Sprintf("subscribe %s rejected", msg.Topic))
				continue
			}
			g.writeAck(conn, "subscribe:ok")
		case "unsubscribe":
			if session == nil {
				g.writeError(conn, "authenticate first")
				return
			}
			g.hub.Unsubscribe(session, msg.Topic)
			g.writeAck(conn, "unsubscribe:ok")
		default:
			g.writeError(conn, fmt.Sprintf("unknown action %q", msg.Action))
		}
	}
}

func (g *Gateway) authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := auth.ParseSessionToken(g.jwtCfg, token)
	if err != nil {
		return nil, err
	}
	active, err := g.sessions.HasSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("session revoked")
	}
	return g.hub.Register(ctx, Identity{
		UserID:    claims.UserID,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Email:     claims.Email,
		Admin:     claims.Role.IsAdmin(),
	}), nil
}

// writePump drains hub deliveries onto the wire until the session channel
// closes or the socket loop finishes.
func (g *Gateway) writePump(conn *safeConn, session *Session, done <-chan struct{}) {
	for {
		select {
		case envelope, ok := <-session.Events():
			if !ok {
				return
			}
			if err := conn.writeJSON(envelope, g.cfg.WriteTimeout); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (g *Gateway) writeAck(conn *safeConn, event string) {
	_ = conn.writeJSON(serverMessage{Event: event}, g.cfg.WriteTimeout)
}

func (g *Gateway) writeError(conn *safeConn, message string) {
	_ = conn.writeJSON(serverMessage{Event: "error", Error: message}, g.cfg.WriteTimeout)
}
