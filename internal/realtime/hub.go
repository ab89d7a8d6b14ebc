package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	"github.com/jerkyranks/jerkyranks-backend/pkg/metrics"
)

const maxPendingPerUser = 32

// Identity is the authenticated user behind a socket, as the hub needs it
// for rooms and the live-users roster.
type Identity struct {
	UserID    uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Admin     bool
}

// Session is one authenticated socket's hub-side state. The transport layer
// drains Events and writes them to the wire.
type Session struct {
	id       string
	identity Identity
	send     chan Envelope
}

// UserID returns the bound user.
func (s *Session) UserID() uuid.UUID {
	return s.identity.UserID
}

// Events is the delivery channel for this socket.
func (s *Session) Events() <-chan Envelope {
	return s.send
}

type pendingEvent struct {
	envelope Envelope
	at       time.Time
}

// Hub fans events out to rooms of connected sessions and holds a short-lived
// pending buffer for disconnected recipients.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]struct{}
	pending  map[uuid.UUID][]pendingEvent

	pendingTTL time.Duration
	sendBuffer int
	logg       *logger.Logger
	metrics    *metrics.GatewayMetrics
	now        func() time.Time
}

// NewHub constructs the gateway hub. Metrics may be nil.
func NewHub(cfg config.RealtimeConfig, logg *logger.Logger, m *metrics.GatewayMetrics) (*Hub, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.PendingEventTTL <= 0 {
		return nil, fmt.Errorf("pending event TTL must be positive")
	}
	sendBuffer := cfg.SendBufferSize
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		rooms:      make(map[string]map[*Session]struct{}),
		sessions:   make(map[*Session]struct{}),
		pending:    make(map[uuid.UUID][]pendingEvent),
		pendingTTL: cfg.PendingEventTTL,
		sendBuffer: sendBuffer,
		logg:       logg,
		metrics:    m,
		now:        time.Now,
	}, nil
}

// Register binds a new session for the user, joins its private room, and
// replays any pending events younger than the TTL. Each replayed event is
// delivered exactly once.
func (h *Hub) Register(ctx context.Context, identity Identity) *Session {
	session := &Session{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan Envelope, h.sendBuffer),
	}

	h.mu.Lock()
	h.sessions[session] = struct{}{}
	h.metrics.SessionOpened()
	h.join(session, UserRoom(identity.UserID))
	replay := h.takePending(identity.UserID)
	for _, envelope := range replay {
		h.deliver(ctx, session, envelope)
	}
	h.broadcastLiveUsers(ctx)
	h.mu.Unlock()

	h.logg.Debug(h.logg.WithFields(ctx, map[string]any{
		"session_id": session.id,
		"user_id":    identity.UserID.String(),
		"replayed":   len(replay),
	}), "realtime session registered")
	return session
}

// Unregister removes the session from every room and closes its channel.
func (h *Hub) Unregister(ctx context.Context, session *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[session]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, session)
	h.metrics.SessionClosed()
	for room := range h.rooms {
		h.leave(session, room)
	}
	close(session.send)
	h.broadcastLiveUsers(ctx)
	h.mu.Unlock()
	h.logg.Debug(h.logg.WithField(ctx, "session_id", session.id), "realtime session unregistered")
}

// Subscribe joins a topic room. The live-users room is admin only.
func (h *Hub) Subscribe(session *Session, topic string) error {
	if !IsTopic(topic) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown topic %q", topic))
	}
	if topic == RoomLiveUsers && !session.identity.Admin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "live-users is restricted to admins")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[session]; !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "session is closed")
	}
	h.join(session, topic)
	return nil
}

// Unsubscribe leaves a topic room.
func (h *Hub) Unsubscribe(session *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(session, topic)
}

// BroadcastToUser delivers to every socket the user holds. When none are
// connected, achievement and coin events are buffered for the pending TTL.
func (h *Hub) BroadcastToUser(ctx context.Context, userID uuid.UUID, envelope Envelope) {
	envelope = h.stamp(envelope)
	h.metrics.IncBroadcast(envelope.Event)

	h.mu.Lock()
	defer h.mu.Unlock()
	targets := h.members(UserRoom(userID))
	if len(targets) == 0 && envelope.buffered() {
		h.bufferPending(userID, envelope)
		return
	}
	for _, session := range targets {
		h.deliver(ctx, session, envelope)
	}
}

// BroadcastToRoom delivers to every member of a topic room.
func (h *Hub) BroadcastToRoom(ctx context.Context, room string, envelope Envelope) {
	envelope = h.stamp(envelope)
	h.metrics.IncBroadcast(envelope.Event)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, session := range h.members(room) {
		h.deliver(ctx, session, envelope)
	}
}

// broadcastLiveUsers requires h.mu held. Every membership change pushes the
// masked roster to the admin-only live-users room.
func (h *Hub) broadcastLiveUsers(ctx context.Context) {
	members := h.members(RoomLiveUsers)
	if len(members) == 0 {
		return
	}

	seen := make(map[uuid.UUID]struct{}, len(h.sessions))
	roster := make([]LiveUser, 0, len(h.sessions))
	for session := range h.sessions {
		identity := session.identity
		if _, ok := seen[identity.UserID]; ok {
			continue
		}
		seen[identity.UserID] = struct{}{}

		email := identity.Email
		if !identity.Admin {
			email = MaskEmail(email)
		}
		roster = append(roster, LiveUser{
			UserID: identity.UserID,
			Name:   strings.TrimSpace(identity.FirstName + " " + MaskLastName(identity.LastName)),
			Email:  email,
			Admin:  identity.Admin,
		})
	}

	envelope := h.stamp(Envelope{Event: EventLiveUsersUpdate, Data: roster})
	for _, session := range members {
		h.deliver(ctx, session, envelope)
	}
}

func (h *Hub) stamp(envelope Envelope) Envelope {
	if envelope.At.IsZero() {
		envelope.At = h.now().UTC()
	}
	return envelope
}

// join and leave require h.mu held.
func (h *Hub) join(session *Session, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[session] = struct{}{}
}

func (h *Hub) leave(session *Session, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, session)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) members(room string) []*Session {
	members := h.rooms[room]
	out := make([]*Session, 0, len(members))
	for session := range members {
		out = append(out, session)
	}
	return out
}

func (h *Hub) bufferPending(userID uuid.UUID, envelope Envelope) {
	h.metrics.IncBuffered()
	queue := h.prunePending(h.pending[userID])
	queue = append(queue, pendingEvent{envelope: envelope, at: h.now()})
	if len(queue) > maxPendingPerUser {
		queue = queue[len(queue)-maxPendingPerUser:]
	}
	h.pending[userID] = queue
}

// takePending drains the user's fresh pending events and drops the rest.
func (h *Hub) takePending(userID uuid.UUID) []Envelope {
	queue := h.prunePending(h.pending[userID])
	delete(h.pending, userID)
	out := make([]Envelope, 0, len(queue))
	for _, item := range queue {
		out = append(out, item.envelope)
	}
	return out
}

func (h *Hub) prunePending(queue []pendingEvent) []pendingEvent {
	cutoff := h.now().Add(-h.pendingTTL)
	fresh := queue[:0]
	for _, item := range queue {
		if item.at.After(cutoff) {
			fresh = append(fresh, item)
		}
	}
	return fresh
}

// deliver requires h.mu held and never blocks; a session whose buffer is
// full loses the event. Holding the lock keeps sends ordered ahead of any
// close from Unregister.
func (h *Hub) deliver(ctx context.Context, session *Session, envelope Envelope) {
	select {
	case session.send <- envelope:
	default:
		h.logg.Warn(h.logg.WithFields(ctx, map[string]any{
			"session_id": session.id,
			"event":      envelope.Event,
		}), "dropping event for slow realtime session")
	}
}
