package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub, err := NewHub(config.RealtimeConfig{
		PendingEventTTL: 5 * time.Minute,
		SendBufferSize:  8,
	}, logger.New(logger.Options{ServiceName: "realtime-test"}), nil)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	return hub
}

func connect(ctx context.Context, hub *Hub, userID uuid.UUID, admin bool) *Session {
	return hub.Register(ctx, Identity{UserID: userID, Admin: admin})
}

func drain(session *Session) []Envelope {
	var out []Envelope
	for {
		select {
		case envelope, ok := <-session.Events():
			if !ok {
				return out
			}
			out = append(out, envelope)
		default:
			return out
		}
	}
}

func TestBroadcastToUserReachesEverySocket(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()
	userID := uuid.New()

	first := connect(ctx, hub, userID, false)
	second := connect(ctx, hub, userID, false)

	hub.BroadcastToUser(ctx, userID, Envelope{Event: EventCoinEarned})

	if events := drain(first); len(events) != 1 || events[0].Event != EventCoinEarned {
		t.Fatalf("first socket: unexpected events %+v", events)
	}
	if events := drain(second); len(events) != 1 {
		t.Fatalf("second socket: unexpected events %+v", events)
	}
}

func TestPendingBufferReplaysOnceWithinTTL(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()
	userID := uuid.New()

	base := time.Now()
	hub.now = func() time.Time { return base }

	hub.BroadcastToUser(ctx, userID, Envelope{Event: EventCoinEarned})

	// Reconnect within the TTL replays the buffered event exactly once.
	hub.now = func() time.Time { return base.Add(3 * time.Minute) }
	session := connect(ctx, hub, userID, false)
	if events := drain(session); len(events) != 1 || events[0].Event != EventCoinEarned {
		t.Fatalf("expected one replayed event, got %+v", events)
	}
	hub.Unregister(ctx, session)

	session = connect(ctx, hub, userID, false)
	if events := drain(session); len(events) != 0 {
		t.Fatalf("expected no second replay, got %+v", events)
	}
}

func TestPendingBufferDiscardsStaleEvents(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()
	userID := uuid.New()

	base := time.Now()
	hub.now = func() time.Time { return base }
	hub.BroadcastToUser(ctx, userID, Envelope{Event: EventAchievementEarned})

	hub.now = func() time.Time { return base.Add(6 * time.Minute) }
	session := connect(ctx, hub, userID, false)
	if events := drain(session); len(events) != 0 {
		t.Fatalf("expected stale event discarded, got %+v", events)
	}
}

func TestOnlyCoinEventsAreBuffered(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()
	userID := uuid.New()

	hub.BroadcastToUser(ctx, userID, Envelope{Event: EventStreakUpdated})

	session := connect(ctx, hub, userID, false)
	if events := drain(session); len(events) != 0 {
		t.Fatalf("expected streak event dropped while offline, got %+v", events)
	}
}

func TestLiveUsersRoomIsAdminOnly(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	member := connect(ctx, hub, uuid.New(), false)
	admin := connect(ctx, hub, uuid.New(), true)

	if err := hub.Subscribe(member, RoomLiveUsers); err == nil {
		t.Fatal("expected forbidden for non-admin")
	}
	if err := hub.Subscribe(admin, RoomLiveUsers); err != nil {
		t.Fatalf("admin subscribe: %v", err)
	}

	hub.BroadcastToRoom(ctx, RoomLiveUsers, Envelope{Event: EventLiveUsersUpdate})
	if events := drain(admin); len(events) != 1 {
		t.Fatalf("expected admin delivery, got %+v", events)
	}
	if events := drain(member); len(events) != 0 {
		t.Fatalf("expected no delivery to non-admin, got %+v", events)
	}
}

func TestUnsubscribeStopsTopicDelivery(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	session := connect(ctx, hub, uuid.New(), false)
	if err := hub.Subscribe(session, RoomLeaderboard); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	hub.BroadcastToRoom(ctx, RoomLeaderboard, Envelope{Event: EventLeaderboardUpdated})
	if events := drain(session); len(events) != 1 {
		t.Fatalf("expected one event, got %+v", events)
	}

	hub.Unsubscribe(session, RoomLeaderboard)
	hub.BroadcastToRoom(ctx, RoomLeaderboard, Envelope{Event: EventLeaderboardUpdated})
	if events := drain(session); len(events) != 0 {
		t.Fatalf("expected no event after unsubscribe, got %+v", events)
	}
}

func TestPresenceUpdatesReachLiveUsersRoom(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	admin := hub.Register(ctx, Identity{
		UserID:    uuid.New(),
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@jerkyranks.com",
		Admin:     true,
	})
	if err := hub.Subscribe(admin, RoomLiveUsers); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	drain(admin)

	member := hub.Register(ctx, Identity{
		UserID:    uuid.New(),
		FirstName: "Gus",
		LastName:  "Fring",
		Email:     "gusfring@example.com",
	})

	events := drain(admin)
	if len(events) != 1 || events[0].Event != EventLiveUsersUpdate {
		t.Fatalf("expected one roster update, got %+v", events)
	}
	roster, ok := events[0].Data.([]LiveUser)
	if !ok {
		t.Fatalf("unexpected roster payload %T", events[0].Data)
	}
	if len(roster) != 2 {
		t.Fatalf("expected two live users, got %+v", roster)
	}
	for _, entry := range roster {
		switch entry.UserID {
		case member.UserID():
			if entry.Name != "Gus F." {
				t.Fatalf("expected masked member name, got %q", entry.Name)
			}
			if entry.Email != "gu***@example.com" {
				t.Fatalf("expected masked member email, got %q", entry.Email)
			}
		case admin.UserID():
			if entry.Email != "ada@jerkyranks.com" {
				t.Fatalf("expected admin email untouched, got %q", entry.Email)
			}
		default:
			t.Fatalf("unexpected roster entry %+v", entry)
		}
	}

	hub.Unregister(ctx, member)
	events = drain(admin)
	if len(events) != 1 {
		t.Fatalf("expected roster update on disconnect, got %+v", events)
	}
	roster = events[0].Data.([]LiveUser)
	if len(roster) != 1 || roster[0].UserID != admin.UserID() {
		t.Fatalf("expected admin alone on roster, got %+v", roster)
	}
}

func TestMasking(t *testing.T) {
	if got := MaskLastName("Brine"); got != "B." {
		t.Fatalf("expected B., got %q", got)
	}
	if got := MaskLastName(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if got := MaskEmail("jerkylover@example.com"); got != "je***@example.com" {
		t.Fatalf("unexpected masked email %q", got)
	}
	if got := MaskEmail("ab@example.com"); got != "a***@example.com" {
		t.Fatalf("unexpected masked email %q", got)
	}
}
