package realtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event names on the wire.
const (
	EventCoinEarned         = "coin:earned"
	EventAchievementEarned  = "achievement:earned"
	EventStreakUpdated      = "streak:updated"
	EventLeaderboardUpdated = "leaderboard:updated"
	EventActivityNew        = "activity:new"
	EventCollectionsUpdated = "collections:updated"
	EventLiveUsersUpdate    = "live-users:update"
)

// Topic rooms clients may subscribe to. Per-user rooms are derived with
// UserRoom.
const (
	RoomLeaderboard  = "leaderboard"
	RoomActivityFeed = "activity-feed"
	RoomLiveUsers    = "live-users"
)

// UserRoom is the private room every authenticated socket joins.
func UserRoom(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID)
}

// IsTopic reports whether the room is a subscribable topic.
func IsTopic(room string) bool {
	switch room {
	case RoomLeaderboard, RoomActivityFeed, RoomLiveUsers:
		return true
	default:
		return false
	}
}

// LiveUser is one connected user as listed on the live-users roster. Name
// carries the last name truncated to an initial; Email is masked for
// non-admin users.
type LiveUser struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name,omitempty"`
	Email  string    `json:"email,omitempty"`
	Admin  bool      `json:"admin"`
}

// Envelope is one event as delivered to a socket.
type Envelope struct {
	Event string    `json:"event"`
	Data  any       `json:"data,omitempty"`
	At    time.Time `json:"at"`
}

// buffered reports whether the event should be held for a disconnected
// recipient. Only achievement and coin events survive a disconnect.
func (e Envelope) buffered() bool {
	switch e.Event {
	case EventCoinEarned, EventAchievementEarned:
		return true
	default:
		return false
	}
}
