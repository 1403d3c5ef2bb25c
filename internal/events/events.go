package events

import (
	"context"
	"time"
)

// Type names a relationship transition.
type Type string

const (
	FriendRequestSent      Type = "friend_request.sent"
	FriendRequestAccepted  Type = "friend_request.accepted"
	FriendRequestRescinded Type = "friend_request.rescinded"
	FriendRequestDenied    Type = "friend_request.denied"
	FriendRemoved          Type = "friend.removed"
)

// Event records a completed relationship transition. ActorID is the user who
// performed the operation and TargetID the other side of the pair.
type Event struct {
	Type       Type      `json:"type"`
	ActorID    string    `json:"actor_id"`
	TargetID   string    `json:"target_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers relationship events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
