package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserRegistered       Type = "user.registered"
	TypeLoginSucceeded       Type = "login.success"
	TypeLoginFailed          Type = "login.failure"
	TypeTokenRefreshed       Type = "token.refreshed"
	TypeRefreshReuseDetected Type = "refresh.reuse_detected"
	TypeLogout               Type = "logout"
	TypePasswordChanged      Type = "password.changed"
)

// SessionPayload describes an authentication event for the audit trail.
type SessionPayload struct {
	UserID string `json:"user_id,omitempty"`
	IP     string `json:"ip,omitempty"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
	ActorID   string      `json:"actor_id,omitempty"` // Who triggered the event
}

// New stamps an event with a fresh id and the current time.
func New(eventType Type, actorID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
