package conversation

import (
	"time"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/crisis"
	"github.com/zhouzirui/mindcheck/backend/internal/model/chat"
)

// EventType names a controller notification.
type EventType string

const (
	// EventMessage carries a message that was just appended.
	EventMessage EventType = "message"
	// EventCrisis asks the view to show the crisis notice.
	EventCrisis EventType = "crisis"
	// EventBusy reports whether an assistant call is in flight.
	EventBusy EventType = "busy"
	// EventTick carries the remaining session time.
	EventTick EventType = "tick"
	// EventExpired reports that the session gate is now shown.
	EventExpired EventType = "expired"
)

// Event is delivered to subscribers in the order the state changed.
type Event struct {
	Type      EventType
	Message   *chat.Message
	Notice    *crisis.Notice
	Busy      bool
	Remaining time.Duration
}

func messageEvent(m chat.Message) Event {
	return Event{Type: EventMessage, Message: &m}
}
