package chat

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one immutable turn of the conversation. Timestamp is epoch
// milliseconds so the persisted form matches what the browser client reads.
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    Sender `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessage stamps a message with the given id and time.
func NewMessage(id, text string, sender Sender, at time.Time) Message {
	return Message{
		ID:        id,
		Text:      text,
		Sender:    sender,
		Timestamp: at.UnixMilli(),
	}
}
