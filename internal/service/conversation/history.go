package conversation

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/mindcheck/backend/internal/model/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/store"
)

// History persists the full message sequence of one profile as a JSON array.
type History struct {
	kv store.KV
}

// NewHistory binds a history to a profile-scoped store.
func NewHistory(kv store.KV) *History {
	return &History{kv: kv}
}

// Load returns the persisted sequence. A missing, empty or unparsable value
// reports ok=false so the caller seeds a fresh conversation.
func (h *History) Load(ctx context.Context) ([]chat.Message, bool) {
	raw, ok, err := h.kv.Get(ctx, store.KeyMessages)
	if err != nil {
		log.Warn().Err(err).Str("component", "conversation").Msg("failed to read chat history, starting fresh")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var messages []chat.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		log.Warn().Err(err).Str("component", "conversation").Msg("discarding unparsable chat history")
		return nil, false
	}
	if len(messages) == 0 {
		return nil, false
	}

	for i := range messages {
		// 旧版客户端把助手消息记为 "ai"。
		if messages[i].Sender == "ai" {
			messages[i].Sender = chat.SenderAssistant
		}
	}
	return messages, true
}

// Save overwrites the stored sequence.
func (h *History) Save(ctx context.Context, messages []chat.Message) error {
	if messages == nil {
		messages = []chat.Message{}
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return errors.Wrap(err, "encode chat history")
	}
	if err := h.kv.Set(ctx, store.KeyMessages, string(payload)); err != nil {
		return errors.Wrap(err, "persist chat history")
	}
	return nil
}

// Clear removes the stored sequence.
func (h *History) Clear(ctx context.Context) error {
	return h.kv.Remove(ctx, store.KeyMessages)
}
