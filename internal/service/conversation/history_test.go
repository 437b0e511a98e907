package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mindcheck/backend/internal/model/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/store"
)

func TestHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(store.NewMemory())
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, n := range []int{1, 2, 25} {
		messages := make([]chat.Message, 0, n)
		for i := 0; i < n; i++ {
			sender := chat.SenderUser
			if i%2 == 0 {
				sender = chat.SenderAssistant
			}
			messages = append(messages, chat.NewMessage(fmt.Sprintf("id-%d", i), fmt.Sprintf("text %d \"quoted\"", i), sender, base.Add(time.Duration(i)*time.Second)))
		}

		require.NoError(t, h.Save(ctx, messages))
		loaded, ok := h.Load(ctx)
		require.True(t, ok)
		assert.Equal(t, messages, loaded)
	}
}

func TestHistoryAbsentOrCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	h := NewHistory(kv)

	_, ok := h.Load(ctx)
	assert.False(t, ok)

	for _, raw := range []string{"", "null", "[]", "{", `{"id":"x"}`, "42"} {
		require.NoError(t, kv.Set(ctx, store.KeyMessages, raw))
		_, ok := h.Load(ctx)
		assert.False(t, ok, raw)
	}
}

func TestHistoryNormalisesLegacySender(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, store.KeyMessages, `[{"id":"welcome","text":"Hi","sender":"ai","timestamp":1}]`))

	loaded, ok := NewHistory(kv).Load(ctx)
	require.True(t, ok)
	assert.Equal(t, chat.SenderAssistant, loaded[0].Sender)
}

func TestHistorySaveNilAndClear(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	h := NewHistory(kv)

	require.NoError(t, h.Save(ctx, nil))
	raw, ok, err := kv.Get(ctx, store.KeyMessages)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", raw)

	require.NoError(t, h.Clear(ctx))
	_, ok, _ = kv.Get(ctx, store.KeyMessages)
	assert.False(t, ok)
}
