package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/phq9"
	"github.com/zhouzirui/mindcheck/backend/internal/config"
)

func TestBuildPrompt(t *testing.T) {
	cases := map[phq9.Severity]string{
		phq9.Minimal:          "The user has minimal depression symptoms. User says: hello",
		phq9.Mild:             "The user has mild depression symptoms. User says: hello",
		phq9.Moderate:         "The user has moderate depression symptoms. User says: hello",
		phq9.ModeratelySevere: "The user has moderately severe depression symptoms. User says: hello",
		phq9.Severe:           "The user has severe depression symptoms. User says: hello",
	}
	for severity, want := range cases {
		assert.Equal(t, want, BuildPrompt(severity, "hello"), severity)
	}
}

func TestContextForUnknownSeverity(t *testing.T) {
	assert.Equal(t, "The user has severe depression symptoms.", ContextFor(phq9.Severity("bogus")))
}

func TestMockEchoesUserText(t *testing.T) {
	reply, err := NewMock().Reply(context.Background(), BuildPrompt(phq9.Mild, "  I slept badly "))
	require.NoError(t, err)
	assert.Contains(t, reply, `"I slept badly"`)
	assert.NotContains(t, reply, "depression symptoms")
}

func TestMockHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMock().Reply(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuncAdapter(t *testing.T) {
	var got string
	a := Func(func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return "ok", nil
	})
	reply, err := a.Reply(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, "p", got)
}

func TestNonEmpty(t *testing.T) {
	_, err := nonEmpty(" \n\t")
	assert.True(t, errors.Is(err, ErrEmptyReply))

	text, err := nonEmpty("hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, config.AIConfig{Provider: config.ProviderMock})
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, a)

	_, err = New(ctx, config.AIConfig{Provider: "nope"})
	assert.Error(t, err)

	// ark without credentials fails while building the chat model
	_, err = New(ctx, config.AIConfig{Provider: config.ProviderArk})
	assert.Error(t, err)

	_, err = New(ctx, config.AIConfig{Provider: config.ProviderGemini})
	assert.Error(t, err)
}

func geminiServer(t *testing.T, status int, body any) (*httptest.Server, *[]byte) {
	t.Helper()
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestGeminiReply(t *testing.T) {
	srv, received := geminiServer(t, http.StatusOK, map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": "That sounds hard."}},
			},
		}},
	})

	g, err := NewGeminiAssistant(context.Background(), config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-test",
		BaseURL: srv.URL + "/",
	})
	require.NoError(t, err)

	reply, err := g.Reply(context.Background(), BuildPrompt(phq9.Moderate, "work is heavy"))
	require.NoError(t, err)
	assert.Equal(t, "That sounds hard.", reply)
	assert.Contains(t, string(*received), "User says: work is heavy")
	assert.Contains(t, string(*received), "BLOCK_ONLY_HIGH")
}

func TestGeminiEmptyCandidates(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, map[string]any{"candidates": []any{}})

	g, err := NewGeminiAssistant(context.Background(), config.GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = g.Reply(context.Background(), "hi")
	assert.True(t, errors.Is(err, ErrEmptyReply))
}

func TestGeminiTransportError(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusInternalServerError, map[string]any{
		"error": map[string]any{"code": 500, "message": "boom", "status": "INTERNAL"},
	})

	g, err := NewGeminiAssistant(context.Background(), config.GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = g.Reply(context.Background(), "hi")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyReply))
}
