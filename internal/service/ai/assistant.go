// Package ai talks to the external assistant. Every backend reduces to one
// call: a single text prompt in, reply text or an error out.
package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/mindcheck/backend/internal/config"
)

// ErrEmptyReply is returned when the backend answered without any text.
var ErrEmptyReply = errors.New("assistant returned an empty reply")

// Assistant produces a reply for a prompt.
type Assistant interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to Assistant.
type Func func(ctx context.Context, prompt string) (string, error)

// Reply calls f.
func (f Func) Reply(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig) (Assistant, error) {
	switch cfg.Provider {
	case config.ProviderArk:
		return NewArkAssistant(ctx, cfg)
	case config.ProviderGemini:
		return NewGeminiAssistant(ctx, cfg.Gemini)
	case config.ProviderMock:
		log.Warn().Str("component", "ai").Msg("using mock assistant, replies are canned")
		return NewMock(), nil
	default:
		return nil, errors.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// systemPrompt frames every backend. It must not contain template braces.
const systemPrompt = `You are a warm, supportive mental-health companion chatting with someone who just completed a PHQ-9 self-assessment.
Listen carefully, reflect feelings back, ask gentle open questions and keep replies short.
You are not a clinician: never diagnose, never prescribe, and encourage professional help when appropriate.
If the person mentions suicide or self-harm, respond with care and point them to the 988 Suicide & Crisis Lifeline.`

func nonEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
