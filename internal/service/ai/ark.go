package ai

import (
	"context"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/mindcheck/backend/internal/config"
)

// ArkAssistant runs the prompt through an eino chain backed by an Ark chat
// model.
type ArkAssistant struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	model string
}

// NewArkAssistant compiles the chain for the configured model.
func NewArkAssistant(ctx context.Context, cfg config.AIConfig) (*ArkAssistant, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat model")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile chat chain")
	}

	return &ArkAssistant{chain: runnable, model: cfg.Model}, nil
}

// Reply implements Assistant.
func (a *ArkAssistant) Reply(ctx context.Context, userPrompt string) (string, error) {
	response, err := a.chain.Invoke(ctx, map[string]any{
		"system": systemPrompt,
		"query":  userPrompt,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to run AI chain")
	}
	if response == nil {
		return "", ErrEmptyReply
	}

	log.Debug().Str("component", "ai").Str("provider", "ark").Str("model", a.model).Int("length", len(response.Content)).Msg("generated reply")
	return nonEmpty(response.Content)
}
