package ai

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/zhouzirui/mindcheck/backend/internal/config"
)

// GeminiAssistant sends each prompt as a single-turn GenerateContent call.
type GeminiAssistant struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiAssistant creates a Gemini API client. Dangerous-content blocking
// is relaxed to high-probability only so that conversations about low mood
// are not refused outright.
func NewGeminiAssistant(ctx context.Context, cfg config.GeminiConfig) (*GeminiAssistant, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	return &GeminiAssistant{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			SafetySettings: []*genai.SafetySetting{
				{
					Category:  genai.HarmCategoryDangerousContent,
					Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
				},
			},
		},
	}, nil
}

// Reply implements Assistant.
func (g *GeminiAssistant) Reply(ctx context.Context, prompt string) (string, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", errors.Wrap(err, "gemini generate content")
	}

	text := res.Text()
	log.Debug().Str("component", "ai").Str("provider", "gemini").Str("model", g.model).Int("length", len(text)).Msg("generated reply")
	return nonEmpty(text)
}
