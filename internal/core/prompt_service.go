package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/chainworks/chain-studio/internal/config"
)

const (
	polishModelName = "gemini-1.5-flash-latest"

	polishSystemInstruction = "You rewrite free-form image descriptions into concise, comma-separated " +
		"booru-style tags suitable for a text-to-image model. Keep the subject, style and composition " +
		"details, drop filler words, and return only the tag list, nothing else."
)

// PromptService polishes draft prompts into the provider's tag style via
// Gemini. It is optional: without an API key the server runs with the
// polish endpoint disabled.
type PromptService struct {
	client *genai.Client
}

// NewPromptService returns (nil, nil) when no Gemini key is configured.
func NewPromptService(ctx context.Context) (*PromptService, error) {
	if config.AppConfig.GeminiAPIKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &PromptService{client: client}, nil
}

func (s *PromptService) Close() {
	if s == nil || s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing GenAI client")
	}
}

func (s *PromptService) Polish(ctx context.Context, draft string) (string, error) {
	model := s.client.GenerativeModel(polishModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(polishSystemInstruction)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(draft))
	if err != nil {
		return "", fmt.Errorf("gemini polish request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned an empty response")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text")
	}
	return strings.TrimSpace(out.String()), nil
}
