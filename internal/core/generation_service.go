package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainworks/chain-studio/internal/config"
	"github.com/chainworks/chain-studio/internal/store"
)

// ErrProviderNotConfigured is returned while no provider API key is set.
var ErrProviderNotConfigured = errors.New("image provider API key is not configured")

// ProviderError carries a non-success provider response through verbatim:
// the upstream status code and body are surfaced to the caller untransformed.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

type GenerationService struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewGenerationService() *GenerationService {
	return &GenerationService{
		client: &http.Client{
			Timeout: time.Duration(config.AppConfig.ProviderTimeoutSec) * time.Second,
		},
		baseURL: config.AppConfig.ProviderBaseURL,
		apiKey:  config.AppConfig.ProviderAPIKey,
	}
}

// Generate compiles the request, submits it to the provider, and decodes the
// archive response. A failed provider call is returned as a ProviderError,
// never retried.
func (s *GenerationService) Generate(ctx context.Context, prompt, negative string, params store.GenerationParams) (DecodedImage, error) {
	if s.apiKey == "" {
		return DecodedImage{}, ErrProviderNotConfigured
	}

	payload := Compile(prompt, negative, params)
	body, err := json.Marshal(payload)
	if err != nil {
		return DecodedImage{}, fmt.Errorf("failed to encode provider payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/ai/generate-image", bytes.NewReader(body))
	if err != nil {
		return DecodedImage{}, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return DecodedImage{}, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return DecodedImage{}, fmt.Errorf("failed to read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return DecodedImage{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	log.Debug().Int("archive_bytes", len(data)).Msg("generation archive received")
	return Decode(data, payload.Parameters.Seed)
}
