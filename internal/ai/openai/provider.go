// Package openai implements the ai.Provider interface against the OpenAI
// chat completions API (or any compatible endpoint via OPENAI_BASE_URL).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/demandcast/optimizer/internal/ai"
	"github.com/demandcast/optimizer/internal/config"
)

func init() {
	ai.RegisterConstructor("openai", func(cfg config.AIConfig) ai.Provider {
		return NewProvider(cfg.OpenAI)
	})
}

// Provider implements ai.Provider using chat completions with JSON mode.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (p *Provider) Name() string { return "openai" }

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *Provider) Optimize(ctx context.Context, req ai.OptimizeRequest) (ai.OptimizeResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: ai.BuildPrompt(req)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
		Temperature:    0, // deterministic-ish recommendations
	})
	if err != nil {
		return ai.OptimizeResponse{}, fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ai.OptimizeResponse{}, fmt.Errorf("build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ai.OptimizeResponse{}, ai.ErrInferenceTimeout
		}
		return ai.OptimizeResponse{}, fmt.Errorf("%w: %v", ai.ErrProviderUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return ai.OptimizeResponse{}, fmt.Errorf("%w: openai returned %d: %s",
			ai.ErrProviderUnavailable, httpResp.StatusCode, snippet)
	}

	var chat chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chat); err != nil {
		return ai.OptimizeResponse{}, fmt.Errorf("%w: decode openai envelope: %v", ai.ErrInvalidResponse, err)
	}
	if len(chat.Choices) == 0 {
		return ai.OptimizeResponse{}, fmt.Errorf("%w: no choices in response", ai.ErrInvalidResponse)
	}

	resp, err := ai.ParseCompletion(chat.Choices[0].Message.Content)
	if err != nil {
		return ai.OptimizeResponse{}, err
	}
	if resp.Model == "" {
		resp.Model = p.cfg.Model
	}
	return resp, nil
}

var _ ai.Provider = (*Provider)(nil)
