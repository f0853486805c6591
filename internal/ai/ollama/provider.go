// Package ollama implements the ai.Provider interface against a local or
// remote Ollama instance.
package ollama

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
	ai.RegisterConstructor("ollama", func(cfg config.AIConfig) ai.Provider {
		return NewProvider(cfg.Ollama)
	})
}

// Provider implements ai.Provider using Ollama's /api/generate endpoint.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{}, // timeouts come from the caller's context
	}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (p *Provider) Optimize(ctx context.Context, req ai.OptimizeRequest) (ai.OptimizeResponse, error) {
	body, err := json.Marshal(generateRequest{
		Model:  p.cfg.Model,
		Prompt: ai.BuildPrompt(req),
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return ai.OptimizeResponse{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return ai.OptimizeResponse{}, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		return ai.OptimizeResponse{}, fmt.Errorf("%w: ollama returned %d: %s",
			ai.ErrProviderUnavailable, httpResp.StatusCode, snippet)
	}

	var gen generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&gen); err != nil {
		return ai.OptimizeResponse{}, fmt.Errorf("%w: decode ollama envelope: %v", ai.ErrInvalidResponse, err)
	}

	resp, err := ai.ParseCompletion(gen.Response)
	if err != nil {
		return ai.OptimizeResponse{}, err
	}
	if resp.Model == "" {
		resp.Model = p.cfg.Model
	}
	return resp, nil
}

var _ ai.Provider = (*Provider)(nil)
