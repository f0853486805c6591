// Package mock provides an ai.Provider for tests and local development.
package mock

import (
	"context"

	"github.com/demandcast/optimizer/internal/ai"
	"github.com/demandcast/optimizer/internal/config"
)

func init() {
	ai.RegisterConstructor("mock", func(_ config.AIConfig) ai.Provider {
		return NewMockProvider()
	})
}

// MockProvider satisfies ai.Provider for testing.
type MockProvider struct {
	Name_        string
	OptimizeFunc func(ctx context.Context, req ai.OptimizeRequest) (ai.OptimizeResponse, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Optimize(ctx context.Context, req ai.OptimizeRequest) (ai.OptimizeResponse, error) {
	if m.OptimizeFunc != nil {
		return m.OptimizeFunc(ctx, req)
	}
	return ai.OptimizeResponse{}, nil
}

// NewMockProvider returns a MockProvider that recommends each parameter's
// first allowed value (falling back to the model defaults) with fixed metrics.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		OptimizeFunc: func(_ context.Context, req ai.OptimizeRequest) (ai.OptimizeResponse, error) {
			params := map[string]float64{}
			for name, v := range req.Defaults {
				params[name] = v
			}
			for name, values := range req.Ranges {
				if len(values) > 0 {
					params[name] = values[0]
				}
			}
			return ai.OptimizeResponse{
				Parameters: params,
				MAPE:       12.5,
				RMSE:       8.1,
				MAE:        5.4,
				Accuracy:   87.5,
				Reasoning:  "Mock recommendation for testing",
				Model:      "mock-v1",
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		OptimizeFunc: func(_ context.Context, _ ai.OptimizeRequest) (ai.OptimizeResponse, error) {
			return ai.OptimizeResponse{}, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		OptimizeFunc: func(ctx context.Context, _ ai.OptimizeRequest) (ai.OptimizeResponse, error) {
			<-ctx.Done()
			return ai.OptimizeResponse{}, ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements Provider.
var _ ai.Provider = (*MockProvider)(nil)
