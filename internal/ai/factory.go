package ai

import (
	"fmt"

	"github.com/demandcast/optimizer/internal/config"
)

// Factory functions for the concrete providers live in their own packages;
// they are referenced here via constructor funcs to avoid an import cycle
// between ai and its subpackages.
var providerConstructors = map[string]func(cfg config.AIConfig) Provider{}

// RegisterConstructor is called from provider subpackage init functions.
func RegisterConstructor(name string, fn func(cfg config.AIConfig) Provider) {
	providerConstructors[name] = fn
}

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	fn, ok := providerConstructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, openai, mock", cfg.Provider)
	}
	return fn(cfg), nil
}
