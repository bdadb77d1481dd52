// Package model invokes the configured language model: a local generate
// endpoint or Google GenAI. One prompt in, one reply out; failures propagate
// so the caller can abort the remaining phases of its pass.
package model

import (
	"context"
	"fmt"
	"time"

	"sigil/internal/logging"
)

// Invoker sends one prompt and returns the model reply.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Config holds model invoker configuration.
type Config struct {
	// Provider: "local" or "genai"
	Provider string

	// Local endpoint configuration
	Endpoint string
	Model    string

	// GenAI configuration
	GenAIAPIKey string

	MaxOutputTokens int
	Timeout         time.Duration
}

// NewInvoker creates an invoker based on configuration.
func NewInvoker(cfg Config) (Invoker, error) {
	logging.Model("Creating model invoker with provider=%s", cfg.Provider)

	switch cfg.Provider {
	case "local", "":
		return NewLocalInvoker(cfg.Endpoint, cfg.Model, cfg.MaxOutputTokens, cfg.Timeout), nil
	case "genai":
		return NewGenAIInvoker(cfg.GenAIAPIKey, cfg.Model, cfg.MaxOutputTokens)
	default:
		err := fmt.Errorf("unsupported model provider: %s (use 'local' or 'genai')", cfg.Provider)
		logging.Get(logging.CategoryModel).Error("Unsupported model provider: %s", cfg.Provider)
		return nil, err
	}
}
