package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
)

// New validates cfg and constructs the chat model for its backend.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendArk:
		return newArk(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	default:
		// Validate rejects unknown backends; this is unreachable.
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}
}

// NewFromEnv builds a chat model from environment configuration.
// See ConfigFromEnv for the variables consulted.
func NewFromEnv(ctx context.Context) (model.ToolCallingChatModel, error) {
	return New(ctx, ConfigFromEnv())
}
