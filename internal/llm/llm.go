// Package llm selects the model client behind the invoke boundary.
package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"postrag/internal/config"
	"postrag/internal/domain"
	"postrag/internal/llm/genai"
	"postrag/internal/llm/mock"
	"postrag/internal/llm/openai"
)

// New builds the client named by cfg.Type.
func New(ctx context.Context, cfg config.LLMConfig) (domain.LLMClient, error) {
	switch cfg.Type {
	case "openai", "":
		o := cfg.OpenAI
		if o == nil {
			o = &config.OpenAILLMConfig{}
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:     o.BaseURL,
			APIKeyEnv:   o.APIKeyEnv,
			Model:       o.Model,
			Temperature: o.Temperature,
			Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai llm init failed: %w", err)
		}
		return c, nil
	case "genai":
		g := cfg.GenAI
		if g == nil {
			g = &config.GenAILLMConfig{APIKeyEnv: "GEMINI_API_KEY"}
		}
		c, err := genai.NewClient(ctx, genai.Config{
			APIKey:      os.Getenv(g.APIKeyEnv),
			Model:       g.Model,
			Temperature: g.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("genai llm init failed: %w", err)
		}
		return c, nil
	case "mock":
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.Type)
	}
}
