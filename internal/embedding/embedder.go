// Package embedding selects the text embedder used to build and query the
// dense glossary index.
package embedding

import (
	"context"
	"fmt"
	"os"
	"time"

	"postrag/internal/config"
	"postrag/internal/domain"
	"postrag/internal/embedding/genai"
	"postrag/internal/embedding/openai"
	"postrag/internal/embedding/tfidf"
	"postrag/internal/lexical"
)

// New builds the embedder named by cfg. The tokenizer is only used by the
// local TF-IDF embedder.
func New(ctx context.Context, cfg config.EmbedderConfig, tokenizer lexical.Tokenizer) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(tokenizer), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	case "genai":
		if cfg.GenAI == nil {
			return nil, fmt.Errorf("genai embedder config missing")
		}
		emb, err := genai.NewEmbedder(ctx, genai.Config{
			APIKey:     os.Getenv(cfg.GenAI.APIKeyEnv),
			Model:      cfg.GenAI.Model,
			TaskType:   cfg.GenAI.TaskType,
			Dimensions: cfg.GenAI.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("genai embedder init failed: %w", err)
		}
		return emb, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}
