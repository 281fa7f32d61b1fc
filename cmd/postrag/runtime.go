package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"postrag/internal/embedding"
	"postrag/internal/index"
	"postrag/internal/lexical"
	"postrag/internal/llm"
	"postrag/internal/prompt"
	"postrag/internal/response"
	"postrag/internal/retrieval"
	"postrag/internal/service"
	"postrag/internal/vectorstore"
)

// runtime is the assembled serving stack.
type runtime struct {
	index     *index.Index
	retriever *retrieval.Hybrid
	pipeline  *service.Pipeline
}

func (a *app) tokenizer() (lexical.Tokenizer, error) {
	return lexical.NewTokenizer(a.cfg.Retriever.Tokenizer)
}

// retrieverOnly loads the index and the hybrid retriever without a model client.
func (a *app) retrieverOnly(ctx context.Context) (*runtime, error) {
	tok, err := a.tokenizer()
	if err != nil {
		return nil, err
	}
	emb, err := embedding.New(ctx, a.cfg.Embedder, tok)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.New(a.cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	idx, err := index.Load(ctx, a.cfg.Index, emb, store, index.LoadOptions{
		Tokenizer: tok,
		BM25:      lexical.Params{K1: a.cfg.Retriever.K1, B: a.cfg.Retriever.B},
		Logger:    a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("index unavailable (run \"postrag index build\"): %w", err)
	}
	return &runtime{
		index: idx,
		retriever: retrieval.New(idx, retrieval.Options{
			TopK:          a.cfg.Retriever.TopK,
			LexicalWeight: a.cfg.Retriever.LexicalWeight,
			Logger:        a.logger.Named("retrieval"),
		}),
	}, nil
}

// serving builds the full pipeline. Any configuration or index error is fatal.
func (a *app) serving(ctx context.Context) (*runtime, error) {
	rt, err := a.retrieverOnly(ctx)
	if err != nil {
		return nil, err
	}
	client, err := llm.New(ctx, a.cfg.LLM)
	if err != nil {
		return nil, err
	}
	pc := a.cfg.Prompts
	asm, err := prompt.NewAssembler(pc, prompt.NewFewShotStore(pc.FewShotFile, a.logger.Named("fewshot")))
	if err != nil {
		return nil, err
	}
	parser := response.New(pc.Delimiter,
		response.WithCategories(pc.Categories),
		response.WithLocation(time.Local),
		response.WithLogger(a.logger.Named("response")))
	rt.pipeline = service.NewPipeline(rt.retriever, asm, parser, client, service.Options{
		Timeout:       time.Duration(a.cfg.LLM.TimeoutSecs) * time.Second,
		MaxConcurrent: a.cfg.LLM.MaxConcurrent,
		Logger:        a.logger.Named("pipeline"),
	})
	a.logger.Info("pipeline ready",
		zap.Int("glossary_entries", len(rt.index.Entries)),
		zap.String("llm", a.cfg.LLM.Type),
		zap.String("embedder", rt.index.Embedder.Name()))
	return rt, nil
}
