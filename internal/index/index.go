package index

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"postrag/internal/config"
	"postrag/internal/domain"
	"postrag/internal/lexical"
)

// Index is one loaded generation of the glossary index. It is read-only
// after Load returns.
type Index struct {
	Entries  []domain.GlossEntry
	Dense    domain.VectorStore
	Lexical  *lexical.Index
	Embedder domain.Embedder
}

// Builder embeds a glossary and writes the index artifacts.
type Builder struct {
	embedder    domain.Embedder
	store       domain.VectorStore
	logger      *zap.Logger
	parallelism int
}

// NewBuilder creates a Builder. store may be nil when only files are wanted.
func NewBuilder(embedder domain.Embedder, store domain.VectorStore, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{embedder: embedder, store: store, logger: logger, parallelism: 8}
}

// Build embeds every entry term and writes meta and vectors under cfg.
func (b *Builder) Build(ctx context.Context, entries []domain.GlossEntry, cfg config.IndexConfig) error {
	terms := terms(entries)
	if len(terms) > 0 {
		if err := b.embedder.Prepare(terms); err != nil {
			return fmt.Errorf("prepare embedder: %w", err)
		}
	}

	vectors := make([][]float64, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for i, term := range terms {
		g.Go(func() error {
			v, err := b.embedder.Embed(gctx, term)
			if err != nil {
				return fmt.Errorf("embed entry %d (%q): %w", i, term, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := WriteMeta(cfg.MetaPath(), entries); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	if err := WriteVectors(cfg.VectorsPath(), vectors); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	b.logger.Info("index artifacts written",
		zap.Int("entries", len(entries)),
		zap.String("embedder", b.embedder.Name()),
		zap.String("dir", cfg.Dir))

	if b.store != nil && len(vectors) > 0 {
		if err := b.store.Clear(); err != nil {
			return fmt.Errorf("clear vector store: %w", err)
		}
		if err := b.store.Init(len(vectors[0])); err != nil {
			return fmt.Errorf("init vector store: %w", err)
		}
		if err := b.store.Upsert(ctx, entries, vectors); err != nil {
			return fmt.Errorf("upsert vectors: %w", err)
		}
	}
	return nil
}

// LoadOptions configures Load.
type LoadOptions struct {
	Tokenizer lexical.Tokenizer
	BM25      lexical.Params
	Logger    *zap.Logger
}

// Load reads the artifacts, verifies the positional 1:1 contract, fills the
// dense store and builds the lexical index. Any inconsistency is returned
// wrapped in domain.ErrIndexMismatch.
func Load(ctx context.Context, cfg config.IndexConfig, embedder domain.Embedder, store domain.VectorStore, opts LoadOptions) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := ReadMeta(cfg.MetaPath())
	if err != nil {
		return nil, fmt.Errorf("load index meta: %w", err)
	}
	vectors, err := ReadVectors(cfg.VectorsPath())
	if err != nil {
		return nil, fmt.Errorf("load index vectors: %w", err)
	}
	if len(entries) != len(vectors) {
		return nil, fmt.Errorf("%d entries vs %d vectors: %w", len(entries), len(vectors), domain.ErrIndexMismatch)
	}

	terms := terms(entries)
	if len(terms) > 0 {
		if err := embedder.Prepare(terms); err != nil {
			return nil, fmt.Errorf("prepare embedder: %w", err)
		}
		dim := len(vectors[0])
		if d := embedder.Dimension(); d > 0 && d != dim {
			return nil, fmt.Errorf("embedder %s dimension %d vs stored %d: %w", embedder.Name(), d, dim, domain.ErrIndexMismatch)
		}
		if err := store.Init(dim); err != nil {
			return nil, fmt.Errorf("init vector store: %w", err)
		}
		if err := store.Upsert(ctx, entries, vectors); err != nil {
			return nil, fmt.Errorf("upsert vectors: %w", err)
		}
	}

	tok := opts.Tokenizer
	if tok == nil {
		tok = lexical.NewWordTokenizer()
	}
	lex := lexical.Build(terms, tok, opts.BM25)
	logger.Info("index loaded",
		zap.Int("entries", len(entries)),
		zap.String("embedder", embedder.Name()),
		zap.String("tokenizer", tok.Name()))
	return &Index{Entries: entries, Dense: store, Lexical: lex, Embedder: embedder}, nil
}

func terms(entries []domain.GlossEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Term
	}
	return out
}
