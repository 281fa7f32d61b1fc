// Package retrieval ranks glossary entries for a post by fusing dense
// nearest-neighbour scores with BM25 lexical scores.
package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"postrag/internal/domain"
	"postrag/internal/index"
)

// Default tuning.
const (
	DefaultTopK          = 5
	DefaultLexicalWeight = 0.6
)

// Options configures a Hybrid retriever.
type Options struct {
	TopK int
	// LexicalWeight scales the BM25 score in the fused ranking. Nil selects
	// DefaultLexicalWeight; zero ranks by dense similarity alone.
	LexicalWeight *float64
	Logger        *zap.Logger
}

// Hybrid is a read-only retriever over one loaded index generation. It is
// safe for concurrent use.
type Hybrid struct {
	idx    *index.Index
	topK   int
	weight float64
	logger *zap.Logger
}

var _ domain.Retriever = (*Hybrid)(nil)

// New creates a Hybrid retriever. Zero options select the defaults; a
// negative weight is treated as zero.
func New(idx *index.Index, opts Options) *Hybrid {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	weight := DefaultLexicalWeight
	if opts.LexicalWeight != nil {
		weight = max(*opts.LexicalWeight, 0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Hybrid{idx: idx, topK: opts.TopK, weight: weight, logger: opts.Logger}
}

// TopK returns the configured default result size.
func (h *Hybrid) TopK() int { return h.topK }

// GetContext returns up to TopK glossary lines, best first.
func (h *Hybrid) GetContext(ctx context.Context, query string) ([]string, error) {
	cands, err := h.Retrieve(ctx, query, h.topK)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(cands))
	for i, c := range cands {
		lines[i] = c.Entry.ContextLine()
	}
	return lines, nil
}

// Retrieve returns at most k scored candidates sorted by combined score
// descending, ties broken by ascending glossary index. k <= 0 selects the
// configured default. A failing dense branch degrades to lexical-only
// ranking; only context errors are returned.
func (h *Hybrid) Retrieve(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	n := len(h.idx.Entries)
	if n == 0 {
		return nil, ctx.Err()
	}
	if k <= 0 {
		k = h.topK
	}

	var (
		dense  []domain.DenseHit
		sparse []float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := h.denseSearch(gctx, query, k)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.logger.Warn("dense retrieval failed, using lexical scores only", zap.Error(err))
			return nil
		}
		dense = hits
		return nil
	})
	g.Go(func() error {
		sparse = h.idx.Lexical.Scores(query)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fuse(h.idx.Entries, dense, h.idx.Dense.Metric(), sparse, k, h.weight), nil
}

func (h *Hybrid) denseSearch(ctx context.Context, query string, k int) ([]domain.DenseHit, error) {
	vec, err := h.idx.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := h.idx.Dense.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	n := len(h.idx.Entries)
	kept := hits[:0:0]
	for _, hit := range hits {
		if hit.Index >= 0 && hit.Index < n {
			kept = append(kept, hit)
		}
	}
	return kept, nil
}

// fuse merges the dense hits with the k best sparse entries and ranks the union.
func fuse(entries []domain.GlossEntry, dense []domain.DenseHit, metric domain.Metric, sparse []float64, k int, weight float64) []domain.Candidate {
	semantic := normalizeDense(dense, metric)

	maxSparse := 0.0
	for _, s := range sparse {
		if s > maxSparse {
			maxSparse = s
		}
	}
	lexical := func(i int) float64 {
		if maxSparse <= 0 || i >= len(sparse) {
			return 0
		}
		return sparse[i] / maxSparse
	}

	pool := make(map[int]struct{}, len(dense)+k)
	for i := range semantic {
		pool[i] = struct{}{}
	}
	for _, i := range topSparse(sparse, k) {
		pool[i] = struct{}{}
	}

	cands := make([]domain.Candidate, 0, len(pool))
	for i := range pool {
		c := domain.Candidate{Index: i, Entry: entries[i], Semantic: semantic[i], Lexical: lexical(i)}
		c.Score = c.Semantic + weight*c.Lexical
		cands = append(cands, c)
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].Score != cands[b].Score {
			return cands[a].Score > cands[b].Score
		}
		return cands[a].Index < cands[b].Index
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

// normalizeDense maps raw dense scores into [0,1] relative to the best hit.
// For distance metrics (maxD - d) / maxD is used; all-zero distances are
// exact matches and map to 1.
func normalizeDense(hits []domain.DenseHit, metric domain.Metric) map[int]float64 {
	out := make(map[int]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	maxScore := hits[0].Score
	for _, h := range hits[1:] {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	for _, h := range hits {
		switch {
		case metric == domain.MetricDistance && maxScore <= 0:
			out[h.Index] = 1
		case metric == domain.MetricDistance:
			out[h.Index] = (maxScore - h.Score) / maxScore
		case maxScore <= 0:
			out[h.Index] = 0
		default:
			out[h.Index] = h.Score / maxScore
		}
	}
	return out
}

// topSparse returns the indexes of the k highest scores, zero scores
// included, ties broken by ascending index.
func topSparse(scores []float64, k int) []int {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if k < len(idxs) {
		idxs = idxs[:k]
	}
	return idxs
}
