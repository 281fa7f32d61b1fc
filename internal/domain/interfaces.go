package domain

import (
	"context"
	"errors"
	"time"
)

// GlossEntry is a single term of the static glossary. Entries are identified
// by their position in the ordered glossary.
type GlossEntry struct {
	Term  string `json:"text" yaml:"text"`
	Gloss string `json:"translation" yaml:"translation"`
}

// ContextLine renders the entry the way it is shown to the model.
func (e GlossEntry) ContextLine() string {
	return e.Term + " → " + e.Gloss
}

// Metric tells how a dense index scores its hits.
type Metric string

const (
	// MetricSimilarity means higher is better (inner product, cosine).
	MetricSimilarity Metric = "similarity"
	// MetricDistance means lower is better (euclidean).
	MetricDistance Metric = "distance"
)

// DenseHit is a nearest-neighbour result addressed by glossary index.
type DenseHit struct {
	Index int
	Score float64
}

// Candidate is a glossary entry with its hybrid relevance scores.
type Candidate struct {
	Index    int
	Entry    GlossEntry
	Semantic float64
	Lexical  float64
	Score    float64
}

// Task identifies a pipeline task family.
type Task string

const (
	TaskTranslate Task = "translate"
	TaskClassify  Task = "classify"
	TaskSchedule  Task = "schedule"
	TaskReply     Task = "reply"
)

// Tasks lists every known task.
var Tasks = []Task{TaskTranslate, TaskClassify, TaskSchedule, TaskReply}

// Valid reports whether t is a known task.
func (t Task) Valid() bool {
	for _, k := range Tasks {
		if k == t {
			return true
		}
	}
	return false
}

// Prompt is the outbound message pair handed to the LLM client.
type Prompt struct {
	System string
	User   string
}

// TranslateResult is the structured outcome of the translate task.
// Start and End are nil when the post carries no event window.
type TranslateResult struct {
	Translated string     `json:"translated"`
	Category   string     `json:"category"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
}

// ClassifyResult is the classification triple.
type ClassifyResult struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// ScheduleResult is the extracted event window.
type ScheduleResult struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// DefaultCategory is used whenever no usable category is available.
const DefaultCategory = "general"

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorStore holds one vector per glossary entry and supports
// nearest-neighbour search. Hit indexes refer to glossary positions.
type VectorStore interface {
	Init(dimension int) error
	Upsert(ctx context.Context, entries []GlossEntry, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]DenseHit, error)
	Metric() Metric
	Clear() error
}

// LLMClient is the external model boundary. It may fail; nothing is assumed
// about determinism of the returned text.
type LLMClient interface {
	Invoke(ctx context.Context, system, user string) (string, error)
}

// Retriever produces ranked glossary context for a query.
type Retriever interface {
	GetContext(ctx context.Context, query string) ([]string, error)
}

var (
	// ErrUpstream marks failures of the external model call.
	ErrUpstream = errors.New("upstream model call failed")
	// ErrIndexMismatch marks index artifacts that break the 1:1 positional contract.
	ErrIndexMismatch = errors.New("index artifacts mismatch")
	// ErrUnknownTask is returned for task identifiers outside Tasks.
	ErrUnknownTask = errors.New("unknown task")
)
