// Package lexical implements the sparse side of glossary retrieval: a BM25
// index over the ordered glossary with a pluggable tokenizer.
package lexical

import (
	"math"
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Params are the BM25 free parameters.
type Params struct {
	K1 float64
	B  float64
}

// Index is a read-only BM25 index. Document ids are positions in the corpus
// passed to Build. It is safe for concurrent use once built.
type Index struct {
	tokenizer Tokenizer
	k1, b     float64
	termFreqs []map[string]int
	docLens   []float64
	avgDocLen float64
	idf       map[string]float64
}

// Build indexes corpus. An empty corpus yields an index that scores nothing.
func Build(corpus []string, tokenizer Tokenizer, p Params) *Index {
	if tokenizer == nil {
		tokenizer = NewWordTokenizer()
	}
	if p.K1 <= 0 {
		p.K1 = DefaultK1
	}
	if p.B < 0 || p.B > 1 {
		p.B = DefaultB
	}
	idx := &Index{
		tokenizer: tokenizer,
		k1:        p.K1,
		b:         p.B,
		termFreqs: make([]map[string]int, len(corpus)),
		docLens:   make([]float64, len(corpus)),
		idf:       make(map[string]float64),
	}
	df := make(map[string]int)
	total := 0.0
	for i, text := range corpus {
		tf := make(map[string]int)
		tokens := tokenizer.Tokenize(text)
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			df[tok]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = float64(len(tokens))
		total += float64(len(tokens))
	}
	if len(corpus) > 0 {
		idx.avgDocLen = total / float64(len(corpus))
	}
	n := float64(len(corpus))
	for term, f := range df {
		// Lucene-style idf stays positive for terms present in every document.
		idx.idf[term] = math.Log(1 + (n-float64(f)+0.5)/(float64(f)+0.5))
	}
	return idx
}

// Len returns the number of indexed documents.
func (x *Index) Len() int { return len(x.termFreqs) }

// Tokenizer returns the tokenizer the index was built with.
func (x *Index) Tokenizer() Tokenizer { return x.tokenizer }

// Scores tokenizes query and returns the BM25 score of every document.
func (x *Index) Scores(query string) []float64 {
	return x.ScoreTokens(x.tokenizer.Tokenize(query))
}

// ScoreTokens returns the BM25 score of every document for already
// tokenized query terms.
func (x *Index) ScoreTokens(tokens []string) []float64 {
	scores := make([]float64, len(x.termFreqs))
	if len(tokens) == 0 || x.avgDocLen == 0 {
		return scores
	}
	for _, tok := range tokens {
		idf, ok := x.idf[tok]
		if !ok {
			continue
		}
		for i, tf := range x.termFreqs {
			f := float64(tf[tok])
			if f == 0 {
				continue
			}
			norm := x.k1 * (1 - x.b + x.b*x.docLens[i]/x.avgDocLen)
			scores[i] += idf * f * (x.k1 + 1) / (f + norm)
		}
	}
	return scores
}
