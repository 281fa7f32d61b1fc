package lexical

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Tokenizer splits text into index terms.
type Tokenizer interface {
	Name() string
	Tokenize(text string) []string
}

// NewTokenizer returns the tokenizer registered under name.
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "word", "":
		return NewWordTokenizer(), nil
	case "bigram":
		return NewBigramTokenizer(), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer: %s", name)
	}
}

// WordTokenizer lower-cases text and keeps runs of letters and digits.
type WordTokenizer struct {
	pattern *regexp.Regexp
}

func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{pattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)}
}

func (t *WordTokenizer) Name() string { return "word" }

func (t *WordTokenizer) Tokenize(text string) []string {
	return t.pattern.FindAllString(strings.ToLower(text), -1)
}

// BigramTokenizer emits overlapping character bigrams for scripts written
// without spaces (Han, Kana, Hangul) and whole words for everything else.
type BigramTokenizer struct {
	words *WordTokenizer
}

func NewBigramTokenizer() *BigramTokenizer {
	return &BigramTokenizer{words: NewWordTokenizer()}
}

func (t *BigramTokenizer) Name() string { return "bigram" }

func (t *BigramTokenizer) Tokenize(text string) []string {
	var out []string
	for _, w := range t.words.Tokenize(text) {
		out = append(out, splitMixed([]rune(w))...)
	}
	return out
}

// splitMixed breaks a word into spaced-script words and bigrams of
// unspaced-script runs.
func splitMixed(runes []rune) []string {
	var out []string
	start := 0
	for start < len(runes) {
		cjk := isUnspaced(runes[start])
		end := start + 1
		for end < len(runes) && isUnspaced(runes[end]) == cjk {
			end++
		}
		seg := runes[start:end]
		if cjk {
			out = append(out, bigrams(seg)...)
		} else {
			out = append(out, string(seg))
		}
		start = end
	}
	return out
}

func bigrams(runes []rune) []string {
	if len(runes) == 1 {
		return []string{string(runes)}
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}

func isUnspaced(r rune) bool {
	return r == 'ー' ||
		unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
