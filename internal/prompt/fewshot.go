package prompt

import (
	"errors"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"postrag/internal/domain"
)

// Example is one input/output demonstration pair.
type Example struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
}

type taskExamples struct {
	Examples []Example `yaml:"examples" json:"examples"`
}

// FewShotStore loads the few-shot document on first use and serves it
// read-only for the process lifetime.
type FewShotStore struct {
	path   string
	logger *zap.Logger

	once     sync.Once
	examples map[string][]Example
}

// NewFewShotStore creates a store backed by path. An empty path yields a
// store without examples.
func NewFewShotStore(path string, logger *zap.Logger) *FewShotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FewShotStore{path: path, logger: logger}
}

// Examples returns the examples for task. Missing file or task yields nil.
func (s *FewShotStore) Examples(task domain.Task) []Example {
	if s == nil {
		return nil
	}
	s.once.Do(s.load)
	return s.examples[string(task)]
}

func (s *FewShotStore) load() {
	s.examples = map[string][]Example{}
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("few-shot file unreadable", zap.String("path", s.path), zap.Error(err))
		}
		return
	}
	var doc map[string]taskExamples
	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("few-shot file malformed, ignoring", zap.String("path", s.path), zap.Error(err))
		return
	}
	for task, te := range doc {
		s.examples[task] = te.Examples
	}
	s.logger.Debug("few-shot examples loaded", zap.String("path", s.path), zap.Int("tasks", len(doc)))
}
