// Package service runs the per-post tasks: mask, retrieve glossary context,
// assemble the prompt, call the model, parse and restore.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"postrag/internal/domain"
	"postrag/internal/masking"
	"postrag/internal/prompt"
	"postrag/internal/response"
)

// Defaults for Options.
const (
	DefaultTimeout       = 120 * time.Second
	DefaultMaxConcurrent = 8
)

// Options tunes a Pipeline.
type Options struct {
	// Timeout bounds a single model call.
	Timeout time.Duration
	// MaxConcurrent bounds in-flight model calls across all requests.
	MaxConcurrent int
	Logger        *zap.Logger
	// Now supplies the reference time for translate and classify.
	Now func() time.Time
}

// Pipeline is safe for concurrent use. Requests share only read-only state
// and the model call semaphore.
type Pipeline struct {
	retriever domain.Retriever
	assembler *prompt.Assembler
	parser    *response.Parser
	llm       domain.LLMClient

	sem           *semaphore.Weighted
	maxConcurrent int
	timeout       time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewPipeline wires the collaborators. retriever may be nil, in which case
// prompts carry no glossary block.
func NewPipeline(retriever domain.Retriever, assembler *prompt.Assembler, parser *response.Parser, llm domain.LLMClient, opts Options) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		retriever:     retriever,
		assembler:     assembler,
		parser:        parser,
		llm:           llm,
		sem:           semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		maxConcurrent: opts.MaxConcurrent,
		timeout:       opts.Timeout,
		logger:        opts.Logger,
		now:           opts.Now,
	}
}

// Translate returns the translation of post with its RT prefix, hashtags and
// emoji preserved. Model failures and malformed replies yield the untranslated
// post with the default category.
func (p *Pipeline) Translate(ctx context.Context, post string) domain.TranslateResult {
	log := p.requestLogger(domain.TaskTranslate)
	masked, st := masking.Mask(post)

	var res domain.TranslateResult
	raw, err := p.run(ctx, log, domain.TaskTranslate, post, masked, p.now())
	if err != nil {
		log.Warn("translate failed, using fallback", zap.Error(err))
		res = domain.TranslateResult{Translated: masked, Category: domain.DefaultCategory}
	} else {
		res = p.parser.Translation(raw, masked)
	}
	res.Translated = masking.Restore(res.Translated, st)
	log.Debug("translate done", zap.String("category", res.Category))
	return res
}

// TranslateBatch translates posts concurrently and returns results in input
// order.
func (p *Pipeline) TranslateBatch(ctx context.Context, posts []string) []domain.TranslateResult {
	out := make([]domain.TranslateResult, len(posts))
	var g errgroup.Group
	g.SetLimit(p.maxConcurrent)
	for i, post := range posts {
		g.Go(func() error {
			out[i] = p.Translate(ctx, post)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Classify returns the category triple for post. Failures yield the default
// category. Placeholders quoted in the reason are unmasked.
func (p *Pipeline) Classify(ctx context.Context, post string) domain.ClassifyResult {
	log := p.requestLogger(domain.TaskClassify)
	masked, st := masking.Mask(post)

	raw, err := p.run(ctx, log, domain.TaskClassify, post, masked, p.now())
	if err != nil {
		log.Warn("classify failed, using fallback", zap.Error(err))
		return domain.ClassifyResult{Category: domain.DefaultCategory}
	}
	res := p.parser.Classification(raw)
	res.Reason = masking.Unmask(res.Reason, st)
	return res
}

// ExtractSchedule returns the event window announced by post, resolving
// relative dates against ref. Failures yield an empty window.
func (p *Pipeline) ExtractSchedule(ctx context.Context, post string, ref time.Time) domain.ScheduleResult {
	log := p.requestLogger(domain.TaskSchedule)
	masked, _ := masking.Mask(post)

	raw, err := p.run(ctx, log, domain.TaskSchedule, post, masked, ref)
	if err != nil {
		log.Warn("schedule extraction failed, using fallback", zap.Error(err))
		return domain.ScheduleResult{}
	}
	return p.parser.Schedule(raw)
}

// Reply generates a reply to post. Unlike the other tasks a failed model
// call is returned, wrapped with domain.ErrUpstream.
func (p *Pipeline) Reply(ctx context.Context, post string) (string, error) {
	log := p.requestLogger(domain.TaskReply)
	raw, err := p.run(ctx, log, domain.TaskReply, post, post, p.now())
	if err != nil {
		log.Warn("reply failed", zap.Error(err))
		return "", fmt.Errorf("reply: %w", err)
	}
	return p.parser.Reply(raw), nil
}

// run retrieves context for query, assembles the task prompt around input
// and invokes the model.
func (p *Pipeline) run(ctx context.Context, log *zap.Logger, task domain.Task, query, input string, ts time.Time) (string, error) {
	glossary := p.glossary(ctx, log, query)
	pr, err := p.assembler.Assemble(task, glossary, input, prompt.Params{Timestamp: ts})
	if err != nil {
		return "", err
	}
	start := time.Now()
	raw, err := p.invoke(ctx, pr)
	log.Debug("model call finished",
		zap.Int("glossary_lines", len(glossary)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("ok", err == nil))
	return raw, err
}

func (p *Pipeline) glossary(ctx context.Context, log *zap.Logger, query string) []string {
	if p.retriever == nil {
		return nil
	}
	lines, err := p.retriever.GetContext(ctx, query)
	if err != nil {
		log.Warn("glossary retrieval failed, continuing without context", zap.Error(err))
		return nil
	}
	return lines
}

// invoke runs the model call off the caller's goroutine, bounded by the
// semaphore and the per-call timeout. The slot is held until the call
// returns, even if the caller has already given up.
func (p *Pipeline) invoke(ctx context.Context, pr domain.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)
		text, err := p.llm.Invoke(ctx, pr.System, pr.User)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrUpstream, r.err)
		}
		return r.text, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", domain.ErrUpstream, ctx.Err())
	}
}

func (p *Pipeline) requestLogger(task domain.Task) *zap.Logger {
	return p.logger.With(zap.String("request_id", uuid.NewString()), zap.String("task", string(task)))
}
