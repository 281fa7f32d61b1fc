package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"postrag/internal/config"
	"postrag/internal/domain"
	"postrag/internal/llm/mock"
	"postrag/internal/prompt"
	"postrag/internal/response"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticRetriever struct {
	lines []string
	err   error
}

func (r staticRetriever) GetContext(context.Context, string) ([]string, error) {
	return r.lines, r.err
}

// blockingLLM waits for its context to end.
type blockingLLM struct{}

func (blockingLLM) Invoke(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// countingLLM records the peak number of concurrent calls.
type countingLLM struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *countingLLM) Invoke(ctx context.Context, _, user string) (string, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(5 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	input := user[strings.LastIndex(user, "\n\nInput:\n")+len("\n\nInput:\n"):]
	return "EN " + input + "|||general|||none|||none", nil
}

var refTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newPipeline(t *testing.T, llm domain.LLMClient, retriever domain.Retriever, opts Options) *Pipeline {
	t.Helper()
	cfg := config.Default().Prompts
	asm, err := prompt.NewAssembler(cfg, nil)
	require.NoError(t, err)
	if opts.Now == nil {
		opts.Now = func() time.Time { return refTime }
	}
	return NewPipeline(retriever, asm, response.New(cfg.Delimiter, response.WithCategories(cfg.Categories)), llm, opts)
}

func TestTranslate_RestoresProtectedSpans(t *testing.T) {
	llm := mock.NewStatic("__RT__ hello __HT0__ world|||Event|||2024-05-03 18:00|||none")
	p := newPipeline(t, llm, staticRetriever{lines: []string{"世界 → world"}}, Options{})

	got := p.Translate(context.Background(), "RT @user: こんにちは #x 世界")
	assert.Equal(t, "RT @user: hello #x world", got.Translated)
	assert.Equal(t, "event", got.Category)
	require.NotNil(t, got.Start)
	assert.Equal(t, time.Date(2024, 5, 3, 18, 0, 0, 0, time.UTC), *got.Start)
	assert.Nil(t, got.End)

	prompts := llm.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Glossary:\n世界 → world")
	assert.True(t, strings.HasSuffix(prompts[0], "Input:\n__RT__ こんにちは __HT0__ 世界"))
}

func TestTranslate_UpstreamFailureFallsBack(t *testing.T) {
	llm := mock.NewFunc(func(string, string) (string, error) { return "", errors.New("503") })
	p := newPipeline(t, llm, nil, Options{})

	got := p.Translate(context.Background(), "RT @user: こんにちは #x 🎉")
	assert.Equal(t, domain.TranslateResult{Translated: "RT @user: こんにちは #x 🎉", Category: domain.DefaultCategory}, got)
}

func TestTranslate_MalformedReplyFallsBack(t *testing.T) {
	p := newPipeline(t, mock.NewStatic("hello|||event"), nil, Options{})

	got := p.Translate(context.Background(), "RT @user: hello #x world")
	assert.Equal(t, "RT @user: hello #x world", got.Translated)
	assert.Equal(t, domain.DefaultCategory, got.Category)
	assert.Nil(t, got.Start)
	assert.Nil(t, got.End)
}

func TestTranslate_RepairsRewrittenHashtags(t *testing.T) {
	p := newPipeline(t, mock.NewStatic("big news #live #tour|||general|||none|||none"), nil, Options{})

	got := p.Translate(context.Background(), "大ニュース #ライブ #ツアー")
	assert.Equal(t, "big news #ライブ #ツアー", got.Translated)
}

func TestTranslate_EmojiNeverLost(t *testing.T) {
	p := newPipeline(t, mock.NewStatic("see you soon|||general|||none|||none"), nil, Options{})

	got := p.Translate(context.Background(), "またね🎉✨")
	assert.Equal(t, "see you soon🎉✨", got.Translated)
}

func TestTranslate_RetrievalFailureStillTranslates(t *testing.T) {
	llm := mock.NewStatic("hi|||general|||none|||none")
	p := newPipeline(t, llm, staticRetriever{err: errors.New("index gone")}, Options{})

	assert.Equal(t, "hi", p.Translate(context.Background(), "やあ").Translated)
	assert.NotContains(t, llm.Prompts()[0], "Glossary:")
}

func TestTranslateBatch_BoundedAndOrdered(t *testing.T) {
	llm := &countingLLM{}
	p := newPipeline(t, llm, nil, Options{MaxConcurrent: 2})

	posts := make([]string, 12)
	for i := range posts {
		posts[i] = fmt.Sprintf("post %d #tag%d", i, i)
	}
	got := p.TranslateBatch(context.Background(), posts)
	require.Len(t, got, len(posts))
	for i, r := range got {
		assert.Equal(t, fmt.Sprintf("EN post %d #tag%d", i, i), r.Translated)
	}
	assert.LessOrEqual(t, llm.peak.Load(), int32(2))
	assert.Positive(t, llm.peak.Load())
}

func TestClassify(t *testing.T) {
	p := newPipeline(t, mock.NewStatic("Release|||single|||new CD announced"), nil, Options{})
	assert.Equal(t, domain.ClassifyResult{Category: "release", Subcategory: "single", Reason: "new CD announced"},
		p.Classify(context.Background(), "新曲発売 #release"))

	p = newPipeline(t, mock.NewFunc(func(string, string) (string, error) { return "", errors.New("down") }), nil, Options{})
	assert.Equal(t, domain.ClassifyResult{Category: domain.DefaultCategory}, p.Classify(context.Background(), "x"))
}

func TestClassify_ReasonUnmasked(t *testing.T) {
	p := newPipeline(t, mock.NewStatic("release|||single|||__RT__ announces __HT0__"), nil, Options{})

	got := p.Classify(context.Background(), "RT @label: 新曲発売 #release")
	assert.Equal(t, "release", got.Category)
	assert.Equal(t, "RT @label: announces #release", got.Reason)
}

func TestExtractSchedule_UsesReferenceTime(t *testing.T) {
	llm := mock.NewStatic("2024-06-01 18:00|||2024-06-01 21:00")
	p := newPipeline(t, llm, nil, Options{})

	ref := time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC)
	got := p.ExtractSchedule(context.Background(), "土曜日18時から!", ref)
	require.NotNil(t, got.Start)
	require.NotNil(t, got.End)
	assert.Equal(t, 18, got.Start.Hour())
	assert.Equal(t, 21, got.End.Hour())
	assert.Contains(t, llm.Prompts()[0], ref.Format(prompt.TimestampLayout))
}

func TestReply_PropagatesUpstreamError(t *testing.T) {
	cause := errors.New("quota exceeded")
	p := newPipeline(t, mock.NewFunc(func(string, string) (string, error) { return "", cause }), nil, Options{})

	_, err := p.Reply(context.Background(), "hello #x")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, cause)
}

func TestReply_IsNotMasked(t *testing.T) {
	llm := mock.NewStatic("  thanks! #x  ")
	p := newPipeline(t, llm, nil, Options{})

	got, err := p.Reply(context.Background(), "RT @a: hello #x")
	require.NoError(t, err)
	assert.Equal(t, "thanks! #x", got)
	assert.True(t, strings.HasSuffix(llm.Prompts()[0], "Input:\nRT @a: hello #x"))
}

func TestInvoke_Timeout(t *testing.T) {
	p := newPipeline(t, blockingLLM{}, nil, Options{Timeout: 20 * time.Millisecond})

	got := p.Translate(context.Background(), "待って #wait")
	assert.Equal(t, "待って #wait", got.Translated)

	_, err := p.Reply(context.Background(), "hi")
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipeline_ConcurrentRequests(t *testing.T) {
	p := newPipeline(t, mock.NewStatic("ok|||general|||none|||none"), staticRetriever{lines: []string{"a → b"}}, Options{MaxConcurrent: 3})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "ok", p.Translate(context.Background(), "x #t").Translated)
		}()
	}
	wg.Wait()
}
