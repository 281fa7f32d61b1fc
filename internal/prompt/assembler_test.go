package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postrag/internal/config"
	"postrag/internal/domain"
)

func testPrompts() config.PromptsConfig {
	p := config.Default().Prompts
	p.Tasks = map[string]config.TaskTemplate{
		"translate": {System: "From {source_language} to {target_language}.", Instructions: "Fields joined by {delimiter}. Categories: {categories}. Now: {timestamp}."},
		"classify":  {Instructions: "classify"},
		"schedule":  {Instructions: "schedule at {timestamp}"},
		"reply":     {Instructions: "reply"},
	}
	p.Categories = []string{"event", "general"}
	return p
}

func TestAssemble_Layout(t *testing.T) {
	a, err := NewAssembler(testPrompts(), nil)
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)
	p, err := a.Assemble(domain.TaskTranslate, []string{"live → ライブ", "tour → ツアー"}, "__RT__ hello __HT0__", Params{Timestamp: ts})
	require.NoError(t, err)

	assert.Equal(t, "From Japanese to English.", p.System)
	assert.Equal(t, "Fields joined by |||. Categories: event, general. Now: 2024-05-01 18:30 (Wed) UTC.\n\n"+
		"Glossary:\nlive → ライブ\ntour → ツアー\n\n"+
		"Input:\n__RT__ hello __HT0__", p.User)
}

func TestAssemble_NoGlossaryBlockWhenEmpty(t *testing.T) {
	a, err := NewAssembler(testPrompts(), nil)
	require.NoError(t, err)

	p, err := a.Assemble(domain.TaskClassify, nil, "post", Params{})
	require.NoError(t, err)
	assert.Equal(t, "classify\n\nInput:\npost", p.User)
	assert.NotContains(t, p.User, "Glossary:")
}

func TestAssemble_InputIsNotExpanded(t *testing.T) {
	a, err := NewAssembler(testPrompts(), nil)
	require.NoError(t, err)

	p, err := a.Assemble(domain.TaskReply, nil, "literal {delimiter} {timestamp}", Params{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.User, "literal {delimiter} {timestamp}"))
}

func TestAssemble_UnknownTask(t *testing.T) {
	a, err := NewAssembler(testPrompts(), nil)
	require.NoError(t, err)

	_, err = a.Assemble(domain.Task("summarize"), nil, "x", Params{})
	assert.ErrorIs(t, err, domain.ErrUnknownTask)
}

func TestNewAssembler_RejectsBadTemplates(t *testing.T) {
	p := testPrompts()
	p.Tasks["reply"] = config.TaskTemplate{Instructions: "hi {author}"}
	_, err := NewAssembler(p, nil)
	assert.ErrorContains(t, err, "{author}")

	p = testPrompts()
	delete(p.Tasks, "schedule")
	_, err = NewAssembler(p, nil)
	assert.ErrorContains(t, err, "schedule")
}

func TestAssemble_FewShotExamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "few_shot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
translate:
  examples:
    - input: "こんにちは __HT0__"
      output: "hello __HT0__|||general|||none|||none"
`), 0o644))

	a, err := NewAssembler(testPrompts(), NewFewShotStore(path, nil))
	require.NoError(t, err)

	p, err := a.Assemble(domain.TaskTranslate, []string{"a → b"}, "in", Params{})
	require.NoError(t, err)
	assert.Contains(t, p.User, "\n\nExamples:\nInput: こんにちは __HT0__\nOutput: hello __HT0__|||general|||none|||none\n\nGlossary:\na → b\n\nInput:\nin")

	p, err = a.Assemble(domain.TaskClassify, nil, "in", Params{})
	require.NoError(t, err)
	assert.NotContains(t, p.User, "Examples:")
}

func TestFewShotStore_MissingAndMalformed(t *testing.T) {
	assert.Nil(t, NewFewShotStore(filepath.Join(t.TempDir(), "absent.yaml"), nil).Examples(domain.TaskTranslate))
	assert.Nil(t, NewFewShotStore("", nil).Examples(domain.TaskTranslate))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("translate: [unclosed"), 0o644))
	assert.Nil(t, NewFewShotStore(path, nil).Examples(domain.TaskTranslate))
}

func TestFewShotStore_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "few_shot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"reply":{"examples":[{"input":"i","output":"o"}]}}`), 0o644))

	s := NewFewShotStore(path, nil)
	assert.Equal(t, []Example{{Input: "i", Output: "o"}}, s.Examples(domain.TaskReply))
	// cached: removing the file does not change the answer
	require.NoError(t, os.Remove(path))
	assert.Len(t, s.Examples(domain.TaskReply), 1)
}
