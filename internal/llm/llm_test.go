package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postrag/internal/config"
	"postrag/internal/llm/mock"
	"postrag/internal/llm/openai"
)

func TestNew(t *testing.T) {
	c, err := New(context.Background(), config.LLMConfig{Type: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &mock.Client{}, c)

	t.Setenv("POSTRAG_TEST_KEY", "k")
	c, err = New(context.Background(), config.LLMConfig{Type: "openai", OpenAI: &config.OpenAILLMConfig{APIKeyEnv: "POSTRAG_TEST_KEY"}})
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, c)

	_, err = New(context.Background(), config.LLMConfig{Type: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown llm")

	t.Setenv("POSTRAG_TEST_GEMINI", "")
	_, err = New(context.Background(), config.LLMConfig{Type: "genai", GenAI: &config.GenAILLMConfig{APIKeyEnv: "POSTRAG_TEST_GEMINI"}})
	assert.ErrorContains(t, err, "API key is required")
}
