package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postrag/internal/config"
	"postrag/internal/domain"
	"postrag/internal/vectorstore/memory"
	"postrag/internal/vectorstore/qdrant"
)

func TestNew(t *testing.T) {
	s, err := New(config.VectorStoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, &memory.Storage{}, s)

	s, err = New(config.VectorStoreConfig{Type: "qdrant", Qdrant: &config.QdrantConfig{URL: "http://localhost:6333", Collection: "g", Distance: "Euclid"}})
	require.NoError(t, err)
	assert.IsType(t, &qdrant.Storage{}, s)
	assert.Equal(t, domain.MetricDistance, s.Metric())

	_, err = New(config.VectorStoreConfig{Type: "qdrant"})
	assert.Error(t, err)
	_, err = New(config.VectorStoreConfig{Type: "faiss"})
	assert.ErrorContains(t, err, "unknown vector store")
}
