package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postrag/internal/domain"
)

func TestStorage_InitCreatesMissingCollection(t *testing.T) {
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/gloss", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, APIKey: "secret", Collection: "gloss", Distance: "Euclid"})
	require.NoError(t, s.Init(3))
	vectors := created["vectors"].(map[string]any)
	assert.Equal(t, float64(3), vectors["size"])
	assert.Equal(t, "Euclid", vectors["distance"])
	assert.Equal(t, domain.MetricDistance, s.Metric())
}

func TestStorage_UpsertUsesPositionalIDs(t *testing.T) {
	var body struct {
		Points []struct {
			ID      int               `json:"id"`
			Payload map[string]string `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/gloss/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "gloss"})
	err := s.Upsert(context.Background(),
		[]domain.GlossEntry{{Term: "a", Gloss: "A"}, {Term: "b", Gloss: "B"}},
		[][]float64{{1, 0}, {0, 1}})
	require.NoError(t, err)
	require.Len(t, body.Points, 2)
	assert.Equal(t, 1, body.Points[1].ID)
	assert.Equal(t, "b", body.Points[1].Payload["text"])
	assert.Equal(t, "B", body.Points[1].Payload["translation"])
}

func TestStorage_SearchMapsHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(2), req["limit"])
		_, _ = w.Write([]byte(`{"result":[{"id":4,"score":0.9},{"id":1,"score":0.3}]}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "gloss"})
	hits, err := s.Search(context.Background(), []float64{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []domain.DenseHit{{Index: 4, Score: 0.9}, {Index: 1, Score: 0.3}}, hits)
	assert.Equal(t, domain.MetricSimilarity, s.Metric())
}

func TestStorage_SearchPropagatesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "gloss"})
	_, err := s.Search(context.Background(), []float64{1}, 1)
	assert.ErrorContains(t, err, "500")
}

func TestStorage_ClearIgnoresMissingCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, NewStorage(Config{URL: srv.URL, Collection: "gloss"}).Clear())
}
