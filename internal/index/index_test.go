package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postrag/internal/config"
	"postrag/internal/domain"
	"postrag/internal/embedding/tfidf"
	"postrag/internal/lexical"
	"postrag/internal/vectorstore/memory"
)

var glossary = []domain.GlossEntry{
	{Term: "live tour", Gloss: "ライブツアー"},
	{Term: "fan meeting", Gloss: "ファンミーティング"},
	{Term: "new single", Gloss: "ニューシングル"},
}

func indexConfig(t *testing.T) config.IndexConfig {
	return config.IndexConfig{Dir: t.TempDir(), MetaFile: "meta.json", VectorsFile: "vectors.bin"}
}

func TestLoadGlossary_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "g.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("- text: live tour\n  translation: ライブツアー\n"), 0o644))
	js := filepath.Join(dir, "g.json")
	require.NoError(t, os.WriteFile(js, []byte(`[{"text":"live tour","translation":"ライブツアー"}]`), 0o644))

	for _, p := range []string{yml, js} {
		got, err := LoadGlossary(p)
		require.NoError(t, err)
		assert.Equal(t, glossary[:1], got)
	}
}

func TestLoadGlossary_RejectsEmptyTerm(t *testing.T) {
	p := filepath.Join(t.TempDir(), "g.yaml")
	require.NoError(t, os.WriteFile(p, []byte("- translation: x\n"), 0o644))
	_, err := LoadGlossary(p)
	assert.ErrorContains(t, err, "empty text")
}

func TestVectorsRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "v.bin")
	in := [][]float64{{0.5, -1}, {2, 0.25}}
	require.NoError(t, WriteVectors(p, in))

	out, err := ReadVectors(p)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.Error(t, WriteVectors(p, [][]float64{{1}, {1, 2}}))
}

func TestReadVectors_Truncated(t *testing.T) {
	p := filepath.Join(t.TempDir(), "v.bin")
	require.NoError(t, WriteVectors(p, [][]float64{{1, 2}, {3, 4}}))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, data[:len(data)-4], 0o644))

	_, err = ReadVectors(p)
	assert.ErrorIs(t, err, domain.ErrIndexMismatch)
}

func TestReadVectors_CorruptHeaderCount(t *testing.T) {
	p := filepath.Join(t.TempDir(), "v.bin")
	require.NoError(t, WriteVectors(p, [][]float64{{1, 2}, {3, 4}}))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	// count field set to 0xFFFFFFFF
	copy(data[4:8], []byte{0xff, 0xff, 0xff, 0xff})
	require.NoError(t, os.WriteFile(p, data, 0o644))

	_, err = ReadVectors(p)
	assert.ErrorIs(t, err, domain.ErrIndexMismatch)
}

func TestReadVectors_TrailingBytes(t *testing.T) {
	p := filepath.Join(t.TempDir(), "v.bin")
	require.NoError(t, WriteVectors(p, [][]float64{{1, 2}}))
	f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = ReadVectors(p)
	assert.ErrorIs(t, err, domain.ErrIndexMismatch)
}

func TestReadVectors_BadMagic(t *testing.T) {
	p := filepath.Join(t.TempDir(), "v.bin")
	require.NoError(t, os.WriteFile(p, []byte("NOPE\x00\x00\x00\x00\x00\x00\x00\x00"), 0o644))
	_, err := ReadVectors(p)
	assert.ErrorContains(t, err, "bad magic")
}

func TestBuildThenLoad(t *testing.T) {
	ctx := context.Background()
	cfg := indexConfig(t)
	require.NoError(t, NewBuilder(tfidf.NewEmbedder(nil), nil, nil).Build(ctx, glossary, cfg))

	idx, err := Load(ctx, cfg, tfidf.NewEmbedder(nil), memory.NewStorage(), LoadOptions{
		BM25: lexical.Params{K1: lexical.DefaultK1, B: lexical.DefaultB},
	})
	require.NoError(t, err)
	assert.Equal(t, glossary, idx.Entries)
	assert.Equal(t, 3, idx.Lexical.Len())

	q, err := idx.Embedder.Embed(ctx, "fan meeting")
	require.NoError(t, err)
	hits, err := idx.Dense.Search(ctx, q, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Index)
}

func TestBuild_UpsertsIntoStore(t *testing.T) {
	store := memory.NewStorage()
	require.NoError(t, NewBuilder(tfidf.NewEmbedder(nil), store, nil).Build(context.Background(), glossary, indexConfig(t)))
	assert.Equal(t, 3, store.Len())
}

func TestLoad_MismatchIsFatal(t *testing.T) {
	cfg := indexConfig(t)
	require.NoError(t, WriteMeta(cfg.MetaPath(), glossary))
	require.NoError(t, WriteVectors(cfg.VectorsPath(), [][]float64{{1, 0}, {0, 1}}))

	_, err := Load(context.Background(), cfg, tfidf.NewEmbedder(nil), memory.NewStorage(), LoadOptions{})
	assert.True(t, errors.Is(err, domain.ErrIndexMismatch))
}

func TestLoad_MissingArtifacts(t *testing.T) {
	_, err := Load(context.Background(), indexConfig(t), tfidf.NewEmbedder(nil), memory.NewStorage(), LoadOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EmptyGlossary(t *testing.T) {
	cfg := indexConfig(t)
	require.NoError(t, NewBuilder(tfidf.NewEmbedder(nil), nil, nil).Build(context.Background(), nil, cfg))

	idx, err := Load(context.Background(), cfg, tfidf.NewEmbedder(nil), memory.NewStorage(), LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, idx.Entries)
	assert.Equal(t, 0, idx.Lexical.Len())
}
