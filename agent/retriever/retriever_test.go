package retriever

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

var vocabulary = []string{"apple", "samsung", "oppo", "blue", "black", "small", "large"}

// keywordEmbedder maps text onto keyword counts so similarity is predictable.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *keywordEmbedder) Name() string { return "keyword:test" }

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return keywordVector(text), nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = keywordVector(text)
	}
	return out, nil
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(vocabulary))
	for i, word := range vocabulary {
		v[i] = float32(strings.Count(lower, word))
	}
	return v
}

func testDocs() []catalogx.HandsetDocument {
	day := func(s string) time.Time {
		t, _ := time.Parse(catalogx.DateLayout, s)
		return t
	}
	return []catalogx.HandsetDocument{
		{Position: 0, LaunchDate: day("2024-09-20"), Attributes: map[string]any{"brand": "Apple", "model": "iPhone 16", "colours": []any{"Blue", "Black"}}},
		{Position: 1, LaunchDate: day("2024-01-31"), Attributes: map[string]any{"brand": "Samsung", "model": "Galaxy S24", "colours": []any{"Black"}}},
		{Position: 2, LaunchDate: day("2023-10-01"), Attributes: map[string]any{"brand": "OPPO", "model": "Find N3", "colours": []any{"Gold"}}},
		{Position: 3, LaunchDate: day("2023-09-22"), Attributes: map[string]any{"brand": "Apple", "model": "iPhone 15", "colours": []any{"Pink"}}},
	}
}

func newTestRetriever(t *testing.T, embedder *keywordEmbedder, cacheSize int) *Retriever {
	t.Helper()
	docs := testDocs()
	vectors, err := embedder.EmbedBatch(context.Background(), docContents(docs))
	require.NoError(t, err)
	entries := make([]IndexEntry, len(docs))
	for i := range docs {
		entries[i] = IndexEntry{Document: docs[i], Vector: vectors[i]}
	}
	r, err := New(embedder, entries, cacheSize)
	require.NoError(t, err)
	return r
}

func docContents(docs []catalogx.HandsetDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Content()
	}
	return out
}

func TestSearchRanksBySimilarity(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &keywordEmbedder{}, 0)
	got, err := r.Search(context.Background(), "samsung please", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Galaxy S24", got[0].Model())
}

func TestSearchIsDeterministicOnTies(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &keywordEmbedder{}, 0)
	first, err := r.Search(context.Background(), "apple", 4)
	require.NoError(t, err)
	second, err := r.Search(context.Background(), "apple", 4)
	require.NoError(t, err)
	require.Equal(t, first, second)

	positions := make([]int, len(first))
	for i, d := range first {
		positions[i] = d.Position
	}
	require.Equal(t, []int{3, 0, 1, 2}, positions)
}

func TestSearchCapsAtCorpusSize(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &keywordEmbedder{}, 0)
	got, err := r.Search(context.Background(), "phones", 50)
	require.NoError(t, err)
	require.Len(t, got, r.Len())
}

func TestSearchUnavailable(t *testing.T) {
	t.Parallel()

	empty, err := New(&keywordEmbedder{}, nil, 0)
	require.NoError(t, err)
	_, err = empty.Search(context.Background(), "apple", 3)
	require.ErrorIs(t, err, contractx.ErrRetrievalUnavailable)

	failing := newTestRetriever(t, &keywordEmbedder{}, 0)
	failing.embedder = &keywordEmbedder{err: errors.New("quota exceeded")}
	_, err = failing.Search(context.Background(), "apple", 3)
	require.ErrorIs(t, err, contractx.ErrRetrievalUnavailable)
}

func TestSearchCachesQueryEmbeddings(t *testing.T) {
	t.Parallel()

	embedder := &keywordEmbedder{}
	r := newTestRetriever(t, embedder, 8)
	for i := 0; i < 3; i++ {
		_, err := r.Search(context.Background(), "Blue Apple", 3)
		require.NoError(t, err)
	}
	require.Equal(t, 1, embedder.calls)
}

func TestIndexFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "handsets.index.db")
	embedder := &keywordEmbedder{}

	meta, err := BuildIndex(context.Background(), path, testDocs(), embedder)
	require.NoError(t, err)
	require.Equal(t, len(vocabulary), meta.Dimension)

	entries, loaded, err := ReadIndex(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "keyword:test", loaded.Embedder)
	require.Len(t, entries, 4)
	require.Equal(t, "Find N3", entries[2].Document.Model())
	require.True(t, entries[2].Document.LaunchDate.Equal(testDocs()[2].LaunchDate))
	require.Equal(t, keywordVector(testDocs()[0].Content()), entries[0].Vector)

	r, err := Open(context.Background(), path, embedder, 4)
	require.NoError(t, err)
	got, err := r.Search(context.Background(), "oppo", 1)
	require.NoError(t, err)
	require.Equal(t, "Find N3", got[0].Model())
}

func TestOpenMissingIndexDegrades(t *testing.T) {
	t.Parallel()

	r, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.db"), &keywordEmbedder{}, 0)
	require.NoError(t, err)
	require.Zero(t, r.Len())
	_, err = r.Search(context.Background(), "apple", 3)
	require.ErrorIs(t, err, contractx.ErrRetrievalUnavailable)
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, -1.5, 3.25, 1e-7}
	require.Equal(t, in, decodeVector(encodeVector(in)))
}
