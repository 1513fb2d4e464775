package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/viterin/vek/vek32"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

var _ contractx.Retriever = (*Retriever)(nil)

type indexed struct {
	doc  catalogx.HandsetDocument
	vec  []float32
	norm float64
}

// Retriever is an exact nearest-neighbour search over a read-only in-memory index.
// Ranking is cosine similarity, ties broken by corpus position, so identical
// index and query always yield the same order.
type Retriever struct {
	embedder Embedder
	entries  []indexed
	cache    *lru.Cache[string, []float32]
}

func New(embedder Embedder, entries []IndexEntry, cacheSize int) (*Retriever, error) {
	r := &Retriever{embedder: embedder}
	for _, e := range entries {
		r.entries = append(r.entries, indexed{
			doc:  e.Document,
			vec:  e.Vector,
			norm: vectorNorm(e.Vector),
		})
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create query cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Open loads the index file at path. A missing file yields a retriever whose
// searches report ErrRetrievalUnavailable instead of failing start-up.
func Open(ctx context.Context, path string, embedder Embedder, cacheSize int) (*Retriever, error) {
	entries, meta, err := ReadIndex(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("handset index unavailable, recommendations will degrade")
		return New(embedder, nil, cacheSize)
	}
	if embedder != nil && meta.Embedder != "" && meta.Embedder != embedder.Name() {
		log.Warn().
			Str("index_embedder", meta.Embedder).
			Str("query_embedder", embedder.Name()).
			Msg("handset index was built with a different embedder")
	}
	log.Info().Int("documents", len(entries)).Int("dimension", meta.Dimension).Str("path", path).Msg("handset index loaded")
	return New(embedder, entries, cacheSize)
}

func (r *Retriever) Len() int {
	return len(r.entries)
}

func (r *Retriever) Search(ctx context.Context, query string, k int) ([]catalogx.HandsetDocument, error) {
	if len(r.entries) == 0 || r.embedder == nil {
		return nil, fmt.Errorf("%w: index is empty", contractx.ErrRetrievalUnavailable)
	}
	if k <= 0 {
		return nil, nil
	}

	qvec, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", contractx.ErrRetrievalUnavailable, err)
	}
	qnorm := vectorNorm(qvec)

	type scored struct {
		idx   int
		score float64
	}
	candidates := make([]scored, 0, len(r.entries))
	for i, e := range r.entries {
		if len(e.vec) != len(qvec) {
			continue
		}
		var score float64
		if qnorm > 0 && e.norm > 0 {
			score = float64(vek32.Dot(qvec, e.vec)) / (qnorm * e.norm)
		}
		candidates = append(candidates, scored{idx: i, score: score})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: query dimension %d matches no indexed vector", contractx.ErrRetrievalUnavailable, len(qvec))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return r.entries[candidates[i].idx].doc.Position < r.entries[candidates[j].idx].doc.Position
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]catalogx.HandsetDocument, k)
	for i := 0; i < k; i++ {
		out[i] = r.entries[candidates[i].idx].doc
	}
	return out, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := strings.TrimSpace(strings.ToLower(query))
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			return v, nil
		}
	}
	v, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(key, v)
	}
	return v, nil
}

func vectorNorm(v []float32) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(float64(vek32.Dot(v, v)))
}
