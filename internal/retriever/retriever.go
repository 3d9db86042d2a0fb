// Package retriever issues multi-query vector search, merges and
// deduplicates hits, optionally reranks them with a secondary relevance
// model, and flags pairs of results that appear to disagree.
package retriever

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"advisor/internal/domain"
	"advisor/internal/expander"
	"advisor/internal/logger"
)

// Options tunes the retriever. The disagreement thresholds are untuned
// heuristics; they are configurable and should not be assumed to transfer
// across embedding models.
type Options struct {
	TopK                    int
	SimilarityThreshold     float64
	FetchMultiplier         int
	EnableReranking         bool
	DisagreementSimilarity  float64
	KeywordOverlapThreshold float64
}

// Query is one retrieval request. Category, when set, is applied at the
// index-query level so narrow categories are not starved by a post-filter.
type Query struct {
	Text     string
	Category string
	TopK     int
}

// Retriever coordinates expansion, embedding, search and reranking.
type Retriever struct {
	expander *expander.Expander
	embedder domain.Embedder
	store    domain.VectorStore
	reranker domain.Reranker // nil disables reranking
	opts     Options
}

// New creates a Retriever. reranker may be nil.
func New(exp *expander.Expander, embedder domain.Embedder, store domain.VectorStore, reranker domain.Reranker, opts Options) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 6
	}
	if opts.FetchMultiplier <= 0 {
		opts.FetchMultiplier = 3
	}
	if opts.DisagreementSimilarity == 0 {
		opts.DisagreementSimilarity = 0.6
	}
	if opts.KeywordOverlapThreshold == 0 {
		opts.KeywordOverlapThreshold = 0.4
	}
	return &Retriever{expander: exp, embedder: embedder, store: store, reranker: reranker, opts: opts}
}

type candidate struct {
	hit        domain.SearchHit
	score      float64
	matchCount int
}

// Search returns ranked deduplicated evidence, at most TopK items, every
// score at or above the similarity threshold. An empty result is a valid
// terminal state, not an error.
func (r *Retriever) Search(ctx context.Context, q Query) ([]domain.EvidenceItem, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = r.opts.TopK
	}
	queries := r.expander.Expand(q.Text)
	if len(queries) == 0 {
		return nil, nil
	}
	logger.Section("retrieval")
	logger.Debug("expanded to %d query variations", len(queries))

	vectors, err := r.embedder.EmbedQueries(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}

	var filter *domain.SearchFilter
	if q.Category != "" {
		filter = &domain.SearchFilter{Category: q.Category}
	}
	fetchLimit := topK * r.opts.FetchMultiplier

	// One index query per expansion, issued concurrently; merging afterwards
	// is deterministic because results keep expansion order.
	perQuery := make([][]domain.SearchHit, len(vectors))
	g, gctx := errgroup.WithContext(ctx)
	for i := range vectors {
		i := i
		g.Go(func() error {
			hits, err := r.store.Search(gctx, vectors[i], fetchLimit, r.opts.SimilarityThreshold, filter)
			if err != nil {
				return err
			}
			perQuery[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	merged := mergeHits(perQuery)
	logger.Debug("merged %d raw hits into %d candidates", countHits(perQuery), len(merged))

	vecByID := make(map[string][]float64, len(merged))
	for _, c := range merged {
		vecByID[c.hit.Chunk.ID] = c.hit.Vector
	}

	pool := r.rerankOrTruncate(ctx, q.Text, merged, topK)
	final := applyDiversity(pool, topK)
	r.flagDisagreements(final, vecByID)

	logger.Debug("returning %d evidence items", len(final))
	return final, nil
}

// mergeHits unions hits from all expansions by chunk identity. A duplicate
// keeps the maximum score; the match count records how many expansions hit
// the chunk. Ordering: match count desc, then score desc, then chunk ID.
func mergeHits(perQuery [][]domain.SearchHit) []*candidate {
	byID := make(map[string]*candidate)
	var order []*candidate
	for _, hits := range perQuery {
		for _, h := range hits {
			if c, ok := byID[h.Chunk.ID]; ok {
				c.matchCount++
				if h.Score > c.score {
					c.score = h.Score
					c.hit = h
				}
				continue
			}
			c := &candidate{hit: h, score: h.Score, matchCount: 1}
			byID[h.Chunk.ID] = c
			order = append(order, c)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].matchCount != order[j].matchCount {
			return order[i].matchCount > order[j].matchCount
		}
		if order[i].score != order[j].score {
			return order[i].score > order[j].score
		}
		return order[i].hit.Chunk.ID < order[j].hit.Chunk.ID
	})
	return order
}

// rerankOrTruncate passes the surviving candidates plus the original query
// through the secondary relevance model when enabled. Rerank failure is not
// fatal: the merged ordering survives with a wider pool for diversity.
func (r *Retriever) rerankOrTruncate(ctx context.Context, query string, merged []*candidate, topK int) []domain.EvidenceItem {
	if r.opts.EnableReranking && r.reranker != nil && len(merged) > 0 {
		docs := make([]string, len(merged))
		for i, c := range merged {
			docs[i] = c.hit.Chunk.Text
		}
		results, err := r.reranker.Rerank(ctx, query, docs, topK)
		if err == nil {
			items := make([]domain.EvidenceItem, 0, len(results))
			for _, res := range results {
				c := merged[res.Index]
				items = append(items, domain.EvidenceItem{
					Chunk:       c.hit.Chunk,
					Score:       c.score,
					RerankScore: res.Score,
					MatchCount:  c.matchCount,
				})
			}
			logger.Debug("reranked %d candidates", len(merged))
			return items
		}
		logger.Warn("reranking failed, using merged order: %v", err)
	}
	// Keep a pool wider than topK so the diversity pass still sees minority
	// sources; it caps the final result at topK.
	if len(merged) > topK*2 {
		merged = merged[:topK*2]
	}
	items := make([]domain.EvidenceItem, 0, len(merged))
	for _, c := range merged {
		items = append(items, domain.EvidenceItem{
			Chunk:      c.hit.Chunk,
			Score:      c.score,
			MatchCount: c.matchCount,
		})
	}
	return items
}

// applyDiversity keeps the absolute top 3 results, then round-robins the
// remaining slots across source files so one resource cannot crowd out the
// rest. Never returns more than topK items and never duplicates a chunk.
func applyDiversity(items []domain.EvidenceItem, topK int) []domain.EvidenceItem {
	if len(items) <= 3 || topK <= 3 {
		if len(items) > topK {
			return items[:topK]
		}
		return items
	}
	top := items[:3]
	rest := items[3:]

	groups := make(map[string][]domain.EvidenceItem)
	var keys []string
	for _, it := range rest {
		key := it.Chunk.SourceFile
		if key == "" {
			key = it.Chunk.Title
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], it)
	}

	out := append([]domain.EvidenceItem{}, top...)
	for len(out) < topK {
		advanced := false
		for _, key := range keys {
			if len(out) >= topK {
				break
			}
			if len(groups[key]) == 0 {
				continue
			}
			out = append(out, groups[key][0])
			groups[key] = groups[key][1:]
			advanced = true
		}
		if !advanced {
			break
		}
	}
	return out
}

var keywordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// flagDisagreements marks pairs whose keyword overlap clears the overlap
// threshold while their vector similarity stays below the disagreement
// threshold: same topic, different content. Generation must address the
// discrepancy instead of silently reconciling it.
func (r *Retriever) flagDisagreements(items []domain.EvidenceItem, vecByID map[string][]float64) {
	if len(items) < 2 {
		return
	}
	vectors := make([][]float64, len(items))
	tokens := make([]map[string]struct{}, len(items))
	for i := range items {
		tokens[i] = keywordSet(items[i].Chunk.Text)
		// Stores that omit vectors leave the pair unflagged.
		vectors[i] = vecByID[items[i].Chunk.ID]
	}
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if len(vectors[i]) == 0 || len(vectors[j]) == 0 {
				continue
			}
			overlap := jaccard(tokens[i], tokens[j])
			if overlap < r.opts.KeywordOverlapThreshold {
				continue
			}
			if cosine(vectors[i], vectors[j]) < r.opts.DisagreementSimilarity {
				items[i].Disagrees = true
				items[j].Disagrees = true
			}
		}
	}
}

// keywordSet extracts content-bearing tokens: lowercase words of at least
// four letters, so articles and other filler do not inflate the overlap.
func keywordSet(text string) map[string]struct{} {
	words := keywordRe.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) < 4 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func countHits(perQuery [][]domain.SearchHit) int {
	n := 0
	for _, hits := range perQuery {
		n += len(hits)
	}
	return n
}
