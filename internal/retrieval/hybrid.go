package retrieval

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bookworm-assistant/server/internal/agent/model"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// DefaultRRFConstant is the k constant in reciprocal rank fusion scoring.
const DefaultRRFConstant = 60

// KeywordSearcher returns top-k candidates ranked by text relevance descending.
type KeywordSearcher interface {
	SearchByKeyword(ctx context.Context, keyword string, k int) ([]model.ProductSummary, error)
}

// VectorSearcher returns top-k candidates ranked by vector distance ascending.
type VectorSearcher interface {
	SearchByVector(ctx context.Context, vector []float32, k int) ([]model.ProductSummary, error)
}

// Retriever runs keyword and vector search concurrently and fuses the two
// ranked lists. Either backend failing degrades to an empty list for that
// branch only; one search failing must not fail the other.
type Retriever struct {
	keyword  KeywordSearcher
	vector   VectorSearcher
	embedder model.Embedder

	topK        int
	rrfConstant int
}

func NewRetriever(keyword KeywordSearcher, vector VectorSearcher, embedder model.Embedder, cfg model.RetrievalConfig) *Retriever {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	rrf := cfg.RRFConstant
	if rrf <= 0 {
		rrf = DefaultRRFConstant
	}
	return &Retriever{
		keyword:     keyword,
		vector:      vector,
		embedder:    embedder,
		topK:        topK,
		rrfConstant: rrf,
	}
}

// Search embeds the vector query, forks both backends, joins, and fuses.
// A nil result means neither backend returned anything: a not-found
// condition, distinct from "zero relevant" after reranking.
func (r *Retriever) Search(ctx context.Context, keyword, vectorQuery string) ([]model.ProductSummary, error) {
	var (
		textResults   []model.ProductSummary
		vectorResults []model.ProductSummary
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if keyword == "" {
			return nil
		}
		results, err := r.keyword.SearchByKeyword(gctx, keyword, r.topK)
		if err != nil {
			logx.Error().Err(err).Str("keyword", keyword).Msg("keyword search failed, degrading branch to empty")
			return nil
		}
		textResults = results
		return nil
	})

	g.Go(func() error {
		if vectorQuery == "" {
			return nil
		}
		vec, err := r.embedder.Embed(gctx, vectorQuery)
		if err != nil {
			logx.Error().Err(err).Str("query", vectorQuery).Msg("embedding failed, degrading vector branch to empty")
			return nil
		}
		if len(vec) == 0 {
			return nil
		}
		results, err := r.vector.SearchByVector(gctx, vec, r.topK)
		if err != nil {
			logx.Error().Err(err).Str("query", vectorQuery).Msg("vector search failed, degrading branch to empty")
			return nil
		}
		vectorResults = results
		return nil
	})

	// branches swallow their own errors, so the join cannot fail
	_ = g.Wait()

	fused := Fuse(textResults, vectorResults, r.rrfConstant)
	if len(fused) > r.topK {
		fused = fused[:r.topK]
	}

	logx.Debug().
		Int("text_hits", len(textResults)).
		Int("vector_hits", len(vectorResults)).
		Int("fused", len(fused)).
		Msg("hybrid search complete")

	return fused, nil
}

// Fuse combines two ranked candidate lists by reciprocal rank fusion: each
// candidate scores the sum over the lists containing it of
// 1/(rrfConstant + rank), rank 1-indexed. Candidates are ordered by
// descending fused score; ties keep first-occurrence input order. When only
// one list has results its native order is returned unmodified, and when
// both are empty the result is nil.
func Fuse(textResults, vectorResults []model.ProductSummary, rrfConstant int) []model.ProductSummary {
	if len(textResults) == 0 && len(vectorResults) == 0 {
		return nil
	}
	if len(vectorResults) == 0 {
		return dedupe(textResults)
	}
	if len(textResults) == 0 {
		return dedupe(vectorResults)
	}

	textRanks := rankByID(textResults)
	vectorRanks := rankByID(vectorResults)

	var order []int
	items := make(map[int]model.ProductSummary)
	for _, p := range append(append([]model.ProductSummary{}, textResults...), vectorResults...) {
		if _, ok := items[p.ID]; ok {
			continue
		}
		items[p.ID] = p
		order = append(order, p.ID)
	}

	scores := make(map[int]float64, len(order))
	for _, id := range order {
		score := 0.0
		if rank, ok := textRanks[id]; ok {
			score += 1.0 / float64(rrfConstant+rank)
		}
		if rank, ok := vectorRanks[id]; ok {
			score += 1.0 / float64(rrfConstant+rank)
		}
		scores[id] = score
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	fused := make([]model.ProductSummary, 0, len(order))
	for _, id := range order {
		item := items[id]
		item.Score = scores[id]
		fused = append(fused, item)
	}
	return fused
}

// rankByID maps candidate id to its 1-indexed rank, keeping the first
// occurrence when a backend returns duplicates.
func rankByID(results []model.ProductSummary) map[int]int {
	ranks := make(map[int]int, len(results))
	rank := 0
	for _, p := range results {
		if _, ok := ranks[p.ID]; ok {
			continue
		}
		rank++
		ranks[p.ID] = rank
	}
	return ranks
}

// dedupe keeps first occurrence order within a single backend's results.
func dedupe(results []model.ProductSummary) []model.ProductSummary {
	seen := make(map[int]bool, len(results))
	out := make([]model.ProductSummary, 0, len(results))
	for _, p := range results {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
