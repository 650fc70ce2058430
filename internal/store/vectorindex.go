package store

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/bookworm-assistant/server/internal/agent/model"
	errx "github.com/bookworm-assistant/server/internal/core/error"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// VectorIndex is an embedded vector search backend for deployments where the
// product database has no vector extension. It satisfies the same vector
// search port as the Postgres gateway, so the hybrid retriever doesn't care
// which one it gets.
type VectorIndex struct {
	col *chromem.Collection
}

// NewVectorIndex opens (or creates) the named collection inside db. The
// embedder is wrapped into the collection's embedding function so documents
// indexed without an explicit vector get embedded on write.
func NewVectorIndex(db *chromem.DB, name string, embedder model.Embedder) (*VectorIndex, error) {
	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	col, err := db.GetOrCreateCollection(name, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("open vector collection %q: %w", name, err)
	}
	return &VectorIndex{col: col}, nil
}

// IndexProduct adds or replaces one product document in the index.
func (v *VectorIndex) IndexProduct(ctx context.Context, p *model.Product) error {
	doc := chromem.Document{
		ID:      strconv.Itoa(p.ID),
		Content: p.Description,
		Metadata: map[string]string{
			"name":     p.Name,
			"author":   p.Author,
			"category": p.Category,
		},
	}
	if p.Price != nil {
		doc.Metadata["price"] = fmt.Sprintf("%g", *p.Price)
	}
	if err := v.col.AddDocument(ctx, doc); err != nil {
		logx.Error().Err(err).Int("product_id", p.ID).Msg("vector index write failed")
		return errx.New(err, http.StatusBadGateway, errx.StoreErrorMessage)
	}
	return nil
}

// SearchByVector returns up to k candidates ranked by cosine distance
// ascending, mirroring the Postgres gateway's scoring convention.
func (v *VectorIndex) SearchByVector(ctx context.Context, vector []float32, k int) ([]model.ProductSummary, error) {
	if count := v.col.Count(); k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := v.col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		logx.Error().Err(err).Msg("vector index query failed")
		return nil, errx.New(err, http.StatusBadGateway, errx.StoreErrorMessage)
	}

	out := make([]model.ProductSummary, 0, len(results))
	for _, res := range results {
		id, err := strconv.Atoi(res.ID)
		if err != nil {
			continue
		}
		summary := model.ProductSummary{
			ID:          id,
			Name:        res.Metadata["name"],
			Author:      res.Metadata["author"],
			Category:    res.Metadata["category"],
			Description: res.Content,
			// chromem reports cosine similarity; convert to a distance so
			// ascending order matches the gateway convention.
			Score: float64(1 - res.Similarity),
		}
		if raw, ok := res.Metadata["price"]; ok {
			if price, err := strconv.ParseFloat(raw, 64); err == nil {
				summary.Price = &price
			}
		}
		out = append(out, summary)
	}
	return out, nil
}
