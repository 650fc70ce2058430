package store

import (
	"context"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/require"

	"github.com/bookworm-assistant/server/internal/agent/model"
)

// tableEmbedder maps known texts to fixed unit vectors so similarity is
// fully deterministic.
type tableEmbedder struct {
	vectors map[string][]float32
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func newTestIndex(t *testing.T) (*VectorIndex, *tableEmbedder) {
	t.Helper()
	emb := &tableEmbedder{vectors: map[string][]float32{
		"học python từ đầu":    {1, 0, 0},
		"nấu ăn gia đình":      {0, 1, 0},
		"python cho người mới": {0.9805, 0.1961, 0},
	}}
	idx, err := NewVectorIndex(chromem.NewDB(), "products", emb)
	require.NoError(t, err)
	return idx, emb
}

func testPrice(v float64) *float64 { return &v }

func TestVectorIndex_IndexAndSearch(t *testing.T) {
	ctx := context.Background()
	idx, emb := newTestIndex(t)

	require.NoError(t, idx.IndexProduct(ctx, &model.Product{
		ID: 1, Name: "Học Python", Author: "A", Category: "Programming",
		Description: "học python từ đầu", Price: testPrice(150000),
	}))
	require.NoError(t, idx.IndexProduct(ctx, &model.Product{
		ID: 2, Name: "Món ngon mỗi ngày", Author: "B", Category: "Cooking",
		Description: "nấu ăn gia đình",
	}))

	hits, err := idx.SearchByVector(ctx, emb.vectors["python cho người mới"], 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// the programming book is closer, and distance ordering is ascending
	require.Equal(t, 1, hits[0].ID)
	require.Equal(t, 2, hits[1].ID)
	require.Less(t, hits[0].Score, hits[1].Score)

	require.Equal(t, "Học Python", hits[0].Name)
	require.Equal(t, "Programming", hits[0].Category)
	require.NotNil(t, hits[0].Price)
	require.Equal(t, 150000.0, *hits[0].Price)
	require.Nil(t, hits[1].Price)
}

func TestVectorIndex_KCappedAtCollectionSize(t *testing.T) {
	ctx := context.Background()
	idx, emb := newTestIndex(t)

	require.NoError(t, idx.IndexProduct(ctx, &model.Product{
		ID: 1, Name: "Học Python", Description: "học python từ đầu",
	}))

	hits, err := idx.SearchByVector(ctx, emb.vectors["học python từ đầu"], 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestVectorIndex_EmptyIndexReturnsNothing(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t)

	hits, err := idx.SearchByVector(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestVectorIndex_ReindexReplacesDocument(t *testing.T) {
	ctx := context.Background()
	idx, emb := newTestIndex(t)

	p := &model.Product{ID: 1, Name: "Old Name", Description: "học python từ đầu"}
	require.NoError(t, idx.IndexProduct(ctx, p))

	p.Name = "New Name"
	require.NoError(t, idx.IndexProduct(ctx, p))

	hits, err := idx.SearchByVector(ctx, emb.vectors["học python từ đầu"], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "New Name", hits[0].Name)
}
