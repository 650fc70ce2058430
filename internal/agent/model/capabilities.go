package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Classifier is the structured-output capability: given a system prompt plus
// message history it fills a closed schema. Transport failures are degraded
// at the call site; a value outside the schema's domain is returned as an
// error and is fatal to the turn.
type Classifier interface {
	// ClassifyIntent decides the route for the latest user message.
	ClassifyIntent(ctx context.Context, history []*schema.Message) (Intent, error)
	// ExtractOrderInfo parses the latest user reply into the three required
	// order integers, zero-sentinelled when absent.
	ExtractOrderInfo(ctx context.Context, history []*schema.Message) (OrderInfo, error)
	// DeriveSearchQueries turns free text into a vector phrase and keyword set.
	DeriveSearchQueries(ctx context.Context, userQuery string) (SearchQueries, error)
}

// Generator produces free-form text given a system prompt plus history.
type Generator interface {
	Generate(ctx context.Context, system string, history []*schema.Message) (string, error)
}

// Embedder maps text to a fixed-dimension vector. Empty input yields an
// empty vector and is logged as a misuse, not an error.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reranker reorders candidates by relevance to the query and reports whether
// any of them actually match. It may fail; callers fall back to the
// pre-rerank order with found=false.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []ProductSummary) ([]ProductSummary, bool, error)
}

// StateRepository checkpoints conversation state keyed by thread id.
type StateRepository interface {
	// Load returns the persisted state, or a fresh one when the thread is new.
	Load(ctx context.Context, threadID string) (*ConversationState, error)
	// Save persists the state at end of turn.
	Save(ctx context.Context, state *ConversationState) error
	// Clear removes the thread's checkpoint.
	Clear(ctx context.Context, threadID string) error
}

// ProductStore is the typed gateway to product/order storage. Every
// operation is a single transactional round trip and fails independently;
// backend errors surface as errx-typed results, never raw driver errors.
type ProductStore interface {
	GetProductByID(ctx context.Context, id int) (*Product, error)
	GetProductByName(ctx context.Context, name string) (*Product, error)
	SearchByKeyword(ctx context.Context, keyword string, k int) ([]ProductSummary, error)
	SearchByVector(ctx context.Context, vector []float32, k int) ([]ProductSummary, error)
	CheckStock(ctx context.Context, productID int) (int, error)
	DecrementStock(ctx context.Context, productID, quantity int) (bool, error)
	CreateOrder(ctx context.Context, order NewOrder) (int64, error)
}
