package raggraph

import (
	"context"

	"github.com/bookworm-assistant/server/internal/agent/model"
	"github.com/bookworm-assistant/server/internal/retrieval"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// NotFoundMessage is returned in place of a product list when reranking
// judged nothing relevant (or retrieval produced nothing at all).
const NotFoundMessage = "Không tìm thấy sản phẩm phù hợp!"

// node names one step of the retrieval state machine.
type node string

const (
	nodeGenerateQueries node = "generate_queries"
	nodeHybridSearch    node = "hybrid_search"
	nodeRerank          node = "rerank"
	nodeRespond         node = "respond"
	nodeEnd             node = "end"
)

// flowState is scoped to one retrieval request and discarded afterwards.
type flowState struct {
	UserQuery string

	VectorQuery string
	Keyword     string

	Retrieved []model.ProductSummary
	Found     bool
}

// Result is the retrieval pipeline's output: either a relevance-ordered
// product list or the localized not-found message.
type Result struct {
	Products []model.ProductSummary
	NotFound bool
	Message  string
}

// Graph is the retrieval pipeline state machine: derive search queries from
// the utterance, run the hybrid retriever, rerank, and shape the final list.
type Graph struct {
	classifier model.Classifier
	retriever  *retrieval.Retriever
	reranker   model.Reranker

	maxResults int
}

func New(classifier model.Classifier, retriever *retrieval.Retriever, reranker model.Reranker, cfg model.RetrievalConfig) *Graph {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Graph{
		classifier: classifier,
		retriever:  retriever,
		reranker:   reranker,
		maxResults: maxResults,
	}
}

// next is the pure transition function; the pipeline is linear.
func next(cur node) node {
	switch cur {
	case nodeGenerateQueries:
		return nodeHybridSearch
	case nodeHybridSearch:
		return nodeRerank
	case nodeRerank:
		return nodeRespond
	default:
		return nodeEnd
	}
}

// Run executes one retrieval request.
func (g *Graph) Run(ctx context.Context, userQuery string) Result {
	st := &flowState{UserQuery: userQuery}

	for cur := nodeGenerateQueries; cur != nodeEnd; cur = next(cur) {
		switch cur {
		case nodeGenerateQueries:
			g.generateQueries(ctx, st)
		case nodeHybridSearch:
			g.hybridSearch(ctx, st)
		case nodeRerank:
			g.rerank(ctx, st)
		case nodeRespond:
			return g.respond(st)
		}
	}
	return g.respond(st)
}

// generateQueries derives the semantic phrase and keyword set. On failure
// the raw utterance serves both roles so retrieval still proceeds.
func (g *Graph) generateQueries(ctx context.Context, st *flowState) {
	logx.Debug().Str("node", string(nodeGenerateQueries)).Msg("generating search queries")

	queries, err := g.classifier.DeriveSearchQueries(ctx, st.UserQuery)
	if err != nil {
		logx.Error().Err(err).Msg("query generation failed, falling back to raw utterance")
		st.VectorQuery = st.UserQuery
		st.Keyword = st.UserQuery
		return
	}
	st.VectorQuery = queries.VectorQuery
	st.Keyword = queries.Keyword

	logx.Debug().
		Str("vector_query", st.VectorQuery).
		Str("fts_keyword", st.Keyword).
		Msg("search queries derived")
}

func (g *Graph) hybridSearch(ctx context.Context, st *flowState) {
	logx.Debug().Str("node", string(nodeHybridSearch)).Msg("retrieving products")

	fused, err := g.retriever.Search(ctx, st.Keyword, st.VectorQuery)
	if err != nil {
		logx.Error().Err(err).Msg("hybrid search failed")
		return
	}
	st.Retrieved = fused
}

// rerank submits the fused candidates to the reranking capability. On
// failure it keeps the pre-rerank order and records relevance as false,
// never raising.
func (g *Graph) rerank(ctx context.Context, st *flowState) {
	if len(st.Retrieved) == 0 {
		return
	}

	logx.Debug().Str("node", string(nodeRerank)).Int("candidates", len(st.Retrieved)).Msg("reranking")

	reranked, found, err := g.reranker.Rerank(ctx, st.UserQuery, st.Retrieved)
	if err != nil {
		logx.Error().Err(err).Msg("rerank failed, keeping fused order")
		st.Found = false
		return
	}
	st.Retrieved = reranked
	st.Found = found
}

func (g *Graph) respond(st *flowState) Result {
	if !st.Found {
		logx.Debug().Msg("no relevant products found")
		return Result{NotFound: true, Message: NotFoundMessage}
	}

	products := st.Retrieved
	if len(products) > g.maxResults {
		products = products[:g.maxResults]
	}
	logx.Debug().Int("results", len(products)).Msg("product retrieval completed")
	return Result{Products: products}
}
