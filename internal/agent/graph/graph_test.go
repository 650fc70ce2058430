package graph

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/bookworm-assistant/server/internal/agent/graph/ordergraph"
	"github.com/bookworm-assistant/server/internal/agent/graph/raggraph"
	"github.com/bookworm-assistant/server/internal/agent/model"
	errx "github.com/bookworm-assistant/server/internal/core/error"
	"github.com/bookworm-assistant/server/internal/retrieval"
)

// ---- scripted capabilities ----

type scriptClassifier struct {
	intents    []model.Intent
	intentErr  error
	intentCall int

	orderInfos []model.OrderInfo
	extractErr error
	orderCall  int

	queries model.SearchQueries
}

func (s *scriptClassifier) ClassifyIntent(_ context.Context, _ []*schema.Message) (model.Intent, error) {
	if s.intentErr != nil {
		return "", s.intentErr
	}
	idx := s.intentCall
	if idx >= len(s.intents) {
		idx = len(s.intents) - 1
	}
	s.intentCall++
	return s.intents[idx], nil
}

func (s *scriptClassifier) ExtractOrderInfo(_ context.Context, _ []*schema.Message) (model.OrderInfo, error) {
	if s.extractErr != nil {
		return model.OrderInfo{}, s.extractErr
	}
	if len(s.orderInfos) == 0 {
		return model.OrderInfo{}, nil
	}
	idx := s.orderCall
	if idx >= len(s.orderInfos) {
		idx = len(s.orderInfos) - 1
	}
	s.orderCall++
	return s.orderInfos[idx], nil
}

func (s *scriptClassifier) DeriveSearchQueries(_ context.Context, _ string) (model.SearchQueries, error) {
	return s.queries, nil
}

type scriptGenerator struct {
	reply   string
	err     error
	systems []string
}

func (g *scriptGenerator) Generate(_ context.Context, system string, _ []*schema.Message) (string, error) {
	g.systems = append(g.systems, system)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

// ---- in-memory checkpoint repository ----

type memoryRepo struct {
	states    map[string]*model.ConversationState
	saveCalls int
	loadErr   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{states: map[string]*model.ConversationState{}}
}

func (m *memoryRepo) Load(_ context.Context, threadID string) (*model.ConversationState, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if st, ok := m.states[threadID]; ok {
		return st, nil
	}
	return model.NewConversationState(threadID), nil
}

func (m *memoryRepo) Save(_ context.Context, st *model.ConversationState) error {
	m.saveCalls++
	m.states[st.ThreadID] = st
	return nil
}

func (m *memoryRepo) Clear(_ context.Context, threadID string) error {
	delete(m.states, threadID)
	return nil
}

// ---- store and retrieval fakes ----

type fakeStore struct {
	products map[int]*model.Product
	hits     []model.ProductSummary
	created  []model.NewOrder
}

func (f *fakeStore) GetProductByID(_ context.Context, id int) (*model.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, errx.New(errors.New("no rows"), http.StatusNotFound, errx.StoreNotFoundMessage)
}

func (f *fakeStore) GetProductByName(_ context.Context, _ string) (*model.Product, error) {
	return nil, errx.New(errors.New("no rows"), http.StatusNotFound, errx.StoreNotFoundMessage)
}

func (f *fakeStore) SearchByKeyword(_ context.Context, _ string, _ int) ([]model.ProductSummary, error) {
	return f.hits, nil
}

func (f *fakeStore) SearchByVector(_ context.Context, _ []float32, _ int) ([]model.ProductSummary, error) {
	return f.hits, nil
}

func (f *fakeStore) CheckStock(_ context.Context, id int) (int, error) {
	if p, ok := f.products[id]; ok {
		return p.StockQuantity, nil
	}
	return 0, errx.New(errors.New("no rows"), http.StatusNotFound, errx.StoreNotFoundMessage)
}

func (f *fakeStore) DecrementStock(_ context.Context, _, _ int) (bool, error) {
	return true, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order model.NewOrder) (int64, error) {
	f.created = append(f.created, order)
	return 42, nil
}

type passEmbedder struct{}

func (passEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1}, nil
}

type passReranker struct{}

func (passReranker) Rerank(_ context.Context, _ string, candidates []model.ProductSummary) ([]model.ProductSummary, bool, error) {
	return candidates, len(candidates) > 0, nil
}

// ---- harness ----

func price(v float64) *float64 { return &v }

func newTestEngine(t *testing.T, classifier model.Classifier, generator model.Generator, repo model.StateRepository, store *fakeStore) *Engine {
	t.Helper()

	retriever := retrieval.NewRetriever(store, store, passEmbedder{}, model.RetrievalConfig{TopK: 5, RRFConstant: 60})
	rag := raggraph.New(classifier, retriever, passReranker{}, model.RetrievalConfig{MaxResults: 5})

	cfg := Config{Order: model.OrderConfig{DefaultUserID: 1}}
	cfg.Conversation.MaxSteps = 12
	cfg.Conversation.Router.MaxMessages = 5

	engine, err := NewEngine(Deps{
		Classifier: classifier,
		Generator:  generator,
		Repository: repo,
		Retrieval:  rag,
		Orders:     ordergraph.New(store),
	}, cfg)
	require.NoError(t, err)
	return engine
}

func defaultStore() *fakeStore {
	return &fakeStore{
		products: map[int]*model.Product{
			2: {ID: 2, Name: "Clean Code", Price: price(250000), StockQuantity: 10},
		},
		hits: []model.ProductSummary{{ID: 2, Name: "Clean Code"}},
	}
}

func TestNewEngine_ValidatesDependencies(t *testing.T) {
	store := defaultStore()
	retriever := retrieval.NewRetriever(store, store, passEmbedder{}, model.RetrievalConfig{})
	classifier := &scriptClassifier{intents: []model.Intent{model.IntentChitchat}}
	rag := raggraph.New(classifier, retriever, passReranker{}, model.RetrievalConfig{})

	_, err := NewEngine(Deps{Generator: &scriptGenerator{}, Repository: newMemoryRepo(), Retrieval: rag, Orders: ordergraph.New(store)}, Config{})
	require.Error(t, err)

	_, err = NewEngine(Deps{Classifier: classifier, Generator: &scriptGenerator{}, Retrieval: rag, Orders: ordergraph.New(store)}, Config{})
	require.Error(t, err)

	_, err = NewEngine(Deps{Classifier: classifier, Generator: &scriptGenerator{}, Repository: newMemoryRepo()}, Config{})
	require.Error(t, err)
}

func TestProcessTurn_Chitchat(t *testing.T) {
	repo := newMemoryRepo()
	classifier := &scriptClassifier{intents: []model.Intent{model.IntentChitchat}}
	generator := &scriptGenerator{reply: "Chào bạn!"}
	engine := newTestEngine(t, classifier, generator, repo, defaultStore())

	reply, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "xin chào"})
	require.NoError(t, err)
	require.Equal(t, "Chào bạn!", reply)
	require.Equal(t, 1, repo.saveCalls)

	st := repo.states["t1"]
	require.Equal(t, model.IntentChitchat, st.Router)
	require.Len(t, st.Messages, 2)
	require.Equal(t, schema.User, st.Messages[0].Role)
	require.Equal(t, schema.Assistant, st.Messages[1].Role)
}

func TestProcessTurn_ProductInfo(t *testing.T) {
	repo := newMemoryRepo()
	classifier := &scriptClassifier{
		intents: []model.Intent{model.IntentProductInfo},
		queries: model.SearchQueries{VectorQuery: "clean code", Keyword: "clean code"},
	}
	generator := &scriptGenerator{reply: "Shop có cuốn Clean Code ạ."}
	engine := newTestEngine(t, classifier, generator, repo, defaultStore())

	reply, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "có sách clean code không?"})
	require.NoError(t, err)
	require.Equal(t, "Shop có cuốn Clean Code ạ.", reply)

	st := repo.states["t1"]
	require.Len(t, st.RetrievedProducts, 1)
	require.Equal(t, 2, st.RetrievedProducts[0].ID)

	// the response prompt carries the retrieved block
	require.Len(t, generator.systems, 1)
	require.Contains(t, generator.systems[0], "Clean Code")
}

func TestProcessTurn_OrderWithFullDetails(t *testing.T) {
	repo := newMemoryRepo()
	store := defaultStore()
	classifier := &scriptClassifier{
		intents:    []model.Intent{model.IntentOrder},
		orderInfos: []model.OrderInfo{{ProductID: 2, Quantity: 1}},
	}
	generator := &scriptGenerator{reply: "Đặt hàng thành công!"}
	engine := newTestEngine(t, classifier, generator, repo, store)

	reply, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "đặt sản phẩm 2, số lượng 1"})
	require.NoError(t, err)
	require.Equal(t, "Đặt hàng thành công!", reply)

	require.Len(t, store.created, 1)
	require.Equal(t, model.NewOrder{UserID: 1, ProductID: 2, Quantity: 1, TotalAmount: 250000}, store.created[0])

	st := repo.states["t1"]
	require.Contains(t, st.OrderState, "status: true")
	require.Contains(t, st.OrderState, "total_amount: 250000.00")
	// consumed so the next order starts a fresh collection loop
	require.Equal(t, model.FieldUnknown, st.CurrentProductID)
	require.Equal(t, model.FieldUnknown, st.CurrentProductQuantity)
	require.Equal(t, 1, st.UserID)
}

func TestProcessTurn_OrderAsksForMissingFields(t *testing.T) {
	repo := newMemoryRepo()
	store := defaultStore()
	classifier := &scriptClassifier{
		intents:    []model.Intent{model.IntentOrder},
		orderInfos: []model.OrderInfo{{}},
	}
	generator := &scriptGenerator{reply: "Bạn muốn đặt sách nào và số lượng bao nhiêu ạ?"}
	engine := newTestEngine(t, classifier, generator, repo, store)

	reply, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "mình muốn đặt sách"})
	require.NoError(t, err)
	require.Equal(t, "Bạn muốn đặt sách nào và số lượng bao nhiêu ạ?", reply)
	require.Empty(t, store.created)

	st := repo.states["t1"]
	require.ElementsMatch(t, []string{model.FieldProductID, model.FieldQuantity}, st.LackOfOrderInfo)
	// the default account fills in silently, never asked for
	require.Equal(t, 1, st.UserID)
	require.NotContains(t, generator.systems[0], model.FieldUserID)
}

func TestProcessTurn_FollowUpTurnCompletesOrder(t *testing.T) {
	repo := newMemoryRepo()
	store := defaultStore()
	classifier := &scriptClassifier{
		intents:    []model.Intent{model.IntentOrder, model.IntentOrder},
		orderInfos: []model.OrderInfo{{ProductID: 2}, {Quantity: 3}},
	}
	generator := &scriptGenerator{reply: "ok"}
	engine := newTestEngine(t, classifier, generator, repo, store)

	_, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "đặt sản phẩm 2"})
	require.NoError(t, err)
	require.Empty(t, store.created)
	require.Equal(t, []string{model.FieldQuantity}, repo.states["t1"].LackOfOrderInfo)

	_, err = engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "lấy 3 cuốn"})
	require.NoError(t, err)

	// the zero-valued product id in the second extraction must not clobber
	// the id collected on the first turn
	require.Len(t, store.created, 1)
	require.Equal(t, model.NewOrder{UserID: 1, ProductID: 2, Quantity: 3, TotalAmount: 750000}, store.created[0])
}

func TestProcessTurn_NegativeExtractionNeverPlacesOrder(t *testing.T) {
	repo := newMemoryRepo()
	store := defaultStore()
	classifier := &scriptClassifier{
		intents:    []model.Intent{model.IntentOrder},
		orderInfos: []model.OrderInfo{{ProductID: 2, Quantity: -3}},
	}
	generator := &scriptGenerator{reply: "Bạn muốn lấy bao nhiêu cuốn ạ?"}
	engine := newTestEngine(t, classifier, generator, repo, store)

	reply, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "đặt sản phẩm 2, số lượng -3"})
	require.NoError(t, err)
	require.Equal(t, "Bạn muốn lấy bao nhiêu cuốn ạ?", reply)

	// a negative quantity is not a known value: the turn asks for the
	// quantity instead of writing an order with a negative total
	require.Empty(t, store.created)
	st := repo.states["t1"]
	require.Equal(t, []string{model.FieldQuantity}, st.LackOfOrderInfo)
	require.Equal(t, 2, st.CurrentProductID)
	require.Equal(t, model.FieldUnknown, st.CurrentProductQuantity)
}

func TestProcessTurn_LoadFailureDoesNotOverwriteCheckpoint(t *testing.T) {
	repo := newMemoryRepo()
	classifier := &scriptClassifier{intents: []model.Intent{model.IntentChitchat}}
	generator := &scriptGenerator{reply: "hi"}
	engine := newTestEngine(t, classifier, generator, repo, defaultStore())

	_, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "xin chào"})
	require.NoError(t, err)
	require.Equal(t, 1, repo.saveCalls)

	// a transient load failure degrades the turn to a fresh state but must
	// not replace the surviving checkpoint with that blank slate
	repo.loadErr = errors.New("i/o timeout")
	reply, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "alo"})
	require.NoError(t, err)
	require.Equal(t, "hi", reply)
	require.Equal(t, 1, repo.saveCalls)
	require.Len(t, repo.states["t1"].Messages, 2)
	require.Equal(t, "xin chào", repo.states["t1"].Messages[0].Content)

	// once the repository recovers, the thread resumes its saved history
	repo.loadErr = nil
	_, err = engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "còn đó không?"})
	require.NoError(t, err)
	require.Len(t, repo.states["t1"].Messages, 4)
}

func TestProcessTurn_UnknownIntentIsFatal(t *testing.T) {
	repo := newMemoryRepo()
	classifier := &scriptClassifier{
		intentErr: errx.New(errors.New("unknown intent \"refund\""), http.StatusUnprocessableEntity, errx.ClassifierErrorMessage),
	}
	engine := newTestEngine(t, classifier, &scriptGenerator{reply: "ok"}, repo, defaultStore())

	_, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "hoàn tiền cho mình"})
	require.Error(t, err)
	require.Zero(t, repo.saveCalls)
}

func TestProcessTurn_ClassifierOutageDegradesToChitchat(t *testing.T) {
	repo := newMemoryRepo()
	classifier := &scriptClassifier{intentErr: errors.New("connection refused")}
	generator := &scriptGenerator{reply: "Mình có thể giúp gì cho bạn?"}
	engine := newTestEngine(t, classifier, generator, repo, defaultStore())

	reply, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "alo"})
	require.NoError(t, err)
	require.Equal(t, "Mình có thể giúp gì cho bạn?", reply)
	require.Equal(t, model.IntentChitchat, repo.states["t1"].Router)
}

func TestProcessTurn_GeneratorFailureUsesFallbackReply(t *testing.T) {
	repo := newMemoryRepo()
	classifier := &scriptClassifier{intents: []model.Intent{model.IntentChitchat}}
	generator := &scriptGenerator{err: errors.New("model overloaded")}
	engine := newTestEngine(t, classifier, generator, repo, defaultStore())

	reply, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "hi"})
	require.NoError(t, err)
	require.Equal(t, fallbackReply, reply)
}

func TestProcessTurn_CheckpointSurvivesEngineRestart(t *testing.T) {
	repo := newMemoryRepo()
	store := defaultStore()
	classifier := &scriptClassifier{
		intents:    []model.Intent{model.IntentOrder, model.IntentOrder},
		orderInfos: []model.OrderInfo{{ProductID: 2}, {Quantity: 1}},
	}
	generator := &scriptGenerator{reply: "ok"}

	engine := newTestEngine(t, classifier, generator, repo, store)
	_, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "đặt sản phẩm 2"})
	require.NoError(t, err)

	// a new engine over the same repository resumes the collection loop
	restarted := newTestEngine(t, classifier, generator, repo, store)
	_, err = restarted.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "t1", Query: "1 cuốn"})
	require.NoError(t, err)
	require.Len(t, store.created, 1)
	require.Equal(t, 2, store.created[0].ProductID)
}

func TestProcessTurn_ThreadsAreIndependent(t *testing.T) {
	repo := newMemoryRepo()
	classifier := &scriptClassifier{intents: []model.Intent{model.IntentChitchat}}
	generator := &scriptGenerator{reply: "hi"}
	engine := newTestEngine(t, classifier, generator, repo, defaultStore())

	_, err := engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "a", Query: "1"})
	require.NoError(t, err)
	_, err = engine.ProcessTurn(context.Background(), model.QueryInput{ThreadID: "b", Query: "2"})
	require.NoError(t, err)

	require.Len(t, repo.states["a"].Messages, 2)
	require.Len(t, repo.states["b"].Messages, 2)
	require.Equal(t, "1", repo.states["a"].Messages[0].Content)
	require.Equal(t, "2", repo.states["b"].Messages[0].Content)
}
