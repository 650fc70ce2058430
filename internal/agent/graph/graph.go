package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/schema"

	"github.com/bookworm-assistant/server/internal/agent/graph/conversations"
	"github.com/bookworm-assistant/server/internal/agent/graph/ordergraph"
	"github.com/bookworm-assistant/server/internal/agent/graph/prompts"
	"github.com/bookworm-assistant/server/internal/agent/graph/raggraph"
	"github.com/bookworm-assistant/server/internal/agent/model"
	errx "github.com/bookworm-assistant/server/internal/core/error"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// node names one state of the top-level dialogue machine.
type node string

const (
	nodeDetermineAgent   node = "determine_agent"
	nodeRAG              node = "rag"
	nodeCheckOrderInfo   node = "check_order_info"
	nodeAskForOrderInfo  node = "ask_for_order_info"
	nodeExtractOrderInfo node = "extract_order_info"
	nodeCreateOrder      node = "create_order"
	nodeResponse         node = "response"
	nodeEnd              node = "end"
)

// handler runs one node against the current state and returns the fields it
// changed as a patch; the engine merges patches between steps.
type handler func(ctx context.Context, st *model.ConversationState) (model.Patch, error)

// fallbackReply is appended when response generation itself is unreachable,
// so a turn never ends without an assistant message.
const fallbackReply = "Xin lỗi, hệ thống đang gặp sự cố. Bạn vui lòng thử lại sau ít phút nhé."

// Config carries the engine's tunables.
type Config struct {
	Conversation model.ConversationConfig
	Order        model.OrderConfig
}

// Deps are the injected collaborators: capabilities, sub-graphs and the
// checkpoint repository. Everything is constructor-injected so tests swap in
// deterministic fakes.
type Deps struct {
	Classifier model.Classifier
	Generator  model.Generator
	Repository model.StateRepository
	Retrieval  *raggraph.Graph
	Orders     *ordergraph.Graph
}

// Engine is the top-level dialogue state machine. A user turn enters at
// determine_agent and walks conditional edges until the terminal response
// (or a follow-up question) has been appended to the history; the state is
// then checkpointed keyed by thread id. Nodes of one conversation never run
// concurrently; different threads are fully independent.
type Engine struct {
	classifier model.Classifier
	generator  model.Generator
	repo       model.StateRepository
	rag        *raggraph.Graph
	orders     *ordergraph.Graph
	mm         *conversations.Manager

	maxSteps      int
	defaultUserID int

	handlers map[node]handler
}

func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	if deps.Classifier == nil || deps.Generator == nil {
		return nil, fmt.Errorf("classifier and generator are required")
	}
	if deps.Repository == nil {
		return nil, fmt.Errorf("state repository is required")
	}
	if deps.Retrieval == nil || deps.Orders == nil {
		return nil, fmt.Errorf("retrieval and order sub-graphs are required")
	}

	maxSteps := cfg.Conversation.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 12
	}

	e := &Engine{
		classifier:    deps.Classifier,
		generator:     deps.Generator,
		repo:          deps.Repository,
		rag:           deps.Retrieval,
		orders:        deps.Orders,
		mm:            conversations.NewManager(cfg.Conversation.Router.MaxMessages),
		maxSteps:      maxSteps,
		defaultUserID: cfg.Order.DefaultUserID,
	}
	e.handlers = map[node]handler{
		nodeDetermineAgent:   e.determineAgent,
		nodeRAG:              e.runRetrieval,
		nodeCheckOrderInfo:   e.checkOrderInfo,
		nodeAskForOrderInfo:  e.askForOrderInfo,
		nodeExtractOrderInfo: e.extractOrderInfo,
		nodeCreateOrder:      e.createOrder,
		nodeResponse:         e.respond,
	}
	return e, nil
}

// next is the pure transition function mapping the current node and state to
// the next node. An intent outside the closed routing set is a turn-fatal
// error; the machine never walks an undefined edge.
func (e *Engine) next(cur node, st *model.ConversationState) (node, error) {
	switch cur {
	case nodeDetermineAgent:
		switch st.Router {
		case model.IntentOrder:
			// extraction always runs first so details embedded in the current
			// message (or answering a pending question) are picked up before
			// the missing-field check
			return nodeExtractOrderInfo, nil
		case model.IntentProductInfo:
			return nodeRAG, nil
		case model.IntentChitchat:
			return nodeResponse, nil
		default:
			return nodeEnd, errx.New(fmt.Errorf("unknown router value %q", st.Router), http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
		}
	case nodeRAG:
		return nodeResponse, nil
	case nodeCheckOrderInfo:
		if len(st.LackOfOrderInfo) > 0 {
			return nodeAskForOrderInfo, nil
		}
		return nodeCreateOrder, nil
	case nodeAskForOrderInfo:
		// the follow-up question is the turn's reply; extraction resumes on
		// the next order-intent turn
		return nodeEnd, nil
	case nodeExtractOrderInfo:
		return nodeCheckOrderInfo, nil
	case nodeCreateOrder:
		return nodeResponse, nil
	case nodeResponse:
		return nodeEnd, nil
	default:
		return nodeEnd, fmt.Errorf("no transition from node %q", cur)
	}
}

// ProcessTurn routes one user turn through the dialogue machine and returns
// the assistant's reply. State is loaded from and checkpointed back to the
// repository so a restarted process resumes from the last completed turn.
func (e *Engine) ProcessTurn(ctx context.Context, in model.QueryInput) (string, error) {
	st, err := e.repo.Load(ctx, in.ThreadID)
	loadFailed := err != nil
	if loadFailed {
		// a failed load degrades to a fresh conversation rather than a dead
		// thread, but the turn then runs unsaved: if the checkpoint still
		// exists behind a transient outage, overwriting it from a blank
		// slate would erase the thread's history
		logx.Warn().Err(err).Str("thread_id", in.ThreadID).Msg("checkpoint load failed, running turn on fresh state")
		st = model.NewConversationState(in.ThreadID)
	}

	st.Apply(model.Patch{Messages: []*schema.Message{schema.UserMessage(in.Query)}})

	cur := nodeDetermineAgent
	for steps := 0; cur != nodeEnd; steps++ {
		if steps >= e.maxSteps {
			return "", fmt.Errorf("dialogue exceeded %d steps on thread %s", e.maxSteps, in.ThreadID)
		}

		h, ok := e.handlers[cur]
		if !ok {
			return "", fmt.Errorf("no handler for node %q", cur)
		}

		logx.Debug().Str("thread_id", in.ThreadID).Str("node", string(cur)).Msg("executing node")

		patch, err := h(ctx, st)
		if err != nil {
			return "", err
		}
		st.Apply(patch)

		cur, err = e.next(cur, st)
		if err != nil {
			return "", err
		}
	}

	if loadFailed {
		logx.Warn().Str("thread_id", in.ThreadID).Msg("checkpoint save skipped after failed load")
	} else if err := e.repo.Save(ctx, st); err != nil {
		logx.Error().Err(err).Str("thread_id", in.ThreadID).Msg("checkpoint save failed")
	}

	return st.LastAssistantMessage(), nil
}

// determineAgent classifies the latest user message into the routing enum.
// Transport failures degrade to chitchat so the user still gets a reply; an
// unusable classification result stays fatal.
func (e *Engine) determineAgent(ctx context.Context, st *model.ConversationState) (model.Patch, error) {
	system, err := prompts.RenderRouterSystem(ctx)
	if err != nil {
		return model.Patch{}, err
	}

	intent, err := e.classifier.ClassifyIntent(ctx, e.mm.ClassifierContext(system, st.Messages))
	if err != nil {
		var appErr *errx.Error
		if errors.As(err, &appErr) && appErr.Status == http.StatusUnprocessableEntity {
			return model.Patch{}, err
		}
		logx.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("intent classification unreachable, degrading to chitchat")
		intent = model.IntentChitchat
	}

	logx.Debug().Str("thread_id", st.ThreadID).Str("router", string(intent)).Msg("intent classified")
	return model.Patch{Router: &intent}, nil
}

// runRetrieval invokes the retrieval sub-graph with the latest user message
// and copies its output into conversation state. The product list is
// recomputed per retrieval turn, never accumulated.
func (e *Engine) runRetrieval(ctx context.Context, st *model.ConversationState) (model.Patch, error) {
	result := e.rag.Run(ctx, st.LastUserMessage())
	return model.Patch{RetrievedProducts: &result.Products}, nil
}

// checkOrderInfo recomputes the set of required order fields still at the
// unknown sentinel. The user id is deployment-fixed: when the conversation
// has none, the configured default fills it in rather than being asked for.
func (e *Engine) checkOrderInfo(ctx context.Context, st *model.ConversationState) (model.Patch, error) {
	patch := model.Patch{}

	userID := st.UserID
	if userID == model.FieldUnknown && e.defaultUserID != model.FieldUnknown {
		userID = e.defaultUserID
		patch.UserID = &userID
	}

	missing := []string{}
	if userID == model.FieldUnknown {
		missing = append(missing, model.FieldUserID)
	}
	if st.CurrentProductID == model.FieldUnknown {
		missing = append(missing, model.FieldProductID)
	}
	if st.CurrentProductQuantity == model.FieldUnknown {
		missing = append(missing, model.FieldQuantity)
	}
	patch.LackOfOrderInfo = &missing

	logx.Debug().Str("thread_id", st.ThreadID).Strs("missing", missing).Msg("order info checked")
	return patch, nil
}

// askForOrderInfo generates one concise follow-up question targeting exactly
// the missing fields and appends it as the assistant reply for this turn.
func (e *Engine) askForOrderInfo(ctx context.Context, st *model.ConversationState) (model.Patch, error) {
	system, err := prompts.RenderMoreInfoSystem(ctx, st.LackOfOrderInfo)
	if err != nil {
		return model.Patch{}, err
	}

	question, err := e.generator.Generate(ctx, system, e.mm.ResponseContext(st.Messages))
	if err != nil {
		logx.Error().Err(err).Str("thread_id", st.ThreadID).Msg("follow-up question generation failed")
		question = "Which book would you like to order? Please give the product ID, ISBN, or exact title, and how many copies."
	}

	return model.Patch{Messages: []*schema.Message{schema.AssistantMessage(question, nil)}}, nil
}

// extractOrderInfo parses the latest user reply into the three order
// integers. Unknown sentinels never clobber values already collected on
// earlier turns; a fresh non-zero value replaces a stale one so users can
// correct themselves.
func (e *Engine) extractOrderInfo(ctx context.Context, st *model.ConversationState) (model.Patch, error) {
	system, err := prompts.RenderExtractOrderSystem(ctx)
	if err != nil {
		return model.Patch{}, err
	}

	info, err := e.classifier.ExtractOrderInfo(ctx, e.mm.ClassifierContext(system, st.Messages))
	if err != nil {
		logx.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("order extraction failed, keeping known fields")
		info = model.OrderInfo{}
	}

	// only positive values merge: 0 is the unknown sentinel and a negative
	// id or quantity is extractor noise that must not reach order creation
	patch := model.Patch{}
	if info.UserID > model.FieldUnknown {
		patch.UserID = &info.UserID
	}
	if info.ProductID > model.FieldUnknown {
		patch.CurrentProductID = &info.ProductID
	}
	if info.Quantity > model.FieldUnknown {
		patch.CurrentProductQuantity = &info.Quantity
	}

	logx.Debug().
		Str("thread_id", st.ThreadID).
		Int("user_id", info.UserID).
		Int("product_id", info.ProductID).
		Int("quantity", info.Quantity).
		Msg("order info extracted")
	return patch, nil
}

// createOrder invokes the order sub-graph with the now-complete fields and
// stores its summary. Product id and quantity are consumed so the next order
// starts a fresh collection loop.
func (e *Engine) createOrder(ctx context.Context, st *model.ConversationState) (model.Patch, error) {
	summary := e.orders.Run(ctx, st.UserID, st.CurrentProductID, st.CurrentProductQuantity)

	consumed := model.FieldUnknown
	return model.Patch{
		OrderState:             &summary,
		CurrentProductID:       &consumed,
		CurrentProductQuantity: &consumed,
	}, nil
}

// respond synthesizes the user-facing reply; the prompt depends on the
// route taken this turn. Exactly one assistant message is appended.
func (e *Engine) respond(ctx context.Context, st *model.ConversationState) (model.Patch, error) {
	var system string
	var err error

	switch st.Router {
	case model.IntentProductInfo:
		block := raggraph.NotFoundMessage
		if len(st.RetrievedProducts) > 0 {
			block = model.FormatProducts(st.RetrievedProducts)
		}
		system, err = prompts.RenderRAGResponseSystem(ctx, block)
	case model.IntentOrder:
		system, err = prompts.RenderOrderResponseSystem(ctx, st.OrderState)
	default:
		system, err = prompts.RenderChitchatSystem(ctx)
	}
	if err != nil {
		return model.Patch{}, err
	}

	reply, err := e.generator.Generate(ctx, system, e.mm.ResponseContext(st.Messages))
	if err != nil {
		logx.Error().Err(err).Str("thread_id", st.ThreadID).Msg("response generation failed, using fallback reply")
		reply = fallbackReply
	}

	return model.Patch{Messages: []*schema.Message{schema.AssistantMessage(reply, nil)}}, nil
}
