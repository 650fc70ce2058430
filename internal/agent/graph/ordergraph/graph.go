package ordergraph

import (
	"context"
	"fmt"

	"github.com/bookworm-assistant/server/internal/agent/model"
	errx "github.com/bookworm-assistant/server/internal/core/error"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// node names one step of the order state machine.
type node string

const (
	nodeCheckStock  node = "check_stock"
	nodeCreateOrder node = "create_order"
	nodeUpdateStock node = "update_stock"
	nodeRespond     node = "respond"
	nodeEnd         node = "end"
)

// FlowState is scoped to one order attempt and discarded after the summary
// is produced. StockAvailable stays nil when the product is unknown, which
// is distinct from zero stock.
type FlowState struct {
	UserID    int
	ProductID int
	Quantity  int

	StockAvailable *int

	OrderCreated bool
	OrderID      *int64
	TotalAmount  *float64

	// ProductMissing distinguishes "not found" from "out of stock" in the
	// summary; both still fall through to respond.
	ProductMissing bool
}

// Graph is the order placement state machine: check stock, conditionally
// create the order, conditionally decrement stock, always summarize. Every
// lookup failure degrades to a negative-outcome branch; the graph always
// terminates with a summary string and never leaves the caller without one.
type Graph struct {
	store model.ProductStore

	handlers map[node]func(ctx context.Context, st *FlowState)
}

func New(store model.ProductStore) *Graph {
	g := &Graph{store: store}
	g.handlers = map[node]func(ctx context.Context, st *FlowState){
		nodeCheckStock:  g.checkStock,
		nodeCreateOrder: g.createOrder,
		nodeUpdateStock: g.updateStock,
	}
	return g
}

// next is the pure transition function of the state machine.
func next(cur node, st *FlowState) node {
	switch cur {
	case nodeCheckStock:
		if st.StockAvailable != nil && *st.StockAvailable >= st.Quantity {
			return nodeCreateOrder
		}
		return nodeRespond
	case nodeCreateOrder:
		if st.OrderCreated {
			return nodeUpdateStock
		}
		return nodeRespond
	case nodeUpdateStock:
		return nodeRespond
	case nodeRespond:
		return nodeEnd
	default:
		return nodeEnd
	}
}

// Run executes one order attempt and returns the human-readable summary.
func (g *Graph) Run(ctx context.Context, userID, productID, quantity int) string {
	st := &FlowState{UserID: userID, ProductID: productID, Quantity: quantity}

	// a non-positive quantity can never place an order; a negative one would
	// also invert the conditional stock decrement, so it stops here
	if quantity <= 0 {
		logx.Warn().Int("product_id", productID).Int("quantity", quantity).Msg("rejecting order with non-positive quantity")
		return g.respond(st)
	}

	for cur := nodeCheckStock; cur != nodeEnd; cur = next(cur, st) {
		if cur == nodeRespond {
			return g.respond(st)
		}
		g.handlers[cur](ctx, st)
	}
	return g.respond(st) // unreachable; respond is the only path to end
}

func (g *Graph) checkStock(ctx context.Context, st *FlowState) {
	stock, err := g.store.CheckStock(ctx, st.ProductID)
	if err != nil {
		if errx.IsNotFound(err) {
			st.ProductMissing = true
		} else {
			logx.Error().Err(err).Int("product_id", st.ProductID).Msg("stock check unavailable")
		}
		return
	}
	st.StockAvailable = &stock
}

func (g *Graph) createOrder(ctx context.Context, st *FlowState) {
	product, err := g.store.GetProductByID(ctx, st.ProductID)
	if err != nil {
		if errx.IsNotFound(err) {
			st.ProductMissing = true
		} else {
			logx.Error().Err(err).Int("product_id", st.ProductID).Msg("product lookup unavailable during order creation")
		}
		return
	}
	if product.Price == nil {
		// unpriced products cannot be ordered through the assistant
		logx.Warn().Int("product_id", st.ProductID).Msg("product has no listed price, refusing order")
		return
	}

	total := *product.Price * float64(st.Quantity)
	orderID, err := g.store.CreateOrder(ctx, model.NewOrder{
		UserID:      st.UserID,
		ProductID:   st.ProductID,
		Quantity:    st.Quantity,
		TotalAmount: total,
	})
	if err != nil {
		logx.Error().Err(err).Int("product_id", st.ProductID).Msg("order creation failed")
		return
	}

	st.OrderCreated = true
	st.OrderID = &orderID
	st.TotalAmount = &total

	logx.Info().
		Int64("order_id", orderID).
		Int("user_id", st.UserID).
		Int("product_id", st.ProductID).
		Int("quantity", st.Quantity).
		Float64("total_amount", total).
		Msg("order created")
}

func (g *Graph) updateStock(ctx context.Context, st *FlowState) {
	ok, err := g.store.DecrementStock(ctx, st.ProductID, st.Quantity)
	if err != nil || !ok {
		// a decrement failure after a created order is not escalated; the
		// order stands and the discrepancy is left to reconciliation
		logx.Error().Err(err).
			Int("product_id", st.ProductID).
			Int("quantity", st.Quantity).
			Bool("updated", ok).
			Msg("stock decrement did not apply after order creation")
	}
}

// respond formats the fixed-field order summary.
func (g *Graph) respond(st *FlowState) string {
	totalAmount := "null"
	if st.TotalAmount != nil {
		totalAmount = fmt.Sprintf("%.2f", *st.TotalAmount)
	}
	orderID := "null"
	if st.OrderID != nil {
		orderID = fmt.Sprintf("%d", *st.OrderID)
	}

	summary := fmt.Sprintf(
		"Order Summary:\n"+
			"• user_id: %d\n"+
			"• product_id: %d\n"+
			"• quantity: %d\n"+
			"• total_amount: %s\n"+
			"• order_id: %s\n"+
			"• status: %t\n",
		st.UserID, st.ProductID, st.Quantity, totalAmount, orderID, st.OrderCreated,
	)

	if !st.OrderCreated {
		switch {
		case st.Quantity <= 0:
			summary += "• note: invalid quantity\n"
		case st.ProductMissing:
			summary += "• note: product not found\n"
		case st.StockAvailable != nil && *st.StockAvailable < st.Quantity:
			summary += fmt.Sprintf("• note: insufficient stock (%d available)\n", *st.StockAvailable)
		}
	}

	return summary
}
