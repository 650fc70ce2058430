package model

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Intent is the routing decision taken once per turn.
type Intent string

const (
	IntentOrder       Intent = "order"
	IntentProductInfo Intent = "product_info"
	IntentChitchat    Intent = "chitchat"
)

// ParseIntent normalises a raw classifier value into a known Intent. An
// unrecognised value is a turn-fatal error; the dialogue engine must not
// proceed down an undefined edge.
func ParseIntent(v string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "order":
		return IntentOrder, nil
	case "product_info", "product_information", "product_infomation":
		return IntentProductInfo, nil
	case "chitchat":
		return IntentChitchat, nil
	default:
		return "", fmt.Errorf("unknown intent %q", v)
	}
}

// FieldUnknown is the sentinel for an order field that is not yet known.
// It is never conflated with a valid value: user ids, product ids and
// quantities are all strictly positive in the store.
const FieldUnknown = 0

// Required order field names as they appear in LackOfOrderInfo.
const (
	FieldUserID    = "user_id"
	FieldProductID = "product_id"
	FieldQuantity  = "quantity"
)

// ConversationState is the durable per-thread dialogue state. It is
// checkpointed after every turn and reloaded at the start of the next one,
// so a process restart resumes from the last completed turn.
type ConversationState struct {
	ThreadID string `json:"thread_id"`

	// Messages is the append-only role-tagged history; insertion order is
	// meaningful and preserved.
	Messages []*schema.Message `json:"messages"`

	// Router holds the last classification result; set once per turn.
	Router Intent `json:"router,omitempty"`

	// RetrievedProducts is recomputed every retrieval turn, never cumulative.
	RetrievedProducts []ProductSummary `json:"retrieved_products,omitempty"`

	// OrderState is the human-readable summary of the most recent order
	// attempt, overwritten per order turn.
	OrderState string `json:"order_state,omitempty"`

	// LackOfOrderInfo lists required order fields still at the unknown
	// sentinel; recomputed every order turn.
	LackOfOrderInfo []string `json:"lack_of_order_info,omitempty"`

	UserID                 int `json:"user_id,omitempty"`
	CurrentProductID       int `json:"current_product_id,omitempty"`
	CurrentProductQuantity int `json:"current_product_quantity,omitempty"`
}

// NewConversationState returns the empty state for a thread.
func NewConversationState(threadID string) *ConversationState {
	return &ConversationState{ThreadID: threadID}
}

// LastUserMessage returns the content of the most recent user turn, or "".
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i] != nil && s.Messages[i].Role == schema.User {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastAssistantMessage returns the content of the most recent assistant turn, or "".
func (s *ConversationState) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i] != nil && s.Messages[i].Role == schema.Assistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Patch is a field-level partial update returned by a dialogue node. The
// engine merges patches into the prior state to produce the next state, so
// each node stays testable in isolation. Nil pointer fields mean "unchanged";
// Messages are appended, never replaced.
type Patch struct {
	Messages []*schema.Message

	Router            *Intent
	RetrievedProducts *[]ProductSummary
	OrderState        *string
	LackOfOrderInfo   *[]string

	UserID                 *int
	CurrentProductID       *int
	CurrentProductQuantity *int
}

// Apply merges a patch into the state in place.
func (s *ConversationState) Apply(p Patch) {
	s.Messages = append(s.Messages, p.Messages...)

	if p.Router != nil {
		s.Router = *p.Router
	}
	if p.RetrievedProducts != nil {
		s.RetrievedProducts = *p.RetrievedProducts
	}
	if p.OrderState != nil {
		s.OrderState = *p.OrderState
	}
	if p.LackOfOrderInfo != nil {
		s.LackOfOrderInfo = *p.LackOfOrderInfo
	}
	if p.UserID != nil {
		s.UserID = *p.UserID
	}
	if p.CurrentProductID != nil {
		s.CurrentProductID = *p.CurrentProductID
	}
	if p.CurrentProductQuantity != nil {
		s.CurrentProductQuantity = *p.CurrentProductQuantity
	}
}

// QueryInput represents one user turn entering the dialogue engine.
type QueryInput struct {
	ThreadID string `json:"thread_id"`
	Query    string `json:"query"`
}
