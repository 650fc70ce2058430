package model

import (
	"fmt"
	"strings"
)

// ContactForPrice is shown when a product carries no listed price.
const ContactForPrice = "Liên hệ để trao đổi giá chi tiết."

// Product is the full store record; read-only as seen by the dialogue core.
type Product struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Author        string   `json:"author"`
	Category      string   `json:"category"`
	Description   string   `json:"description"`
	Price         *float64 `json:"price"` // nil means "contact for price"
	StockQuantity int      `json:"stock_quantity"`
}

// Summary converts a full record into the retrieval-facing shape.
func (p *Product) Summary(score float64) ProductSummary {
	return ProductSummary{
		ID:          p.ID,
		Name:        p.Name,
		Author:      p.Author,
		Category:    p.Category,
		Description: p.Description,
		Price:       p.Price,
		Score:       score,
	}
}

// ProductSummary is one retrieval candidate: the subset of a product that
// retrieval and response synthesis care about, plus the backend's native
// relevance score (text rank or vector distance, later the fused score).
type ProductSummary struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Author      string   `json:"author"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price"`
	Score       float64  `json:"score"`
}

// PriceText renders the price or the contact-for-price fallback.
func (p ProductSummary) PriceText() string {
	if p.Price == nil {
		return ContactForPrice
	}
	return fmt.Sprintf("%.0f VND", *p.Price)
}

// FormatProducts renders candidates as a numbered text block for prompts.
func FormatProducts(products []ProductSummary) string {
	var b strings.Builder
	for i, p := range products {
		if i > 0 {
			b.WriteString(strings.Repeat("-", 40) + "\n")
		}
		fmt.Fprintf(&b, "Sản phẩm #%d:\n", i+1)
		fmt.Fprintf(&b, "- Tên       : %s\n", p.Name)
		fmt.Fprintf(&b, "- Tác giả   : %s\n", p.Author)
		fmt.Fprintf(&b, "- Thể loại  : %s\n", p.Category)
		fmt.Fprintf(&b, "- Giá       : %s\n", p.PriceText())
		fmt.Fprintf(&b, "- Đánh giá  : %.4f\n", p.Score)
		if desc := strings.TrimSpace(p.Description); desc != "" {
			b.WriteString("- Mô tả     :\n")
			for _, line := range strings.Split(desc, "\n") {
				b.WriteString("  " + line + "\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewOrder is the write payload for a persisted order record.
type NewOrder struct {
	UserID      int
	ProductID   int
	Quantity    int
	TotalAmount float64
}

// OrderInfo is the structured result of order-field extraction. A zero value
// is the explicit unknown sentinel, never a guess.
type OrderInfo struct {
	UserID    int `json:"user_id"`
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// SearchQueries are the two artifacts derived from one user utterance: a
// semantically rich phrase for vector search and a minimal keyword set for
// lexical search, both in the language of the input.
type SearchQueries struct {
	VectorQuery string `json:"vector_search_query"`
	Keyword     string `json:"fts_keyword"`
}
