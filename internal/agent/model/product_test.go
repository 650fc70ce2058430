package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func fprice(v float64) *float64 { return &v }

func TestPriceText(t *testing.T) {
	require.Equal(t, "250000 VND", ProductSummary{Price: fprice(250000)}.PriceText())
	require.Equal(t, ContactForPrice, ProductSummary{}.PriceText())
}

func TestFormatProducts(t *testing.T) {
	out := FormatProducts([]ProductSummary{
		{ID: 1, Name: "Clean Code", Author: "Robert C. Martin", Category: "Programming", Price: fprice(250000), Score: 0.5, Description: "A handbook of agile\nsoftware craftsmanship"},
		{ID: 2, Name: "Hidden Gem"},
	})

	require.Contains(t, out, "Sản phẩm #1:")
	require.Contains(t, out, "Sản phẩm #2:")
	require.Contains(t, out, "Clean Code")
	require.Contains(t, out, "Robert C. Martin")
	require.Contains(t, out, "250000 VND")
	require.Contains(t, out, ContactForPrice)
	// multi-line descriptions stay indented under their product
	require.Contains(t, out, "  A handbook of agile\n  software craftsmanship")
	require.Equal(t, 1, strings.Count(out, strings.Repeat("-", 40)))
}

func TestProductSummaryConversion(t *testing.T) {
	p := &Product{ID: 3, Name: "SICP", Author: "Abelson", Category: "CS", Description: "wizard book", Price: fprice(100), StockQuantity: 4}
	s := p.Summary(0.25)
	require.Equal(t, 3, s.ID)
	require.Equal(t, "SICP", s.Name)
	require.Equal(t, 0.25, s.Score)
	require.Equal(t, p.Price, s.Price)
}
