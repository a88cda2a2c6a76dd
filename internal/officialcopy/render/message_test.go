package render

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMessage(t *testing.T) {
	issued := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	html, err := NewRenderer().RenderMessage(MessageInput{
		Message: "Thanks for your business <3",
		Document: domain.DocumentView{
			Type:          "invoice",
			Number:        "INV-2026-00007",
			Currency:      "USD",
			ClientName:    "Acme",
			IssueDate:     &issued,
			SubtotalCents: 600000,
			TaxTotalCents: 60000,
			TotalCents:    660000,
			Lines: []domain.LineView{{
				Position:       1,
				Description:    "Consulting",
				Quantity:       decimal.NewFromInt(40),
				UnitPriceCents: 15000,
				TaxRatePercent: decimal.NewFromInt(10),
				LineTotalCents: 600000,
				LineTaxCents:   60000,
			}},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, html, "<title>Invoice INV-2026-00007</title>")
	assert.Contains(t, html, "6,600.00 USD")
	assert.Contains(t, html, "2026-04-01")
	assert.Contains(t, html, "Thanks for your business &lt;3")
	assert.NotContains(t, html, "Valid until")
}
