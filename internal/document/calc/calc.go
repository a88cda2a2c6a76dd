// Package calc derives line and document totals. Callers never supply totals.
package calc

import (
	"github.com/smallbiznis/docledger/internal/apperr"
	"github.com/smallbiznis/docledger/internal/document/domain"
	"github.com/smallbiznis/docledger/internal/money"
)

// Line returns round_half_up(qty * price) and the tax on that rounded total.
func Line(item domain.LineItem) (totalCents, taxCents int64, err error) {
	totalCents, err = money.LineTotal(item.Quantity, item.UnitPriceCents)
	if err != nil {
		return 0, 0, apperr.Wrap(domain.ErrAmountOutOfRange, "line %d total", item.Position)
	}
	taxCents, err = money.PercentOf(totalCents, item.TaxRatePercent)
	if err != nil {
		return 0, 0, apperr.Wrap(domain.ErrAmountOutOfRange, "line %d tax", item.Position)
	}
	return totalCents, taxCents, nil
}

// Recalculate refreshes the computed fields of every item in place and sums
// them. No items gives zero totals. Sums are bounded by money.MaxAmountCents.
func Recalculate(items []domain.LineItem) (domain.Totals, error) {
	var totals domain.Totals
	for i := range items {
		total, tax, err := Line(items[i])
		if err != nil {
			return domain.Totals{}, err
		}
		items[i].LineTotalCents, items[i].LineTaxCents = total, tax
		if totals.SubtotalCents, err = money.Add(totals.SubtotalCents, total); err != nil {
			return domain.Totals{}, apperr.Wrap(domain.ErrAmountOutOfRange, "subtotal")
		}
		if totals.TaxTotalCents, err = money.Add(totals.TaxTotalCents, tax); err != nil {
			return domain.Totals{}, apperr.Wrap(domain.ErrAmountOutOfRange, "tax total")
		}
	}
	total, err := money.Add(totals.SubtotalCents, totals.TaxTotalCents)
	if err != nil {
		return domain.Totals{}, apperr.Wrap(domain.ErrAmountOutOfRange, "total")
	}
	totals.TotalCents = total
	return totals, nil
}

// Renumber makes positions contiguous from 1 in slice order.
func Renumber(items []domain.LineItem) {
	for i := range items {
		items[i].Position = i + 1
	}
}
