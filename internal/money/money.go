// Package money holds minor-unit arithmetic. Amounts are int64 cents; the only
// non-integer inputs are quantities and tax rate percents, carried as decimals.
package money

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents bounds every stored amount: unit prices, line totals and
// document sums. 1e15 cents leaves int64 headroom for subtotal + tax.
const MaxAmountCents int64 = 1_000_000_000_000_000

var (
	hundred   = decimal.NewFromInt(100)
	maxAmount = decimal.NewFromInt(MaxAmountCents)

	ErrNonPositiveQuantity = errors.New("non_positive_quantity")
	ErrNegativePrice       = errors.New("negative_unit_price")
	ErrPriceOutOfRange     = errors.New("unit_price_out_of_range")
	ErrRateOutOfRange      = errors.New("tax_rate_out_of_range")
	ErrAmountOutOfRange    = errors.New("amount_out_of_range")
)

// RoundHalfUp rounds to the nearest integer, halves away from zero. Results
// outside ±MaxAmountCents are rejected before conversion so they never wrap.
func RoundHalfUp(d decimal.Decimal) (int64, error) {
	rounded := d.Round(0)
	if rounded.Abs().GreaterThan(maxAmount) {
		return 0, ErrAmountOutOfRange
	}
	return rounded.IntPart(), nil
}

// LineTotal is round_half_up(quantity * unit price).
func LineTotal(quantity decimal.Decimal, unitPriceCents int64) (int64, error) {
	return RoundHalfUp(quantity.Mul(decimal.NewFromInt(unitPriceCents)))
}

// PercentOf is round_half_up(amount * rate / 100).
func PercentOf(amountCents int64, ratePercent decimal.Decimal) (int64, error) {
	return RoundHalfUp(decimal.NewFromInt(amountCents).Mul(ratePercent).Div(hundred))
}

// Add sums amounts, failing once the running total leaves ±MaxAmountCents.
func Add(amounts ...int64) (int64, error) {
	var sum int64
	for _, a := range amounts {
		if a > MaxAmountCents || a < -MaxAmountCents {
			return 0, ErrAmountOutOfRange
		}
		sum += a
		if sum > MaxAmountCents || sum < -MaxAmountCents {
			return 0, ErrAmountOutOfRange
		}
	}
	return sum, nil
}

func ValidateQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return ErrNonPositiveQuantity
	}
	return nil
}

func ValidateUnitPrice(cents int64) error {
	if cents < 0 {
		return ErrNegativePrice
	}
	if cents > MaxAmountCents {
		return ErrPriceOutOfRange
	}
	return nil
}

func ValidateRate(ratePercent decimal.Decimal) error {
	if ratePercent.IsNegative() || ratePercent.GreaterThan(hundred) {
		return ErrRateOutOfRange
	}
	return nil
}

// Format renders cents as "1,234.56 USD".
func Format(cents int64, currency string) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}

	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	frac := cents % 100
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))

	if currency != "" {
		b.WriteByte(' ')
		b.WriteString(currency)
	}
	return b.String()
}
