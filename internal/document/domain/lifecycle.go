package domain

import "time"

type Settlement string

const (
	SettlementNone    Settlement = ""
	SettlementUnpaid  Settlement = "unpaid"
	SettlementPartial Settlement = "partial"
	SettlementPaid    Settlement = "paid"
)

// DisplayStatus is the single status shown to users. It is always derived,
// never stored.
type DisplayStatus string

const (
	StatusDraft         DisplayStatus = "draft"
	StatusFinalized     DisplayStatus = "finalized"
	StatusSent          DisplayStatus = "sent"
	StatusPartiallyPaid DisplayStatus = "partially_paid"
	StatusPaid          DisplayStatus = "paid"
	StatusVoid          DisplayStatus = "void"
	StatusAccepted      DisplayStatus = "accepted"
	StatusConverted     DisplayStatus = "converted"
	StatusExpired       DisplayStatus = "expired"
)

var transitions = map[Type]map[Lifecycle][]Lifecycle{
	TypeInvoice: {
		LifecycleDraft:     {LifecycleFinalized},
		LifecycleFinalized: {LifecycleVoid},
	},
	TypeQuote: {
		LifecycleDraft:     {LifecycleFinalized},
		LifecycleFinalized: {LifecycleAccepted, LifecycleExpired},
		LifecycleAccepted:  {LifecycleConvertedToInvoice, LifecycleConvertedToProject},
	},
}

// CanTransition reports whether the lifecycle edge exists for the type.
func CanTransition(t Type, from, to Lifecycle) bool {
	for _, next := range transitions[t][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves d to the target lifecycle or returns ErrIllegalTransition.
func (d *Document) Transition(to Lifecycle) error {
	if !CanTransition(d.Type, d.Lifecycle, to) {
		return wrapTransition(d.Lifecycle, to)
	}
	d.Lifecycle = to
	return nil
}

func (d *Document) IsDraft() bool    { return d.Lifecycle == LifecycleDraft }
func (d *Document) IsArchived() bool { return d.ArchivedAt != nil }

// ExpiredOn reports whether a sent quote has run past its expiry date.
// The expiry date itself is still valid.
func (d *Document) ExpiredOn(today time.Time) bool {
	return d.Type == TypeQuote &&
		d.Lifecycle == LifecycleFinalized &&
		d.SentAt != nil &&
		d.ExpiryDate != nil &&
		d.ExpiryDate.Before(today)
}

func (d *Document) EffectiveLifecycle(today time.Time) Lifecycle {
	if d.ExpiredOn(today) {
		return LifecycleExpired
	}
	return d.Lifecycle
}

// Settlement derives payment progress. Quotes have none.
func (d *Document) Settlement() Settlement {
	if d.Type != TypeInvoice {
		return SettlementNone
	}
	switch {
	case d.AmountPaidCents <= 0:
		return SettlementUnpaid
	case d.BalanceDueCents == 0:
		return SettlementPaid
	default:
		return SettlementPartial
	}
}

func (d *Document) DisplayStatus(today time.Time) DisplayStatus {
	switch d.EffectiveLifecycle(today) {
	case LifecycleDraft:
		return StatusDraft
	case LifecycleVoid:
		return StatusVoid
	case LifecycleAccepted:
		return StatusAccepted
	case LifecycleConvertedToInvoice, LifecycleConvertedToProject:
		return StatusConverted
	case LifecycleExpired:
		return StatusExpired
	}

	switch d.Settlement() {
	case SettlementPaid:
		return StatusPaid
	case SettlementPartial:
		return StatusPartiallyPaid
	}
	if d.SentAt != nil {
		return StatusSent
	}
	return StatusFinalized
}

// SetTotals stores derived totals and the balance they imply.
func (d *Document) SetTotals(t Totals) {
	d.SubtotalCents = t.SubtotalCents
	d.TaxTotalCents = t.TaxTotalCents
	d.TotalCents = t.TotalCents
	d.SetAmountPaid(d.AmountPaidCents)
}

// SetAmountPaid keeps balance_due = max(total - paid, 0).
func (d *Document) SetAmountPaid(paidCents int64) {
	d.AmountPaidCents = paidCents
	d.BalanceDueCents = d.TotalCents - paidCents
	if d.BalanceDueCents < 0 {
		d.BalanceDueCents = 0
	}
}

func (d *Document) Totals() Totals {
	return Totals{
		SubtotalCents: d.SubtotalCents,
		TaxTotalCents: d.TaxTotalCents,
		TotalCents:    d.TotalCents,
	}
}
