package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// DocumentView is the read model captured by a copy. Owners of documents
// build it; this package never loads documents on its own.
type DocumentView struct {
	ID       snowflake.ID
	TenantID snowflake.ID
	Type     string
	Number   string
	Currency string

	ClientID      snowflake.ID
	ClientName    string
	ClientEmail   string
	ClientAddress string
	ProjectID     snowflake.ID

	IssueDate  *time.Time
	DueDate    *time.Time
	ExpiryDate *time.Time

	SubtotalCents   int64
	TaxTotalCents   int64
	TotalCents      int64
	AmountPaidCents int64
	BalanceDueCents int64

	Notes string
	Lines []LineView
}

type LineView struct {
	Position       int
	Description    string
	Quantity       decimal.Decimal
	UnitPriceCents int64
	TaxRatePercent decimal.Decimal
	LineTotalCents int64
	LineTaxCents   int64
}
