// Package domain contains the document aggregate and its lifecycle rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeQuote   Type = "quote"
	TypeInvoice Type = "invoice"
)

func (t Type) Valid() bool {
	return t == TypeQuote || t == TypeInvoice
}

// Lifecycle is the stored phase of a document. Payment progress is not part
// of it; see Settlement.
type Lifecycle string

const (
	LifecycleDraft              Lifecycle = "draft"
	LifecycleFinalized          Lifecycle = "finalized"
	LifecycleAccepted           Lifecycle = "accepted"
	LifecycleConvertedToInvoice Lifecycle = "converted_to_invoice"
	LifecycleConvertedToProject Lifecycle = "converted_to_project"
	LifecycleExpired            Lifecycle = "expired"
	LifecycleVoid               Lifecycle = "void"
)

// Document is a quote or an invoice.
type Document struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_documents_tenant_type_number,priority:1" json:"tenant_id"`
	Type      Type         `gorm:"type:text;not null;uniqueIndex:ux_documents_tenant_type_number,priority:2" json:"type"`
	Lifecycle Lifecycle    `gorm:"type:text;not null;default:'draft'" json:"lifecycle"`
	Number    *string      `gorm:"type:text;uniqueIndex:ux_documents_tenant_type_number,priority:3" json:"number,omitempty"`

	ClientID           snowflake.ID  `gorm:"index" json:"client_id,omitempty"`
	ProjectID          snowflake.ID  `gorm:"index" json:"project_id,omitempty"`
	SourceQuoteID      *snowflake.ID `gorm:"index" json:"source_quote_id,omitempty"`
	ConvertedInvoiceID *snowflake.ID `json:"converted_invoice_id,omitempty"`
	ConvertedProjectID *snowflake.ID `json:"converted_project_id,omitempty"`

	Currency   string     `gorm:"type:text;not null" json:"currency"`
	IssueDate  *time.Time `gorm:"type:date" json:"issue_date,omitempty"`
	DueDate    *time.Time `gorm:"type:date" json:"due_date,omitempty"`
	ExpiryDate *time.Time `gorm:"type:date" json:"expiry_date,omitempty"`

	SubtotalCents   int64 `gorm:"not null;default:0" json:"subtotal_cents"`
	TaxTotalCents   int64 `gorm:"not null;default:0" json:"tax_total_cents"`
	TotalCents      int64 `gorm:"not null;default:0" json:"total_cents"`
	AmountPaidCents int64 `gorm:"not null;default:0" json:"amount_paid_cents"`
	BalanceDueCents int64 `gorm:"not null;default:0" json:"balance_due_cents"`

	Notes      string            `gorm:"type:text" json:"notes,omitempty"`
	VoidReason string            `gorm:"type:text" json:"void_reason,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
	VoidedAt    *time.Time `json:"voided_at,omitempty"`
	ArchivedAt  *time.Time `gorm:"index" json:"archived_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	LineItems []LineItem `gorm:"-" json:"line_items"`
}

func (Document) TableName() string { return "documents" }

// LineItem carries a tax rate snapshot; TaxRateID only records where it came from.
type LineItem struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	DocumentID     snowflake.ID    `gorm:"not null;uniqueIndex:ux_line_items_document_position,priority:1" json:"document_id"`
	Position       int             `gorm:"not null;uniqueIndex:ux_line_items_document_position,priority:2" json:"position"`
	Description    string          `gorm:"type:text;not null" json:"description"`
	Quantity       decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	UnitPriceCents int64           `gorm:"not null" json:"unit_price_cents"`
	TaxRatePercent decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"tax_rate_percent"`
	TaxRateID      *snowflake.ID   `json:"tax_rate_id,omitempty"`
	LineTotalCents int64           `gorm:"not null" json:"line_total_cents"`
	LineTaxCents   int64           `gorm:"not null" json:"line_tax_cents"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (LineItem) TableName() string { return "line_items" }

// Totals are the server-derived aggregates of a document's lines.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxTotalCents int64 `json:"tax_total_cents"`
	TotalCents    int64 `json:"total_cents"`
}

type DocumentCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	TenantID        snowflake.ID
	Type            Type
	Lifecycle       Lifecycle
	ClientID        snowflake.ID
	IncludeArchived bool
	Cursor          *DocumentCursor
	Limit           int
	// Today, when set, makes the lifecycle filter count lapsed quotes as
	// expired.
	Today           time.Time
}
