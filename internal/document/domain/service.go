package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	directorydomain "github.com/smallbiznis/docledger/internal/directory/domain"
	officialcopydomain "github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"github.com/smallbiznis/docledger/pkg/db/pagination"
)

// LineItemInput describes one line. The tax rate is given either as a percent
// or as a tax rate id whose current percent is copied; never both.
type LineItemInput struct {
	Description    string
	Quantity       decimal.Decimal
	UnitPriceCents int64
	TaxRatePercent *decimal.Decimal
	TaxRateID      snowflake.ID
}

type CreateDocumentRequest struct {
	Type       Type
	ClientID   snowflake.ID
	ProjectID  snowflake.ID
	Currency   string
	IssueDate  *time.Time
	DueDate    *time.Time
	ExpiryDate *time.Time
	Notes      string
	LineItems  []LineItemInput
	Metadata   map[string]any
}

// UpdateDraftRequest changes only the fields that are set. A zero id clears
// the reference.
type UpdateDraftRequest struct {
	ClientID   *snowflake.ID
	ProjectID  *snowflake.ID
	Currency   *string
	IssueDate  *time.Time
	DueDate    *time.Time
	ExpiryDate *time.Time
}

type SendRequest struct {
	To      []string
	Subject string
	Message string
}

type SendResult struct {
	Document Document                        `json:"document"`
	Copy     officialcopydomain.OfficialCopy `json:"official_copy"`
	Warnings []string                        `json:"warnings,omitempty"`
}

type ConversionResult struct {
	Quote   Document                 `json:"quote"`
	Invoice *Document                `json:"invoice,omitempty"`
	Project *directorydomain.Project `json:"project,omitempty"`
}

type ListDocumentRequest struct {
	pagination.Pagination
	Type            Type
	Lifecycle       Lifecycle
	ClientID        snowflake.ID
	IncludeArchived bool
}

type ListDocumentResponse struct {
	pagination.PageInfo
	Documents []Document `json:"documents"`
}

type Service interface {
	CreateDocument(ctx context.Context, tenantID snowflake.ID, req CreateDocumentRequest) (Document, error)
	UpdateDraft(ctx context.Context, tenantID, id snowflake.ID, req UpdateDraftRequest) (Document, error)
	UpdateNotes(ctx context.Context, tenantID, id snowflake.ID, notes string) (Document, error)

	AddLineItem(ctx context.Context, tenantID, id snowflake.ID, item LineItemInput) (Document, error)
	UpdateLineItem(ctx context.Context, tenantID, id snowflake.ID, position int, item LineItemInput) (Document, error)
	RemoveLineItem(ctx context.Context, tenantID, id snowflake.ID, position int) (Document, error)
	// ReorderLineItems takes the current positions in their new order.
	ReorderLineItems(ctx context.Context, tenantID, id snowflake.ID, order []int) (Document, error)
	Recalculate(ctx context.Context, tenantID, id snowflake.ID) (Totals, error)

	Finalize(ctx context.Context, tenantID, id snowflake.ID) (Document, error)
	Send(ctx context.Context, tenantID, id snowflake.ID, req SendRequest) (SendResult, error)
	Void(ctx context.Context, tenantID, id snowflake.ID, reason string) (Document, error)
	AcceptQuote(ctx context.Context, tenantID, id snowflake.ID) (Document, error)
	ConvertToInvoice(ctx context.Context, tenantID, quoteID snowflake.ID) (ConversionResult, error)
	ConvertToProject(ctx context.Context, tenantID, quoteID snowflake.ID, name string) (ConversionResult, error)
	Archive(ctx context.Context, tenantID, id snowflake.ID) (Document, error)

	Get(ctx context.Context, tenantID, id snowflake.ID) (Document, error)
	List(ctx context.Context, tenantID snowflake.ID, req ListDocumentRequest) (ListDocumentResponse, error)
}
