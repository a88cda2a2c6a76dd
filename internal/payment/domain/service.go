package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/apperr"
	documentdomain "github.com/smallbiznis/docledger/internal/document/domain"
)

var (
	ErrInvalidAmount          = apperr.New(apperr.ErrValidation, "invalid_payment_amount")
	ErrInvalidMethod          = apperr.New(apperr.ErrValidation, "invalid_payment_method")
	ErrPaidOnRequired         = apperr.New(apperr.ErrValidation, "payment_date_required")
	ErrPaymentRequiresInvoice = apperr.New(apperr.ErrValidation, "payment_requires_invoice")
	ErrDocumentVoid           = apperr.New(apperr.ErrInvalidTransition, "payment_on_void_document")
	ErrNotPayable             = apperr.New(apperr.ErrPreconditionFailed, "document_not_payable")
	ErrExceedsBalance         = apperr.New(apperr.ErrConflict, "payment_exceeds_balance")
)

type RecordPaymentRequest struct {
	DocumentID  snowflake.ID
	AmountCents int64
	PaidOn      time.Time
	Method      Method
	Reference   string
}

type PaymentResult struct {
	Payment  Payment                 `json:"payment"`
	Document documentdomain.Document `json:"document"`
}

type Service interface {
	RecordPayment(ctx context.Context, tenantID snowflake.ID, req RecordPaymentRequest) (PaymentResult, error)
	ListPayments(ctx context.Context, tenantID, documentID snowflake.ID) ([]Payment, error)
}
