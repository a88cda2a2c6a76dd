package domain

import (
	"fmt"

	"github.com/smallbiznis/docledger/internal/apperr"
)

var (
	ErrInvalidType           = apperr.New(apperr.ErrValidation, "invalid_document_type")
	ErrInvalidCurrency       = apperr.New(apperr.ErrValidation, "invalid_currency")
	ErrInvalidDates          = apperr.New(apperr.ErrValidation, "invalid_document_dates")
	ErrInvalidDescription    = apperr.New(apperr.ErrValidation, "invalid_line_description")
	ErrInvalidQuantity       = apperr.New(apperr.ErrValidation, "invalid_line_quantity")
	ErrInvalidUnitPrice      = apperr.New(apperr.ErrValidation, "invalid_line_unit_price")
	ErrInvalidTaxRate        = apperr.New(apperr.ErrValidation, "invalid_line_tax_rate")
	ErrAmountOutOfRange      = apperr.New(apperr.ErrValidation, "amount_out_of_range")
	ErrAmbiguousTaxRate      = apperr.New(apperr.ErrValidation, "ambiguous_line_tax_rate")
	ErrInvalidOrder          = apperr.New(apperr.ErrValidation, "invalid_line_order")
	ErrProjectClientMismatch = apperr.New(apperr.ErrValidation, "project_client_mismatch")
	ErrVoidReasonRequired    = apperr.New(apperr.ErrValidation, "void_reason_required")
	ErrRecipientsRequired    = apperr.New(apperr.ErrValidation, "recipients_required")
	ErrInvalidRecipient      = apperr.New(apperr.ErrValidation, "invalid_recipient")
	ErrInvalidPageToken      = apperr.New(apperr.ErrValidation, "invalid_page_token")

	ErrDocumentNotFound = apperr.New(apperr.ErrNotFound, "document_not_found")
	ErrLineItemNotFound = apperr.New(apperr.ErrNotFound, "line_item_not_found")

	ErrIllegalTransition   = apperr.New(apperr.ErrInvalidTransition, "illegal_transition")
	ErrAlreadyFinalized    = apperr.New(apperr.ErrInvalidTransition, "document_already_finalized")
	ErrNotSendable         = apperr.New(apperr.ErrInvalidTransition, "document_not_sendable")
	ErrVoidRequiresInvoice = apperr.New(apperr.ErrInvalidTransition, "void_requires_invoice")
	ErrRequiresQuote       = apperr.New(apperr.ErrInvalidTransition, "operation_requires_quote")
	ErrQuoteNotSent        = apperr.New(apperr.ErrInvalidTransition, "quote_not_sent")
	ErrQuoteExpired        = apperr.New(apperr.ErrInvalidTransition, "quote_expired")
	ErrAlreadyArchived     = apperr.New(apperr.ErrInvalidTransition, "document_already_archived")

	ErrNoLineItems    = apperr.New(apperr.ErrPreconditionFailed, "no_line_items")
	ErrClientRequired = apperr.New(apperr.ErrPreconditionFailed, "client_required")

	ErrHasPayments        = apperr.New(apperr.ErrConflict, "document_has_payments")
	ErrOutstandingBalance = apperr.New(apperr.ErrConflict, "outstanding_balance")
	ErrDeliveryFailed     = apperr.New(apperr.ErrConflict, "delivery_failed")

	ErrNotDraft = apperr.New(apperr.ErrImmutable, "document_not_draft")
	ErrArchived = apperr.New(apperr.ErrImmutable, "document_archived")
)

func wrapTransition(from, to Lifecycle) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
