package domain

import "github.com/smallbiznis/docledger/internal/apperr"

var (
	ErrInvalidName     = apperr.New(apperr.ErrValidation, "invalid_name")
	ErrInvalidEmail    = apperr.New(apperr.ErrValidation, "invalid_email")
	ErrInvalidRate     = apperr.New(apperr.ErrValidation, "invalid_tax_rate")
	ErrSlugExhausted   = apperr.New(apperr.ErrConflict, "project_slug_exhausted")
	ErrClientNotFound  = apperr.New(apperr.ErrNotFound, "client_not_found")
	ErrProjectNotFound = apperr.New(apperr.ErrNotFound, "project_not_found")
	ErrTaxRateNotFound = apperr.New(apperr.ErrNotFound, "tax_rate_not_found")
)
