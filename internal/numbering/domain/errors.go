package domain

import "github.com/smallbiznis/docledger/internal/apperr"

var (
	ErrInvalidDocType = apperr.New(apperr.ErrValidation, "invalid_doc_type")
	ErrInvalidWidth   = apperr.New(apperr.ErrValidation, "invalid_number_width")
	ErrInvalidPrefix  = apperr.New(apperr.ErrValidation, "invalid_number_prefix")
)
