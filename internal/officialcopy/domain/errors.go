package domain

import "github.com/smallbiznis/docledger/internal/apperr"

var (
	ErrInvalidEvent     = apperr.New(apperr.ErrValidation, "invalid_copy_event")
	ErrNoOfficialCopy   = apperr.New(apperr.ErrPreconditionFailed, "no_official_copy")
	ErrArtifactNotFound = apperr.New(apperr.ErrNotFound, "artifact_not_found")
	ErrDocumentNotFound = apperr.New(apperr.ErrNotFound, "document_not_found")
)

// WarningContentChanged is reported when the live document no longer matches
// the latest copy.
const WarningContentChanged = "content_changed_since_last_copy"
