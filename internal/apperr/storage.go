package apperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/docledger/pkg/db"
)

// FromStorage maps a persistence failure onto an error kind. Errors that
// already carry a kind pass through unchanged.
func FromStorage(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		db.IsLockTimeout(err),
		db.IsSerializationFailure(err):
		return fmt.Errorf("%w: %v", ErrBusy, err)
	case db.IsDuplicateKeyErr(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}
