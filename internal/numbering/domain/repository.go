package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Ensure inserts seq unless a row for its key already exists.
	Ensure(ctx context.Context, db *gorm.DB, seq *NumberSequence) error
	FindForUpdate(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, docType string) (*NumberSequence, error)
	Find(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, docType string) (*NumberSequence, error)
	Save(ctx context.Context, db *gorm.DB, seq *NumberSequence) error
}
