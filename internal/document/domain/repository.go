package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, doc *Document) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Document, error)
	// FindForUpdate holds the document row lock until db commits.
	FindForUpdate(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Document, error)
	Update(ctx context.Context, db *gorm.DB, doc *Document) error
	// MarkExpired flips a finalized quote to expired and reports whether a row changed.
	MarkExpired(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, at time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Document, error)

	ListLineItems(ctx context.Context, db *gorm.DB, documentID snowflake.ID) ([]LineItem, error)
	// ReplaceLineItems rewrites every line of the document, keeping ids.
	ReplaceLineItems(ctx context.Context, db *gorm.DB, documentID snowflake.ID, items []LineItem) error
}
