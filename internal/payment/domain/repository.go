package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	SumForDocument(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) (int64, error)
	ListByDocument(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) ([]Payment, error)
}
