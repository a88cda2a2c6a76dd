package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertClient(ctx context.Context, db *gorm.DB, client *Client) error
	FindClient(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Client, error)

	InsertProject(ctx context.Context, db *gorm.DB, project *Project) error
	FindProject(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Project, error)
	SlugTaken(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, slug string) (bool, error)

	InsertTaxRate(ctx context.Context, db *gorm.DB, rate *TaxRate) error
	FindTaxRate(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*TaxRate, error)
}
