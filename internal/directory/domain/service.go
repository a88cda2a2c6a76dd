package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateClientRequest struct {
	Name    string
	Email   string
	Address string
}

type CreateProjectRequest struct {
	ClientID snowflake.ID
	Name     string
}

type CreateTaxRateRequest struct {
	Name        string
	RatePercent decimal.Decimal
}

type Service interface {
	CreateClient(ctx context.Context, tenantID snowflake.ID, req CreateClientRequest) (Client, error)
	CreateProject(ctx context.Context, tenantID snowflake.ID, req CreateProjectRequest) (Project, error)
	// CreateProjectTx creates a project inside a caller-owned transaction.
	CreateProjectTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, req CreateProjectRequest) (Project, error)
	CreateTaxRate(ctx context.Context, tenantID snowflake.ID, req CreateTaxRateRequest) (TaxRate, error)

	GetClient(ctx context.Context, tenantID, id snowflake.ID) (Client, error)
	GetProject(ctx context.Context, tenantID, id snowflake.ID) (Project, error)
	GetTaxRate(ctx context.Context, tenantID, id snowflake.ID) (TaxRate, error)
}
