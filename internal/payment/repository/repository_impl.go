package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/payment/domain"
	"github.com/smallbiznis/docledger/internal/tenancy"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) SumForDocument(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM payments
		 WHERE tenant_id = ? AND document_id = ?`,
		tenantID,
		documentID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) ListByDocument(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Scopes(tenancy.Scope(tenantID)).
		Where("document_id = ?", documentID).
		Order("paid_on ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
