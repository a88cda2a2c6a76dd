package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/numbering/domain"
	"github.com/smallbiznis/docledger/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Ensure(ctx context.Context, conn *gorm.DB, seq *domain.NumberSequence) error {
	return conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "doc_type"}},
			DoNothing: true,
		}).
		Create(seq).Error
}

func (r *repo) FindForUpdate(ctx context.Context, conn *gorm.DB, tenantID snowflake.ID, docType string) (*domain.NumberSequence, error) {
	var seq domain.NumberSequence
	err := db.ForUpdate(conn.WithContext(ctx)).
		Where("tenant_id = ? AND doc_type = ?", tenantID, docType).
		Limit(1).
		Find(&seq).Error
	if err != nil {
		return nil, err
	}
	if seq.TenantID == 0 {
		return nil, nil
	}
	return &seq, nil
}

func (r *repo) Find(ctx context.Context, conn *gorm.DB, tenantID snowflake.ID, docType string) (*domain.NumberSequence, error) {
	var seq domain.NumberSequence
	err := conn.WithContext(ctx).
		Where("tenant_id = ? AND doc_type = ?", tenantID, docType).
		Limit(1).
		Find(&seq).Error
	if err != nil {
		return nil, err
	}
	if seq.TenantID == 0 {
		return nil, nil
	}
	return &seq, nil
}

func (r *repo) Save(ctx context.Context, conn *gorm.DB, seq *domain.NumberSequence) error {
	return conn.WithContext(ctx).
		Model(&domain.NumberSequence{}).
		Where("tenant_id = ? AND doc_type = ?", seq.TenantID, seq.DocType).
		Updates(map[string]any{
			"prefix":        seq.Prefix,
			"current_value": seq.CurrentValue,
			"width":         seq.Width,
			"updated_at":    seq.UpdatedAt,
		}).Error
}
