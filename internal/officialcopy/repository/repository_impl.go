package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, oc *domain.OfficialCopy) error {
	return db.WithContext(ctx).Create(oc).Error
}

func (r *repo) Latest(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) (*domain.OfficialCopy, error) {
	var oc domain.OfficialCopy
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Order("captured_at desc, id desc").
		Limit(1).
		Find(&oc).Error
	if err != nil {
		return nil, err
	}
	if oc.ID == 0 {
		return nil, nil
	}
	return &oc, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) ([]domain.OfficialCopy, error) {
	var copies []domain.OfficialCopy
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Order("captured_at asc, id asc").
		Find(&copies).Error
	return copies, err
}
