package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/document/domain"
	"github.com/smallbiznis/docledger/internal/tenancy"
	"github.com/smallbiznis/docledger/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	return db.WithContext(ctx).Create(doc).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Document, error) {
	return r.find(db.WithContext(ctx), tenantID, id)
}

func (r *repo) FindForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.Document, error) {
	return r.find(db.ForUpdate(tx.WithContext(ctx)), tenantID, id)
}

func (r *repo) find(stmt *gorm.DB, tenantID, id snowflake.ID) (*domain.Document, error) {
	var doc domain.Document
	err := stmt.
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ?", id).
		Limit(1).
		Find(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 {
		return nil, nil
	}
	return &doc, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	return db.WithContext(ctx).Save(doc).Error
}

func (r *repo) MarkExpired(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("tenant_id = ? AND id = ? AND lifecycle = ?", tenantID, id, domain.LifecycleFinalized).
		Updates(map[string]any{
			"lifecycle":  domain.LifecycleExpired,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Document, error) {
	var docs []*domain.Document
	stmt := db.WithContext(ctx).Model(&domain.Document{}).
		Scopes(tenancy.Scope(filter.TenantID))

	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.Lifecycle != "" {
		stmt = filterLifecycle(stmt, filter.Lifecycle, filter.Today)
	}
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if !filter.IncludeArchived {
		stmt = stmt.Where("archived_at IS NULL")
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// lapsedQuote matches sent quotes past their expiry date whose stored
// lifecycle has not been flipped yet.
const lapsedQuote = "type = ? AND sent_at IS NOT NULL AND expiry_date IS NOT NULL AND expiry_date < ?"

// filterLifecycle matches the lifecycle callers see, which counts lapsed
// quotes as expired. A zero today filters on the stored value only.
func filterLifecycle(stmt *gorm.DB, lifecycle domain.Lifecycle, today time.Time) *gorm.DB {
	if today.IsZero() {
		return stmt.Where("lifecycle = ?", lifecycle)
	}
	switch lifecycle {
	case domain.LifecycleExpired:
		return stmt.Where("lifecycle = ? OR (lifecycle = ? AND "+lapsedQuote+")",
			domain.LifecycleExpired, domain.LifecycleFinalized, domain.TypeQuote, today)
	case domain.LifecycleFinalized:
		return stmt.Where("lifecycle = ? AND NOT ("+lapsedQuote+")",
			domain.LifecycleFinalized, domain.TypeQuote, today)
	default:
		return stmt.Where("lifecycle = ?", lifecycle)
	}
}

func (r *repo) ListLineItems(ctx context.Context, db *gorm.DB, documentID snowflake.ID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("position asc").
		Find(&items).Error
	return items, err
}

func (r *repo) ReplaceLineItems(ctx context.Context, db *gorm.DB, documentID snowflake.ID, items []domain.LineItem) error {
	err := db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&domain.LineItem{}).Error
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}
