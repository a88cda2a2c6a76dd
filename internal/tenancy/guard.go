// Package tenancy is the single authorization chokepoint for tenant-owned rows.
package tenancy

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/apperr"
	"gorm.io/gorm"
)

type RefKind string

const (
	RefClient   RefKind = "client"
	RefProject  RefKind = "project"
	RefTaxRate  RefKind = "tax_rate"
	RefDocument RefKind = "document"
)

var tables = map[RefKind]string{
	RefClient:   "clients",
	RefProject:  "projects",
	RefTaxRate:  "tax_rates",
	RefDocument: "documents",
}

var (
	ErrTenantRequired    = apperr.New(apperr.ErrValidation, "tenant_required")
	ErrUnknownReference  = apperr.New(apperr.ErrValidation, "unknown_reference_kind")
	ErrReferenceNotFound = apperr.New(apperr.ErrNotFound, "reference_not_found")
	ErrForeignReference  = apperr.New(apperr.ErrCrossTenantReference, "cross_tenant_reference")
)

// Ref names a row referenced by a request payload.
type Ref struct {
	Kind RefKind
	ID   snowflake.ID
}

func Client(id snowflake.ID) Ref   { return Ref{Kind: RefClient, ID: id} }
func Project(id snowflake.ID) Ref  { return Ref{Kind: RefProject, ID: id} }
func TaxRate(id snowflake.ID) Ref  { return Ref{Kind: RefTaxRate, ID: id} }
func Document(id snowflake.ID) Ref { return Ref{Kind: RefDocument, ID: id} }

// Authorize loads every referenced row without a tenant filter and checks its
// owner. Zero ids are optional references and are skipped. Call it inside the
// operation's transaction before the first write.
func Authorize(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, refs ...Ref) error {
	if tenantID == 0 {
		return ErrTenantRequired
	}
	for _, ref := range refs {
		if ref.ID == 0 {
			continue
		}
		table, ok := tables[ref.Kind]
		if !ok {
			return apperr.Wrap(ErrUnknownReference, "%s", ref.Kind)
		}

		var owners []snowflake.ID
		err := db.WithContext(ctx).
			Table(table).
			Where("id = ?", ref.ID).
			Limit(1).
			Pluck("tenant_id", &owners).Error
		if err != nil {
			return apperr.FromStorage(err)
		}
		if len(owners) == 0 {
			return apperr.Wrap(ErrReferenceNotFound, "%s %s", ref.Kind, ref.ID)
		}
		if owners[0] != tenantID {
			return apperr.Wrap(ErrForeignReference, "%s %s", ref.Kind, ref.ID)
		}
	}
	return nil
}

// Scope restricts a query to rows owned by tenantID.
func Scope(tenantID snowflake.ID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}
