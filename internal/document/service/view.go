package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	directorydomain "github.com/smallbiznis/docledger/internal/directory/domain"
	"github.com/smallbiznis/docledger/internal/document/domain"
	officialcopydomain "github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"gorm.io/gorm"
)

type viewSource struct {
	docs      domain.Repository
	directory directorydomain.Repository
}

// NewViewSource exposes live documents to the official copy service.
func NewViewSource(docs domain.Repository, directory directorydomain.Repository) officialcopydomain.ViewSource {
	return &viewSource{docs: docs, directory: directory}
}

func (v *viewSource) LoadView(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) (*officialcopydomain.DocumentView, error) {
	doc, err := v.docs.FindByID(ctx, db, tenantID, documentID)
	if err != nil || doc == nil {
		return nil, err
	}
	items, err := v.docs.ListLineItems(ctx, db, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.LineItems = items

	view, err := buildView(ctx, db, v.directory, doc)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func buildView(ctx context.Context, db *gorm.DB, directory directorydomain.Repository, doc *domain.Document) (officialcopydomain.DocumentView, error) {
	view := officialcopydomain.DocumentView{
		ID:              doc.ID,
		TenantID:        doc.TenantID,
		Type:            string(doc.Type),
		Currency:        doc.Currency,
		ClientID:        doc.ClientID,
		ProjectID:       doc.ProjectID,
		IssueDate:       doc.IssueDate,
		DueDate:         doc.DueDate,
		ExpiryDate:      doc.ExpiryDate,
		SubtotalCents:   doc.SubtotalCents,
		TaxTotalCents:   doc.TaxTotalCents,
		TotalCents:      doc.TotalCents,
		AmountPaidCents: doc.AmountPaidCents,
		BalanceDueCents: doc.BalanceDueCents,
		Notes:           doc.Notes,
		Lines:           make([]officialcopydomain.LineView, 0, len(doc.LineItems)),
	}
	if doc.Number != nil {
		view.Number = *doc.Number
	}

	if doc.ClientID != 0 {
		client, err := directory.FindClient(ctx, db, doc.TenantID, doc.ClientID)
		if err != nil {
			return officialcopydomain.DocumentView{}, err
		}
		if client != nil {
			view.ClientName = client.Name
			view.ClientEmail = client.Email
			view.ClientAddress = client.Address
		}
	}

	for _, item := range doc.LineItems {
		view.Lines = append(view.Lines, officialcopydomain.LineView{
			Position:       item.Position,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TaxRatePercent: item.TaxRatePercent,
			LineTotalCents: item.LineTotalCents,
			LineTaxCents:   item.LineTaxCents,
		})
	}
	return view, nil
}
