package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/apperr"
	"github.com/smallbiznis/docledger/internal/clock"
	"github.com/smallbiznis/docledger/internal/money"
	"github.com/smallbiznis/docledger/internal/observability/metrics"
	"github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"github.com/smallbiznis/docledger/internal/providers/pdf"
	"github.com/smallbiznis/docledger/internal/tenancy"
	"github.com/smallbiznis/docledger/pkg/log/ctxlogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pdfContentType = "application/pdf"

var tracer = otel.Tracer("docledger/officialcopy")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Artifacts domain.ArtifactStore
	Views     domain.ViewSource
	PDF       pdf.Provider
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	artifacts domain.ArtifactStore
	views     domain.ViewSource
	pdf       pdf.Provider
	metrics   *metrics.Metrics
	engine    *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("officialcopy.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		artifacts: p.Artifacts,
		views:     p.Views,
		pdf:       p.PDF,
		metrics:   p.Metrics,
		engine:    metrics.Engine(),
	}
}

// Capture hashes and renders the view, stores the artifact and appends the
// copy, all on tx.
func (s *Service) Capture(ctx context.Context, tx *gorm.DB, req domain.CaptureRequest) (domain.OfficialCopy, error) {
	ctx, span := tracer.Start(ctx, "officialcopy.Capture")
	defer span.End()
	span.SetAttributes(attribute.String("event", string(req.Event)))

	if !req.Event.Valid() {
		return domain.OfficialCopy{}, domain.ErrInvalidEvent
	}
	view := req.Document
	if view.TenantID == 0 || view.ID == 0 {
		return domain.OfficialCopy{}, tenancy.ErrTenantRequired
	}

	rendered, err := s.pdf.RenderDocument(ctx, pdfData(view, req.Event))
	if err != nil {
		span.RecordError(err)
		return domain.OfficialCopy{}, err
	}

	var ref string
	if len(rendered) > 0 {
		ref, err = s.artifacts.Save(ctx, tx, view.TenantID, view.ID, pdfContentType, rendered)
		if err != nil {
			return domain.OfficialCopy{}, err
		}
	}

	oc := domain.OfficialCopy{
		ID:          s.genID.Generate(),
		TenantID:    view.TenantID,
		DocumentID:  view.ID,
		Event:       req.Event,
		ContentHash: domain.ContentHash(view),
		ArtifactRef: ref,
		MessageBody: req.MessageBody,
		Recipients:  strings.Join(req.Recipients, ","),
		CapturedAt:  s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, tx, &oc); err != nil {
		return domain.OfficialCopy{}, err
	}

	s.metrics.RecordOfficialCopy(ctx, view.Type, string(req.Event))
	return oc, nil
}

func (s *Service) Latest(ctx context.Context, tx *gorm.DB, tenantID, documentID snowflake.ID) (*domain.OfficialCopy, error) {
	if tx == nil {
		tx = s.db
	}
	return s.repo.Latest(ctx, tx, tenantID, documentID)
}

func (s *Service) List(ctx context.Context, tenantID, documentID snowflake.ID) ([]domain.OfficialCopy, error) {
	if err := tenancy.Authorize(ctx, s.db, tenantID, tenancy.Document(documentID)); err != nil {
		return nil, err
	}
	copies, err := s.repo.List(ctx, s.db, tenantID, documentID)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return copies, nil
}

// Verify compares the live document with its latest copy. A mismatch is
// reported in the result, not as an error.
func (s *Service) Verify(ctx context.Context, tenantID, documentID snowflake.ID) (domain.VerifyResult, error) {
	if err := tenancy.Authorize(ctx, s.db, tenantID, tenancy.Document(documentID)); err != nil {
		return domain.VerifyResult{}, err
	}

	view, err := s.views.LoadView(ctx, s.db, tenantID, documentID)
	if err != nil {
		return domain.VerifyResult{}, apperr.FromStorage(err)
	}
	if view == nil {
		return domain.VerifyResult{}, domain.ErrDocumentNotFound
	}

	latest, err := s.repo.Latest(ctx, s.db, tenantID, documentID)
	if err != nil {
		return domain.VerifyResult{}, apperr.FromStorage(err)
	}
	if latest == nil {
		return domain.VerifyResult{}, domain.ErrNoOfficialCopy
	}

	result := domain.VerifyResult{
		CopyID:       latest.ID,
		LiveHash:     domain.ContentHash(*view),
		SnapshotHash: latest.ContentHash,
	}
	result.Match = result.LiveHash == result.SnapshotHash
	if !result.Match {
		s.engine.IncHashMismatch()
		ctxlogger.WithContext(ctx, s.log).Warn("document differs from latest official copy",
			zap.String("document_id", documentID.String()),
			zap.String("copy_id", latest.ID.String()),
			zap.String("live_hash", result.LiveHash),
			zap.String("snapshot_hash", result.SnapshotHash),
		)
	}
	return result, nil
}

func (s *Service) LoadArtifact(ctx context.Context, tenantID snowflake.ID, ref string) (*domain.Artifact, error) {
	return s.artifacts.Load(ctx, s.db, tenantID, ref)
}

func pdfData(view domain.DocumentView, event domain.Event) pdf.DocumentData {
	data := pdf.DocumentData{
		Number:        view.Number,
		IssueDate:     dateOrDash(view),
		Event:         string(event),
		BillToName:    view.ClientName,
		BillToAddress: view.ClientAddress,
		BillToEmail:   view.ClientEmail,
		Subtotal:      money.Format(view.SubtotalCents, view.Currency),
		Tax:           money.Format(view.TaxTotalCents, view.Currency),
		Total:         money.Format(view.TotalCents, view.Currency),
		Notes:         view.Notes,
	}
	switch view.Type {
	case "quote":
		data.Title = "Quote"
		data.DateLabel = "Valid until"
		if view.ExpiryDate != nil {
			data.DateValue = view.ExpiryDate.Format("2006-01-02")
		}
	default:
		data.Title = "Invoice"
		data.DateLabel = "Date due"
		if view.DueDate != nil {
			data.DateValue = view.DueDate.Format("2006-01-02")
		}
	}

	for _, line := range view.Lines {
		data.Items = append(data.Items, pdf.Item{
			Description: line.Description,
			Quantity:    line.Quantity.String(),
			UnitPrice:   money.Format(line.UnitPriceCents, ""),
			TaxRate:     line.TaxRatePercent.String() + "%",
			Amount:      money.Format(line.LineTotalCents, ""),
		})
	}
	return data
}

func dateOrDash(view domain.DocumentView) string {
	if view.IssueDate == nil {
		return "-"
	}
	return view.IssueDate.Format("2006-01-02")
}
