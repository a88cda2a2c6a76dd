package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/apperr"
	"github.com/smallbiznis/docledger/internal/clock"
	"github.com/smallbiznis/docledger/internal/config"
	"github.com/smallbiznis/docledger/internal/numbering/domain"
	"github.com/smallbiznis/docledger/internal/numbering/format"
	"github.com/smallbiznis/docledger/internal/observability/metrics"
	"github.com/smallbiznis/docledger/internal/tenancy"
	"github.com/smallbiznis/docledger/pkg/db"
	"github.com/smallbiznis/docledger/pkg/log/ctxlogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minWidth = 1
	maxWidth = 12
)

var tracer = otel.Tracer("docledger/numbering")

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
	Terms  *config.TermsHolder
	Repo   domain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	terms       *config.TermsHolder
	repo        domain.Repository
	lockTimeout time.Duration
	metrics     *metrics.EngineMetrics
}

func New(p Params) domain.Allocator {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("numbering.service"),
		clock:       p.Clock,
		terms:       p.Terms,
		repo:        p.Repo,
		lockTimeout: p.Config.LockTimeout,
		metrics:     metrics.Engine(),
	}
}

// Allocate increments the (tenant, type) counter in a short transaction of
// its own and returns the formatted number.
func (s *Service) Allocate(ctx context.Context, tenantID snowflake.ID, docType string, issuedAt time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "numbering.Allocate")
	defer span.End()
	span.SetAttributes(attribute.String("doc_type", docType))

	if tenantID == 0 {
		return "", tenancy.ErrTenantRequired
	}
	docType = strings.TrimSpace(docType)
	if docType == "" {
		return "", domain.ErrInvalidDocType
	}

	var number string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restore, err := db.BoundLockWait(ctx, tx, s.lockTimeout)
		if err != nil {
			return err
		}
		defer restore()

		defaults := s.terms.Get().NumberingFor(docType)
		if err := s.repo.Ensure(ctx, tx, &domain.NumberSequence{
			TenantID:  tenantID,
			DocType:   docType,
			Prefix:    defaults.Prefix,
			Width:     defaults.Width,
			UpdatedAt: s.clock.Now().UTC(),
		}); err != nil {
			return err
		}

		waitStarted := time.Now()
		seq, err := s.repo.FindForUpdate(ctx, tx, tenantID, docType)
		s.metrics.ObserveLockWait(metrics.LockResourceNumberSequence, time.Since(waitStarted))
		if err != nil {
			return err
		}
		if seq == nil {
			return apperr.Wrap(apperr.ErrNotFound, "number sequence %s", docType)
		}

		seq.CurrentValue++
		seq.UpdatedAt = s.clock.Now().UTC()
		number, err = format.Number(seq.Prefix, issuedAt, seq.CurrentValue, seq.Width)
		if err != nil {
			return apperr.Wrap(domain.ErrInvalidPrefix, "%v", err)
		}
		return s.repo.Save(ctx, tx, seq)
	})
	if err != nil {
		span.RecordError(err)
		return "", apperr.FromStorage(err)
	}

	s.metrics.IncNumberAllocated(docType)
	ctxlogger.WithContext(ctx, s.log).Debug("number allocated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("doc_type", docType),
		zap.String("number", number),
	)
	return number, nil
}

// Configure changes prefix and width. The current value is left alone so
// numbers never repeat.
func (s *Service) Configure(ctx context.Context, tenantID snowflake.ID, docType, prefix string, width int) (domain.NumberSequence, error) {
	if tenantID == 0 {
		return domain.NumberSequence{}, tenancy.ErrTenantRequired
	}
	docType = strings.TrimSpace(docType)
	if docType == "" {
		return domain.NumberSequence{}, domain.ErrInvalidDocType
	}
	if width < minWidth || width > maxWidth {
		return domain.NumberSequence{}, domain.ErrInvalidWidth
	}
	if _, err := format.RenderPrefix(prefix, s.clock.Now()); err != nil {
		return domain.NumberSequence{}, apperr.Wrap(domain.ErrInvalidPrefix, "%v", err)
	}

	var out domain.NumberSequence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restore, err := db.BoundLockWait(ctx, tx, s.lockTimeout)
		if err != nil {
			return err
		}
		defer restore()

		now := s.clock.Now().UTC()
		if err := s.repo.Ensure(ctx, tx, &domain.NumberSequence{
			TenantID:  tenantID,
			DocType:   docType,
			Prefix:    prefix,
			Width:     width,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		seq, err := s.repo.FindForUpdate(ctx, tx, tenantID, docType)
		if err != nil {
			return err
		}
		if seq == nil {
			return apperr.Wrap(apperr.ErrNotFound, "number sequence %s", docType)
		}
		seq.Prefix = prefix
		seq.Width = width
		seq.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, seq); err != nil {
			return err
		}
		out = *seq
		return nil
	})
	if err != nil {
		return domain.NumberSequence{}, apperr.FromStorage(err)
	}
	return out, nil
}

// Peek returns the sequence as stored, or the configured defaults with value 0.
func (s *Service) Peek(ctx context.Context, tenantID snowflake.ID, docType string) (domain.NumberSequence, error) {
	if tenantID == 0 {
		return domain.NumberSequence{}, tenancy.ErrTenantRequired
	}
	seq, err := s.repo.Find(ctx, s.db, tenantID, docType)
	if err != nil {
		return domain.NumberSequence{}, apperr.FromStorage(err)
	}
	if seq != nil {
		return *seq, nil
	}
	defaults := s.terms.Get().NumberingFor(docType)
	return domain.NumberSequence{
		TenantID: tenantID,
		DocType:  docType,
		Prefix:   defaults.Prefix,
		Width:    defaults.Width,
	}, nil
}
