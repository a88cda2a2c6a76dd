package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/apperr"
	auditdomain "github.com/smallbiznis/docledger/internal/audit/domain"
	"github.com/smallbiznis/docledger/internal/audit/masking"
	"github.com/smallbiznis/docledger/internal/clock"
	"github.com/smallbiznis/docledger/internal/config"
	documentdomain "github.com/smallbiznis/docledger/internal/document/domain"
	"github.com/smallbiznis/docledger/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/docledger/internal/payment/domain"
	"github.com/smallbiznis/docledger/internal/tenancy"
	"github.com/smallbiznis/docledger/pkg/db"
	"github.com/smallbiznis/docledger/pkg/log/ctxlogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const opRecordPayment = "payment.record"

var tracer = otel.Tracer("docledger/payment")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	Repo      paymentdomain.Repository
	Documents documentdomain.Repository
	Audit     auditdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	lockTimeout time.Duration
	repo        paymentdomain.Repository
	documents   documentdomain.Repository
	audit       auditdomain.Service
	metrics     *metrics.Metrics
	engine      *metrics.EngineMetrics
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		lockTimeout: p.Config.LockTimeout,
		repo:        p.Repo,
		documents:   p.Documents,
		audit:       p.Audit,
		metrics:     p.Metrics,
		engine:      metrics.Engine(),
	}
}

// RecordPayment applies a payment to a finalized invoice. The balance is
// checked under the invoice row lock against the sum of stored payments, so
// concurrent payments can never overdraw it.
func (s *Service) RecordPayment(ctx context.Context, tenantID snowflake.ID, req paymentdomain.RecordPaymentRequest) (out paymentdomain.PaymentResult, err error) {
	started := time.Now()
	defer func() { s.engine.ObserveOperation(opRecordPayment, started, err) }()
	ctx, span := tracer.Start(ctx, "payment.RecordPayment")
	defer span.End()

	if tenantID == 0 {
		return paymentdomain.PaymentResult{}, tenancy.ErrTenantRequired
	}
	if req.AmountCents <= 0 {
		return paymentdomain.PaymentResult{}, apperr.Wrap(paymentdomain.ErrInvalidAmount, "%d", req.AmountCents)
	}
	if req.PaidOn.IsZero() {
		return paymentdomain.PaymentResult{}, paymentdomain.ErrPaidOnRequired
	}
	method := paymentdomain.Method(strings.ToLower(strings.TrimSpace(string(req.Method))))
	if method == "" {
		method = paymentdomain.MethodOther
	}
	if !method.Valid() {
		return paymentdomain.PaymentResult{}, apperr.Wrap(paymentdomain.ErrInvalidMethod, "%q", req.Method)
	}

	now := s.clock.Now().UTC()
	payment := paymentdomain.Payment{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		DocumentID:  req.DocumentID,
		AmountCents: req.AmountCents,
		PaidOn:      clock.Date(req.PaidOn),
		Method:      method,
		Reference:   strings.TrimSpace(req.Reference),
		CreatedAt:   now,
	}

	var doc *documentdomain.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restore, err := db.BoundLockWait(ctx, tx, s.lockTimeout)
		if err != nil {
			return err
		}
		defer restore()
		if err := tenancy.Authorize(ctx, tx, tenantID, tenancy.Document(req.DocumentID)); err != nil {
			return err
		}

		waitStarted := time.Now()
		current, err := s.documents.FindForUpdate(ctx, tx, tenantID, req.DocumentID)
		s.engine.ObserveLockWait(metrics.LockResourceDocument, time.Since(waitStarted))
		if err != nil {
			return err
		}
		if current == nil {
			return documentdomain.ErrDocumentNotFound
		}
		if err := checkPayable(current); err != nil {
			return err
		}

		paid, err := s.repo.SumForDocument(ctx, tx, tenantID, current.ID)
		if err != nil {
			return err
		}
		current.SetAmountPaid(paid)
		if payment.AmountCents > current.BalanceDueCents {
			return apperr.Wrap(paymentdomain.ErrExceedsBalance, "%d cents due", current.BalanceDueCents)
		}

		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}
		current.SetAmountPaid(paid + payment.AmountCents)
		current.UpdatedAt = now
		if err := s.documents.Update(ctx, tx, current); err != nil {
			return err
		}
		items, err := s.documents.ListLineItems(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		current.LineItems = items
		doc = current
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return paymentdomain.PaymentResult{}, apperr.FromStorage(err)
	}
	span.SetAttributes(attribute.String("settlement", string(doc.Settlement())))

	s.metrics.RecordPayment(ctx, string(payment.Method), payment.AmountCents)
	ctxlogger.WithContext(ctx, s.log).Info("payment recorded",
		zap.String("document_id", doc.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.Int64("amount_cents", payment.AmountCents),
		zap.Int64("balance_due_cents", doc.BalanceDueCents),
	)
	s.record(ctx, doc, payment)

	return paymentdomain.PaymentResult{Payment: payment, Document: *doc}, nil
}

func (s *Service) ListPayments(ctx context.Context, tenantID, documentID snowflake.ID) ([]paymentdomain.Payment, error) {
	if err := tenancy.Authorize(ctx, s.db, tenantID, tenancy.Document(documentID)); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByDocument(ctx, s.db, tenantID, documentID)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return items, nil
}

func checkPayable(doc *documentdomain.Document) error {
	if doc.Type != documentdomain.TypeInvoice {
		return paymentdomain.ErrPaymentRequiresInvoice
	}
	if doc.IsArchived() {
		return documentdomain.ErrArchived
	}
	switch doc.Lifecycle {
	case documentdomain.LifecycleFinalized:
		return nil
	case documentdomain.LifecycleVoid:
		return paymentdomain.ErrDocumentVoid
	default:
		return apperr.Wrap(paymentdomain.ErrNotPayable, "lifecycle %s", doc.Lifecycle)
	}
}

func (s *Service) record(ctx context.Context, doc *documentdomain.Document, payment paymentdomain.Payment) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, doc.TenantID, auditdomain.Entry{
		Action:     "payment.recorded",
		TargetType: "document",
		TargetID:   doc.ID,
		Metadata: map[string]any{
			"payment_id":        payment.ID.String(),
			"amount_cents":      payment.AmountCents,
			"method":            string(payment.Method),
			"reference":         masking.MaskReference(payment.Reference),
			"paid_on":           payment.PaidOn.Format(time.DateOnly),
			"balance_due_cents": doc.BalanceDueCents,
			"settlement":        string(doc.Settlement()),
		},
	})
}
