package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docledger/internal/apperr"
	auditdomain "github.com/smallbiznis/docledger/internal/audit/domain"
	"github.com/smallbiznis/docledger/internal/clock"
	"github.com/smallbiznis/docledger/internal/config"
	directorydomain "github.com/smallbiznis/docledger/internal/directory/domain"
	"github.com/smallbiznis/docledger/internal/document/calc"
	"github.com/smallbiznis/docledger/internal/document/domain"
	"github.com/smallbiznis/docledger/internal/lock"
	"github.com/smallbiznis/docledger/internal/money"
	numberingdomain "github.com/smallbiznis/docledger/internal/numbering/domain"
	"github.com/smallbiznis/docledger/internal/observability/metrics"
	officialcopydomain "github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"github.com/smallbiznis/docledger/internal/officialcopy/render"
	"github.com/smallbiznis/docledger/internal/providers/email"
	"github.com/smallbiznis/docledger/internal/tenancy"
	"github.com/smallbiznis/docledger/pkg/db"
	"github.com/smallbiznis/docledger/pkg/db/pagination"
	"github.com/smallbiznis/docledger/pkg/log/ctxlogger"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	opCreate      = "document.create"
	opUpdateDraft = "document.update_draft"
	opUpdateNotes = "document.update_notes"
	opAddLine     = "document.add_line_item"
	opUpdateLine  = "document.update_line_item"
	opRemoveLine  = "document.remove_line_item"
	opReorder     = "document.reorder_line_items"
	opRecalculate = "document.recalculate"
	opFinalize    = "document.finalize"
	opSend        = "document.send"
	opVoid        = "document.void"
	opAccept      = "document.accept"
	opConvert     = "document.convert"
	opArchive     = "document.archive"

	defaultCurrency = "USD"
	maxScale        = 4
)

var tracer = otel.Tracer("docledger/document")

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	Terms       *config.TermsHolder
	Repo        domain.Repository
	Directory   directorydomain.Repository
	Directories directorydomain.Service
	Numbering   numberingdomain.Allocator
	Copies      officialcopydomain.Service
	Renderer    render.MessageRenderer
	Email       email.Provider
	Audit       auditdomain.Service
	SendGuard   *lock.SendGuard  `optional:"true"`
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	terms       *config.TermsHolder
	lockTimeout time.Duration
	repo        domain.Repository
	directory   directorydomain.Repository
	directories directorydomain.Service
	numbering   numberingdomain.Allocator
	copies      officialcopydomain.Service
	renderer    render.MessageRenderer
	email       email.Provider
	audit       auditdomain.Service
	sendGuard   *lock.SendGuard
	metrics     *metrics.Metrics
	engine      *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("document.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		terms:       p.Terms,
		lockTimeout: p.Config.LockTimeout,
		repo:        p.Repo,
		directory:   p.Directory,
		directories: p.Directories,
		numbering:   p.Numbering,
		copies:      p.Copies,
		renderer:    p.Renderer,
		email:       p.Email,
		audit:       p.Audit,
		sendGuard:   p.SendGuard,
		metrics:     p.Metrics,
		engine:      metrics.Engine(),
	}
}

func (s *Service) CreateDocument(ctx context.Context, tenantID snowflake.ID, req domain.CreateDocumentRequest) (out domain.Document, err error) {
	defer s.observe(opCreate, time.Now(), &err)
	ctx, span := tracer.Start(ctx, "document.CreateDocument")
	defer span.End()

	if tenantID == 0 {
		return domain.Document{}, tenancy.ErrTenantRequired
	}
	if !req.Type.Valid() {
		return domain.Document{}, domain.ErrInvalidType
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return domain.Document{}, err
	}

	now := s.clock.Now().UTC()
	doc := domain.Document{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		Type:       req.Type,
		Lifecycle:  domain.LifecycleDraft,
		ClientID:   req.ClientID,
		ProjectID:  req.ProjectID,
		Currency:   currency,
		IssueDate:  dateOnly(req.IssueDate),
		DueDate:    dateOnly(req.DueDate),
		ExpiryDate: dateOnly(req.ExpiryDate),
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len(req.Metadata) > 0 {
		doc.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if err := validateDates(&doc); err != nil {
		return domain.Document{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.authorizeParties(ctx, tx, tenantID, doc.ClientID, doc.ProjectID); err != nil {
			return err
		}

		items := make([]domain.LineItem, 0, len(req.LineItems))
		for _, input := range req.LineItems {
			item, err := s.buildLineItem(ctx, tx, &doc, input, now)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		calc.Renumber(items)
		totals, err := calc.Recalculate(items)
		if err != nil {
			return err
		}
		doc.SetTotals(totals)

		if err := s.repo.Insert(ctx, tx, &doc); err != nil {
			return err
		}
		if err := s.repo.ReplaceLineItems(ctx, tx, doc.ID, items); err != nil {
			return err
		}
		doc.LineItems = items
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Document{}, apperr.FromStorage(err)
	}

	s.record(ctx, "document.created", &doc, nil)
	return doc, nil
}

func (s *Service) UpdateDraft(ctx context.Context, tenantID, id snowflake.ID, req domain.UpdateDraftRequest) (out domain.Document, err error) {
	defer s.observe(opUpdateDraft, time.Now(), &err)

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if !doc.IsDraft() {
			return domain.ErrNotDraft
		}
		if req.ClientID != nil {
			doc.ClientID = *req.ClientID
		}
		if req.ProjectID != nil {
			doc.ProjectID = *req.ProjectID
		}
		if req.Currency != nil {
			currency, err := normalizeCurrency(*req.Currency)
			if err != nil {
				return err
			}
			doc.Currency = currency
		}
		if req.IssueDate != nil {
			doc.IssueDate = dateOnly(req.IssueDate)
		}
		if req.DueDate != nil {
			doc.DueDate = dateOnly(req.DueDate)
		}
		if req.ExpiryDate != nil {
			doc.ExpiryDate = dateOnly(req.ExpiryDate)
		}
		if err := validateDates(doc); err != nil {
			return err
		}
		return s.authorizeParties(ctx, tx, tenantID, doc.ClientID, doc.ProjectID)
	})
	if err != nil {
		return domain.Document{}, err
	}
	return *doc, nil
}

// UpdateNotes is the one edit allowed after finalize. Notes are not part of
// the content hash.
func (s *Service) UpdateNotes(ctx context.Context, tenantID, id snowflake.ID, notes string) (out domain.Document, err error) {
	defer s.observe(opUpdateNotes, time.Now(), &err)

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		doc.Notes = strings.TrimSpace(notes)
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	return *doc, nil
}

func (s *Service) AddLineItem(ctx context.Context, tenantID, id snowflake.ID, input domain.LineItemInput) (out domain.Document, err error) {
	defer s.observe(opAddLine, time.Now(), &err)

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if !doc.IsDraft() {
			return domain.ErrNotDraft
		}
		item, err := s.buildLineItem(ctx, tx, doc, input, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		items := append(doc.LineItems, item)
		calc.Renumber(items)
		return s.replaceLines(ctx, tx, doc, items)
	})
	if err != nil {
		return domain.Document{}, err
	}
	return *doc, nil
}

func (s *Service) UpdateLineItem(ctx context.Context, tenantID, id snowflake.ID, position int, input domain.LineItemInput) (out domain.Document, err error) {
	defer s.observe(opUpdateLine, time.Now(), &err)

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if !doc.IsDraft() {
			return domain.ErrNotDraft
		}
		if position < 1 || position > len(doc.LineItems) {
			return apperr.Wrap(domain.ErrLineItemNotFound, "position %d", position)
		}
		current := doc.LineItems[position-1]
		item, err := s.buildLineItem(ctx, tx, doc, input, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		item.ID = current.ID
		item.Position = current.Position
		item.CreatedAt = current.CreatedAt

		items := append([]domain.LineItem(nil), doc.LineItems...)
		items[position-1] = item
		return s.replaceLines(ctx, tx, doc, items)
	})
	if err != nil {
		return domain.Document{}, err
	}
	return *doc, nil
}

func (s *Service) RemoveLineItem(ctx context.Context, tenantID, id snowflake.ID, position int) (out domain.Document, err error) {
	defer s.observe(opRemoveLine, time.Now(), &err)

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if !doc.IsDraft() {
			return domain.ErrNotDraft
		}
		if position < 1 || position > len(doc.LineItems) {
			return apperr.Wrap(domain.ErrLineItemNotFound, "position %d", position)
		}
		items := make([]domain.LineItem, 0, len(doc.LineItems)-1)
		items = append(items, doc.LineItems[:position-1]...)
		items = append(items, doc.LineItems[position:]...)
		calc.Renumber(items)
		return s.replaceLines(ctx, tx, doc, items)
	})
	if err != nil {
		return domain.Document{}, err
	}
	return *doc, nil
}

func (s *Service) ReorderLineItems(ctx context.Context, tenantID, id snowflake.ID, order []int) (out domain.Document, err error) {
	defer s.observe(opReorder, time.Now(), &err)

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if !doc.IsDraft() {
			return domain.ErrNotDraft
		}
		if len(order) != len(doc.LineItems) {
			return domain.ErrInvalidOrder
		}
		seen := make(map[int]bool, len(order))
		items := make([]domain.LineItem, 0, len(order))
		for _, position := range order {
			if position < 1 || position > len(doc.LineItems) || seen[position] {
				return domain.ErrInvalidOrder
			}
			seen[position] = true
			items = append(items, doc.LineItems[position-1])
		}
		calc.Renumber(items)
		return s.replaceLines(ctx, tx, doc, items)
	})
	if err != nil {
		return domain.Document{}, err
	}
	return *doc, nil
}

// Recalculate derives totals from the stored lines. Only drafts are written
// back; issued totals are frozen.
func (s *Service) Recalculate(ctx context.Context, tenantID, id snowflake.ID) (totals domain.Totals, err error) {
	defer s.observe(opRecalculate, time.Now(), &err)

	current, err := s.load(ctx, tenantID, id)
	if err != nil {
		return domain.Totals{}, err
	}
	if !current.IsDraft() || current.IsArchived() {
		return calc.Recalculate(current.LineItems)
	}

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if !doc.IsDraft() {
			return nil
		}
		return s.replaceLines(ctx, tx, doc, doc.LineItems)
	})
	if err != nil {
		return domain.Totals{}, err
	}
	return doc.Totals(), nil
}

func (s *Service) Get(ctx context.Context, tenantID, id snowflake.ID) (domain.Document, error) {
	doc, err := s.load(ctx, tenantID, id)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Lifecycle = doc.EffectiveLifecycle(clock.Today(s.clock))
	return *doc, nil
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID, req domain.ListDocumentRequest) (domain.ListDocumentResponse, error) {
	if tenantID == 0 {
		return domain.ListDocumentResponse{}, tenancy.ErrTenantRequired
	}
	if req.Type != "" && !req.Type.Valid() {
		return domain.ListDocumentResponse{}, domain.ErrInvalidType
	}

	var cursor *domain.DocumentCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListDocumentResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListDocumentResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListDocumentResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.DocumentCursor{ID: id, CreatedAt: createdAt}
	}

	today := clock.Today(s.clock)
	pageSize := req.Pagination.Size()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		TenantID:        tenantID,
		Type:            req.Type,
		Lifecycle:       req.Lifecycle,
		ClientID:        req.ClientID,
		IncludeArchived: req.IncludeArchived,
		Cursor:          cursor,
		Limit:           pageSize,
		Today:           today,
	})
	if err != nil {
		return domain.ListDocumentResponse{}, apperr.FromStorage(err)
	}

	pageInfo, items := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Document) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	docs := make([]domain.Document, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		item.Lifecycle = item.EffectiveLifecycle(today)
		docs = append(docs, *item)
	}
	return domain.ListDocumentResponse{PageInfo: pageInfo, Documents: docs}, nil
}

// load reads a document and its lines without locking.
func (s *Service) load(ctx context.Context, tenantID, id snowflake.ID) (*domain.Document, error) {
	if err := tenancy.Authorize(ctx, s.db, tenantID, tenancy.Document(id)); err != nil {
		return nil, err
	}
	doc, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	if doc == nil {
		return nil, domain.ErrDocumentNotFound
	}
	items, err := s.repo.ListLineItems(ctx, s.db, doc.ID)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	doc.LineItems = items
	return doc, nil
}

// withDocument runs fn on the locked document and saves it when fn succeeds.
// A sent quote found past its expiry date is expired first; that change is
// kept even when fn fails.
func (s *Service) withDocument(ctx context.Context, tenantID, id snowflake.ID, allowArchived bool, fn func(tx *gorm.DB, doc *domain.Document) error) (*domain.Document, error) {
	var (
		out     *domain.Document
		expired bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restore, err := db.BoundLockWait(ctx, tx, s.lockTimeout)
		if err != nil {
			return err
		}
		defer restore()
		if err := tenancy.Authorize(ctx, tx, tenantID, tenancy.Document(id)); err != nil {
			return err
		}

		waitStarted := time.Now()
		doc, err := s.repo.FindForUpdate(ctx, tx, tenantID, id)
		s.engine.ObserveLockWait(metrics.LockResourceDocument, time.Since(waitStarted))
		if err != nil {
			return err
		}
		if doc == nil {
			return domain.ErrDocumentNotFound
		}
		if doc.IsArchived() && !allowArchived {
			return domain.ErrArchived
		}
		items, err := s.repo.ListLineItems(ctx, tx, doc.ID)
		if err != nil {
			return err
		}
		doc.LineItems = items

		now := s.clock.Now().UTC()
		if doc.ExpiredOn(clock.Date(now)) {
			if err := doc.Transition(domain.LifecycleExpired); err != nil {
				return err
			}
			expired = true
		}

		if err := fn(tx, doc); err != nil {
			return err
		}
		doc.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, doc); err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		if expired {
			s.persistExpiry(ctx, tenantID, id)
		}
		return nil, apperr.FromStorage(err)
	}
	if expired {
		s.engine.IncTransition(string(domain.TypeQuote), string(domain.LifecycleFinalized), string(domain.LifecycleExpired))
	}
	return out, nil
}

func (s *Service) persistExpiry(ctx context.Context, tenantID, id snowflake.ID) {
	changed, err := s.repo.MarkExpired(ctx, s.db, tenantID, id, s.clock.Now().UTC())
	if err != nil {
		ctxlogger.WithContext(ctx, s.log).Warn("failed to persist quote expiry",
			zap.String("document_id", id.String()),
			zap.Error(err),
		)
		return
	}
	if changed {
		s.engine.IncTransition(string(domain.TypeQuote), string(domain.LifecycleFinalized), string(domain.LifecycleExpired))
	}
}

// replaceLines recalculates items, rewrites them and refreshes doc totals.
func (s *Service) replaceLines(ctx context.Context, tx *gorm.DB, doc *domain.Document, items []domain.LineItem) error {
	totals, err := calc.Recalculate(items)
	if err != nil {
		return err
	}
	doc.SetTotals(totals)
	if err := s.repo.ReplaceLineItems(ctx, tx, doc.ID, items); err != nil {
		return err
	}
	doc.LineItems = items
	return nil
}

func (s *Service) buildLineItem(ctx context.Context, tx *gorm.DB, doc *domain.Document, input domain.LineItemInput, now time.Time) (domain.LineItem, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return domain.LineItem{}, domain.ErrInvalidDescription
	}
	if err := money.ValidateQuantity(input.Quantity); err != nil || !fitsScale(input.Quantity) {
		return domain.LineItem{}, apperr.Wrap(domain.ErrInvalidQuantity, "%s", input.Quantity)
	}
	if err := money.ValidateUnitPrice(input.UnitPriceCents); err != nil {
		return domain.LineItem{}, apperr.Wrap(domain.ErrInvalidUnitPrice, "%d", input.UnitPriceCents)
	}

	item := domain.LineItem{
		ID:             s.genID.Generate(),
		TenantID:       doc.TenantID,
		DocumentID:     doc.ID,
		Description:    description,
		Quantity:       input.Quantity,
		UnitPriceCents: input.UnitPriceCents,
		TaxRatePercent: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	switch {
	case input.TaxRatePercent != nil && input.TaxRateID != 0:
		return domain.LineItem{}, domain.ErrAmbiguousTaxRate
	case input.TaxRateID != 0:
		if err := tenancy.Authorize(ctx, tx, doc.TenantID, tenancy.TaxRate(input.TaxRateID)); err != nil {
			return domain.LineItem{}, err
		}
		rate, err := s.directory.FindTaxRate(ctx, tx, doc.TenantID, input.TaxRateID)
		if err != nil {
			return domain.LineItem{}, err
		}
		if rate == nil {
			return domain.LineItem{}, directorydomain.ErrTaxRateNotFound
		}
		rateID := rate.ID
		item.TaxRatePercent = rate.RatePercent
		item.TaxRateID = &rateID
	case input.TaxRatePercent != nil:
		rate := *input.TaxRatePercent
		if err := money.ValidateRate(rate); err != nil || !fitsScale(rate) {
			return domain.LineItem{}, apperr.Wrap(domain.ErrInvalidTaxRate, "%s", rate)
		}
		item.TaxRatePercent = rate
	}
	if _, _, err := calc.Line(item); err != nil {
		return domain.LineItem{}, apperr.Wrap(domain.ErrInvalidQuantity, "%s x %d cents exceeds %d cents",
			input.Quantity, input.UnitPriceCents, money.MaxAmountCents)
	}
	return item, nil
}

// authorizeParties checks client and project ownership, and that a project
// belongs to the document's client.
func (s *Service) authorizeParties(ctx context.Context, tx *gorm.DB, tenantID, clientID, projectID snowflake.ID) error {
	if err := tenancy.Authorize(ctx, tx, tenantID, tenancy.Client(clientID), tenancy.Project(projectID)); err != nil {
		return err
	}
	if clientID == 0 || projectID == 0 {
		return nil
	}
	project, err := s.directory.FindProject(ctx, tx, tenantID, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return directorydomain.ErrProjectNotFound
	}
	if project.ClientID != clientID {
		return domain.ErrProjectClientMismatch
	}
	return nil
}

// record writes an audit entry after commit. Failures are logged by the audit
// service and do not fail the operation.
func (s *Service) record(ctx context.Context, action string, doc *domain.Document, extra map[string]any) {
	if s.audit == nil {
		return
	}
	metadata := map[string]any{
		"type":      string(doc.Type),
		"lifecycle": string(doc.Lifecycle),
	}
	if doc.Number != nil {
		metadata["number"] = *doc.Number
	}
	for key, value := range extra {
		metadata[key] = value
	}
	_ = s.audit.Record(ctx, doc.TenantID, auditdomain.Entry{
		Action:     action,
		TargetType: "document",
		TargetID:   doc.ID,
		Metadata:   metadata,
	})
}

func (s *Service) observe(op string, started time.Time, errp *error) {
	s.engine.ObserveOperation(op, started, *errp)
}

func normalizeCurrency(value string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(value))
	if currency == "" {
		return defaultCurrency, nil
	}
	if !currencyPattern.MatchString(currency) {
		return "", apperr.Wrap(domain.ErrInvalidCurrency, "%q", value)
	}
	return currency, nil
}

func dateOnly(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	d := clock.Date(*value)
	return &d
}

func validateDates(doc *domain.Document) error {
	if doc.IssueDate == nil {
		return nil
	}
	if doc.DueDate != nil && doc.DueDate.Before(*doc.IssueDate) {
		return apperr.Wrap(domain.ErrInvalidDates, "due date before issue date")
	}
	if doc.ExpiryDate != nil && doc.ExpiryDate.Before(*doc.IssueDate) {
		return apperr.Wrap(domain.ErrInvalidDates, "expiry date before issue date")
	}
	return nil
}

func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(maxScale))
}
