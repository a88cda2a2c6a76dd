package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/apperr"
	"github.com/smallbiznis/docledger/internal/clock"
	directorydomain "github.com/smallbiznis/docledger/internal/directory/domain"
	"github.com/smallbiznis/docledger/internal/document/calc"
	"github.com/smallbiznis/docledger/internal/document/domain"
	officialcopydomain "github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"github.com/smallbiznis/docledger/internal/officialcopy/render"
	"github.com/smallbiznis/docledger/internal/providers/email"
	"github.com/smallbiznis/docledger/pkg/log/ctxlogger"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Finalize numbers the draft, fixes its dates and captures the finalize copy.
// The number is allocated before the document lock is taken; if the
// document transaction then fails the number is skipped, never reused.
func (s *Service) Finalize(ctx context.Context, tenantID, id snowflake.ID) (out domain.Document, err error) {
	defer s.observe(opFinalize, time.Now(), &err)
	ctx, span := tracer.Start(ctx, "document.Finalize")
	defer span.End()

	current, err := s.load(ctx, tenantID, id)
	if err != nil {
		return domain.Document{}, err
	}
	// Checked up front so predictable failures do not burn a number.
	if err := s.checkFinalizable(ctx, s.db, current); err != nil {
		return domain.Document{}, err
	}
	span.SetAttributes(attribute.String("doc_type", string(current.Type)))

	today := clock.Today(s.clock)
	issueDate := today
	if current.IssueDate != nil {
		issueDate = *current.IssueDate
	}
	number, err := s.numbering.Allocate(ctx, tenantID, string(current.Type), issueDate)
	if err != nil {
		return domain.Document{}, err
	}

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if err := s.checkFinalizable(ctx, tx, doc); err != nil {
			return err
		}

		terms := s.terms.Get()
		if doc.IssueDate == nil {
			doc.IssueDate = &today
		}
		switch doc.Type {
		case domain.TypeInvoice:
			if doc.DueDate == nil {
				due := doc.IssueDate.AddDate(0, 0, terms.InvoicePaymentDays)
				doc.DueDate = &due
			}
		case domain.TypeQuote:
			if doc.ExpiryDate == nil {
				expiry := doc.IssueDate.AddDate(0, 0, terms.QuoteValidityDays)
				doc.ExpiryDate = &expiry
			}
		}

		if err := doc.Transition(domain.LifecycleFinalized); err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		doc.Number = &number
		doc.FinalizedAt = &now
		if err := s.replaceLines(ctx, tx, doc, doc.LineItems); err != nil {
			return err
		}

		view, err := buildView(ctx, tx, s.directory, doc)
		if err != nil {
			return err
		}
		_, err = s.copies.Capture(ctx, tx, officialcopydomain.CaptureRequest{
			Event:    officialcopydomain.EventFinalize,
			Document: view,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		ctxlogger.WithContext(ctx, s.log).Warn("finalize aborted after number allocation",
			zap.String("document_id", id.String()),
			zap.String("skipped_number", number),
			zap.Error(err),
		)
		return domain.Document{}, err
	}

	s.engine.IncTransition(string(doc.Type), string(domain.LifecycleDraft), string(domain.LifecycleFinalized))
	s.metrics.RecordDocumentFinalized(ctx, string(doc.Type))
	s.record(ctx, "document.finalized", doc, nil)
	return *doc, nil
}

func (s *Service) checkFinalizable(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	if doc.IsArchived() {
		return domain.ErrArchived
	}
	if !doc.IsDraft() {
		return apperr.Wrap(domain.ErrAlreadyFinalized, "lifecycle %s", doc.Lifecycle)
	}
	if len(doc.LineItems) == 0 {
		return domain.ErrNoLineItems
	}
	if doc.Type == domain.TypeInvoice && doc.ClientID == 0 {
		return domain.ErrClientRequired
	}
	return s.authorizeParties(ctx, db, doc.TenantID, doc.ClientID, doc.ProjectID)
}

// Send captures the send copy and marks the document sent, then delivers the
// message. The copy is kept when delivery fails.
func (s *Service) Send(ctx context.Context, tenantID, id snowflake.ID, req domain.SendRequest) (out domain.SendResult, err error) {
	defer s.observe(opSend, time.Now(), &err)
	ctx, span := tracer.Start(ctx, "document.Send")
	defer span.End()

	recipients, err := normalizeRecipients(req.To)
	if err != nil {
		return domain.SendResult{}, err
	}

	release, err := s.sendGuard.Acquire(ctx, id)
	if err != nil {
		return domain.SendResult{}, err
	}
	defer release()

	var result domain.SendResult
	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if doc.Lifecycle != domain.LifecycleFinalized {
			return apperr.Wrap(domain.ErrNotSendable, "lifecycle %s", doc.Lifecycle)
		}
		view, err := buildView(ctx, tx, s.directory, doc)
		if err != nil {
			return err
		}
		to := recipients
		if len(to) == 0 && view.ClientEmail != "" {
			to = []string{view.ClientEmail}
		}
		if len(to) == 0 {
			return domain.ErrRecipientsRequired
		}

		latest, err := s.copies.Latest(ctx, tx, tenantID, doc.ID)
		if err != nil {
			return err
		}
		if latest != nil && latest.ContentHash != officialcopydomain.ContentHash(view) {
			result.Warnings = append(result.Warnings, officialcopydomain.WarningContentChanged)
		}

		body, err := s.renderer.RenderMessage(render.MessageInput{Document: view, Message: req.Message})
		if err != nil {
			return err
		}
		result.Copy, err = s.copies.Capture(ctx, tx, officialcopydomain.CaptureRequest{
			Event:       officialcopydomain.EventSend,
			Document:    view,
			MessageBody: body,
			Recipients:  to,
		})
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		doc.SentAt = &now
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.SendResult{}, err
	}
	result.Document = *doc

	log := ctxlogger.WithContext(ctx, s.log)
	if len(result.Warnings) > 0 {
		s.engine.IncHashMismatch()
		log.Warn("sent document differs from its previous official copy",
			zap.String("document_id", doc.ID.String()),
			zap.String("copy_id", result.Copy.ID.String()),
		)
	}

	if err := s.deliver(ctx, doc, req.Subject, result.Copy); err != nil {
		span.RecordError(err)
		log.Error("document delivery failed",
			zap.String("document_id", doc.ID.String()),
			zap.String("copy_id", result.Copy.ID.String()),
			zap.Error(err),
		)
		return result, apperr.Wrap(domain.ErrDeliveryFailed, "%v", err)
	}

	s.record(ctx, "document.sent", doc, map[string]any{
		"copy_id":    result.Copy.ID.String(),
		"recipients": len(strings.Split(result.Copy.Recipients, ",")),
		"warnings":   result.Warnings,
	})
	return result, nil
}

func (s *Service) deliver(ctx context.Context, doc *domain.Document, subject string, snapshot officialcopydomain.OfficialCopy) error {
	number := ""
	if doc.Number != nil {
		number = *doc.Number
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = strings.TrimSpace(documentTitle(doc.Type) + " " + number)
	}

	msg := email.Message{
		To:       strings.Split(snapshot.Recipients, ","),
		Subject:  subject,
		HTMLBody: snapshot.MessageBody,
	}
	if snapshot.ArtifactRef != "" {
		artifact, err := s.copies.LoadArtifact(ctx, doc.TenantID, snapshot.ArtifactRef)
		if err != nil {
			return err
		}
		msg.Attachments = []email.Attachment{{
			Filename:    number + ".pdf",
			ContentType: artifact.ContentType,
			Data:        artifact.Data,
		}}
	}
	return s.email.Send(ctx, msg)
}

// Void retires a finalized invoice that has no payments. Totals are left as
// they were.
func (s *Service) Void(ctx context.Context, tenantID, id snowflake.ID, reason string) (out domain.Document, err error) {
	defer s.observe(opVoid, time.Now(), &err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Document{}, domain.ErrVoidReasonRequired
	}

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if doc.Type != domain.TypeInvoice {
			return domain.ErrVoidRequiresInvoice
		}
		if doc.Lifecycle == domain.LifecycleFinalized && doc.AmountPaidCents > 0 {
			return domain.ErrHasPayments
		}
		if err := doc.Transition(domain.LifecycleVoid); err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		doc.VoidedAt = &now
		doc.VoidReason = reason
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}

	s.engine.IncTransition(string(doc.Type), string(domain.LifecycleFinalized), string(domain.LifecycleVoid))
	s.record(ctx, "document.voided", doc, map[string]any{"reason": reason})
	return *doc, nil
}

func (s *Service) AcceptQuote(ctx context.Context, tenantID, id snowflake.ID) (out domain.Document, err error) {
	defer s.observe(opAccept, time.Now(), &err)

	doc, err := s.withDocument(ctx, tenantID, id, false, func(tx *gorm.DB, doc *domain.Document) error {
		if err := checkQuote(doc); err != nil {
			return err
		}
		if doc.Lifecycle == domain.LifecycleFinalized && doc.SentAt == nil {
			return domain.ErrQuoteNotSent
		}
		if err := doc.Transition(domain.LifecycleAccepted); err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		doc.AcceptedAt = &now
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}

	s.engine.IncTransition(string(doc.Type), string(domain.LifecycleFinalized), string(domain.LifecycleAccepted))
	s.record(ctx, "document.accepted", doc, nil)
	return *doc, nil
}

// ConvertToInvoice copies an accepted quote into a new draft invoice.
func (s *Service) ConvertToInvoice(ctx context.Context, tenantID, quoteID snowflake.ID) (out domain.ConversionResult, err error) {
	defer s.observe(opConvert, time.Now(), &err)
	ctx, span := tracer.Start(ctx, "document.ConvertToInvoice")
	defer span.End()

	var invoice domain.Document
	quote, err := s.withDocument(ctx, tenantID, quoteID, false, func(tx *gorm.DB, quote *domain.Document) error {
		if err := checkQuote(quote); err != nil {
			return err
		}
		if err := quote.Transition(domain.LifecycleConvertedToInvoice); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		sourceID := quote.ID
		invoice = domain.Document{
			ID:            s.genID.Generate(),
			TenantID:      quote.TenantID,
			Type:          domain.TypeInvoice,
			Lifecycle:     domain.LifecycleDraft,
			ClientID:      quote.ClientID,
			ProjectID:     quote.ProjectID,
			SourceQuoteID: &sourceID,
			Currency:      quote.Currency,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		items := make([]domain.LineItem, 0, len(quote.LineItems))
		for _, line := range quote.LineItems {
			line.ID = s.genID.Generate()
			line.DocumentID = invoice.ID
			line.CreatedAt = now
			line.UpdatedAt = now
			items = append(items, line)
		}
		totals, err := calc.Recalculate(items)
		if err != nil {
			return err
		}
		invoice.SetTotals(totals)
		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			return err
		}
		if err := s.repo.ReplaceLineItems(ctx, tx, invoice.ID, items); err != nil {
			return err
		}
		invoice.LineItems = items

		quote.ConvertedInvoiceID = &invoice.ID
		quote.ConvertedAt = &now
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.ConversionResult{}, err
	}

	s.engine.IncTransition(string(quote.Type), string(domain.LifecycleAccepted), string(quote.Lifecycle))
	s.record(ctx, "document.created", &invoice, map[string]any{"source_quote_id": quote.ID.String()})
	s.record(ctx, "document.converted", quote, map[string]any{"invoice_id": invoice.ID.String()})
	return domain.ConversionResult{Quote: *quote, Invoice: &invoice}, nil
}

// ConvertToProject opens a project for the quote's client. An empty name
// falls back to the quote number.
func (s *Service) ConvertToProject(ctx context.Context, tenantID, quoteID snowflake.ID, name string) (out domain.ConversionResult, err error) {
	defer s.observe(opConvert, time.Now(), &err)
	ctx, span := tracer.Start(ctx, "document.ConvertToProject")
	defer span.End()

	var project directorydomain.Project
	quote, err := s.withDocument(ctx, tenantID, quoteID, false, func(tx *gorm.DB, quote *domain.Document) error {
		if err := checkQuote(quote); err != nil {
			return err
		}
		if err := quote.Transition(domain.LifecycleConvertedToProject); err != nil {
			return err
		}
		if quote.ClientID == 0 {
			return domain.ErrClientRequired
		}

		projectName := strings.TrimSpace(name)
		if projectName == "" && quote.Number != nil {
			projectName = *quote.Number
		}
		var err error
		project, err = s.directories.CreateProjectTx(ctx, tx, tenantID, directorydomain.CreateProjectRequest{
			ClientID: quote.ClientID,
			Name:     projectName,
		})
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		quote.ConvertedProjectID = &project.ID
		quote.ConvertedAt = &now
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.ConversionResult{}, err
	}

	s.engine.IncTransition(string(quote.Type), string(domain.LifecycleAccepted), string(quote.Lifecycle))
	s.record(ctx, "document.converted", quote, map[string]any{"project_id": project.ID.String()})
	return domain.ConversionResult{Quote: *quote, Project: &project}, nil
}

// Archive soft-deletes a document. Invoices still owed money stay visible.
func (s *Service) Archive(ctx context.Context, tenantID, id snowflake.ID) (out domain.Document, err error) {
	defer s.observe(opArchive, time.Now(), &err)

	doc, err := s.withDocument(ctx, tenantID, id, true, func(tx *gorm.DB, doc *domain.Document) error {
		if doc.IsArchived() {
			return domain.ErrAlreadyArchived
		}
		if doc.Type == domain.TypeInvoice && doc.Lifecycle == domain.LifecycleFinalized && doc.BalanceDueCents > 0 {
			return apperr.Wrap(domain.ErrOutstandingBalance, "%d cents due", doc.BalanceDueCents)
		}
		now := s.clock.Now().UTC()
		doc.ArchivedAt = &now
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}

	s.record(ctx, "document.archived", doc, nil)
	return *doc, nil
}

func checkQuote(doc *domain.Document) error {
	if doc.Type != domain.TypeQuote {
		return domain.ErrRequiresQuote
	}
	if doc.Lifecycle == domain.LifecycleExpired {
		return domain.ErrQuoteExpired
	}
	return nil
}

func normalizeRecipients(values []string) ([]string, error) {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		addr := strings.TrimSpace(value)
		if addr == "" {
			continue
		}
		if !strings.Contains(addr, "@") || strings.ContainsAny(addr, ", ") {
			return nil, apperr.Wrap(domain.ErrInvalidRecipient, "%q", addr)
		}
		key := strings.ToLower(addr)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	return out, nil
}

func documentTitle(t domain.Type) string {
	if t == domain.TypeQuote {
		return "Quote"
	}
	return "Invoice"
}
