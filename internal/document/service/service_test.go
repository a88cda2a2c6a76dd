package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docledger/internal/apperr"
	auditdomain "github.com/smallbiznis/docledger/internal/audit/domain"
	directorydomain "github.com/smallbiznis/docledger/internal/directory/domain"
	"github.com/smallbiznis/docledger/internal/document/documenttest"
	"github.com/smallbiznis/docledger/internal/document/domain"
	"github.com/smallbiznis/docledger/internal/money"
	officialcopydomain "github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenantA snowflake.ID = 1001
	tenantB snowflake.ID = 2002
)

func line(description string, qty int64, priceCents int64, ratePercent int64) domain.LineItemInput {
	rate := decimal.NewFromInt(ratePercent)
	return domain.LineItemInput{
		Description:    description,
		Quantity:       decimal.NewFromInt(qty),
		UnitPriceCents: priceCents,
		TaxRatePercent: &rate,
	}
}

func storedLifecycle(t *testing.T, env *documenttest.Env, id snowflake.ID) domain.Lifecycle {
	t.Helper()
	var lifecycle string
	require.NoError(t, env.DB.Model(&domain.Document{}).Where("id = ?", id).Pluck("lifecycle", &lifecycle).Error)
	return domain.Lifecycle(lifecycle)
}

func TestCreateDocumentDerivesTotals(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")

	doc, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:     domain.TypeInvoice,
		ClientID: client.ID,
		Currency: "eur",
		LineItems: []domain.LineItemInput{
			line("Discovery", 40, 15000, 10),
			line("Workshop", 10, 20000, 10),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LifecycleDraft, doc.Lifecycle)
	assert.Nil(t, doc.Number)
	assert.Equal(t, "EUR", doc.Currency)
	assert.Equal(t, int64(800000), doc.SubtotalCents)
	assert.Equal(t, int64(80000), doc.TaxTotalCents)
	assert.Equal(t, int64(880000), doc.TotalCents)
	assert.Equal(t, int64(880000), doc.BalanceDueCents)

	got, err := env.Documents.Get(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, int64(600000), got.LineItems[0].LineTotalCents)
	assert.Equal(t, int64(60000), got.LineItems[0].LineTaxCents)
	assert.Equal(t, 2, got.LineItems[1].Position)
	assert.True(t, got.LineItems[0].Quantity.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, int64(880000), got.TotalCents)

	totals, err := env.Documents.Recalculate(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{SubtotalCents: 800000, TaxTotalCents: 80000, TotalCents: 880000}, totals)
}

func TestCreateDocumentValidation(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "")
	foreign := env.Client(t, tenantB, "Globex", "")

	cases := []struct {
		name string
		req  domain.CreateDocumentRequest
		want error
	}{
		{"type", domain.CreateDocumentRequest{Type: "receipt"}, domain.ErrInvalidType},
		{"currency", domain.CreateDocumentRequest{Type: domain.TypeQuote, Currency: "EURO"}, domain.ErrInvalidCurrency},
		{"description", domain.CreateDocumentRequest{Type: domain.TypeQuote, LineItems: []domain.LineItemInput{line(" ", 1, 100, 0)}}, domain.ErrInvalidDescription},
		{"quantity", domain.CreateDocumentRequest{Type: domain.TypeQuote, LineItems: []domain.LineItemInput{line("x", 0, 100, 0)}}, domain.ErrInvalidQuantity},
		{"price", domain.CreateDocumentRequest{Type: domain.TypeQuote, LineItems: []domain.LineItemInput{line("x", 1, -1, 0)}}, domain.ErrInvalidUnitPrice},
		{"rate", domain.CreateDocumentRequest{Type: domain.TypeQuote, LineItems: []domain.LineItemInput{line("x", 1, 100, 101)}}, domain.ErrInvalidTaxRate},
		{"price wraps int64", domain.CreateDocumentRequest{Type: domain.TypeQuote, LineItems: []domain.LineItemInput{line("Big", 10, 1_000_000_000_000_000_000, 0)}}, domain.ErrInvalidUnitPrice},
		{"max int64 price", domain.CreateDocumentRequest{Type: domain.TypeQuote, LineItems: []domain.LineItemInput{line("A", 1, math.MaxInt64, 100)}}, domain.ErrInvalidUnitPrice},
		{"line total past bound", domain.CreateDocumentRequest{Type: domain.TypeQuote, LineItems: []domain.LineItemInput{line("Big", 10, money.MaxAmountCents, 0)}}, domain.ErrInvalidQuantity},
		{"document total past bound", domain.CreateDocumentRequest{Type: domain.TypeQuote, LineItems: []domain.LineItemInput{
			line("A", 1, money.MaxAmountCents, 0),
			line("B", 1, money.MaxAmountCents, 0),
		}}, domain.ErrAmountOutOfRange},
		{"foreign client", domain.CreateDocumentRequest{Type: domain.TypeInvoice, ClientID: foreign.ID}, apperr.ErrCrossTenantReference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Documents.CreateDocument(ctx, tenantA, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	due := documenttest.Start.AddDate(0, 0, -1)
	issue := documenttest.Start
	_, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:      domain.TypeInvoice,
		ClientID:  client.ID,
		IssueDate: &issue,
		DueDate:   &due,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDates)

	draft, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:      domain.TypeInvoice,
		ClientID:  client.ID,
		LineItems: []domain.LineItemInput{line("Retainer", 1, money.MaxAmountCents, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, money.MaxAmountCents, draft.TotalCents)

	_, err = env.Documents.AddLineItem(ctx, tenantA, draft.ID, line("Extra", 1, 1, 0))
	assert.ErrorIs(t, err, domain.ErrAmountOutOfRange)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	stored, err := env.Documents.Get(ctx, tenantA, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MaxAmountCents, stored.TotalCents)
	assert.Len(t, stored.LineItems, 1)
}

func TestLineItemOperations(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "")

	doc, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{Type: domain.TypeInvoice, ClientID: client.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.TotalCents)

	doc, err = env.Documents.AddLineItem(ctx, tenantA, doc.ID, line("Design", 2, 10000, 0))
	require.NoError(t, err)
	doc, err = env.Documents.AddLineItem(ctx, tenantA, doc.ID, line("Build", 1, 50000, 10))
	require.NoError(t, err)
	doc, err = env.Documents.AddLineItem(ctx, tenantA, doc.ID, line("Support", 3, 1000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(78000), doc.TotalCents)

	doc, err = env.Documents.UpdateLineItem(ctx, tenantA, doc.ID, 2, line("Build", 2, 50000, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(20000+100000+3000), doc.SubtotalCents)
	assert.Equal(t, int64(10000), doc.TaxTotalCents)

	doc, err = env.Documents.ReorderLineItems(ctx, tenantA, doc.ID, []int{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Support", "Design", "Build"}, descriptions(doc.LineItems))

	doc, err = env.Documents.RemoveLineItem(ctx, tenantA, doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Design", "Build"}, descriptions(doc.LineItems))
	assert.Equal(t, []int{1, 2}, []int{doc.LineItems[0].Position, doc.LineItems[1].Position})
	assert.Equal(t, int64(130000), doc.TotalCents)

	_, err = env.Documents.RemoveLineItem(ctx, tenantA, doc.ID, 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = env.Documents.ReorderLineItems(ctx, tenantA, doc.ID, []int{1, 1})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	got, err := env.Documents.Get(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.TotalCents, got.TotalCents)
	assert.Equal(t, []string{"Design", "Build"}, descriptions(got.LineItems))
}

func TestLineItemTaxRateSnapshot(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "")

	rate, err := env.Directory.CreateTaxRate(ctx, tenantA, directorydomain.CreateTaxRateRequest{Name: "VAT", RatePercent: decimal.NewFromInt(20)})
	require.NoError(t, err)
	foreignRate, err := env.Directory.CreateTaxRate(ctx, tenantB, directorydomain.CreateTaxRateRequest{Name: "GST", RatePercent: decimal.NewFromInt(5)})
	require.NoError(t, err)

	doc, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{Type: domain.TypeInvoice, ClientID: client.ID})
	require.NoError(t, err)

	doc, err = env.Documents.AddLineItem(ctx, tenantA, doc.ID, domain.LineItemInput{
		Description:    "Retainer",
		Quantity:       decimal.NewFromInt(1),
		UnitPriceCents: 10000,
		TaxRateID:      rate.ID,
	})
	require.NoError(t, err)
	require.Len(t, doc.LineItems, 1)
	assert.True(t, doc.LineItems[0].TaxRatePercent.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, doc.LineItems[0].TaxRateID)
	assert.Equal(t, rate.ID, *doc.LineItems[0].TaxRateID)
	assert.Equal(t, int64(12000), doc.TotalCents)

	_, err = env.Documents.AddLineItem(ctx, tenantA, doc.ID, domain.LineItemInput{
		Description:    "Stolen rate",
		Quantity:       decimal.NewFromInt(1),
		UnitPriceCents: 10000,
		TaxRateID:      foreignRate.ID,
	})
	assert.ErrorIs(t, err, apperr.ErrCrossTenantReference)

	both := line("Both", 1, 100, 5)
	both.TaxRateID = rate.ID
	_, err = env.Documents.AddLineItem(ctx, tenantA, doc.ID, both)
	assert.ErrorIs(t, err, domain.ErrAmbiguousTaxRate)
}

func TestFinalizeInvoice(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")

	doc := env.FinalizedInvoice(t, tenantA, client.ID, line("Retainer", 1, 100000, 0))

	require.NotNil(t, doc.Number)
	assert.Equal(t, "INV-2026-00001", *doc.Number)
	assert.Equal(t, domain.LifecycleFinalized, doc.Lifecycle)
	assert.Equal(t, int64(100000), doc.TotalCents)
	assert.Equal(t, int64(100000), doc.BalanceDueCents)
	assert.Equal(t, domain.SettlementUnpaid, doc.Settlement())
	assert.Equal(t, domain.StatusFinalized, doc.DisplayStatus(documenttest.Start))
	require.NotNil(t, doc.IssueDate)
	require.NotNil(t, doc.DueDate)
	assert.Equal(t, "2026-06-01", doc.IssueDate.Format(time.DateOnly))
	assert.Equal(t, "2026-07-01", doc.DueDate.Format(time.DateOnly))
	assert.NotNil(t, doc.FinalizedAt)

	_, err := env.Documents.Finalize(ctx, tenantA, doc.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = env.Documents.AddLineItem(ctx, tenantA, doc.ID, line("Extra", 1, 100, 0))
	assert.ErrorIs(t, err, apperr.ErrImmutable)
	_, err = env.Documents.UpdateLineItem(ctx, tenantA, doc.ID, 1, line("Cheaper", 1, 100, 0))
	assert.ErrorIs(t, err, apperr.ErrImmutable)
	_, err = env.Documents.RemoveLineItem(ctx, tenantA, doc.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrImmutable)
	clientID := client.ID
	_, err = env.Documents.UpdateDraft(ctx, tenantA, doc.ID, domain.UpdateDraftRequest{ClientID: &clientID})
	assert.ErrorIs(t, err, apperr.ErrImmutable)

	noted, err := env.Documents.UpdateNotes(ctx, tenantA, doc.ID, "called on Monday")
	require.NoError(t, err)
	assert.Equal(t, "called on Monday", noted.Notes)
	assert.Equal(t, int64(100000), noted.TotalCents)

	copies, err := env.Copies.List(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, officialcopydomain.EventFinalize, copies[0].Event)

	// Notes are outside the content hash.
	result, err := env.Copies.Verify(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.True(t, result.Match)

	second := env.FinalizedInvoice(t, tenantA, client.ID, line("Retainer", 1, 100000, 0))
	assert.Equal(t, "INV-2026-00002", *second.Number)

	logs, err := env.Audit.List(ctx, tenantA, auditdomain.ListAuditLogRequest{Action: "document.finalized"})
	require.NoError(t, err)
	assert.Len(t, logs.AuditLogs, 2)
}

func TestFinalizePreconditions(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "")

	empty, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{Type: domain.TypeInvoice, ClientID: client.ID})
	require.NoError(t, err)
	_, err = env.Documents.Finalize(ctx, tenantA, empty.ID)
	assert.ErrorIs(t, err, domain.ErrNoLineItems)
	assert.ErrorIs(t, err, apperr.ErrPreconditionFailed)

	noClient, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:      domain.TypeInvoice,
		LineItems: []domain.LineItemInput{line("Work", 1, 100, 0)},
	})
	require.NoError(t, err)
	_, err = env.Documents.Finalize(ctx, tenantA, noClient.ID)
	assert.ErrorIs(t, err, domain.ErrClientRequired)

	// Failures caught before allocation leave the sequence untouched.
	seq, err := env.Numbering.Peek(ctx, tenantA, string(domain.TypeInvoice))
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq.CurrentValue)

	_, err = env.Documents.Finalize(ctx, tenantB, empty.ID)
	assert.ErrorIs(t, err, apperr.ErrCrossTenantReference)
}

func TestFinalizeCrossTenantClientLeavesDraft(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	own := env.Client(t, tenantA, "Acme", "")
	foreign := env.Client(t, tenantB, "Globex", "")

	doc, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:      domain.TypeInvoice,
		ClientID:  own.ID,
		LineItems: []domain.LineItemInput{line("Work", 1, 100000, 0)},
	})
	require.NoError(t, err)
	require.NoError(t, env.DB.Model(&domain.Document{}).Where("id = ?", doc.ID).Update("client_id", foreign.ID).Error)

	_, err = env.Documents.Finalize(ctx, tenantA, doc.ID)
	assert.ErrorIs(t, err, apperr.ErrCrossTenantReference)

	got, err := env.Documents.Get(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleDraft, got.Lifecycle)
	assert.Nil(t, got.Number)

	copies, err := env.Copies.List(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, copies)
}

func TestFinalizeFailureAfterAllocationSkipsNumber(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "")

	doc, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:      domain.TypeInvoice,
		ClientID:  client.ID,
		LineItems: []domain.LineItemInput{line("Work", 1, 100000, 0)},
	})
	require.NoError(t, err)

	renderErr := errors.New("renderer offline")
	env.PDF.SetFail(renderErr)
	_, err = env.Documents.Finalize(ctx, tenantA, doc.ID)
	assert.ErrorIs(t, err, renderErr)

	got, err := env.Documents.Get(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleDraft, got.Lifecycle)
	assert.Nil(t, got.Number)
	assert.Nil(t, got.FinalizedAt)

	copies, err := env.Copies.List(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, copies)

	// The allocated value stays consumed; numbers may gap but never repeat.
	seq, err := env.Numbering.Peek(ctx, tenantA, string(domain.TypeInvoice))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq.CurrentValue)

	env.PDF.SetFail(nil)
	finalized, err := env.Documents.Finalize(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, finalized.Number)
	assert.Equal(t, "INV-2026-00002", *finalized.Number)
	assert.Equal(t, domain.LifecycleFinalized, finalized.Lifecycle)
}

func TestTenantIsolationOnDocuments(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "")
	doc := env.FinalizedInvoice(t, tenantA, client.ID, line("Work", 1, 100, 0))

	_, err := env.Documents.Get(ctx, tenantB, doc.ID)
	assert.ErrorIs(t, err, apperr.ErrCrossTenantReference)
	_, err = env.Documents.Void(ctx, tenantB, doc.ID, "mine now")
	assert.ErrorIs(t, err, apperr.ErrCrossTenantReference)
	_, err = env.Documents.UpdateNotes(ctx, tenantB, doc.ID, "hello")
	assert.ErrorIs(t, err, apperr.ErrCrossTenantReference)

	_, err = env.Documents.Get(ctx, tenantA, env.Node.Generate())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = env.Documents.Recalculate(ctx, tenantA, env.Node.Generate())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVoidRules(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")

	quote, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:      domain.TypeQuote,
		ClientID:  client.ID,
		LineItems: []domain.LineItemInput{line("Work", 1, 100, 0)},
	})
	require.NoError(t, err)
	_, err = env.Documents.Void(ctx, tenantA, quote.ID, "not needed")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	draft, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{Type: domain.TypeInvoice, ClientID: client.ID})
	require.NoError(t, err)
	_, err = env.Documents.Void(ctx, tenantA, draft.ID, "not needed")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	paid := env.FinalizedInvoice(t, tenantA, client.ID, line("Work", 1, 100000, 0))
	require.NoError(t, env.DB.Model(&domain.Document{}).Where("id = ?", paid.ID).
		Updates(map[string]any{"amount_paid_cents": 100, "balance_due_cents": 99900}).Error)
	_, err = env.Documents.Void(ctx, tenantA, paid.ID, "client went away")
	assert.ErrorIs(t, err, domain.ErrHasPayments)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	clean := env.FinalizedInvoice(t, tenantA, client.ID, line("Work", 1, 100000, 0))
	_, err = env.Documents.Void(ctx, tenantA, clean.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrVoidReasonRequired)

	voided, err := env.Documents.Void(ctx, tenantA, clean.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleVoid, voided.Lifecycle)
	assert.Equal(t, "duplicate", voided.VoidReason)
	assert.Equal(t, int64(100000), voided.TotalCents)
	assert.Equal(t, domain.StatusVoid, voided.DisplayStatus(documenttest.Start))

	_, err = env.Documents.Void(ctx, tenantA, clean.ID, "again")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestQuoteAcceptAndConvertToInvoice(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")

	quote, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:     domain.TypeQuote,
		ClientID: client.ID,
		LineItems: []domain.LineItemInput{
			line("Discovery", 40, 15000, 10),
			line("Workshop", 10, 20000, 10),
		},
	})
	require.NoError(t, err)
	quote, err = env.Documents.Finalize(ctx, tenantA, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, "QUO-2026-00001", *quote.Number)
	assert.Equal(t, "2026-07-01", quote.ExpiryDate.Format(time.DateOnly))

	_, err = env.Documents.AcceptQuote(ctx, tenantA, quote.ID)
	assert.ErrorIs(t, err, domain.ErrQuoteNotSent)
	_, err = env.Documents.ConvertToInvoice(ctx, tenantA, quote.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	sent, err := env.Documents.Send(ctx, tenantA, quote.ID, domain.SendRequest{Message: "Proposal attached"})
	require.NoError(t, err)
	assert.Empty(t, sent.Warnings)
	assert.Equal(t, domain.StatusSent, sent.Document.DisplayStatus(documenttest.Start))

	accepted, err := env.Documents.AcceptQuote(ctx, tenantA, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleAccepted, accepted.Lifecycle)
	assert.NotNil(t, accepted.AcceptedAt)

	result, err := env.Documents.ConvertToInvoice(ctx, tenantA, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Invoice)
	invoice := *result.Invoice
	assert.Equal(t, domain.TypeInvoice, invoice.Type)
	assert.Equal(t, domain.LifecycleDraft, invoice.Lifecycle)
	assert.Equal(t, client.ID, invoice.ClientID)
	assert.Equal(t, int64(880000), invoice.TotalCents)
	require.NotNil(t, invoice.SourceQuoteID)
	assert.Equal(t, quote.ID, *invoice.SourceQuoteID)
	assert.Equal(t, domain.LifecycleConvertedToInvoice, result.Quote.Lifecycle)
	require.NotNil(t, result.Quote.ConvertedInvoiceID)
	assert.Equal(t, invoice.ID, *result.Quote.ConvertedInvoiceID)

	stored, err := env.Documents.Get(ctx, tenantA, invoice.ID)
	require.NoError(t, err)
	require.Len(t, stored.LineItems, 2)
	assert.Equal(t, "Discovery", stored.LineItems[0].Description)
	assert.NotEqual(t, quote.LineItems[0].ID, stored.LineItems[0].ID)

	_, err = env.Documents.ConvertToInvoice(ctx, tenantA, quote.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = env.Documents.ConvertToProject(ctx, tenantA, quote.ID, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = env.Documents.AcceptQuote(ctx, tenantA, invoice.ID)
	assert.ErrorIs(t, err, domain.ErrRequiresQuote)
}

func TestConvertToProject(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")

	quote, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:      domain.TypeQuote,
		ClientID:  client.ID,
		LineItems: []domain.LineItemInput{line("Audit", 1, 250000, 0)},
	})
	require.NoError(t, err)
	_, err = env.Documents.Finalize(ctx, tenantA, quote.ID)
	require.NoError(t, err)
	_, err = env.Documents.Send(ctx, tenantA, quote.ID, domain.SendRequest{})
	require.NoError(t, err)
	_, err = env.Documents.AcceptQuote(ctx, tenantA, quote.ID)
	require.NoError(t, err)

	result, err := env.Documents.ConvertToProject(ctx, tenantA, quote.ID, "Security Audit")
	require.NoError(t, err)
	require.NotNil(t, result.Project)
	assert.Equal(t, "security-audit", result.Project.Slug)
	assert.Equal(t, client.ID, result.Project.ClientID)
	assert.Equal(t, domain.LifecycleConvertedToProject, result.Quote.Lifecycle)
	require.NotNil(t, result.Quote.ConvertedProjectID)
	assert.Equal(t, result.Project.ID, *result.Quote.ConvertedProjectID)
	assert.Equal(t, domain.StatusConverted, result.Quote.DisplayStatus(documenttest.Start))
}

func TestQuoteExpiresLazily(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")

	quote, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
		Type:      domain.TypeQuote,
		ClientID:  client.ID,
		LineItems: []domain.LineItemInput{line("Work", 1, 100, 0)},
	})
	require.NoError(t, err)
	_, err = env.Documents.Finalize(ctx, tenantA, quote.ID)
	require.NoError(t, err)
	_, err = env.Documents.Send(ctx, tenantA, quote.ID, domain.SendRequest{})
	require.NoError(t, err)

	// The expiry date itself is still valid.
	env.Clock.Set(time.Date(2026, 7, 1, 23, 0, 0, 0, time.UTC))
	got, err := env.Documents.Get(ctx, tenantA, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleFinalized, got.Lifecycle)

	env.Clock.Set(time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC))
	got, err = env.Documents.Get(ctx, tenantA, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleExpired, got.Lifecycle)
	assert.Equal(t, domain.LifecycleFinalized, storedLifecycle(t, env, quote.ID))

	_, err = env.Documents.AcceptQuote(ctx, tenantA, quote.ID)
	assert.ErrorIs(t, err, domain.ErrQuoteExpired)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, domain.LifecycleExpired, storedLifecycle(t, env, quote.ID))
}

func TestListFiltersOnEffectiveLifecycle(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")

	newQuote := func(send bool) domain.Document {
		quote, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{
			Type:      domain.TypeQuote,
			ClientID:  client.ID,
			LineItems: []domain.LineItemInput{line("Work", 1, 100, 0)},
		})
		require.NoError(t, err)
		_, err = env.Documents.Finalize(ctx, tenantA, quote.ID)
		require.NoError(t, err)
		if send {
			_, err = env.Documents.Send(ctx, tenantA, quote.ID, domain.SendRequest{})
			require.NoError(t, err)
		}
		return quote
	}
	lapsed := newQuote(true)
	unsent := newQuote(false)
	invoice := env.FinalizedInvoice(t, tenantA, client.ID, line("Work", 1, 100, 0))

	ids := func(docs []domain.Document) []snowflake.ID {
		out := make([]snowflake.ID, 0, len(docs))
		for _, doc := range docs {
			out = append(out, doc.ID)
		}
		return out
	}

	env.Clock.Set(time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC))
	require.Equal(t, domain.LifecycleFinalized, storedLifecycle(t, env, lapsed.ID))

	expired, err := env.Documents.List(ctx, tenantA, domain.ListDocumentRequest{Lifecycle: domain.LifecycleExpired})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{lapsed.ID}, ids(expired.Documents))
	assert.Equal(t, domain.LifecycleExpired, expired.Documents[0].Lifecycle)

	finalized, err := env.Documents.List(ctx, tenantA, domain.ListDocumentRequest{Lifecycle: domain.LifecycleFinalized})
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{unsent.ID, invoice.ID}, ids(finalized.Documents))
	for _, doc := range finalized.Documents {
		assert.Equal(t, domain.LifecycleFinalized, doc.Lifecycle)
	}

	// Once the expiry is persisted the stored value agrees.
	_, err = env.Documents.AcceptQuote(ctx, tenantA, lapsed.ID)
	require.ErrorIs(t, err, domain.ErrQuoteExpired)
	expired, err = env.Documents.List(ctx, tenantA, domain.ListDocumentRequest{Lifecycle: domain.LifecycleExpired})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{lapsed.ID}, ids(expired.Documents))
}

func TestSendCapturesCopyAndDelivers(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")
	doc := env.FinalizedInvoice(t, tenantA, client.ID, line("Retainer", 1, 100000, 0))

	result, err := env.Documents.Send(ctx, tenantA, doc.ID, domain.SendRequest{
		To:      []string{"cfo@acme.test", "CFO@acme.test", "ap@acme.test"},
		Message: "Thanks for your business",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.NotNil(t, result.Document.SentAt)
	assert.Equal(t, officialcopydomain.EventSend, result.Copy.Event)
	assert.Equal(t, "cfo@acme.test,ap@acme.test", result.Copy.Recipients)
	assert.Contains(t, result.Copy.MessageBody, "Thanks for your business")

	messages := env.Outbox.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, []string{"cfo@acme.test", "ap@acme.test"}, messages[0].To)
	assert.Equal(t, "Invoice INV-2026-00001", messages[0].Subject)
	require.Len(t, messages[0].Attachments, 1)
	assert.Equal(t, "INV-2026-00001.pdf", messages[0].Attachments[0].Filename)
	assert.Equal(t, "%PDF-stub INV-2026-00001", string(messages[0].Attachments[0].Data))

	_, err = env.Documents.Send(ctx, tenantA, doc.ID, domain.SendRequest{To: []string{"not-an-address"}})
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
}

func TestSendWarnsWhenContentDrifted(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")
	doc := env.FinalizedInvoice(t, tenantA, client.ID, line("Retainer", 1, 100000, 0))

	require.NoError(t, env.DB.Model(&domain.LineItem{}).Where("document_id = ?", doc.ID).
		Update("description", "Retainer (edited outside the engine)").Error)

	result, err := env.Documents.Send(ctx, tenantA, doc.ID, domain.SendRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{officialcopydomain.WarningContentChanged}, result.Warnings)

	copies, err := env.Copies.List(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.NotEqual(t, copies[0].ContentHash, copies[1].ContentHash)

	again, err := env.Documents.Send(ctx, tenantA, doc.ID, domain.SendRequest{})
	require.NoError(t, err)
	assert.Empty(t, again.Warnings)
}

func TestSendDeliveryFailureKeepsCopy(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "ap@acme.test")
	doc := env.FinalizedInvoice(t, tenantA, client.ID, line("Retainer", 1, 100000, 0))

	env.Outbox.Fail = errors.New("smtp: connection refused")
	result, err := env.Documents.Send(ctx, tenantA, doc.ID, domain.SendRequest{})
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, officialcopydomain.EventSend, result.Copy.Event)

	got, err := env.Documents.Get(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.SentAt)

	copies, err := env.Copies.List(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Len(t, copies, 2)
}

func TestSendPreconditions(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	silent := env.Client(t, tenantA, "No Email Ltd", "")

	draft, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{Type: domain.TypeInvoice, ClientID: silent.ID})
	require.NoError(t, err)
	_, err = env.Documents.Send(ctx, tenantA, draft.ID, domain.SendRequest{To: []string{"x@y.test"}})
	assert.ErrorIs(t, err, domain.ErrNotSendable)

	doc := env.FinalizedInvoice(t, tenantA, silent.ID, line("Work", 1, 100, 0))
	_, err = env.Documents.Send(ctx, tenantA, doc.ID, domain.SendRequest{})
	assert.ErrorIs(t, err, domain.ErrRecipientsRequired)
	assert.Empty(t, env.Outbox.Messages())
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)
	client := env.Client(t, tenantA, "Acme", "")

	owed := env.FinalizedInvoice(t, tenantA, client.ID, line("Work", 1, 100000, 0))
	_, err := env.Documents.Archive(ctx, tenantA, owed.ID)
	assert.ErrorIs(t, err, domain.ErrOutstandingBalance)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	draft, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{Type: domain.TypeInvoice, ClientID: client.ID})
	require.NoError(t, err)
	archived, err := env.Documents.Archive(ctx, tenantA, draft.ID)
	require.NoError(t, err)
	assert.NotNil(t, archived.ArchivedAt)

	_, err = env.Documents.Archive(ctx, tenantA, draft.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyArchived)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = env.Documents.UpdateNotes(ctx, tenantA, draft.ID, "late note")
	assert.ErrorIs(t, err, apperr.ErrImmutable)
	_, err = env.Documents.AddLineItem(ctx, tenantA, draft.ID, line("Work", 1, 100, 0))
	assert.ErrorIs(t, err, apperr.ErrImmutable)

	list, err := env.Documents.List(ctx, tenantA, domain.ListDocumentRequest{})
	require.NoError(t, err)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, owed.ID, list.Documents[0].ID)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	env := documenttest.New(t)

	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		doc, err := env.Documents.CreateDocument(ctx, tenantA, domain.CreateDocumentRequest{Type: domain.TypeQuote})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
		env.Clock.Advance(time.Minute)
	}
	_, err := env.Documents.CreateDocument(ctx, tenantB, domain.CreateDocumentRequest{Type: domain.TypeQuote})
	require.NoError(t, err)

	req := domain.ListDocumentRequest{Type: domain.TypeQuote}
	req.PageSize = 2
	first, err := env.Documents.List(ctx, tenantA, req)
	require.NoError(t, err)
	require.Len(t, first.Documents, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, ids[2], first.Documents[0].ID)
	assert.Equal(t, ids[1], first.Documents[1].ID)

	req.PageToken = first.NextPageToken
	second, err := env.Documents.List(ctx, tenantA, req)
	require.NoError(t, err)
	require.Len(t, second.Documents, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, ids[0], second.Documents[0].ID)

	req.PageToken = "%%%"
	_, err = env.Documents.List(ctx, tenantA, req)
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func descriptions(items []domain.LineItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Description)
	}
	return out
}
