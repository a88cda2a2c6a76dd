package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docledger/internal/apperr"
	auditdomain "github.com/smallbiznis/docledger/internal/audit/domain"
	"github.com/smallbiznis/docledger/internal/config"
	"github.com/smallbiznis/docledger/internal/document/documenttest"
	documentdomain "github.com/smallbiznis/docledger/internal/document/domain"
	paymentdomain "github.com/smallbiznis/docledger/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/docledger/internal/payment/repository"
	paymentservice "github.com/smallbiznis/docledger/internal/payment/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	tenantA snowflake.ID = 501
	tenantB snowflake.ID = 502
)

type fixture struct {
	env      *documenttest.Env
	payments paymentdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := documenttest.New(t, &paymentdomain.Payment{})
	payments := paymentservice.New(paymentservice.Params{
		DB:        env.DB,
		Log:       zap.NewNop(),
		GenID:     env.Node,
		Clock:     env.Clock,
		Config:    config.Config{LockTimeout: time.Second},
		Repo:      paymentrepo.Provide(),
		Documents: env.Repo,
		Audit:     env.Audit,
	})
	return &fixture{env: env, payments: payments}
}

func (f *fixture) invoice(t *testing.T, tenantID snowflake.ID, priceCents int64) documentdomain.Document {
	t.Helper()
	client := f.env.Client(t, tenantID, "Acme", "ap@acme.test")
	rate := decimal.Zero
	return f.env.FinalizedInvoice(t, tenantID, client.ID, documentdomain.LineItemInput{
		Description:    "Retainer",
		Quantity:       decimal.NewFromInt(1),
		UnitPriceCents: priceCents,
		TaxRatePercent: &rate,
	})
}

func pay(docID snowflake.ID, cents int64) paymentdomain.RecordPaymentRequest {
	return paymentdomain.RecordPaymentRequest{
		DocumentID:  docID,
		AmountCents: cents,
		PaidOn:      documenttest.Start,
		Method:      paymentdomain.MethodBankTransfer,
		Reference:   "wire_12345678",
	}
}

func TestPayInFullThenOverpay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.invoice(t, tenantA, 100000)

	result, err := f.payments.RecordPayment(ctx, tenantA, pay(doc.ID, 100000))
	require.NoError(t, err)
	assert.Equal(t, int64(100000), result.Document.AmountPaidCents)
	assert.Equal(t, int64(0), result.Document.BalanceDueCents)
	assert.Equal(t, documentdomain.SettlementPaid, result.Document.Settlement())
	assert.Equal(t, documentdomain.StatusPaid, result.Document.DisplayStatus(documenttest.Start))
	assert.Equal(t, "2026-06-01", result.Payment.PaidOn.Format(time.DateOnly))

	_, err = f.payments.RecordPayment(ctx, tenantA, pay(doc.ID, 1))
	assert.ErrorIs(t, err, paymentdomain.ErrExceedsBalance)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stored, err := f.env.Documents.Get(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), stored.AmountPaidCents)

	_, err = f.env.Documents.Void(ctx, tenantA, doc.ID, "paid by mistake")
	assert.ErrorIs(t, err, documentdomain.ErrHasPayments)

	// Fully paid invoices may be archived.
	_, err = f.env.Documents.Archive(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	_, err = f.payments.RecordPayment(ctx, tenantA, pay(doc.ID, 1))
	assert.ErrorIs(t, err, apperr.ErrImmutable)
}

func TestPartialPaymentsSumToAmountPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.invoice(t, tenantA, 100000)

	for _, cents := range []int64{25000, 30000, 5000} {
		_, err := f.payments.RecordPayment(ctx, tenantA, pay(doc.ID, cents))
		require.NoError(t, err)
		f.env.Clock.Advance(time.Hour)
	}

	stored, err := f.env.Documents.Get(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), stored.AmountPaidCents)
	assert.Equal(t, int64(40000), stored.BalanceDueCents)
	assert.Equal(t, documentdomain.SettlementPartial, stored.Settlement())

	payments, err := f.payments.ListPayments(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	require.Len(t, payments, 3)
	var sum int64
	for _, p := range payments {
		sum += p.AmountCents
	}
	assert.Equal(t, stored.AmountPaidCents, sum)

	// A payment-only change is not content drift.
	verify, err := f.env.Copies.Verify(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.True(t, verify.Match)
}

func TestConcurrentPaymentsCannotOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.invoice(t, tenantA, 100000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.payments.RecordPayment(ctx, tenantA, pay(doc.ID, 60000))
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicts)

	stored, err := f.env.Documents.Get(ctx, tenantA, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), stored.AmountPaidCents)
	assert.Equal(t, int64(40000), stored.BalanceDueCents)
}

func TestRecordPaymentValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.invoice(t, tenantA, 100000)

	_, err := f.payments.RecordPayment(ctx, tenantA, pay(doc.ID, 0))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	noDate := pay(doc.ID, 100)
	noDate.PaidOn = time.Time{}
	_, err = f.payments.RecordPayment(ctx, tenantA, noDate)
	assert.ErrorIs(t, err, paymentdomain.ErrPaidOnRequired)

	badMethod := pay(doc.ID, 100)
	badMethod.Method = "bitcoin"
	_, err = f.payments.RecordPayment(ctx, tenantA, badMethod)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidMethod)

	defaulted := pay(doc.ID, 100)
	defaulted.Method = ""
	result, err := f.payments.RecordPayment(ctx, tenantA, defaulted)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.MethodOther, result.Payment.Method)

	_, err = f.payments.RecordPayment(ctx, tenantB, pay(doc.ID, 100))
	assert.ErrorIs(t, err, apperr.ErrCrossTenantReference)
	_, err = f.payments.ListPayments(ctx, tenantB, doc.ID)
	assert.ErrorIs(t, err, apperr.ErrCrossTenantReference)
	_, err = f.payments.RecordPayment(ctx, tenantA, pay(f.env.Node.Generate(), 100))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordPaymentRequiresFinalizedInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	client := f.env.Client(t, tenantA, "Acme", "")

	draft, err := f.env.Documents.CreateDocument(ctx, tenantA, documentdomain.CreateDocumentRequest{
		Type:     documentdomain.TypeInvoice,
		ClientID: client.ID,
	})
	require.NoError(t, err)
	_, err = f.payments.RecordPayment(ctx, tenantA, pay(draft.ID, 100))
	assert.ErrorIs(t, err, paymentdomain.ErrNotPayable)
	assert.ErrorIs(t, err, apperr.ErrPreconditionFailed)

	quote, err := f.env.Documents.CreateDocument(ctx, tenantA, documentdomain.CreateDocumentRequest{
		Type:     documentdomain.TypeQuote,
		ClientID: client.ID,
	})
	require.NoError(t, err)
	_, err = f.payments.RecordPayment(ctx, tenantA, pay(quote.ID, 100))
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentRequiresInvoice)

	voided := f.invoice(t, tenantA, 5000)
	_, err = f.env.Documents.Void(ctx, tenantA, voided.ID, "duplicate")
	require.NoError(t, err)
	_, err = f.payments.RecordPayment(ctx, tenantA, pay(voided.ID, 100))
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestRecordPaymentAuditMasksReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.invoice(t, tenantA, 100000)

	_, err := f.payments.RecordPayment(ctx, tenantA, pay(doc.ID, 1000))
	require.NoError(t, err)

	logs, err := f.env.Audit.List(ctx, tenantA, auditdomain.ListAuditLogRequest{Action: "payment.recorded"})
	require.NoError(t, err)
	require.Len(t, logs.AuditLogs, 1)
	assert.Equal(t, "wire_****5678", logs.AuditLogs[0].Metadata["reference"])
}
