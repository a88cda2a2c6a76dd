// Package documenttest wires the document engine on an in-memory database.
package documenttest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/docledger/internal/audit/domain"
	auditrepository "github.com/smallbiznis/docledger/internal/audit/repository"
	auditservice "github.com/smallbiznis/docledger/internal/audit/service"
	"github.com/smallbiznis/docledger/internal/clock"
	"github.com/smallbiznis/docledger/internal/config"
	directorydomain "github.com/smallbiznis/docledger/internal/directory/domain"
	directoryrepository "github.com/smallbiznis/docledger/internal/directory/repository"
	directoryservice "github.com/smallbiznis/docledger/internal/directory/service"
	"github.com/smallbiznis/docledger/internal/document/domain"
	"github.com/smallbiznis/docledger/internal/document/repository"
	"github.com/smallbiznis/docledger/internal/document/service"
	numberingdomain "github.com/smallbiznis/docledger/internal/numbering/domain"
	numberingrepository "github.com/smallbiznis/docledger/internal/numbering/repository"
	numberingservice "github.com/smallbiznis/docledger/internal/numbering/service"
	officialcopydomain "github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"github.com/smallbiznis/docledger/internal/officialcopy/render"
	officialcopyrepository "github.com/smallbiznis/docledger/internal/officialcopy/repository"
	officialcopyservice "github.com/smallbiznis/docledger/internal/officialcopy/service"
	"github.com/smallbiznis/docledger/internal/providers/email"
	"github.com/smallbiznis/docledger/internal/providers/pdf"
	"github.com/smallbiznis/docledger/pkg/db/dbtest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Start is the initial time of every Env clock.
var Start = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type Env struct {
	DB        *gorm.DB
	Node      *snowflake.Node
	Clock     *clock.FakeClock
	Repo      domain.Repository
	Documents domain.Service
	Directory directorydomain.Service
	Numbering numberingdomain.Allocator
	Copies    officialcopydomain.Service
	Audit     auditdomain.Service
	Outbox    *Outbox
	PDF       *StubPDF
}

// New migrates every engine table plus extra and builds the services.
func New(t testing.TB, extra ...any) *Env {
	t.Helper()

	models := []any{
		&directorydomain.Client{},
		&directorydomain.Project{},
		&directorydomain.TaxRate{},
		&domain.Document{},
		&domain.LineItem{},
		&numberingdomain.NumberSequence{},
		&officialcopydomain.OfficialCopy{},
		&officialcopydomain.Artifact{},
		&auditdomain.AuditLog{},
	}
	db := dbtest.Open(t, append(models, extra...)...)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(Start)
	cfg := config.Config{LockTimeout: time.Second}
	terms := config.NewStaticTermsHolder(config.DefaultTerms())

	docRepo := repository.Provide()
	dirRepo := directoryrepository.Provide()
	directory := directoryservice.New(directoryservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  dirRepo,
	})
	numbering := numberingservice.New(numberingservice.Params{
		DB:     db,
		Log:    log,
		Clock:  clk,
		Config: cfg,
		Terms:  terms,
		Repo:   numberingrepository.Provide(),
	})
	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	stubPDF := &StubPDF{}
	copies := officialcopyservice.New(officialcopyservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      officialcopyrepository.Provide(),
		Artifacts: officialcopyrepository.NewArtifactStore(node, clk),
		Views:     service.NewViewSource(docRepo, dirRepo),
		PDF:       stubPDF,
	})
	outbox := &Outbox{}

	documents := service.New(service.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Config:      cfg,
		Terms:       terms,
		Repo:        docRepo,
		Directory:   dirRepo,
		Directories: directory,
		Numbering:   numbering,
		Copies:      copies,
		Renderer:    render.NewRenderer(),
		Email:       outbox,
		Audit:       audit,
	})

	return &Env{
		DB:        db,
		Node:      node,
		Clock:     clk,
		Repo:      docRepo,
		Documents: documents,
		Directory: directory,
		Numbering: numbering,
		Copies:    copies,
		Audit:     audit,
		Outbox:    outbox,
		PDF:       stubPDF,
	}
}

// StubPDF renders a fixed marker instead of a real PDF. Set Fail to make
// rendering, and so every capture, fail.
type StubPDF struct {
	mu   sync.Mutex
	Fail error
}

func (p *StubPDF) SetFail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Fail = err
}

func (p *StubPDF) RenderDocument(ctx context.Context, data pdf.DocumentData) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail != nil {
		return nil, p.Fail
	}
	return []byte("%PDF-stub " + data.Number), nil
}

// Outbox records delivered messages. Set Fail to make delivery fail.
type Outbox struct {
	mu   sync.Mutex
	Fail error
	Sent []email.Message
}

func (o *Outbox) Send(ctx context.Context, msg email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Fail != nil {
		return o.Fail
	}
	o.Sent = append(o.Sent, msg)
	return nil
}

func (o *Outbox) Messages() []email.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]email.Message(nil), o.Sent...)
}

// Client creates a client owned by tenantID.
func (e *Env) Client(t testing.TB, tenantID snowflake.ID, name, emailAddr string) directorydomain.Client {
	t.Helper()
	client, err := e.Directory.CreateClient(context.Background(), tenantID, directorydomain.CreateClientRequest{
		Name:  name,
		Email: emailAddr,
	})
	require.NoError(t, err)
	return client
}

// FinalizedInvoice creates and finalizes an invoice for client with the lines.
func (e *Env) FinalizedInvoice(t testing.TB, tenantID, clientID snowflake.ID, lines ...domain.LineItemInput) domain.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := e.Documents.CreateDocument(ctx, tenantID, domain.CreateDocumentRequest{
		Type:      domain.TypeInvoice,
		ClientID:  clientID,
		LineItems: lines,
	})
	require.NoError(t, err)
	doc, err = e.Documents.Finalize(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	return doc
}
