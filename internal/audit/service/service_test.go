package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/docledger/internal/audit/domain"
	"github.com/smallbiznis/docledger/internal/audit/repository"
	"github.com/smallbiznis/docledger/internal/clock"
	"github.com/smallbiznis/docledger/pkg/db/dbtest"
	"github.com/smallbiznis/docledger/pkg/db/pagination"
	"github.com/smallbiznis/docledger/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))

	return NewService(Params{
		DB:    dbtest.Open(t, &auditdomain.AuditLog{}),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	}), clk
}

func TestRecordAndList(t *testing.T) {
	ctx := correlation.ContextWithCorrelationID(context.Background(), "corr-1")
	svc, clk := newTestService(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, 7, auditdomain.Entry{
			Action:     "document.finalized",
			TargetType: "document",
			TargetID:   snowflake.ID(100 + i),
		}))
		clk.Advance(time.Minute)
	}
	require.NoError(t, svc.Record(ctx, 8, auditdomain.Entry{Action: "document.created"}))

	page, err := svc.List(ctx, 7, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, page.AuditLogs, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "102", *page.AuditLogs[0].TargetID)
	assert.Equal(t, "system", page.AuditLogs[0].ActorType)
	assert.Equal(t, "corr-1", page.AuditLogs[0].Metadata["correlation_id"])

	next, err := svc.List(ctx, 7, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, next.AuditLogs, 1)
	assert.False(t, next.HasMore)
	assert.Equal(t, "100", *next.AuditLogs[0].TargetID)
}

func TestRecordValidation(t *testing.T) {
	svc, _ := newTestService(t)

	assert.ErrorIs(t, svc.Record(context.Background(), 7, auditdomain.Entry{Action: " "}), auditdomain.ErrInvalidAction)

	_, err := svc.List(context.Background(), 7, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "!!"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
