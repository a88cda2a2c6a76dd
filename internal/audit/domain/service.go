package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/apperr"
	"github.com/smallbiznis/docledger/pkg/db/pagination"
)

// Entry describes one audited event. An empty ActorType records the system.
type Entry struct {
	Action     string
	TargetType string
	TargetID   snowflake.ID
	ActorType  ActorType
	ActorID    string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, tenantID snowflake.ID, entry Entry) error
	List(ctx context.Context, tenantID snowflake.ID, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = apperr.New(apperr.ErrValidation, "invalid_page_token")
	ErrInvalidTimeRange = apperr.New(apperr.ErrValidation, "invalid_time_range")
	ErrInvalidAction    = apperr.New(apperr.ErrValidation, "invalid_action")
)
