package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Allocator hands out gap-tolerant document numbers. Each allocation commits
// on its own, so a number consumed by an aborted finalize is never reused.
type Allocator interface {
	Allocate(ctx context.Context, tenantID snowflake.ID, docType string, issuedAt time.Time) (string, error)
	Configure(ctx context.Context, tenantID snowflake.ID, docType, prefix string, width int) (NumberSequence, error)
	Peek(ctx context.Context, tenantID snowflake.ID, docType string) (NumberSequence, error)
}
