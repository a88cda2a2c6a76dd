package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CaptureRequest struct {
	Event       Event
	Document    DocumentView
	MessageBody string
	Recipients  []string
}

type VerifyResult struct {
	CopyID       snowflake.ID `json:"copy_id"`
	LiveHash     string       `json:"live_hash"`
	SnapshotHash string       `json:"snapshot_hash"`
	Match        bool         `json:"match"`
}

type Service interface {
	// Capture and Latest run on the caller's transaction.
	Capture(ctx context.Context, tx *gorm.DB, req CaptureRequest) (OfficialCopy, error)
	Latest(ctx context.Context, tx *gorm.DB, tenantID, documentID snowflake.ID) (*OfficialCopy, error)

	List(ctx context.Context, tenantID, documentID snowflake.ID) ([]OfficialCopy, error)
	Verify(ctx context.Context, tenantID, documentID snowflake.ID) (VerifyResult, error)
	LoadArtifact(ctx context.Context, tenantID snowflake.ID, ref string) (*Artifact, error)
}
