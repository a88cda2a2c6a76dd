package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Event string

const (
	EventFinalize Event = "finalize"
	EventSend     Event = "send"
)

func (e Event) Valid() bool {
	return e == EventFinalize || e == EventSend
}

// OfficialCopy is append-only evidence of what a document said when it was
// finalized or sent.
type OfficialCopy struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	DocumentID  snowflake.ID `gorm:"not null;index:idx_official_copies_document_captured,priority:1" json:"document_id"`
	Event       Event        `gorm:"type:text;not null" json:"event"`
	ContentHash string       `gorm:"type:text;not null" json:"content_hash"`
	ArtifactRef string       `gorm:"type:text" json:"artifact_ref,omitempty"`
	MessageBody string       `gorm:"type:text" json:"message_body,omitempty"`
	Recipients  string       `gorm:"type:text" json:"recipients,omitempty"`
	CapturedAt  time.Time    `gorm:"not null;index:idx_official_copies_document_captured,priority:2" json:"captured_at"`
}

func (OfficialCopy) TableName() string { return "official_copies" }

// Artifact holds the rendered bytes of a copy.
type Artifact struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	DocumentID  snowflake.ID `gorm:"not null;index" json:"document_id"`
	ContentType string       `gorm:"type:text;not null" json:"content_type"`
	Data        []byte       `gorm:"not null" json:"-"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

func (Artifact) TableName() string { return "official_copy_artifacts" }
