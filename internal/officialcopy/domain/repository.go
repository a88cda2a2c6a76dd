package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository has no update or delete; copies are only ever appended.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, oc *OfficialCopy) error
	Latest(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) (*OfficialCopy, error)
	List(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) ([]OfficialCopy, error)
}

// ArtifactStore persists rendered copies and returns an opaque reference.
type ArtifactStore interface {
	Save(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID, contentType string, data []byte) (string, error)
	Load(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, ref string) (*Artifact, error)
}

// ViewSource loads the live view of a document.
type ViewSource interface {
	LoadView(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID) (*DocumentView, error)
}
