package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/clock"
	"github.com/smallbiznis/docledger/internal/officialcopy/domain"
	"gorm.io/gorm"
)

const refPrefix = "db:"

// dbArtifactStore keeps artifacts next to the copies that reference them, so
// both commit or roll back together.
type dbArtifactStore struct {
	genID *snowflake.Node
	clock clock.Clock
}

func NewArtifactStore(genID *snowflake.Node, clk clock.Clock) domain.ArtifactStore {
	return &dbArtifactStore{genID: genID, clock: clk}
}

func (s *dbArtifactStore) Save(ctx context.Context, db *gorm.DB, tenantID, documentID snowflake.ID, contentType string, data []byte) (string, error) {
	artifact := domain.Artifact{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		DocumentID:  documentID,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&artifact).Error; err != nil {
		return "", err
	}
	return refPrefix + artifact.ID.String(), nil
}

func (s *dbArtifactStore) Load(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, ref string) (*domain.Artifact, error) {
	if !strings.HasPrefix(ref, refPrefix) {
		return nil, domain.ErrArtifactNotFound
	}
	id, err := snowflake.ParseString(strings.TrimPrefix(ref, refPrefix))
	if err != nil {
		return nil, domain.ErrArtifactNotFound
	}

	var artifact domain.Artifact
	err = db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Limit(1).
		Find(&artifact).Error
	if err != nil {
		return nil, err
	}
	if artifact.ID == 0 {
		return nil, domain.ErrArtifactNotFound
	}
	return &artifact, nil
}
