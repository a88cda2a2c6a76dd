package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// NumberSequence is the per (tenant, document type) counter. CurrentValue is
// the last value handed out; it only grows.
type NumberSequence struct {
	TenantID     snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	DocType      string       `gorm:"primaryKey;column:doc_type" json:"doc_type"`
	Prefix       string       `gorm:"not null" json:"prefix"`
	CurrentValue int64        `gorm:"not null;default:0" json:"current_value"`
	Width        int          `gorm:"not null" json:"width"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (NumberSequence) TableName() string { return "number_sequences" }
