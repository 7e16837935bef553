package models

import (
	"time"

	"gorm.io/datatypes"
)

// PublishedRecord is the durable proof that one candidate event was uploaded.
// (StartsOn, Title, SourceID) is the sole dedup key; StartsOn is the
// normalized UTC RFC3339 string so equality and ordering are plain string
// operations. Rows are append-only: the pipeline never mutates or deletes them.
type PublishedRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	UUID       string `gorm:"type:text;uniqueIndex;not null"`
	PlatformID string `gorm:"type:text;not null"`

	Title    string `gorm:"type:text;not null;index:idx_published_dedup,priority:2"`
	StartsOn string `gorm:"type:text;not null;index:idx_published_dedup,priority:1"`
	SourceID string `gorm:"type:text;not null;index:idx_published_dedup,priority:3;index"`

	GroupID     int64          `gorm:"not null"`
	GroupingKey string         `gorm:"type:text;not null;index"`
	Tags        datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PublishedRecord) TableName() string {
	return "published_events"
}
