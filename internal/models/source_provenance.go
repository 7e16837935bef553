package models

import (
	"time"
)

// SourceProvenance links a published event uuid back to the source it was
// ingested from. One row per successful publish.
type SourceProvenance struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement"`
	UUID          string     `gorm:"type:text;not null;index"`
	SourceID      string     `gorm:"type:text;not null;index"`
	SourceType    SourceType `gorm:"type:text;not null"`
	OnlineAddress string     `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (SourceProvenance) TableName() string {
	return "event_provenance"
}
