package repository

import (
	"context"
	"errors"
	"time"

	"eventbridge/internal/models"
)

// ErrNotFound is returned by cursor lookups for a source that has never
// published anything. Callers are expected to check HasAnyForSource first.
var ErrNotFound = errors.New("repository: not found")

type ListPublishedParams struct {
	Limit       int
	Offset      int
	SourceID    *string
	GroupingKey *string
}

// Ledger is the dedup/cursor store: every event published so far, queryable
// by the (startsOn, title, sourceID) dedup triple and by source alone.
type Ledger interface {
	// Exists reports whether a record with the exact dedup triple is present.
	// startsOn must be the models.NormalizeInstant rendering of the start.
	Exists(ctx context.Context, startsOn, title, sourceID string) (bool, error)

	HasAnyForSource(ctx context.Context, sourceID string) (bool, error)

	// LatestStartForSource returns the start of the most recently published
	// event for the source, or ErrNotFound when the source has no history.
	LatestStartForSource(ctx context.Context, sourceID string) (time.Time, error)

	// InsertPublished appends one record and its provenance row in a single
	// transaction.
	InsertPublished(ctx context.Context, rec *models.PublishedRecord, prov *models.SourceProvenance) error

	ListPublished(ctx context.Context, params ListPublishedParams) ([]models.PublishedRecord, error)
	CountPublished(ctx context.Context, params ListPublishedParams) (int64, error)
}
