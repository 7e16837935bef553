package source

import (
	"context"
	"time"

	"eventbridge/internal/client/icsfeed"
)

// Exactly two source variants exist: calendar feeds and static listings.
// Adding a third is a reviewed extension, not an open hook.

// CalendarLister is the external calendar collaborator, restricted to a
// time window with recurring instances already expanded.
type CalendarLister interface {
	ListEvents(ctx context.Context, sourceID string, timeMin, timeMax time.Time) ([]icsfeed.RawEvent, error)
}

// scrapedPrefix is stamped onto every description we republish so readers can
// tell bot-ingested events from native ones.
const scrapedPrefix = "Automatically scraped by Event Bot: \n\n"

const defaultHorizon = 7 * 24 * time.Hour
