package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"eventbridge/internal/address"
	"eventbridge/internal/catalog"
	"eventbridge/internal/models"
	"eventbridge/internal/repository"
)

// CalendarAdapter turns one calendar feed's raw records inside the
// incremental window into candidate events.
type CalendarAdapter struct {
	Calendar CalendarLister
	Repo     repository.Ledger
	Resolver *address.Resolver
	Logger   *zap.Logger

	// Horizon bounds how far ahead the window reaches; defaults to a week.
	Horizon time.Duration
	// Now is a clock override for tests; nil means time.Now.
	Now func() time.Time
}

// FetchWindow queries [cursor, now+horizon] for sourceID and adapts each
// usable raw record against the kernel prototype. The window is strictly
// forward-only: once a source has history, nothing before its latest
// published start is ever considered again.
func (a *CalendarAdapter) FetchWindow(ctx context.Context, sourceID string, k *catalog.Kernel) ([]models.CandidateEvent, error) {
	now := a.now()

	timeMin := now
	hasAny, err := a.Repo.HasAnyForSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("cursor check for %s: %w", sourceID, err)
	}
	if hasAny {
		latest, err := a.Repo.LatestStartForSource(ctx, sourceID)
		if err != nil {
			return nil, fmt.Errorf("cursor for %s: %w", sourceID, err)
		}
		timeMin = latest
	}
	horizon := a.Horizon
	if horizon <= 0 {
		horizon = defaultHorizon
	}
	timeMax := now.Add(horizon)

	raw, err := a.Calendar.ListEvents(ctx, sourceID, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", sourceID, err)
	}

	out := make([]models.CandidateEvent, 0, len(raw))
	for _, rec := range raw {
		if rec.Start.IsZero() || rec.End.IsZero() || rec.Title == "" || rec.Description == "" {
			// Malformed records are dropped, not errored.
			a.debug("skipping malformed record", sourceID, rec.Title)
			continue
		}
		exists, err := a.Repo.Exists(ctx, models.NormalizeInstant(rec.Start), rec.Title, sourceID)
		if err != nil {
			return nil, fmt.Errorf("dedup check for %s: %w", sourceID, err)
		}
		if exists {
			continue
		}

		ev := k.NewCandidate()
		ev.PhysicalAddress = a.Resolver.Resolve(ctx, rec.Location, k.DefaultAddress, rec.Title)
		ev.BeginsOn = rec.Start
		end := rec.End
		ev.EndsOn = &end
		ev.Title = rec.Title
		ev.Description = scrapedPrefix + rec.Description
		out = append(out, ev)
	}
	return out, nil
}

func (a *CalendarAdapter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *CalendarAdapter) debug(msg, sourceID, title string) {
	if a == nil || a.Logger == nil {
		return
	}
	a.Logger.Debug(msg, zap.String("source_id", sourceID), zap.String("title", title))
}
