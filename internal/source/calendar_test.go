package source

import (
	"context"
	"testing"
	"time"

	"eventbridge/internal/address"
	"eventbridge/internal/catalog"
	"eventbridge/internal/client/icsfeed"
	"eventbridge/internal/models"
	"eventbridge/internal/repository"
)

type fakeLedger struct {
	seen   map[string]struct{}
	latest map[string]time.Time
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		seen:   map[string]struct{}{},
		latest: map[string]time.Time{},
	}
}

func ledgerKey(startsOn, title, sourceID string) string {
	return startsOn + "|" + title + "|" + sourceID
}

func (l *fakeLedger) Exists(_ context.Context, startsOn, title, sourceID string) (bool, error) {
	_, ok := l.seen[ledgerKey(startsOn, title, sourceID)]
	return ok, nil
}

func (l *fakeLedger) HasAnyForSource(_ context.Context, sourceID string) (bool, error) {
	_, ok := l.latest[sourceID]
	return ok, nil
}

func (l *fakeLedger) LatestStartForSource(_ context.Context, sourceID string) (time.Time, error) {
	t, ok := l.latest[sourceID]
	if !ok {
		return time.Time{}, repository.ErrNotFound
	}
	return t, nil
}

func (l *fakeLedger) InsertPublished(_ context.Context, rec *models.PublishedRecord, _ *models.SourceProvenance) error {
	l.seen[ledgerKey(rec.StartsOn, rec.Title, rec.SourceID)] = struct{}{}
	start, err := time.Parse(time.RFC3339, rec.StartsOn)
	if err != nil {
		return err
	}
	if cur, ok := l.latest[rec.SourceID]; !ok || start.After(cur) {
		l.latest[rec.SourceID] = start
	}
	return nil
}

func (l *fakeLedger) ListPublished(context.Context, repository.ListPublishedParams) ([]models.PublishedRecord, error) {
	return nil, nil
}

func (l *fakeLedger) CountPublished(context.Context, repository.ListPublishedParams) (int64, error) {
	return 0, nil
}

type fakeLister struct {
	events  []icsfeed.RawEvent
	lastMin time.Time
	lastMax time.Time
}

func (f *fakeLister) ListEvents(_ context.Context, _ string, timeMin, timeMax time.Time) ([]icsfeed.RawEvent, error) {
	f.lastMin = timeMin
	f.lastMax = timeMax
	out := make([]icsfeed.RawEvent, 0, len(f.events))
	for _, ev := range f.events {
		if ev.Start.Before(timeMin) || ev.Start.After(timeMax) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func testKernel() *catalog.Kernel {
	return &catalog.Kernel{
		GroupingKey: "Bike Shop",
		SourceIDs:   []string{"cal-1"},
		SourceType:  models.SourceTypeCalendar,
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func rawEvent(start time.Time, title string) icsfeed.RawEvent {
	return icsfeed.RawEvent{
		Start:       start,
		End:         start.Add(2 * time.Hour),
		Title:       title,
		Description: "come along",
		Location:    "",
	}
}

func TestFetchWindow_NoHistoryStartsFromNow(t *testing.T) {
	lister := &fakeLister{events: []icsfeed.RawEvent{
		rawEvent(fixedNow().Add(24*time.Hour), "Market Day"),
		rawEvent(fixedNow().Add(-24*time.Hour), "Yesterday"),
	}}
	a := &CalendarAdapter{
		Calendar: lister,
		Repo:     newFakeLedger(),
		Resolver: &address.Resolver{},
		Now:      fixedNow,
	}

	events, err := a.FetchWindow(context.Background(), "cal-1", testKernel())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 || events[0].Title != "Market Day" {
		t.Fatalf("events=%+v", events)
	}
	if !lister.lastMin.Equal(fixedNow()) {
		t.Fatalf("timeMin=%v want now", lister.lastMin)
	}
	if !lister.lastMax.Equal(fixedNow().Add(7 * 24 * time.Hour)) {
		t.Fatalf("timeMax=%v want now+7d", lister.lastMax)
	}
}

func TestFetchWindow_CursorBoundsWindow(t *testing.T) {
	cursor := fixedNow().Add(48 * time.Hour)
	ledger := newFakeLedger()
	ledger.latest["cal-1"] = cursor

	lister := &fakeLister{events: []icsfeed.RawEvent{
		rawEvent(fixedNow().Add(24*time.Hour), "Before Cursor"),
		rawEvent(cursor.Add(time.Hour), "After Cursor"),
	}}
	a := &CalendarAdapter{
		Calendar: lister,
		Repo:     ledger,
		Resolver: &address.Resolver{},
		Now:      fixedNow,
	}

	events, err := a.FetchWindow(context.Background(), "cal-1", testKernel())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 || events[0].Title != "After Cursor" {
		t.Fatalf("events=%+v", events)
	}
	if !lister.lastMin.Equal(cursor) {
		t.Fatalf("timeMin=%v want cursor %v", lister.lastMin, cursor)
	}
}

func TestFetchWindow_MalformedRecordsDropped(t *testing.T) {
	good := rawEvent(fixedNow().Add(24*time.Hour), "Good")
	noDesc := rawEvent(fixedNow().Add(25*time.Hour), "No Description")
	noDesc.Description = ""
	noEnd := rawEvent(fixedNow().Add(26*time.Hour), "No End")
	noEnd.End = time.Time{}
	noTitle := rawEvent(fixedNow().Add(27*time.Hour), "")

	a := &CalendarAdapter{
		Calendar: &fakeLister{events: []icsfeed.RawEvent{good, noDesc, noEnd, noTitle}},
		Repo:     newFakeLedger(),
		Resolver: &address.Resolver{},
		Now:      fixedNow,
	}

	events, err := a.FetchWindow(context.Background(), "cal-1", testKernel())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 || events[0].Title != "Good" {
		t.Fatalf("events=%+v", events)
	}
}

func TestFetchWindow_ExistingRecordSkipped(t *testing.T) {
	start := fixedNow().Add(24 * time.Hour)
	ledger := newFakeLedger()
	ledger.seen[ledgerKey(models.NormalizeInstant(start), "Market Day", "cal-1")] = struct{}{}

	a := &CalendarAdapter{
		Calendar: &fakeLister{events: []icsfeed.RawEvent{rawEvent(start, "Market Day")}},
		Repo:     ledger,
		Resolver: &address.Resolver{},
		Now:      fixedNow,
	}

	events, err := a.FetchWindow(context.Background(), "cal-1", testKernel())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%+v want none", events)
	}
}

func TestFetchWindow_StampsPrototype(t *testing.T) {
	start := fixedNow().Add(24 * time.Hour)
	a := &CalendarAdapter{
		Calendar: &fakeLister{events: []icsfeed.RawEvent{rawEvent(start, "Market Day")}},
		Repo:     newFakeLedger(),
		Resolver: &address.Resolver{},
		Now:      fixedNow,
	}
	k := testKernel()
	k.DefaultAddress = &models.Address{Street: "1 Green St", Locality: "Townsville", PostalCode: "06511", Country: "USA"}

	events, err := a.FetchWindow(context.Background(), "cal-1", k)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events=%+v", events)
	}
	ev := events[0]
	if !ev.BeginsOn.Equal(start) {
		t.Fatalf("beginsOn=%v", ev.BeginsOn)
	}
	if ev.EndsOn == nil || !ev.EndsOn.Equal(start.Add(2*time.Hour)) {
		t.Fatalf("endsOn=%v", ev.EndsOn)
	}
	if ev.Description != scrapedPrefix+"come along" {
		t.Fatalf("description=%q", ev.Description)
	}
	if ev.PhysicalAddress == nil || ev.PhysicalAddress.Locality != "Townsville" {
		t.Fatalf("address=%+v", ev.PhysicalAddress)
	}

	// Two candidates from one kernel must not alias.
	ev.PhysicalAddress.Street = "mutated"
	if k.DefaultAddress.Street == "mutated" {
		t.Fatalf("kernel default address mutated through candidate")
	}
}

func TestFetchWindow_EmptyWindowIsNotAnError(t *testing.T) {
	a := &CalendarAdapter{
		Calendar: &fakeLister{},
		Repo:     newFakeLedger(),
		Resolver: &address.Resolver{},
		Now:      fixedNow,
	}
	events, err := a.FetchWindow(context.Background(), "cal-1", testKernel())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%+v", events)
	}
}
