package icsfeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func icsBody(lines ...string) string {
	all := append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
	}, lines...)
	all = append(all, "END:VCALENDAR")
	return strings.Join(all, "\r\n") + "\r\n"
}

func serveICS(t *testing.T, body string) (*httptest.Server, *string) {
	t.Helper()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &gotPath
}

func TestListEvents_FiltersWindowAndSorts(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:late@test",
		"DTSTART:20260903T180000Z",
		"DTEND:20260903T200000Z",
		"SUMMARY:Evening Talk",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:market@test",
		"DTSTART:20260901T100000Z",
		"DTEND:20260901T120000Z",
		"SUMMARY:Market Day",
		"DESCRIPTION:Stalls on the green",
		"LOCATION:Town Hall",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:old@test",
		"DTSTART:20260801T100000Z",
		"DTEND:20260801T110000Z",
		"SUMMARY:Past Event",
		"END:VEVENT",
	)
	srv, gotPath := serveICS(t, body)

	c := NewClient(srv.Client(), srv.URL+"/feeds/%s.ics")
	timeMin := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	timeMax := timeMin.Add(7 * 24 * time.Hour)
	events, err := c.ListEvents(context.Background(), "my-cal", timeMin, timeMax)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if *gotPath != "/feeds/my-cal.ics" {
		t.Fatalf("path=%q", *gotPath)
	}
	if len(events) != 2 {
		t.Fatalf("events=%d want 2", len(events))
	}
	first := events[0]
	if first.Title != "Market Day" || first.Description != "Stalls on the green" || first.Location != "Town Hall" {
		t.Fatalf("first=%+v", first)
	}
	if !first.Start.Equal(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("start=%v", first.Start)
	}
	if !first.End.Equal(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("end=%v", first.End)
	}
	if events[1].Title != "Evening Talk" {
		t.Fatalf("order wrong: second=%q", events[1].Title)
	}
}

func TestListEvents_FullURLBypassesTemplate(t *testing.T) {
	srv, gotPath := serveICS(t, icsBody())

	c := NewClient(srv.Client(), "https://unused.example/%s")
	_, err := c.ListEvents(context.Background(), srv.URL+"/direct.ics", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if *gotPath != "/direct.ics" {
		t.Fatalf("path=%q", *gotPath)
	}
}

func TestListEvents_ExpandsRecurrenceWithDuration(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:weekly@test",
		"DTSTART:20260829T090000Z",
		"DTEND:20260829T103000Z",
		"SUMMARY:Weekly Run",
		"RRULE:FREQ=WEEKLY;BYDAY=SA",
		"END:VEVENT",
	)
	srv, _ := serveICS(t, body)

	c := NewClient(srv.Client(), srv.URL+"/%s")
	timeMin := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	timeMax := timeMin.Add(7 * 24 * time.Hour)
	events, err := c.ListEvents(context.Background(), "x", timeMin, timeMax)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events=%d want 1", len(events))
	}
	occ := events[0]
	if !occ.Start.Equal(time.Date(2026, 9, 5, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("start=%v", occ.Start)
	}
	if occ.End.Sub(occ.Start) != 90*time.Minute {
		t.Fatalf("duration=%v", occ.End.Sub(occ.Start))
	}
	if occ.Title != "Weekly Run" {
		t.Fatalf("title=%q", occ.Title)
	}
}

func TestListEvents_ExDateRemovesOccurrence(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:weekly@test",
		"DTSTART:20260829T090000Z",
		"DTEND:20260829T100000Z",
		"SUMMARY:Weekly Run",
		"RRULE:FREQ=WEEKLY;BYDAY=SA",
		"EXDATE:20260905T090000Z",
		"END:VEVENT",
	)
	srv, _ := serveICS(t, body)

	c := NewClient(srv.Client(), srv.URL+"/%s")
	timeMin := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	timeMax := timeMin.Add(7 * 24 * time.Hour)
	events, err := c.ListEvents(context.Background(), "x", timeMin, timeMax)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%d want 0 after exception", len(events))
	}
}

func TestListEvents_NonOKStatusIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/%s")
	_, err := c.ListEvents(context.Background(), "x", time.Now(), time.Now().Add(time.Hour))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("status=%d", apiErr.Status)
	}
}
