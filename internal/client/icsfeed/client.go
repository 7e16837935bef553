package icsfeed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// RawEvent is one discrete occurrence from a calendar feed, recurrences
// already expanded. Zero Start/End and empty Title/Description are passed
// through; the adapter decides whether to drop the record.
type RawEvent struct {
	Start       time.Time
	End         time.Time
	Title       string
	Description string
	Location    string
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ics feed error (%d): %s", e.Status, e.Body)
}

// Client fetches ICS feeds over HTTP. Source identifiers are either full
// feed URLs or bare calendar ids substituted into URLTemplate.
type Client struct {
	urlTemplate string
	httpClient  *http.Client
}

// NewClient builds a feed client. urlTemplate must contain one %s verb for
// the calendar id, e.g. "https://calendar.google.com/calendar/ical/%s/public/basic.ics".
func NewClient(httpClient *http.Client, urlTemplate string) *Client {
	return &Client{
		urlTemplate: urlTemplate,
		httpClient:  httpClient,
	}
}

// ListEvents fetches the feed for sourceID and returns every discrete
// occurrence with start in [timeMin, timeMax], ordered by start time.
func (c *Client) ListEvents(ctx context.Context, sourceID string, timeMin, timeMax time.Time) ([]RawEvent, error) {
	body, err := c.fetch(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", sourceID, err)
	}

	events := make([]RawEvent, 0)
	for _, ve := range cal.Events() {
		events = append(events, expandVEvent(ve, timeMin, timeMax)...)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

func (c *Client) fetch(ctx context.Context, sourceID string) ([]byte, error) {
	feedURL := sourceID
	if !strings.Contains(sourceID, "://") {
		feedURL = fmt.Sprintf(c.urlTemplate, sourceID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// expandVEvent turns one VEVENT into discrete occurrences inside the window.
// RRULE recurrences are expanded with the original duration preserved and
// EXDATE exceptions removed.
func expandVEvent(ve *ical.VEvent, timeMin, timeMax time.Time) []RawEvent {
	base := RawEvent{}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		base.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		base.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		base.Location = p.Value
	}

	start, _ := ve.GetStartAt()
	end, _ := ve.GetEndAt()
	base.Start = start
	base.End = end

	rawRule := ""
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rawRule = p.Value
	}

	if rawRule == "" {
		if start.IsZero() || start.Before(timeMin) || start.After(timeMax) {
			return nil
		}
		return []RawEvent{base}
	}

	rule, err := rrule.StrToRRule(rawRule)
	if err != nil {
		// A feed with a broken RRULE still yields its base occurrence when it
		// falls inside the window.
		if !start.IsZero() && !start.Before(timeMin) && !start.After(timeMax) {
			return []RawEvent{base}
		}
		return nil
	}
	rule.DTStart(start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range exDates(ve) {
		set.ExDate(ex.In(start.Location()))
	}

	duration := end.Sub(start)
	occs := set.Between(timeMin.In(start.Location()), timeMax.In(start.Location()), true)
	out := make([]RawEvent, 0, len(occs))
	for _, occStart := range occs {
		occ := base
		occ.Start = occStart
		if !end.IsZero() {
			occ.End = occStart.Add(duration)
		}
		out = append(out, occ)
	}
	return out
}

func exDates(ve *ical.VEvent) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

func parseICSTime(v string) (time.Time, error) {
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.Local)
}
