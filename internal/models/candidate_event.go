package models

import (
	"time"
)

type SourceType string

const (
	SourceTypeCalendar SourceType = "calendar"
	SourceTypeStatic   SourceType = "static"
)

func (s SourceType) Valid() bool {
	return s == SourceTypeCalendar || s == SourceTypeStatic
}

type EventStatus string

type EventVisibility string

type EventJoinOptions string

const (
	StatusConfirmed EventStatus = "CONFIRMED"
	StatusTentative EventStatus = "TENTATIVE"
	StatusCanceled  EventStatus = "CANCELED"

	VisibilityPublic EventVisibility = "PUBLIC"

	JoinFree       EventJoinOptions = "FREE"
	JoinInvite     EventJoinOptions = "INVITE"
	JoinRestricted EventJoinOptions = "RESTRICTED"
)

// CandidateEvent is the canonical, source-agnostic form of one occurrence,
// ready to be handed to the publishing platform. Adapters guarantee Title is
// non-empty and BeginsOn carries an explicit zone.
type CandidateEvent struct {
	OrganizerActorID int64
	AttributedToID   int64

	Title       string
	Description string

	BeginsOn time.Time
	EndsOn   *time.Time

	Status      EventStatus
	Visibility  EventVisibility
	JoinOptions EventJoinOptions

	Category      string
	Tags          []string
	OnlineAddress string

	PhysicalAddress *Address
}

// Clone returns a deep copy so one prototype can be specialized per raw
// record without cross-event aliasing.
func (e CandidateEvent) Clone() CandidateEvent {
	out := e
	if e.EndsOn != nil {
		t := *e.EndsOn
		out.EndsOn = &t
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	out.PhysicalAddress = e.PhysicalAddress.Clone()
	return out
}

// NormalizeInstant renders a timestamp as the canonical UTC RFC3339 string
// used for dedup equality and cursor ordering. Lexicographic order of the
// result matches chronological order.
func NormalizeInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
