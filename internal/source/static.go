package source

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"eventbridge/internal/catalog"
	"eventbridge/internal/models"
)

// StaticAdapter materializes a kernel's fixed schedule into candidate
// events. Every run re-evaluates the full list; dedup is entirely the
// orchestrator's pre-upload check.
type StaticAdapter struct {
	Logger *zap.Logger

	Horizon time.Duration
	Now     func() time.Time
}

// Expand produces one candidate per schedule occurrence inside
// [now, now+horizon], with the attribution notice appended to the
// description.
func (a *StaticAdapter) Expand(k *catalog.Kernel) ([]models.CandidateEvent, error) {
	now := a.now()
	horizon := a.Horizon
	if horizon <= 0 {
		horizon = defaultHorizon
	}
	until := now.Add(horizon)

	out := make([]models.CandidateEvent, 0, len(k.Schedules))
	for _, sched := range k.Schedules {
		if sched.RRule == "" {
			if sched.Start.Before(now) || sched.Start.After(until) {
				continue
			}
			out = append(out, a.materialize(k, sched.Start, sched.SchedDuration()))
			continue
		}

		rule, err := rrule.StrToRRule(sched.RRule)
		if err != nil {
			return nil, fmt.Errorf("group %q: bad rrule %q: %w", k.GroupingKey, sched.RRule, err)
		}
		rule.DTStart(sched.Start)
		for _, occ := range rule.Between(now, until, true) {
			out = append(out, a.materialize(k, occ, sched.SchedDuration()))
		}
	}
	return out, nil
}

func (a *StaticAdapter) materialize(k *catalog.Kernel, start time.Time, dur time.Duration) models.CandidateEvent {
	ev := k.NewCandidate()
	ev.BeginsOn = start
	end := start.Add(dur)
	ev.EndsOn = &end

	desc := scrapedPrefix + ev.Description
	if k.AttributionURL != "" {
		desc += "\n\nSource for listing info: " + k.AttributionURL
	}
	ev.Description = desc
	return ev
}

func (a *StaticAdapter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
