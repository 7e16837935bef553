package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"eventbridge/internal/models"
)

// ConfigError is fatal: a run aborts before any upload when kernel
// configuration cannot be loaded.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("catalog %s: %s", e.Path, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Schedule is one entry of a static listing: a one-off occurrence or an
// RRULE-driven recurrence anchored at Start.
type Schedule struct {
	Start    time.Time `yaml:"start"`
	End      time.Time `yaml:"end"`
	RRule    string    `yaml:"rrule"`
	Duration string    `yaml:"duration"`
}

// Kernel is the immutable template for one configured source-group.
// NewCandidate stamps out a fresh deep copy per raw record, so concurrent
// specializations of the same kernel never alias.
type Kernel struct {
	GroupingKey    string
	SourceIDs      []string
	SourceType     models.SourceType
	DefaultAddress *models.Address
	AttributionURL string
	Schedules      []Schedule

	prototype models.CandidateEvent
}

func (k *Kernel) NewCandidate() models.CandidateEvent {
	ev := k.prototype.Clone()
	ev.PhysicalAddress = k.DefaultAddress.Clone()
	return ev
}

type kernelFile struct {
	SourceType string        `yaml:"source_type"`
	Groups     []kernelGroup `yaml:"groups"`
}

type kernelGroup struct {
	Key            string          `yaml:"key"`
	SourceIDs      []string        `yaml:"source_ids"`
	Title          string          `yaml:"title"`
	Description    string          `yaml:"description"`
	GroupID        int64           `yaml:"group_id"`
	OrganizerID    int64           `yaml:"organizer_id"`
	OnlineAddress  string          `yaml:"online_address"`
	Category       string          `yaml:"category"`
	Tags           []string        `yaml:"tags"`
	DefaultAddress *models.Address `yaml:"default_address"`
	AttributionURL string          `yaml:"attribution_url"`
	Schedule       []Schedule      `yaml:"schedule"`
}

// Load reads one kernel file and returns its kernels in file order. The file
// must declare the expected source type; anything else is a ConfigError.
func Load(path string, want models.SourceType) ([]Kernel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: "read failed", Err: err}
	}

	var file kernelFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, &ConfigError{Path: path, Reason: "malformed yaml", Err: err}
	}

	declared := models.SourceType(strings.TrimSpace(file.SourceType))
	if !declared.Valid() {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("unknown source type %q", file.SourceType)}
	}
	if declared != want {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("source type %q, expected %q", declared, want)}
	}
	if len(file.Groups) == 0 {
		return nil, &ConfigError{Path: path, Reason: "no source groups defined"}
	}

	kernels := make([]Kernel, 0, len(file.Groups))
	for i, g := range file.Groups {
		if strings.TrimSpace(g.Key) == "" {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("group %d: missing key", i)}
		}
		if len(g.SourceIDs) == 0 {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("group %q: no source ids", g.Key)}
		}
		for _, sched := range g.Schedule {
			if sched.Start.IsZero() {
				return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("group %q: schedule entry without start", g.Key)}
			}
			if sched.Duration != "" {
				if _, err := time.ParseDuration(sched.Duration); err != nil {
					return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("group %q: bad schedule duration", g.Key), Err: err}
				}
			}
			if sched.RRule != "" {
				if _, err := rrule.StrToRRule(sched.RRule); err != nil {
					return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("group %q: bad schedule rrule", g.Key), Err: err}
				}
			}
		}

		kernels = append(kernels, Kernel{
			GroupingKey:    g.Key,
			SourceIDs:      append([]string(nil), g.SourceIDs...),
			SourceType:     declared,
			DefaultAddress: g.DefaultAddress.Clone(),
			AttributionURL: g.AttributionURL,
			Schedules:      append([]Schedule(nil), g.Schedule...),
			prototype: models.CandidateEvent{
				OrganizerActorID: g.OrganizerID,
				AttributedToID:   g.GroupID,
				Title:            g.Title,
				Description:      g.Description,
				Status:           models.StatusConfirmed,
				Visibility:       models.VisibilityPublic,
				JoinOptions:      models.JoinFree,
				Category:         g.Category,
				Tags:             append([]string(nil), g.Tags...),
				OnlineAddress:    g.OnlineAddress,
			},
		})
	}
	return kernels, nil
}

// SchedDuration returns the parsed duration of a schedule entry, defaulting
// to the explicit End when set and to one hour otherwise.
func (s Schedule) SchedDuration() time.Duration {
	if s.Duration != "" {
		if d, err := time.ParseDuration(s.Duration); err == nil && d > 0 {
			return d
		}
	}
	if !s.End.IsZero() && s.End.After(s.Start) {
		return s.End.Sub(s.Start)
	}
	return time.Hour
}
