package ingest

import (
	"context"
	"fmt"
	"sync/atomic"

	"eventbridge/internal/client/mobilizon"
	"eventbridge/internal/models"
)

// DryRunPublisher fabricates sequential platform responses so a full run can
// be exercised against the real dedup store without touching the platform.
type DryRunPublisher struct {
	seq atomic.Int64
}

func (p *DryRunPublisher) CreateEvent(_ context.Context, _ models.CandidateEvent) (mobilizon.PublishResponse, error) {
	n := p.seq.Add(1)
	return mobilizon.PublishResponse{
		ID:   fmt.Sprintf("%d", n),
		UUID: fmt.Sprintf("dry-run-%d", n),
	}, nil
}

func (p *DryRunPublisher) Logout(context.Context) error {
	return nil
}

// Published reports how many events were handed to this publisher.
func (p *DryRunPublisher) Published() int64 {
	return p.seq.Load()
}
