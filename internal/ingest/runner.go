package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"eventbridge/internal/catalog"
	"eventbridge/internal/client/mobilizon"
	"eventbridge/internal/models"
	"eventbridge/internal/repository"
	"eventbridge/internal/source"
)

// ErrRunInProgress is returned when a run is requested while another run
// still holds the single-flight guard.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Publisher is the publishing platform collaborator.
type Publisher interface {
	CreateEvent(ctx context.Context, ev models.CandidateEvent) (mobilizon.PublishResponse, error)
	Logout(ctx context.Context) error
}

// Runner walks the kernel catalog, adapts each source and publishes every
// candidate not already recorded. Strictly sequential; a publish failure
// stops the run with the failing source identified. Prior publishes are
// never rolled back.
type Runner struct {
	Calendars []catalog.Kernel
	Statics   []catalog.Kernel

	Repo      repository.Ledger
	Publisher Publisher
	Calendar  *source.CalendarAdapter
	Static    *source.StaticAdapter
	Logger    *zap.Logger

	running atomic.Bool
}

// Running reports whether a run currently holds the single-flight guard.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run processes calendar kernels then static kernels, in catalog order.
// Runs are serialized across every trigger path: overlapping runs would both
// pass the pre-upload dedup check before either records its publish, so a
// second concurrent run is refused with ErrRunInProgress. The publisher
// session is released on every exit path of an admitted run.
func (r *Runner) Run(ctx context.Context) (err error) {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer r.running.Store(false)
	defer func() {
		if lerr := r.Publisher.Logout(ctx); lerr != nil {
			r.warn("publisher logout failed", lerr)
		}
	}()

	var storeErr error
	for i := range r.Calendars {
		k := &r.Calendars[i]
		if err := r.runKernel(ctx, k, &storeErr); err != nil {
			return err
		}
	}
	for i := range r.Statics {
		k := &r.Statics[i]
		if err := r.runKernel(ctx, k, &storeErr); err != nil {
			return err
		}
	}
	// Insert failures are non-fatal for the run (the remote side already has
	// the event) but must not pass silently: the triple is missing locally
	// and will duplicate next run.
	return storeErr
}

// RunGroup processes only the kernels whose grouping key matches. It shares
// Run's single-flight guard.
func (r *Runner) RunGroup(ctx context.Context, groupingKey string) (err error) {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer r.running.Store(false)
	defer func() {
		if lerr := r.Publisher.Logout(ctx); lerr != nil {
			r.warn("publisher logout failed", lerr)
		}
	}()

	var storeErr error
	for i := range r.Calendars {
		k := &r.Calendars[i]
		if k.GroupingKey != groupingKey {
			continue
		}
		if err := r.runKernel(ctx, k, &storeErr); err != nil {
			return err
		}
	}
	for i := range r.Statics {
		k := &r.Statics[i]
		if k.GroupingKey != groupingKey {
			continue
		}
		if err := r.runKernel(ctx, k, &storeErr); err != nil {
			return err
		}
	}
	return storeErr
}

func (r *Runner) runKernel(ctx context.Context, k *catalog.Kernel, storeErr *error) error {
	r.info("processing kernel",
		zap.String("grouping_key", k.GroupingKey),
		zap.String("source_type", string(k.SourceType)),
	)

	switch k.SourceType {
	case models.SourceTypeCalendar:
		for _, sourceID := range k.SourceIDs {
			events, err := r.Calendar.FetchWindow(ctx, sourceID, k)
			if err != nil {
				return fmt.Errorf("kernel %q: %w", k.GroupingKey, err)
			}
			if err := r.publishAll(ctx, k, sourceID, events, storeErr); err != nil {
				return err
			}
		}
		return nil
	case models.SourceTypeStatic:
		events, err := r.Static.Expand(k)
		if err != nil {
			return fmt.Errorf("kernel %q: %w", k.GroupingKey, err)
		}
		return r.publishAll(ctx, k, k.SourceIDs[0], events, storeErr)
	default:
		return fmt.Errorf("kernel %q: unknown source type %q", k.GroupingKey, k.SourceType)
	}
}

func (r *Runner) publishAll(ctx context.Context, k *catalog.Kernel, sourceID string, events []models.CandidateEvent, storeErr *error) error {
	for _, ev := range events {
		startsOn := models.NormalizeInstant(ev.BeginsOn)
		exists, err := r.Repo.Exists(ctx, startsOn, ev.Title, sourceID)
		if err != nil {
			return fmt.Errorf("dedup check %q from source %s: %w", ev.Title, sourceID, err)
		}
		if exists {
			continue
		}

		resp, err := r.Publisher.CreateEvent(ctx, ev)
		if err != nil {
			// Fail fast: remaining events for this source are not attempted.
			return fmt.Errorf("publish %q from source %s: %w", ev.Title, sourceID, err)
		}
		r.info("published event",
			zap.String("title", ev.Title),
			zap.String("uuid", resp.UUID),
			zap.String("id", resp.ID),
			zap.String("source_id", sourceID),
		)

		rec := &models.PublishedRecord{
			UUID:        resp.UUID,
			PlatformID:  resp.ID,
			Title:       ev.Title,
			StartsOn:    startsOn,
			SourceID:    sourceID,
			GroupID:     ev.AttributedToID,
			GroupingKey: k.GroupingKey,
			Tags:        tagsJSON(ev.Tags),
		}
		prov := &models.SourceProvenance{
			UUID:          resp.UUID,
			SourceID:      sourceID,
			SourceType:    k.SourceType,
			OnlineAddress: ev.OnlineAddress,
		}
		if err := r.Repo.InsertPublished(ctx, rec, prov); err != nil {
			r.errorLog("record insert failed after successful publish; next run may duplicate this event",
				zap.String("uuid", resp.UUID),
				zap.String("title", ev.Title),
				zap.Error(err),
			)
			if *storeErr == nil {
				*storeErr = fmt.Errorf("record %q from source %s: %w", ev.Title, sourceID, err)
			}
		}
	}
	return nil
}

func tagsJSON(tags []string) datatypes.JSON {
	if len(tags) == 0 {
		return datatypes.JSON([]byte(`[]`))
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return datatypes.JSON([]byte(`[]`))
	}
	return datatypes.JSON(raw)
}

func (r *Runner) info(msg string, fields ...zap.Field) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Info(msg, fields...)
}

func (r *Runner) warn(msg string, err error) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Warn(msg, zap.Error(err))
}

func (r *Runner) errorLog(msg string, fields ...zap.Field) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Error(msg, fields...)
}
