package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"CheckinKiosk/internal/cooldown"
	"CheckinKiosk/internal/model"
	"CheckinKiosk/internal/store"
)

// EventStore is the slice of the store the reconciler needs.
type EventStore interface {
	StaleEntriesBefore(ctx context.Context, dayStart time.Time) ([]store.StaleEntry, error)
	Append(ctx context.Context, studentID int64, action model.Action, ts time.Time) error
	SetStatus(ctx context.Context, studentID int64, action model.Action) error
	StaleStatusIDs(ctx context.Context, dayStart time.Time) ([]int64, error)
}

// Reconciler closes "still checked in" state left over from prior days.
// It runs once, before the scanner starts accepting input, so it is the
// only other writer of the cooldown cache and no locking window exists.
type Reconciler struct {
	events EventStore
	cache  *cooldown.Cache
	now    func() time.Time
	log    *zap.Logger
}

func New(events EventStore, cache *cooldown.Cache, clock func() time.Time, log *zap.Logger) *Reconciler {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{events: events, cache: cache, now: clock, log: log}
}

// Run synthesizes closing Saída events for stale prior-day entries,
// repairs the denormalized status column, and rewrites stale cooldown
// cache entries. The three passes are independent: a failure in one
// never blocks the others. Running twice is a no-op the second time.
func (r *Reconciler) Run(ctx context.Context) {
	now := r.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	r.closeStaleEntries(ctx, dayStart)
	r.repairStatuses(ctx, dayStart)
	r.rewriteCache(dayStart)
}

func (r *Reconciler) closeStaleEntries(ctx context.Context, dayStart time.Time) {
	entries, err := r.events.StaleEntriesBefore(ctx, dayStart)
	if err != nil {
		r.log.Error("Stale entry query failed", zap.Error(err))
		return
	}

	for _, e := range entries {
		// Close at 23:59:00 of the stale day, not "now": the exit
		// belongs to the day the entry was left open.
		last := e.LastTimestamp
		exitTS := time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 0, 0, last.Location())

		if err := r.events.Append(ctx, e.StudentID, model.ActionExit, exitTS); err != nil {
			r.log.Error("Failed to force Saída",
				zap.Int64("student_number", e.StudentNumber),
				zap.Time("at", exitTS),
				zap.Error(err),
			)
			continue
		}
		r.log.Info("Forced Saída for stale entry",
			zap.Int64("student_number", e.StudentNumber),
			zap.String("name", e.Name),
			zap.Time("at", exitTS),
		)
	}
}

func (r *Reconciler) repairStatuses(ctx context.Context, dayStart time.Time) {
	ids, err := r.events.StaleStatusIDs(ctx, dayStart)
	if err != nil {
		r.log.Error("Stale status query failed", zap.Error(err))
		return
	}

	for _, id := range ids {
		if err := r.events.SetStatus(ctx, id, model.ActionExit); err != nil {
			r.log.Error("Failed to repair status",
				zap.Int64("student_id", id),
				zap.Error(err),
			)
		}
	}
}

func (r *Reconciler) rewriteCache(dayStart time.Time) {
	if r.cache == nil {
		return
	}
	for code, entry := range r.cache.Snapshot() {
		if entry.LastAction == model.ActionEntry && entry.LastScan.Before(dayStart) {
			r.cache.SetAction(code, model.ActionExit)
			r.log.Info("Closed stale cooldown entry", zap.String("code", code))
		}
	}
}
