package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"CheckinKiosk/internal/cooldown"
	"CheckinKiosk/internal/mirror"
	"CheckinKiosk/internal/model"
	pkgerrors "CheckinKiosk/pkg/errors"
)

// EventStore is the authoritative log the engine writes to.
type EventStore interface {
	Append(ctx context.Context, studentID int64, action model.Action, ts time.Time) error
	MostRecentAction(ctx context.Context, studentID int64) (model.Action, bool, error)
}

// Directory resolves student numbers. Lookup must return
// pkgerrors.StudentNotFound for unknown numbers and never create records.
type Directory interface {
	Lookup(ctx context.Context, studentNumber int64) (*model.Student, error)
}

// Notifier receives guardian notification jobs, fire-and-forget.
type Notifier interface {
	Notify(name string, emails []string, action model.Action, ts time.Time)
}

type Status int

const (
	StatusOK Status = iota
	StatusIgnored
	StatusNotFound
)

// Result is the tri-state outcome of a scan. Process never returns an
// error: dependency failures are logged and absorbed, only the two
// terminal conditions (cooldown, unresolvable student) change Status.
type Result struct {
	Status      Status
	StudentName string
	Action      model.Action
	Tentative   bool
}

type Params struct {
	Cooldown  *cooldown.Cache
	Directory Directory
	Events    EventStore
	Sinks     []mirror.Sink
	Notifier  Notifier
	Window    time.Duration
	Clock     func() time.Time
	Log       *zap.Logger
}

// Engine turns raw scanned codes into recorded Entrada/Saída events.
type Engine struct {
	cache     *cooldown.Cache
	directory Directory
	events    EventStore
	sinks     []mirror.Sink
	notifier  Notifier
	window    time.Duration
	now       func() time.Time
	log       *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(p Params) *Engine {
	if p.Window <= 0 {
		p.Window = 10 * time.Second
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	return &Engine{
		cache:     p.Cooldown,
		directory: p.Directory,
		events:    p.Events,
		sinks:     p.Sinks,
		notifier:  p.Notifier,
		window:    p.Window,
		now:       p.Clock,
		log:       p.Log,
		inflight:  make(map[string]struct{}),
	}
}

// Peek guesses the outcome of a scan from the cooldown cache alone,
// with zero I/O. The host UI shows this immediately and replaces it
// with the Process result once known.
func (e *Engine) Peek(code string) Result {
	now := e.now()
	if prev, ok := e.cache.Get(code); ok {
		if now.Sub(prev.LastScan) < e.window {
			return Result{Status: StatusIgnored, Tentative: true}
		}
		return Result{Status: StatusOK, Action: prev.LastAction.Toggle(), Tentative: true}
	}
	return Result{Status: StatusOK, Action: model.ActionEntry, Tentative: true}
}

// Process runs the full pipeline for one scanned code: debounce, action
// inference, student resolution, durable write, mirror writes, cache
// update, notification. Side effects are cumulative in that order and
// never rolled back; availability of the kiosk wins over strict
// consistency across sinks.
func (e *Engine) Process(ctx context.Context, code string) Result {
	start := e.now()
	ts := start.Truncate(time.Second)

	// Debounce before any external I/O. The in-flight set also keeps a
	// second scan of the same code out while the first is mid-pipeline,
	// which serializes events per code.
	prev, hadPrev, ok := e.reserve(code, start)
	if !ok {
		e.log.Debug(pkgerrors.ScanTooSoon.Message, zap.String("code", code))
		return Result{Status: StatusIgnored}
	}
	defer e.release(code)

	action := model.ActionEntry
	if hadPrev {
		action = prev.LastAction.Toggle()
	}

	digits := extractDigits(code)
	if digits == "" {
		e.log.Warn(pkgerrors.CodeMalformed.Message, zap.String("code", code))
		return Result{Status: StatusNotFound}
	}
	number, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		e.log.Warn(pkgerrors.CodeMalformed.Message, zap.String("code", code), zap.Error(err))
		return Result{Status: StatusNotFound}
	}

	student, err := e.directory.Lookup(ctx, number)
	if errors.Is(err, pkgerrors.StudentNotFound) {
		e.log.Info("Unknown code, not in directory",
			zap.String("code", code),
			zap.Int64("student_number", number),
		)
		return Result{Status: StatusNotFound}
	}
	if err != nil {
		// Transient directory failure. Without a record there is nothing
		// safe to write, so the scan stops here.
		e.log.Error("Directory lookup failed",
			zap.Int64("student_number", number),
			zap.Error(err),
		)
		return Result{Status: StatusNotFound}
	}

	// Cache miss: the event store is the source of truth for the toggle.
	if !hadPrev {
		last, found, err := e.events.MostRecentAction(ctx, student.ID)
		if err != nil {
			e.log.Warn("Most-recent-action query failed, defaulting to Entrada",
				zap.Int64("student_id", student.ID),
				zap.Error(err),
			)
		} else if found {
			action = last.Toggle()
		}
	}

	// Durable write. On failure the pipeline continues: mirrors are the
	// backup-of-record and the user-visible toggle must not be lost.
	if err := e.events.Append(ctx, student.ID, action, ts); err != nil {
		e.log.Warn(pkgerrors.EventWriteFailed.Message,
			zap.Int64("student_id", student.ID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}

	rec := mirror.Record{
		Timestamp:     ts,
		Code:          code,
		StudentNumber: student.StudentNumber,
		Name:          student.Name,
		Action:        action,
	}
	for _, sink := range e.sinks {
		// Both outcomes are "handled": false means buffered for later.
		if !sink.Append(rec) {
			e.log.Warn(pkgerrors.MirrorUnavailable.Message, zap.String("sink", sink.Name()))
		}
	}

	e.cache.Put(code, ts, action)

	if e.notifier != nil {
		e.notifier.Notify(student.Name, student.Emails(), action, ts)
	}

	e.log.Info("Scan recorded",
		zap.String("action", string(action)),
		zap.String("name", student.Name),
		zap.String("code", code),
		zap.Duration("took", e.now().Sub(start)),
	)
	return Result{Status: StatusOK, StudentName: student.Name, Action: action}
}

// reserve performs the synchronous debounce check and marks the code
// in-flight. Returns the prior cache entry, whether one existed, and
// whether the scan may proceed.
func (e *Engine) reserve(code string, now time.Time) (cooldown.Entry, bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inflight[code]; busy {
		return cooldown.Entry{}, false, false
	}
	prev, hadPrev := e.cache.Get(code)
	if hadPrev && now.Sub(prev.LastScan) < e.window {
		return cooldown.Entry{}, false, false
	}
	e.inflight[code] = struct{}{}
	return prev, hadPrev, true
}

func (e *Engine) release(code string) {
	e.mu.Lock()
	delete(e.inflight, code)
	e.mu.Unlock()
}

func extractDigits(code string) string {
	var sb strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
