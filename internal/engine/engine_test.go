package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"CheckinKiosk/internal/cooldown"
	"CheckinKiosk/internal/mirror"
	"CheckinKiosk/internal/model"
	pkgerrors "CheckinKiosk/pkg/errors"
)

type fakeDirectory struct {
	students map[int64]*model.Student
	err      error
}

func (f *fakeDirectory) Lookup(ctx context.Context, n int64) (*model.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.students[n]; ok {
		return s, nil
	}
	return nil, pkgerrors.StudentNotFound
}

type appendCall struct {
	studentID int64
	action    model.Action
	ts        time.Time
}

type fakeEvents struct {
	mu        sync.Mutex
	appends   []appendCall
	recent    map[int64]model.Action
	appendErr error
	recentErr error
}

func (f *fakeEvents) Append(ctx context.Context, studentID int64, action model.Action, ts time.Time) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends = append(f.appends, appendCall{studentID, action, ts})
	if f.recent == nil {
		f.recent = make(map[int64]model.Action)
	}
	f.recent[studentID] = action
	return nil
}

func (f *fakeEvents) MostRecentAction(ctx context.Context, studentID int64) (model.Action, bool, error) {
	if f.recentErr != nil {
		return "", false, f.recentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.recent[studentID]
	return a, ok, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []mirror.Record
	fail    bool
	flushed int

	// When set, Append parks between the two channels so a test can
	// hold a scan mid-pipeline.
	enter   chan struct{}
	release chan struct{}
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Append(rec mirror.Record) bool {
	if f.enter != nil {
		f.enter <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false
	}
	f.records = append(f.records, rec)
	return true
}

func (f *fakeSink) FlushPending() {
	f.mu.Lock()
	f.flushed++
	f.mu.Unlock()
}

type notifyCall struct {
	name   string
	emails []string
	action model.Action
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (f *fakeNotifier) Notify(name string, emails []string, action model.Action, ts time.Time) {
	f.mu.Lock()
	f.calls = append(f.calls, notifyCall{name, emails, action})
	f.mu.Unlock()
}

type harness struct {
	eng      *Engine
	dir      *fakeDirectory
	events   *fakeEvents
	sink     *fakeSink
	notifier *fakeNotifier
	cache    *cooldown.Cache
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dir: &fakeDirectory{students: map[int64]*model.Student{
			1234: {
				BaseModel:     model.BaseModel{ID: 1},
				StudentNumber: 1234,
				Name:          "Maria Silva",
				Email1:        "mae@example.pt",
			},
		}},
		events:   &fakeEvents{},
		sink:     &fakeSink{},
		notifier: &fakeNotifier{},
		cache:    cooldown.New(filepath.Join(t.TempDir(), "scan_cache.json"), zap.NewNop()),
		now:      time.Date(2026, 9, 1, 9, 0, 0, 0, time.Local),
	}
	h.eng = New(Params{
		Cooldown:  h.cache,
		Directory: h.dir,
		Events:    h.events,
		Sinks:     []mirror.Sink{h.sink},
		Notifier:  h.notifier,
		Window:    10 * time.Second,
		Clock:     func() time.Time { return h.now },
	})
	return h
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func TestFirstScanIsEntry(t *testing.T) {
	h := newHarness(t)

	res := h.eng.Process(context.Background(), "1234")

	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "Maria Silva", res.StudentName)
	assert.Equal(t, model.ActionEntry, res.Action)

	require.Len(t, h.events.appends, 1)
	assert.Equal(t, int64(1), h.events.appends[0].studentID)
	assert.Equal(t, model.ActionEntry, h.events.appends[0].action)

	require.Len(t, h.sink.records, 1)
	assert.Equal(t, "1234", h.sink.records[0].Code)
	assert.Equal(t, int64(1234), h.sink.records[0].StudentNumber)

	require.Len(t, h.notifier.calls, 1)
	assert.Equal(t, []string{"mae@example.pt"}, h.notifier.calls[0].emails)

	entry, ok := h.cache.Get("1234")
	require.True(t, ok)
	assert.Equal(t, model.ActionEntry, entry.LastAction)
}

func TestDuplicateWithinCooldownIgnored(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, StatusOK, h.eng.Process(context.Background(), "1234").Status)

	h.advance(3 * time.Second)
	res := h.eng.Process(context.Background(), "1234")

	assert.Equal(t, StatusIgnored, res.Status)
	assert.Len(t, h.events.appends, 1, "duplicate scan must not write")
	assert.Len(t, h.sink.records, 1)
	assert.Len(t, h.notifier.calls, 1)
}

func TestActionsAlternateAcrossCooldown(t *testing.T) {
	h := newHarness(t)
	want := []model.Action{
		model.ActionEntry, model.ActionExit,
		model.ActionEntry, model.ActionExit,
	}

	for i, expected := range want {
		res := h.eng.Process(context.Background(), "1234")
		require.Equal(t, StatusOK, res.Status, "scan %d", i)
		assert.Equal(t, expected, res.Action, "scan %d", i)
		h.advance(11 * time.Second)
	}
}

func TestStoreSuppliesToggleOnCacheMiss(t *testing.T) {
	h := newHarness(t)
	h.events.recent = map[int64]model.Action{1: model.ActionEntry}

	res := h.eng.Process(context.Background(), "1234")

	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, model.ActionExit, res.Action,
		"prior Entrada in the store must toggle to Saída even with a cold cache")
}

func TestEventStoreFailureDoesNotAbortPipeline(t *testing.T) {
	h := newHarness(t)
	h.events.appendErr = errors.New("connection refused")

	res := h.eng.Process(context.Background(), "1234")

	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, model.ActionEntry, res.Action)
	assert.Len(t, h.sink.records, 1, "mirror still written")
	assert.Len(t, h.notifier.calls, 1, "notification still queued")

	entry, ok := h.cache.Get("1234")
	require.True(t, ok, "cache still updated")
	assert.Equal(t, model.ActionEntry, entry.LastAction)
}

func TestMalformedCodeHasNoSideEffects(t *testing.T) {
	h := newHarness(t)

	for _, code := range []string{"", "!!!", "abc-é"} {
		res := h.eng.Process(context.Background(), code)
		assert.Equal(t, StatusNotFound, res.Status, "code %q", code)
	}

	assert.Empty(t, h.events.appends)
	assert.Empty(t, h.sink.records)
	assert.Empty(t, h.notifier.calls)
	_, ok := h.cache.Get("!!!")
	assert.False(t, ok)
}

func TestUnknownStudentHasNoSideEffects(t *testing.T) {
	h := newHarness(t)

	res := h.eng.Process(context.Background(), "9999")

	assert.Equal(t, StatusNotFound, res.Status)
	assert.Empty(t, h.events.appends)
	assert.Empty(t, h.sink.records)
	_, ok := h.cache.Get("9999")
	assert.False(t, ok)
}

func TestDirectoryFailureStopsTheScan(t *testing.T) {
	h := newHarness(t)
	h.dir.err = errors.New("timeout")

	res := h.eng.Process(context.Background(), "1234")

	assert.Equal(t, StatusNotFound, res.Status)
	assert.Empty(t, h.events.appends)
	assert.Empty(t, h.sink.records)
}

func TestCodeWithExtraCharactersResolves(t *testing.T) {
	h := newHarness(t)

	res := h.eng.Process(context.Background(), "ASF-1234-X")

	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "Maria Silva", res.StudentName)

	// The cooldown cache keys on the raw code, not the number.
	_, ok := h.cache.Get("ASF-1234-X")
	assert.True(t, ok)
	_, ok = h.cache.Get("1234")
	assert.False(t, ok)
}

func TestSameCodeMidPipelineIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.sink.enter = make(chan struct{})
	h.sink.release = make(chan struct{})

	done := make(chan Result, 1)
	go func() { done <- h.eng.Process(context.Background(), "1234") }()

	// First scan is parked inside the mirror write; the cooldown cache
	// has not been updated yet, so only the in-flight guard stands
	// between this second scan and a duplicate event.
	<-h.sink.enter
	res := h.eng.Process(context.Background(), "1234")
	assert.Equal(t, StatusIgnored, res.Status)

	close(h.sink.release)
	first := <-done
	require.Equal(t, StatusOK, first.Status)
	assert.Equal(t, model.ActionEntry, first.Action)
	assert.Len(t, h.events.appends, 1, "only the first scan writes an event")
	assert.Len(t, h.notifier.calls, 1)
}

func TestPeekIsTentativeAndZeroIO(t *testing.T) {
	h := newHarness(t)

	guess := h.eng.Peek("1234")
	assert.Equal(t, StatusOK, guess.Status)
	assert.Equal(t, model.ActionEntry, guess.Action)
	assert.True(t, guess.Tentative)
	assert.Empty(t, h.events.appends, "Peek must not touch the store")

	require.Equal(t, StatusOK, h.eng.Process(context.Background(), "1234").Status)

	assert.Equal(t, StatusIgnored, h.eng.Peek("1234").Status)

	h.advance(11 * time.Second)
	guess = h.eng.Peek("1234")
	assert.Equal(t, StatusOK, guess.Status)
	assert.Equal(t, model.ActionExit, guess.Action)
}

func TestExampleScenario(t *testing.T) {
	h := newHarness(t)

	res := h.eng.Process(context.Background(), "1234")
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "Maria Silva", res.StudentName)
	assert.Equal(t, model.ActionEntry, res.Action)
	assert.Len(t, h.events.appends, 1)

	h.advance(2 * time.Second)
	assert.Equal(t, StatusIgnored, h.eng.Process(context.Background(), "1234").Status)
	assert.Len(t, h.events.appends, 1)

	h.advance(10 * time.Second)
	res = h.eng.Process(context.Background(), "1234")
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, model.ActionExit, res.Action)
}
