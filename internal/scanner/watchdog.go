package scanner

import "time"

// watchdog decides when the single offline notice is due. A successful
// port open or a delivered scan line re-arms it, so one outage produces
// at most one notice.
type watchdog struct {
	after   time.Duration
	lastOK  time.Time
	alerted bool
}

func newWatchdog(after time.Duration, now time.Time) *watchdog {
	return &watchdog{after: after, lastOK: now}
}

func (w *watchdog) markOK(now time.Time) {
	w.lastOK = now
	w.alerted = false
}

// due reports whether the outage has lasted long enough to notify, and
// latches so the next call within the same outage returns false.
func (w *watchdog) due(now time.Time) bool {
	if w.alerted || now.Sub(w.lastOK) <= w.after {
		return false
	}
	w.alerted = true
	return true
}
