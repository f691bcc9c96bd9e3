package mirror

import (
	"time"

	"CheckinKiosk/internal/model"
)

// Record is the tuple mirrored alongside the authoritative event store.
type Record struct {
	Timestamp     time.Time
	Code          string
	StudentNumber int64
	Name          string
	Action        model.Action
}

// Sink is a best-effort secondary writer. Append never blocks the scan
// pipeline: a failed delivery is buffered in the sink's pending queue
// and reported as false. FlushPending retries queued records in order,
// keeping the ones that still fail.
type Sink interface {
	Name() string
	Append(rec Record) bool
	FlushPending()
}
