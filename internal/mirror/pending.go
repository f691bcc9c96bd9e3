package mirror

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"CheckinKiosk/internal/model"
)

// pendingQueue is the FIFO overflow file of one sink. Single writer per
// sink: each sink owns its own file, so concurrent sinks never
// interleave writes.
type pendingQueue struct {
	path string
	log  *zap.Logger
}

type diskRecord struct {
	Timestamp     string `json:"timestamp"`
	Code          string `json:"code"`
	StudentNumber int64  `json:"student_number"`
	Name          string `json:"name"`
	Action        string `json:"action"`
}

func newPendingQueue(path string, log *zap.Logger) *pendingQueue {
	return &pendingQueue{path: path, log: log}
}

func (q *pendingQueue) load() []Record {
	data, err := os.ReadFile(q.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		q.log.Error("Failed to read pending queue", zap.String("path", q.path), zap.Error(err))
		return nil
	}

	var disk []diskRecord
	if err := json.Unmarshal(data, &disk); err != nil {
		q.log.Error("Pending queue unreadable, starting empty", zap.String("path", q.path), zap.Error(err))
		return nil
	}

	out := make([]Record, 0, len(disk))
	for _, d := range disk {
		ts, err := time.ParseInLocation(model.TimeLayout, d.Timestamp, time.Local)
		if err != nil {
			q.log.Error("Skipping pending record with bad timestamp",
				zap.String("timestamp", d.Timestamp),
			)
			continue
		}
		out = append(out, Record{
			Timestamp:     ts,
			Code:          d.Code,
			StudentNumber: d.StudentNumber,
			Name:          d.Name,
			Action:        model.Action(d.Action),
		})
	}
	return out
}

func (q *pendingQueue) save(recs []Record) {
	disk := make([]diskRecord, 0, len(recs))
	for _, r := range recs {
		disk = append(disk, diskRecord{
			Timestamp:     r.Timestamp.Format(model.TimeLayout),
			Code:          r.Code,
			StudentNumber: r.StudentNumber,
			Name:          r.Name,
			Action:        string(r.Action),
		})
	}

	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		q.log.Error("Failed to marshal pending queue", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		q.log.Error("Failed to create pending queue dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(q.path, data, 0o644); err != nil {
		q.log.Error("Failed to write pending queue", zap.String("path", q.path), zap.Error(err))
	}
}

func (q *pendingQueue) push(rec Record) {
	recs := q.load()
	recs = append(recs, rec)
	q.save(recs)
}
