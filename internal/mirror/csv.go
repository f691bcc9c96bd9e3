package mirror

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// CSVSink mirrors events into one CSV file per day
// (registo_YYYY-MM-DD.csv), readable without any tooling when the
// database and spreadsheet are both unreachable.
type CSVSink struct {
	dir     string
	pending *pendingQueue
	log     *zap.Logger
}

func NewCSVSink(dir, pendingPath string, log *zap.Logger) *CSVSink {
	return &CSVSink{
		dir:     dir,
		pending: newPendingQueue(pendingPath, log),
		log:     log,
	}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Append(rec Record) bool {
	if err := s.write(rec); err != nil {
		s.log.Error("CSV mirror append failed, buffering", zap.Error(err))
		s.pending.push(rec)
		return false
	}
	s.FlushPending()
	return true
}

func (s *CSVSink) FlushPending() {
	recs := s.pending.load()
	if len(recs) == 0 {
		return
	}

	var still []Record
	for _, rec := range recs {
		if err := s.write(rec); err != nil {
			s.log.Warn("CSV flush failed, record stays queued", zap.Error(err))
			still = append(still, rec)
		}
	}
	s.pending.save(still)
}

func (s *CSVSink) write(rec Record) error {
	path, err := s.ensureDayFile(rec)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open day file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{
		rec.Code,
		rec.Name,
		rec.Timestamp.Format("2006-01-02"),
		rec.Timestamp.Format("15:04:05"),
		string(rec.Action),
	})
	w.Flush()
	return w.Error()
}

func (s *CSVSink) ensureDayFile(rec Record) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create records dir: %w", err)
	}

	path := filepath.Join(s.dir, "registo_"+rec.Timestamp.Format("2006-01-02")+".csv")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("failed to create day file: %w", err)
		}
		w := csv.NewWriter(f)
		w.Write([]string{"ID", "Nome", "Data", "Hora", "Ação"})
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
	}
	return path, nil
}
