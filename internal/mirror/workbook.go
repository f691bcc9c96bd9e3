package mirror

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"CheckinKiosk/internal/model"
)

const workbookSheet = "Registos"

// WorkbookSink mirrors events into a spreadsheet workbook, the
// operator-facing copy of the log. Row shape matches the historical
// sheet: timestamp, scanned code, name, action.
type WorkbookSink struct {
	path    string
	pending *pendingQueue
	log     *zap.Logger
}

func NewWorkbookSink(path, pendingPath string, log *zap.Logger) *WorkbookSink {
	return &WorkbookSink{
		path:    path,
		pending: newPendingQueue(pendingPath, log),
		log:     log,
	}
}

func (s *WorkbookSink) Name() string { return "workbook" }

func (s *WorkbookSink) Append(rec Record) bool {
	if err := s.write(rec); err != nil {
		s.log.Error("Workbook mirror append failed, buffering", zap.Error(err))
		s.pending.push(rec)
		return false
	}
	s.log.Info("Workbook append OK",
		zap.String("code", rec.Code),
		zap.String("action", string(rec.Action)),
	)
	s.FlushPending()
	return true
}

func (s *WorkbookSink) FlushPending() {
	recs := s.pending.load()
	if len(recs) == 0 {
		return
	}

	var still []Record
	for _, rec := range recs {
		if err := s.write(rec); err != nil {
			s.log.Warn("Workbook flush failed, record stays queued", zap.Error(err))
			still = append(still, rec)
		}
	}
	s.pending.save(still)
}

func (s *WorkbookSink) write(rec Record) error {
	f, created, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(workbookSheet)
	if err != nil {
		return fmt.Errorf("failed to read workbook rows: %w", err)
	}

	cell := fmt.Sprintf("A%d", len(rows)+1)
	err = f.SetSheetRow(workbookSheet, cell, &[]interface{}{
		rec.Timestamp.Format(model.SheetTimeLayout),
		rec.Code,
		rec.Name,
		string(rec.Action),
	})
	if err != nil {
		return fmt.Errorf("failed to set workbook row: %w", err)
	}

	if created {
		return f.SaveAs(s.path)
	}
	return f.Save()
}

func (s *WorkbookSink) open() (*excelize.File, bool, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		f := excelize.NewFile()
		f.SetSheetName("Sheet1", workbookSheet)
		err := f.SetSheetRow(workbookSheet, "A1", &[]interface{}{
			"Data/Hora", "Código", "Nome", "Ação",
		})
		if err != nil {
			f.Close()
			return nil, false, fmt.Errorf("failed to seed workbook header: %w", err)
		}
		return f, true, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open workbook: %w", err)
	}
	return f, false, nil
}
