package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"CheckinKiosk/internal/model"
	"CheckinKiosk/pkg/snowflake"
)

// Store is the authoritative event log. Mirror sinks are backup-of-record;
// this is the "fonte principal".
type Store struct {
	db     *gorm.DB
	device string
	log    *zap.Logger
}

func New(db *gorm.DB, device string, log *zap.Logger) *Store {
	return &Store{db: db, device: device, log: log}
}

// StaleEntry is a student whose newest event is an entry from a prior day.
type StaleEntry struct {
	StudentID     int64
	StudentNumber int64
	Name          string
	LastTimestamp time.Time
}

// TodayEvent is one row of the host UI's day listing.
type TodayEvent struct {
	Timestamp     time.Time
	Name          string
	StudentNumber int64
	Action        model.Action
	DeviceName    string
}

// Append inserts one immutable event and refreshes the student's
// denormalized status. A status failure is logged, not returned: the
// event row is the record that matters.
func (s *Store) Append(ctx context.Context, studentID int64, action model.Action, ts time.Time) error {
	id, err := snowflake.NextID()
	if err != nil {
		return fmt.Errorf("failed to allocate event id: %w", err)
	}

	ev := model.CheckinEvent{
		ID:         id,
		StudentID:  studentID,
		Action:     action,
		Timestamp:  ts.Truncate(time.Second),
		DeviceName: s.device,
	}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return fmt.Errorf("failed to insert checkin event: %w", err)
	}

	if err := s.SetStatus(ctx, studentID, action); err != nil {
		s.log.Warn("Event stored but status update failed",
			zap.Int64("student_id", studentID),
			zap.Error(err),
		)
	}
	return nil
}

// MostRecentAction returns the action of the student's newest event.
// Ties on timestamp resolve by insertion order (highest id).
func (s *Store) MostRecentAction(ctx context.Context, studentID int64) (model.Action, bool, error) {
	var ev model.CheckinEvent
	err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("timestamp DESC, id DESC").
		First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query most recent action: %w", err)
	}
	return ev.Action, true, nil
}

// SetStatus rewrites the denormalized status column.
func (s *Store) SetStatus(ctx context.Context, studentID int64, action model.Action) error {
	err := s.db.WithContext(ctx).
		Model(&model.Student{}).
		Where("id = ?", studentID).
		Update("status", action).Error
	if err != nil {
		return fmt.Errorf("failed to update student status: %w", err)
	}
	return nil
}

// StaleEntriesBefore lists students whose newest event is an Entrada
// older than the given day start.
func (s *Store) StaleEntriesBefore(ctx context.Context, dayStart time.Time) ([]StaleEntry, error) {
	var rows []StaleEntry
	err := s.db.WithContext(ctx).Raw(`
		SELECT c.student_id AS student_id,
		       s.student_number AS student_number,
		       s.name AS name,
		       c.timestamp AS last_timestamp
		FROM checkins c
		JOIN (SELECT student_id, MAX(id) AS id FROM checkins GROUP BY student_id) last
		  ON last.id = c.id
		JOIN students s ON s.id = c.student_id
		WHERE c.action = ? AND c.timestamp < ?`,
		model.ActionEntry, dayStart,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stale entries: %w", err)
	}
	return rows, nil
}

// StaleStatusIDs lists students still flagged Entrada although their
// newest event predates dayStart or they have no events at all. Status
// repair is independent from event repair, so both queries exist.
func (s *Store) StaleStatusIDs(ctx context.Context, dayStart time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT s.id
		FROM students s
		LEFT JOIN (SELECT student_id, MAX(id) AS id FROM checkins GROUP BY student_id) last
		  ON last.student_id = s.id
		LEFT JOIN checkins c ON c.id = last.id
		WHERE s.status = ? AND (c.id IS NULL OR c.timestamp < ?)`,
		model.ActionEntry, dayStart,
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stale statuses: %w", err)
	}
	return ids, nil
}

// TodayEvents returns the current day's events, newest first.
func (s *Store) TodayEvents(ctx context.Context, now time.Time) ([]TodayEvent, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var rows []TodayEvent
	err := s.db.WithContext(ctx).Raw(`
		SELECT c.timestamp AS timestamp,
		       s.name AS name,
		       s.student_number AS student_number,
		       c.action AS action,
		       c.device_name AS device_name
		FROM checkins c
		JOIN students s ON s.id = c.student_id
		WHERE c.timestamp >= ? AND c.timestamp < ?
		ORDER BY c.timestamp DESC, c.id DESC`,
		dayStart, dayStart.Add(24*time.Hour),
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query today's events: %w", err)
	}
	return rows, nil
}
