package model

import "time"

// CheckinEvent is an immutable fact: one accepted scan or one
// reconciliation decision. Never updated or deleted by the pipeline.
type CheckinEvent struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	StudentID  int64     `gorm:"not null;index:idx_checkins_student_ts" json:"student_id"`
	Action     Action    `gorm:"type:varchar(16);not null" json:"action"`
	Timestamp  time.Time `gorm:"not null;index:idx_checkins_student_ts" json:"timestamp"`
	DeviceName string    `gorm:"type:varchar(64)" json:"device_name,omitempty"`
}

func (CheckinEvent) TableName() string {
	return "checkins"
}
