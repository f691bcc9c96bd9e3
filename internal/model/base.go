package model

import (
	"time"
)

type BaseModel struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
}

// TimeLayout is the second-precision local timestamp format shared by
// the cooldown cache file and the CSV mirror.
const TimeLayout = "2006-01-02 15:04:05"

// SheetTimeLayout is the row timestamp format of the spreadsheet mirror.
const SheetTimeLayout = "02-01-06 15:04:05"
