package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"CheckinKiosk/internal/model"
	"CheckinKiosk/internal/store"
)

func TestFormatDayRow(t *testing.T) {
	ev := store.TodayEvent{
		Timestamp:     time.Date(2026, 9, 1, 9, 15, 30, 0, time.Local),
		Name:          "Maria Silva",
		StudentNumber: 1234,
		Action:        model.ActionEntry,
	}
	assert.Equal(t, "09:15:30  Maria Silva (1234): Entrada", formatDayRow(ev))

	ev.Action = model.ActionExit
	ev.DeviceName = "Rececao"
	assert.Equal(t, "09:15:30  Maria Silva (1234): Saída @ Rececao", formatDayRow(ev))
}
