package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionToggle(t *testing.T) {
	assert.Equal(t, ActionExit, ActionEntry.Toggle())
	assert.Equal(t, ActionEntry, ActionExit.Toggle())
	// Anything that is not an entry toggles to one.
	assert.Equal(t, ActionEntry, Action("").Toggle())
	assert.Equal(t, ActionEntry, Action("Almoço").Toggle())
}

func TestActionValid(t *testing.T) {
	assert.True(t, ActionEntry.Valid())
	assert.True(t, ActionExit.Valid())
	assert.False(t, Action("").Valid())
	assert.False(t, Action("entrada").Valid())
}
