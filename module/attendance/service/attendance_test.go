package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsLate(t *testing.T) {
	day := func(h, m int) time.Time {
		return time.Date(2026, 8, 31, h, m, 0, 0, time.Local)
	}
	assert.False(t, isLate(day(8, 0)))
	assert.False(t, isLate(day(9, 30)))
	assert.True(t, isLate(day(9, 31)))
	assert.True(t, isLate(day(14, 0)))
}

func TestRoundHours(t *testing.T) {
	assert.Equal(t, 8.0, roundHours(8*time.Hour))
	assert.Equal(t, 7.5, roundHours(7*time.Hour+30*time.Minute))
	assert.Equal(t, 0.25, roundHours(15*time.Minute))
	assert.Equal(t, 8.13, roundHours(8*time.Hour+8*time.Minute))
}
