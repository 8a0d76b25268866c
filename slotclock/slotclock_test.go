package slotclock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aisnet/slotclock"
)

func TestIndicesNearMinuteBoundary(t *testing.T) {
	// second=59, nanosecond just under 1s => the last slot of the minute.
	ts := time.Date(2026, 1, 1, 0, 0, 59, 999_900_000, time.UTC)
	i87, i88 := slotclock.Indices(ts)
	assert.Equal(t, 2249, i87)
	assert.Equal(t, 2249+slotclock.SlotsPerMinute, i88)
}

func TestIndicesAtMinuteRollover(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
	i87, _ := slotclock.Indices(ts)
	assert.Equal(t, 0, i87)
}

func TestIndicesOffsetRelation(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)
	i87, i88 := slotclock.Indices(ts)
	assert.Equal(t, i87+slotclock.SlotsPerMinute, i88)
}
