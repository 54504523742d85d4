package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 510, c.Minutes)
	assert.True(t, c.Valid)
	assert.Equal(t, 8, c.Hour())

	c, err = ParseClock("25:10")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Hour())

	c, err = ParseClock("830")
	require.NoError(t, err)
	assert.Equal(t, 830, c.Minutes)

	for _, bad := range []string{"", "ab:cd", "10:75", "-4", "1:2:3:4", "08:00:zz", "08:00:60", "99:10", "48:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseClockFields(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"00:00", 0},
		{"08:00:59", 480},
		{"23:59:00", 1439},
		{"47:59", 47*60 + 59},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseClock(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Minutes)
		})
	}
}

func TestClockTimeJSONTolerant(t *testing.T) {
	var tr Train
	require.NoError(t, json.Unmarshal([]byte(`{"train_id":"T1","scheduled_start_time":"garbage"}`), &tr))
	assert.False(t, tr.ScheduledStart.Valid)

	require.NoError(t, json.Unmarshal([]byte(`{"train_id":"T1","scheduled_start_time":"07:05"}`), &tr))
	assert.Equal(t, At(7, 5), tr.ScheduledStart)

	var u TrainSectionUsage
	require.NoError(t, json.Unmarshal([]byte(`{"train_id":"T1","section_id":"S1","scheduled_entry_time":800,"scheduled_exit_time":830}`), &u))
	assert.Equal(t, 800, u.Entry.Minutes)
	assert.Equal(t, 830, u.Exit.Minutes)

	b, err := json.Marshal(At(9, 0))
	require.NoError(t, err)
	assert.Equal(t, `"09:00"`, string(b))
}

func TestTrainDefaults(t *testing.T) {
	assert.Equal(t, DefaultPriority, Train{ID: "x"}.DeclaredPriority())
	assert.Equal(t, 2, Train{ID: "x", Priority: 2}.DeclaredPriority())
}

func TestUsageOverlaps(t *testing.T) {
	u := TrainSectionUsage{Entry: Offset(100), Exit: Offset(130)}
	assert.True(t, u.Overlaps(120, 140))
	assert.False(t, u.Overlaps(130, 160))
	assert.False(t, u.Overlaps(50, 100))
}
