package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of an operating day.
const MinutesPerDay = 24 * 60

// ClockTime is a point of the operating day in minutes since midnight.
// Values past MinutesPerDay describe services running over midnight.
// The zero value is an invalid (unknown) time.
type ClockTime struct {
	Minutes int
	Valid   bool
}

// At returns a valid ClockTime for the given hour and minute.
func At(hour, minute int) ClockTime {
	return ClockTime{Minutes: hour*60 + minute, Valid: true}
}

// Offset returns a valid ClockTime from a raw minute offset.
func Offset(minutes int) ClockTime {
	return ClockTime{Minutes: minutes, Valid: true}
}

// maxHour bounds "HH:MM" input. Hours past 23 describe services running
// over midnight into the next operating day.
const maxHour = 47

// ParseClock parses "HH:MM", "HH:MM:SS" or a plain minute offset such as "510".
// Every field is range checked; seconds are validated then truncated.
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ClockTime{}, fmt.Errorf("empty time")
	}
	if !strings.Contains(s, ":") {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n < 0 {
			return ClockTime{}, fmt.Errorf("invalid time %q", s)
		}
		return Offset(int(n)), nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ClockTime{}, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > maxHour {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return ClockTime{}, fmt.Errorf("invalid second in %q", s)
		}
	}
	return At(h, m), nil
}

// MustParseClock is ParseClock for literals; it panics on malformed input.
func MustParseClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hour returns the hour of day in [0,24), wrapping past midnight.
func (c ClockTime) Hour() int {
	return (c.Minutes % MinutesPerDay) / 60
}

// Or returns c when valid, def otherwise.
func (c ClockTime) Or(def ClockTime) ClockTime {
	if c.Valid {
		return c
	}
	return def
}

func (c ClockTime) String() string {
	if !c.Valid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", c.Minutes/60, c.Minutes%60)
}

// MarshalJSON renders valid times as "HH:MM" and unknown times as null.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "HH:MM" strings or numeric minute offsets. Malformed
// strings leave the time invalid instead of failing the whole document.
func (c *ClockTime) UnmarshalJSON(b []byte) error {
	*c = ClockTime{}
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if parsed, perr := ParseClock(s); perr == nil {
			*c = parsed
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("clock time: %w", err)
	}
	if n >= 0 {
		*c = Offset(int(n))
	}
	return nil
}
