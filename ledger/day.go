package ledger

import (
	"time"
)

// =============================================================================
// DAY - Calendar-day abstraction (streaks and daily caps are day-based)
// =============================================================================

// Day is a calendar day in UTC. Daily bonuses, task completion caps, and
// withdrawal caps all reset at day boundaries, so the engine never
// compares raw timestamps for those rules.
type Day struct {
	t time.Time // normalized to UTC midnight
}

const dayFormat = "2006-01-02"

func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return NewDay(u.Year(), u.Month(), u.Day())
}

func Today() Day {
	return DayOf(time.Now())
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayFormat, s)
	if err != nil {
		return Day{}, err
	}
	return DayOf(t), nil
}

// Comparison
func (d Day) Equal(other Day) bool  { return d.t.Equal(other.t) }
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }
func (d Day) After(other Day) bool  { return d.t.After(other.t) }
func (d Day) IsZero() bool          { return d.t.IsZero() }

// Arithmetic
func (d Day) Prev() Day       { return Day{t: d.t.AddDate(0, 0, -1)} }
func (d Day) Next() Day       { return Day{t: d.t.AddDate(0, 0, 1)} }
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

func (d Day) Time() time.Time { return d.t }

func (d Day) String() string { return d.t.Format(dayFormat) }
