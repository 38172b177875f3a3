package entities

import (
	"fmt"
	"time"
)

// DayLayout is the persisted format of a calendar day
const DayLayout = "2006-01-02"

// Day is a local calendar date in YYYY-MM-DD form. The zero value means "never".
type Day string

// DayOf returns the calendar day of t in t's own location
func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

// ParseDay validates s and returns it as a Day
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// IsZero reports whether d is unset
func (d Day) IsZero() bool {
	return d == ""
}

// Valid reports whether d is a well-formed date
func (d Day) Valid() bool {
	_, err := time.Parse(DayLayout, string(d))
	return err == nil
}

// Time returns midnight of d in UTC. Only meaningful for day arithmetic.
func (d Day) Time() time.Time {
	t, _ := time.Parse(DayLayout, string(d))
	return t
}

// AddDays returns the day n days after d
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

// Next returns the following calendar day
func (d Day) Next() Day {
	return d.AddDays(1)
}

// DaysUntil returns the number of calendar days from d to other (negative if other is earlier)
func (d Day) DaysUntil(other Day) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

func (d Day) String() string {
	return string(d)
}
