// Package schedule turns goal date ranges into day-by-day schedules.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of calendar days.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

var ErrInvalidRange = errors.New("invalid date range")

// InvalidRangeError reports an end date that precedes the start date.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: end %s is before start %s", FormatDate(e.End), FormatDate(e.Start))
}

func (e *InvalidRangeError) Is(target error) bool { return target == ErrInvalidRange }

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the calendar day.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Day(t), nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Days counts whole calendar days from start to end.
func Days(start, end time.Time) int {
	return int((Day(end).Unix() - Day(start).Unix()) / secondsPerDay)
}

// Expand returns the calendar days in [start, end): end - start days beginning
// at start. Equal dates yield an empty schedule.
func Expand(start, end time.Time) ([]time.Time, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil, &InvalidRangeError{Start: start, End: end}
	}
	n := Days(start, end)
	days := make([]time.Time, n)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days, nil
}

// ExpandDates is Expand over YYYY-MM-DD strings.
func ExpandDates(start, end string) ([]time.Time, error) {
	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	return Expand(s, e)
}
