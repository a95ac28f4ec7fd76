package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestExpandEndExclusive(t *testing.T) {
	days, err := Expand(date(t, "2024-01-01"), date(t, "2024-01-03"))
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-01-01", FormatDate(days[0]))
	assert.Equal(t, "2024-01-02", FormatDate(days[1]))
}

func TestExpandSameDayIsEmpty(t *testing.T) {
	days, err := Expand(date(t, "2024-03-10"), date(t, "2024-03-10"))
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestExpandIgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	end := time.Date(2024, 1, 4, 0, 15, 0, 0, time.UTC)
	days, err := Expand(start, end)
	require.NoError(t, err)
	require.Len(t, days, 3)
	for i, d := range days {
		assert.Equal(t, 0, d.Hour())
		assert.Equal(t, start.Day()+i, d.Day())
	}
}

func TestExpandCrossesMonthAndLeapDay(t *testing.T) {
	days, err := Expand(date(t, "2024-02-27"), date(t, "2024-03-02"))
	require.NoError(t, err)
	var got []string
	for _, d := range days {
		got = append(got, FormatDate(d))
	}
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}, got)
}

func TestExpandCenturies(t *testing.T) {
	start, end := date(t, "1700-01-01"), date(t, "2100-01-01")
	assert.Equal(t, 146097, Days(start, end))
	days, err := Expand(start, end)
	require.NoError(t, err)
	require.Len(t, days, 146097)
	assert.Equal(t, "2099-12-31", FormatDate(days[len(days)-1]))
}

func TestExpandInvalidRange(t *testing.T) {
	_, err := Expand(date(t, "2024-01-05"), date(t, "2024-01-01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRange))
	var rangeErr *InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, "2024-01-05", FormatDate(rangeErr.Start))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-01T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", FormatDate(d))

	_, err = ParseDate("06/01/2024")
	assert.Error(t, err)
}

func TestExpandDates(t *testing.T) {
	days, err := ExpandDates("2024-01-01", "2024-01-08")
	require.NoError(t, err)
	assert.Len(t, days, 7)

	_, err = ExpandDates("bad", "2024-01-08")
	assert.Error(t, err)
}
