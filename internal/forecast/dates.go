package forecast

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ErrDateFormat is returned for dates not written as YYYY-MM-DD.
var ErrDateFormat = errors.New("date has to be in the format YYYY-MM-DD")

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, s)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, s)
	}
	return t, nil
}

// DateList returns every date from start to end inclusive.
func DateList(start, end string) ([]string, error) {
	from, err := ParseDate(start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	to, err := ParseDate(end)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("end date %s cannot be before start date %s", end, start)
	}

	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates, nil
}
