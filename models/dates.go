package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	HourLayout = "15:04"
)

var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseDate accepts exactly YYYY-MM-DD. Stored keys use that form, so
// lookups with any other spelling are rejected.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", s)
	}
	return t, nil
}

// CanonicalDate trims s and returns it in YYYY-MM-DD form. Written keys go
// through it.
func CanonicalDate(s string) (string, error) {
	t, err := ParseDate(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// NormalizeHour turns "7", "07" or "07:00" into "07:00".
func NormalizeHour(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") {
		h, err := strconv.Atoi(s)
		if err != nil || h < 0 || h > 23 {
			return "", fmt.Errorf("hour %q is not HH:MM", s)
		}
		return fmt.Sprintf("%02d:00", h), nil
	}
	if len(s) == 4 {
		s = "0" + s
	}
	t, err := time.Parse(HourLayout, s)
	if err != nil {
		return "", fmt.Errorf("hour %q is not HH:MM", s)
	}
	return t.Format(HourLayout), nil
}

func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// WeekStartOf returns the Monday of the week containing t, in t's location.
func WeekStartOf(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(DateLayout)
}

// WeekEndOf returns the Sunday closing the week that starts on weekStart.
func WeekEndOf(weekStart string) (string, error) {
	return AddDays(weekStart, 6)
}

// ParseDatetime accepts RFC 3339 or a zone-less timestamp interpreted in loc,
// and returns the instant in UTC.
func ParseDatetime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("datetime %q is not a recognised timestamp", s)
}

func HourAligned(t time.Time) bool {
	return t.Equal(t.Truncate(time.Hour))
}

// FactKeyAt maps an instant to the (date, hour) key the facts use in loc.
func FactKeyAt(t time.Time, loc *time.Location) (string, string) {
	local := t.In(loc)
	return local.Format(DateLayout), local.Format(HourLayout)
}
