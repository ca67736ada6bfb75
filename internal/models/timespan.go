package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a wall-clock offset from local midnight, in minutes.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", value, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for constants and fixtures.
func MustTimeOfDay(value string) TimeOfDay {
	tod, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return tod
}

// TimeOfDayOf extracts the wall-clock minute of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// On anchors the time of day on the calendar date of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	d := StartOfDay(day)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, int(t), 0, 0, d.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalJSON renders the value as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts "HH:MM".
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner for TEXT "HH:MM" columns.
func (t *TimeOfDay) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*t = 0
		return nil
	default:
		return fmt.Errorf("scan time of day: unsupported type %T", src)
	}
	if len(raw) > 5 {
		raw = raw[:5]
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// DailyWindow is a recurring time-of-day range. End <= Start wraps past midnight.
type DailyWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewDailyWindow parses both edges of a window.
func NewDailyWindow(start, end string) (DailyWindow, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return DailyWindow{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return DailyWindow{}, err
	}
	return DailyWindow{Start: s, End: e}, nil
}

// Overnight reports whether the window crosses midnight.
func (w DailyWindow) Overnight() bool {
	return w.End <= w.Start
}

// Minutes is the window length.
func (w DailyWindow) Minutes() int {
	if w.Overnight() {
		return minutesPerDay - int(w.Start) + int(w.End)
	}
	return int(w.End - w.Start)
}

// Contains reports whether the wall-clock time of t falls inside the window.
func (w DailyWindow) Contains(t time.Time) bool {
	return w.ContainsMinute(TimeOfDayOf(t))
}

// ContainsMinute is Contains for a bare time of day.
func (w DailyWindow) ContainsMinute(m TimeOfDay) bool {
	if w.Overnight() {
		return m >= w.Start || m < w.End
	}
	return m >= w.Start && m < w.End
}

// DistanceMinutes is the circular distance from t to the nearest window edge, 0 inside.
func (w DailyWindow) DistanceMinutes(t time.Time) int {
	m := TimeOfDayOf(t)
	if w.ContainsMinute(m) {
		return 0
	}
	return minInt(circularDistance(m, w.Start), circularDistance(m, w.End))
}

// On materialises the window starting on the calendar date of day.
func (w DailyWindow) On(day time.Time) Span {
	start := w.Start.On(day)
	end := w.End.On(day)
	if w.Overnight() {
		end = w.End.On(StartOfDay(day).AddDate(0, 0, 1))
	}
	return Span{Start: start, End: end}
}

// Overlap returns how much of s falls inside the window on any day.
func (w DailyWindow) Overlap(s Span) time.Duration {
	var total time.Duration
	for day := StartOfDay(s.Start).AddDate(0, 0, -1); day.Before(s.End); day = day.AddDate(0, 0, 1) {
		if common, ok := w.On(day).Intersect(s); ok {
			total += common.Duration()
		}
	}
	return total
}

// Intersects reports whether any part of s falls inside the window.
func (w DailyWindow) Intersects(s Span) bool {
	return w.Overlap(s) > 0
}

// Expand widens both edges by d, clamped so the window never exceeds a day.
func (w DailyWindow) Expand(minutes int) DailyWindow {
	if w.Minutes()+2*minutes >= minutesPerDay {
		return DailyWindow{Start: 0, End: 0}
	}
	return DailyWindow{
		Start: TimeOfDay(wrapMinute(int(w.Start) - minutes)),
		End:   TimeOfDay(wrapMinute(int(w.End) + minutes)),
	}
}

func (w DailyWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Span is a half-open interval [Start, End).
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewSpan builds a span from a start and a duration.
func NewSpan(start time.Time, d time.Duration) Span {
	return Span{Start: start, End: start.Add(d)}
}

// Overlaps reports whether two half-open spans intersect.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Intersect returns the common part of two spans.
func (s Span) Intersect(o Span) (Span, bool) {
	start := s.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := s.End
	if o.End.Before(end) {
		end = o.End
	}
	if !start.Before(end) {
		return Span{}, false
	}
	return Span{Start: start, End: end}, true
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Minutes returns the duration in whole minutes.
func (s Span) Minutes() int {
	return int(s.Duration() / time.Minute)
}

// Shift moves both edges by d.
func (s Span) Shift(d time.Duration) Span {
	return Span{Start: s.Start.Add(d), End: s.End.Add(d)}
}

// Valid reports whether End is after Start.
func (s Span) Valid() bool {
	return s.End.After(s.Start)
}

// Equal compares both edges as instants.
func (s Span) Equal(o Span) bool {
	return s.Start.Equal(o.Start) && s.End.Equal(o.End)
}

// Contains reports whether o lies inside s.
func (s Span) Contains(o Span) bool {
	return !o.Start.Before(s.Start) && !o.End.After(s.End)
}

func (s Span) String() string {
	return s.Start.Format("2006-01-02 15:04") + "-" + s.End.Format("15:04")
}

// StartOfDay truncates t to local midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two instants share a calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween counts calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return dayNumber(b.In(a.Location())) - dayNumber(a)
}

func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// WeekStart returns the Monday of t's week.
func WeekStart(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func circularDistance(a, b TimeOfDay) int {
	d := int(a - b)
	if d < 0 {
		d = -d
	}
	if minutesPerDay-d < d {
		return minutesPerDay - d
	}
	return d
}

func wrapMinute(m int) int {
	m %= minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return m
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
