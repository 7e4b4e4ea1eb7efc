/*
date.go - Calendar dates and the due-date policy

PURPOSE:
  Records carry a calendar date typed by hand into a spreadsheet cell.
  This file turns that loose text into a Date and decides whether a
  record is due relative to a reference day.

ACCEPTED FORMAT:
  D/M/Y where D and M have one or two digits and Y has two digits
  (read as 2000+Y) or four digits. Surrounding whitespace is ignored.
  Anything else, including calendar-invalid dates such as 31/02/2024,
  yields no date. Parsing never fails loudly: a record without a date
  is simply never due.

MODES:
  today:        due iff the date is the reference day
  until_today:  due iff the date is before reference+1 day
  Unknown mode strings fall back to today.

SEE ALSO:
  - record.go: Uses ParseDate while projecting rows
  - engine.go: Uses IsDue to build the due set
*/
package reminder

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day with no time component
// =============================================================================

// Date is a calendar day. The zero value is not a valid date.
type Date struct {
	t time.Time
}

// NewDate returns the date for year/month/day. Out-of-range components are
// normalized the way time.Date normalizes them.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in loc. A nil loc means UTC.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// Comparison
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int          { return d.t.Year() }
func (d Date) Month() time.Month  { return d.t.Month() }
func (d Date) Day() int           { return d.t.Day() }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) String() string     { return d.t.Format("2006-01-02") }
func (d Date) Display() string    { return d.t.Format("02/01/2006") }

// =============================================================================
// PARSING
// =============================================================================

var sheetDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})$`)

// ParseDate parses a D/M/Y spreadsheet date. The boolean is false when the
// text is empty, malformed, or names a day that does not exist.
func ParseDate(text string) (Date, bool) {
	m := sheetDatePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Date{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}

	return validDate(year, month, day)
}

// ParseISODate parses YYYY-MM-DD, the format used for reference dates on the
// HTTP surface.
func ParseISODate(text string) (Date, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(text))
	if err != nil {
		return Date{}, false
	}
	return DateOf(t), true
}

// validDate rejects components that time.Date would silently roll over.
func validDate(year, month, day int) (Date, bool) {
	if month < 1 || month > 12 || day < 1 {
		return Date{}, false
	}
	d := NewDate(year, time.Month(month), day)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return Date{}, false
	}
	return d, true
}

// =============================================================================
// POLICY
// =============================================================================

// Mode selects which dates count as due.
type Mode string

const (
	ModeToday      Mode = "today"
	ModeUntilToday Mode = "until_today"
)

// ParseMode maps free text to a Mode. Unknown values fall back to ModeToday.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeUntilToday:
		return ModeUntilToday
	default:
		return ModeToday
	}
}

// IsDue reports whether date is due on ref under mode.
func IsDue(date, ref Date, mode Mode) bool {
	switch mode {
	case ModeUntilToday:
		return date.Before(ref.AddDays(1))
	default:
		return date.Equal(ref)
	}
}
