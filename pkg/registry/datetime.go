package registry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// unit is a calendar or clock unit accepted by the date functions.
type unit int

const (
	unitMillisecond unit = iota
	unitSecond
	unitMinute
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitQuarter
	unitYear
)

var unitDurations = map[unit]time.Duration{
	unitMillisecond: time.Millisecond,
	unitSecond:      time.Second,
	unitMinute:      time.Minute,
	unitHour:        time.Hour,
	unitDay:         24 * time.Hour,
	unitWeek:        7 * 24 * time.Hour,
}

// Short forms are case-sensitive ("M" is month, "m" minute); long forms
// ignore case and may be plural.
var unitShort = map[string]unit{
	"ms": unitMillisecond, "s": unitSecond, "m": unitMinute, "h": unitHour,
	"d": unitDay, "w": unitWeek, "M": unitMonth, "Q": unitQuarter, "y": unitYear,
}

var unitLong = map[string]unit{
	"millisecond": unitMillisecond, "second": unitSecond, "minute": unitMinute,
	"hour": unitHour, "day": unitDay, "week": unitWeek, "month": unitMonth,
	"quarter": unitQuarter, "year": unitYear,
}

func parseUnit(s string) (unit, error) {
	s = strings.TrimSpace(s)
	if u, ok := unitShort[s]; ok {
		return u, nil
	}
	if u, ok := unitLong[strings.TrimSuffix(strings.ToLower(s), "s")]; ok {
		return u, nil
	}
	return 0, fmt.Errorf("unknown date unit %q", s)
}

// addMonths adds n months, clamping the day to the end of the target
// month so Jan 31 + 1 month is the last day of February.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}

// maxOffsetDays bounds date arithmetic to about 2700 years either way,
// the same limit the + and - operators apply.
const maxOffsetDays = 1e6

// unitDays is the longest length of one u in days.
func unitDays(u unit) float64 {
	switch u {
	case unitMonth:
		return 31
	case unitQuarter:
		return 92
	case unitYear:
		return 366
	default:
		return float64(unitDurations[u]) / float64(unitDurations[unitDay])
	}
}

// offsetInRange reports whether count units stay within maxOffsetDays.
func offsetInRange(count float64, u unit) bool {
	return !math.IsNaN(count) && math.Abs(count)*unitDays(u) <= maxOffsetDays
}

// addUnits adds count units to t. Calendar units use the integer part of
// count.
func addUnits(t time.Time, count float64, u unit) time.Time {
	switch u {
	case unitMonth:
		return addMonths(t, int(count))
	case unitQuarter:
		return addMonths(t, int(count)*3)
	case unitYear:
		return addMonths(t, int(count)*12)
	case unitDay:
		whole := int(count)
		frac := count - float64(whole)
		return t.AddDate(0, 0, whole).Add(time.Duration(frac * float64(unitDurations[unitDay])))
	default:
		return t.Add(time.Duration(count * float64(unitDurations[u])))
	}
}

// monthDiff returns whole calendar months from b to a, truncated toward
// zero.
func monthDiff(a, b time.Time) int {
	months := (a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month())
	anchor := addMonths(b, months)
	switch {
	case a.After(b) && anchor.After(a):
		months--
	case a.Before(b) && anchor.Before(a):
		months++
	}
	return months
}

// diffUnits returns a − b in unit u, truncated toward zero.
func diffUnits(a, b time.Time, u unit) float64 {
	switch u {
	case unitMonth:
		return float64(monthDiff(a, b))
	case unitQuarter:
		return float64(monthDiff(a, b) / 3)
	case unitYear:
		return float64(monthDiff(a, b) / 12)
	default:
		return truncate(float64(a.Sub(b)) / float64(unitDurations[u]))
	}
}

func truncate(f float64) float64 {
	if f < 0 {
		return -float64(int64(-f))
	}
	return float64(int64(f))
}

// startOf truncates t to the beginning of unit u in t's location. Weeks
// start on Sunday.
func startOf(t time.Time, u unit) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch u {
	case unitYear:
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc)
	case unitQuarter:
		return time.Date(y, m-(m-1)%3, 1, 0, 0, 0, 0, loc)
	case unitMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case unitWeek:
		return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, loc)
	case unitDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case unitHour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case unitMinute:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
	case unitSecond:
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, loc)
	default:
		return t.Truncate(time.Millisecond)
	}
}

// formatDate renders t using day.js style tokens. Text in square brackets
// is copied verbatim.
func formatDate(t time.Time, layout string) string {
	var sb strings.Builder
	for i := 0; i < len(layout); {
		if layout[i] == '[' {
			end := strings.IndexByte(layout[i:], ']')
			if end > 0 {
				sb.WriteString(layout[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		tok, n := matchToken(layout[i:])
		if n == 0 {
			sb.WriteByte(layout[i])
			i++
			continue
		}
		sb.WriteString(formatToken(t, tok))
		i += n
	}
	return sb.String()
}

// dateTokens lists format tokens, longest first within each prefix.
var dateTokens = []string{
	"YYYY", "YY", "MMMM", "MMM", "MM", "M", "DD", "D", "dddd", "ddd", "d",
	"HH", "H", "hh", "h", "mm", "m", "ss", "s", "SSS", "A", "a", "ZZ", "Z", "X", "x",
}

func matchToken(s string) (string, int) {
	for _, tok := range dateTokens {
		if strings.HasPrefix(s, tok) {
			return tok, len(tok)
		}
	}
	return "", 0
}

func formatToken(t time.Time, tok string) string {
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Month().String()[:3]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "dddd":
		return t.Weekday().String()
	case "ddd":
		return t.Weekday().String()[:3]
	case "d":
		return strconv.Itoa(int(t.Weekday()))
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return strconv.Itoa(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12)
	case "h":
		return strconv.Itoa(hour12)
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return strconv.Itoa(t.Second())
	case "SSS":
		return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
	case "A":
		return t.Format("PM")
	case "a":
		return t.Format("pm")
	case "ZZ":
		return t.Format("-0700")
	case "Z":
		return t.Format("-07:00")
	case "X":
		return strconv.FormatInt(t.Unix(), 10)
	case "x":
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return tok
}

// goLayouts maps day.js tokens to Go reference layout elements for
// parsing.
var goLayouts = map[string]string{
	"YYYY": "2006", "YY": "06", "MMMM": "January", "MMM": "Jan", "MM": "01", "M": "1",
	"DD": "02", "D": "2", "dddd": "Monday", "ddd": "Mon",
	"HH": "15", "H": "15", "hh": "03", "h": "3", "mm": "04", "m": "4",
	"ss": "05", "s": "5", "SSS": "000", "A": "PM", "a": "pm", "ZZ": "-0700", "Z": "-07:00",
}

// parseWithFormat parses s using a day.js style format in loc.
func parseWithFormat(s, format string, loc *time.Location) (time.Time, error) {
	switch format {
	case "X":
		sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(sec, 0).In(loc), nil
	case "x":
		ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).In(loc), nil
	}

	var layout strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			end := strings.IndexByte(format[i:], ']')
			if end > 0 {
				layout.WriteString(format[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		tok, n := matchToken(format[i:])
		if goLayout, ok := goLayouts[tok]; n > 0 && ok {
			layout.WriteString(goLayout)
			i += n
			continue
		}
		if n > 0 {
			return time.Time{}, fmt.Errorf("format token %q cannot be parsed", tok)
		}
		layout.WriteByte(format[i])
		i++
	}
	return time.ParseInLocation(layout.String(), strings.TrimSpace(s), loc)
}
