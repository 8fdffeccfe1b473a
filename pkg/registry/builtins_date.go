package registry

import (
	"strings"
	"time"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

// maxWorkdaySpan bounds the day-by-day walk of WORKDAY and WORKDAY_DIFF.
const maxWorkdaySpan = 100 * 366

func dateFunctions() []*Function {
	date := returns(core.TypeDate)
	num := returns(core.TypeNumber)
	text := returns(core.TypeText)
	boolean := returns(core.TypeBoolean)
	oneDate := []Param{ParamDate}
	return []*Function{
		{Name: "TODAY", Category: CategoryDate, MinArgs: 0, MaxArgs: 0, Returns: date, Eval: fnToday,
			Description: "Midnight of the current day."},
		{Name: "NOW", Category: CategoryDate, MinArgs: 0, MaxArgs: 0, Returns: date, Eval: fnNow,
			Description: "The current date and time."},
		{Name: "YEAR", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Params: oneDate, Returns: num, Eval: datePart(func(t time.Time) int { return t.Year() }),
			Description: "Four-digit year."},
		{Name: "MONTH", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Params: oneDate, Returns: num, Eval: datePart(func(t time.Time) int { return int(t.Month()) }),
			Description: "Month of the year, 1-12."},
		{Name: "DAY", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Params: oneDate, Returns: num, Eval: datePart(time.Time.Day),
			Description: "Day of the month, 1-31."},
		{Name: "HOUR", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Params: oneDate, Returns: num, Eval: datePart(time.Time.Hour),
			Description: "Hour of the day, 0-23."},
		{Name: "MINUTE", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Params: oneDate, Returns: num, Eval: datePart(time.Time.Minute),
			Description: "Minute of the hour, 0-59."},
		{Name: "SECOND", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Params: oneDate, Returns: num, Eval: datePart(time.Time.Second),
			Description: "Second of the minute, 0-59."},
		{Name: "WEEKDAY", Category: CategoryDate, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamDate, ParamText}, Returns: num, Eval: fnWeekday,
			Description: "Day of the week, 0-6, counted from Sunday or from the given start day (\"Monday\")."},
		{Name: "WEEKNUM", Category: CategoryDate, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamDate, ParamText}, Returns: num, Eval: fnWeeknum,
			Description: "Week of the year; weeks start on Sunday or on the given start day."},
		{Name: "DATEADD", Aliases: []string{"DATE_ADD"}, Category: CategoryDate, MinArgs: 3, MaxArgs: 3, Params: []Param{ParamDate, ParamNumber, ParamText}, Returns: date, Eval: fnDateAdd,
			Description: "Adds a count of units (day, week, month, year, hour, ...) to a date."},
		{Name: "DATETIME_DIFF", Category: CategoryDate, MinArgs: 2, MaxArgs: 3, Params: []Param{ParamDate, ParamDate, ParamText}, Returns: num, Eval: fnDatetimeDiff,
			Description: "First date minus second date in the given unit (default day), truncated toward zero."},
		{Name: "DATETIME_FORMAT", Category: CategoryDate, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamDate, ParamText}, Returns: text, Eval: fnDatetimeFormat,
			Description: "Formats a date with day.js style tokens (default YYYY-MM-DD)."},
		{Name: "DATETIME_PARSE", Category: CategoryDate, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamText, ParamText}, Returns: date, Eval: fnDatetimeParse,
			Description: "Parses text as a date, optionally with a day.js style format."},
		{Name: "DATESTR", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Params: oneDate, Returns: text, Eval: layoutFormatter(time.DateOnly),
			Description: "Date as YYYY-MM-DD."},
		{Name: "TIMESTR", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Params: oneDate, Returns: text, Eval: layoutFormatter(time.TimeOnly),
			Description: "Time of day as HH:mm:ss."},
		{Name: "IS_SAME", Category: CategoryDate, MinArgs: 2, MaxArgs: 3, Params: []Param{ParamDate, ParamDate, ParamText}, Returns: boolean, Eval: dateComparer(func(c int) bool { return c == 0 }),
			Description: "Whether two dates fall in the same unit (default millisecond)."},
		{Name: "IS_AFTER", Category: CategoryDate, MinArgs: 2, MaxArgs: 3, Params: []Param{ParamDate, ParamDate, ParamText}, Returns: boolean, Eval: dateComparer(func(c int) bool { return c > 0 }),
			Description: "Whether the first date is after the second at the given unit."},
		{Name: "IS_BEFORE", Category: CategoryDate, MinArgs: 2, MaxArgs: 3, Params: []Param{ParamDate, ParamDate, ParamText}, Returns: boolean, Eval: dateComparer(func(c int) bool { return c < 0 }),
			Description: "Whether the first date is before the second at the given unit."},
		{Name: "WORKDAY", Category: CategoryDate, MinArgs: 2, MaxArgs: 3, Params: []Param{ParamDate, ParamNumber, ParamAny}, Returns: date, Eval: fnWorkday,
			Description: "Date a number of working days (Monday-Friday, minus holidays) after the start."},
		{Name: "WORKDAY_DIFF", Category: CategoryDate, MinArgs: 2, MaxArgs: 3, Params: []Param{ParamDate, ParamDate, ParamAny}, Returns: num, Eval: fnWorkdayDiff,
			Description: "Working days between two dates, both inclusive; negative when the end is earlier."},
		{Name: "FROMNOW", Category: CategoryDate, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamDate, ParamText}, Returns: num, Eval: nowDiff(true),
			Description: "Time elapsed from the date until now in the given unit (default day)."},
		{Name: "TONOW", Category: CategoryDate, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamDate, ParamText}, Returns: num, Eval: nowDiff(false),
			Description: "Time from now until the date in the given unit (default day)."},
	}
}

// dateArg coerces args[i] to a date in the call's location.
func dateArg(call *Call, args []core.Value, i int) (time.Time, *core.EvalError) {
	t, err := args[i].AsDate(call.Loc())
	if err != nil {
		return time.Time{}, err
	}
	return t.In(call.Loc()), nil
}

// unitArg parses args[i] as a unit, defaulting to def.
func unitArg(call *Call, args []core.Value, i int, def unit) (unit, *core.EvalError) {
	if i >= len(args) {
		return def, nil
	}
	u, err := parseUnit(args[i].AsText())
	if err != nil {
		return 0, core.NewEvalError(core.InvalidArgument, "%s: %v", call.Name, err)
	}
	return u, nil
}

func fnToday(call *Call, _ []core.Value) core.Value {
	return core.Date(startOf(call.Now.In(call.Loc()), unitDay))
}

func fnNow(call *Call, _ []core.Value) core.Value {
	return core.Date(call.Now.In(call.Loc()))
}

func datePart(part func(time.Time) int) func(*Call, []core.Value) core.Value {
	return func(call *Call, args []core.Value) core.Value {
		t, err := dateArg(call, args, 0)
		if err != nil {
			return core.FromError(err)
		}
		return core.Number(float64(part(t)))
	}
}

// startDay parses an optional week start ("Sunday" or "Monday").
func startDay(call *Call, args []core.Value, i int) (time.Weekday, *core.EvalError) {
	switch strings.ToLower(strings.TrimSpace(optText(args, i, "sunday"))) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	default:
		return 0, core.NewEvalError(core.InvalidArgument, "%s: start day must be \"Sunday\" or \"Monday\"", call.Name)
	}
}

func fnWeekday(call *Call, args []core.Value) core.Value {
	t, err := dateArg(call, args, 0)
	if err != nil {
		return core.FromError(err)
	}
	start, err := startDay(call, args, 1)
	if err != nil {
		return core.FromError(err)
	}
	return core.Number(float64((int(t.Weekday()) - int(start) + 7) % 7))
}

func fnWeeknum(call *Call, args []core.Value) core.Value {
	t, err := dateArg(call, args, 0)
	if err != nil {
		return core.FromError(err)
	}
	start, err := startDay(call, args, 1)
	if err != nil {
		return core.FromError(err)
	}
	jan1 := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	offset := (int(jan1.Weekday()) - int(start) + 7) % 7
	return core.Number(float64((t.YearDay()-1+offset)/7 + 1))
}

func fnDateAdd(call *Call, args []core.Value) core.Value {
	t, err := dateArg(call, args, 0)
	if err != nil {
		return core.FromError(err)
	}
	count, err := args[1].AsNumber()
	if err != nil {
		return core.FromError(err)
	}
	u, err := unitArg(call, args, 2, unitDay)
	if err != nil {
		return core.FromError(err)
	}
	if !offsetInRange(count, u) {
		return core.ErrorValue(core.InvalidDate, "%s: offset %s is out of range", call.Name, core.FormatNumber(count))
	}
	return core.Date(addUnits(t, count, u))
}

func fnDatetimeDiff(call *Call, args []core.Value) core.Value {
	a, err := dateArg(call, args, 0)
	if err != nil {
		return core.FromError(err)
	}
	b, err := dateArg(call, args, 1)
	if err != nil {
		return core.FromError(err)
	}
	u, err := unitArg(call, args, 2, unitDay)
	if err != nil {
		return core.FromError(err)
	}
	return core.Number(diffUnits(a, b, u))
}

func fnDatetimeFormat(call *Call, args []core.Value) core.Value {
	t, err := dateArg(call, args, 0)
	if err != nil {
		return core.FromError(err)
	}
	return core.Text(formatDate(t, optText(args, 1, "YYYY-MM-DD")))
}

func fnDatetimeParse(call *Call, args []core.Value) core.Value {
	s := args[0].AsText()
	if len(args) < 2 {
		if args[0].Kind() == core.KindDate {
			return args[0]
		}
		t, ok := core.ParseDate(s, call.Loc())
		if !ok {
			return core.ErrorValue(core.InvalidDate, "%s: cannot parse %q", call.Name, s)
		}
		return core.Date(t)
	}
	t, err := parseWithFormat(s, args[1].AsText(), call.Loc())
	if err != nil {
		return core.ErrorValue(core.InvalidDate, "%s: cannot parse %q with format %q", call.Name, s, args[1].AsText())
	}
	return core.Date(t)
}

func layoutFormatter(layout string) func(*Call, []core.Value) core.Value {
	return func(call *Call, args []core.Value) core.Value {
		t, err := dateArg(call, args, 0)
		if err != nil {
			return core.FromError(err)
		}
		return core.Text(t.Format(layout))
	}
}

func dateComparer(test func(int) bool) func(*Call, []core.Value) core.Value {
	return func(call *Call, args []core.Value) core.Value {
		a, err := dateArg(call, args, 0)
		if err != nil {
			return core.FromError(err)
		}
		b, err := dateArg(call, args, 1)
		if err != nil {
			return core.FromError(err)
		}
		u, err := unitArg(call, args, 2, unitMillisecond)
		if err != nil {
			return core.FromError(err)
		}
		return core.Bool(test(startOf(a, u).Compare(startOf(b, u))))
	}
}

// holidays collects the dates of an optional holiday argument: a date,
// comma-separated text, or an array of either.
func holidays(call *Call, args []core.Value, i int) (map[string]bool, *core.EvalError) {
	out := make(map[string]bool)
	if i >= len(args) {
		return out, nil
	}
	for _, leaf := range args[i].Flatten() {
		var items []core.Value
		if leaf.Kind() == core.KindText {
			for _, part := range strings.Split(leaf.Str(), ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, core.Text(part))
				}
			}
		} else {
			items = []core.Value{leaf}
		}
		for _, item := range items {
			t, err := item.AsDate(call.Loc())
			if err != nil {
				return nil, err
			}
			out[t.In(call.Loc()).Format(time.DateOnly)] = true
		}
	}
	return out, nil
}

func isWorkday(t time.Time, skip map[string]bool) bool {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !skip[t.Format(time.DateOnly)]
}

func fnWorkday(call *Call, args []core.Value) core.Value {
	start, err := dateArg(call, args, 0)
	if err != nil {
		return core.FromError(err)
	}
	n, err := integer(args, 1, 0)
	if err != nil {
		return core.FromError(err)
	}
	skip, err := holidays(call, args, 2)
	if err != nil {
		return core.FromError(err)
	}
	if n > maxWorkdaySpan || -n > maxWorkdaySpan {
		return core.ErrorValue(core.InvalidArgument, "%s: too many days", call.Name)
	}
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	t := start
	for n > 0 {
		t = t.AddDate(0, 0, step)
		if isWorkday(t, skip) {
			n--
		}
	}
	return core.Date(t)
}

func fnWorkdayDiff(call *Call, args []core.Value) core.Value {
	a, err := dateArg(call, args, 0)
	if err != nil {
		return core.FromError(err)
	}
	b, err := dateArg(call, args, 1)
	if err != nil {
		return core.FromError(err)
	}
	skip, err := holidays(call, args, 2)
	if err != nil {
		return core.FromError(err)
	}
	sign := 1.0
	from, to := startOf(a, unitDay), startOf(b, unitDay)
	if to.Before(from) {
		sign, from, to = -1, to, from
	}
	if to.Sub(from) > maxWorkdaySpan*24*time.Hour {
		return core.ErrorValue(core.InvalidArgument, "%s: date range is too large", call.Name)
	}
	count := 0
	for t := from; !t.After(to); t = t.AddDate(0, 0, 1) {
		if isWorkday(t, skip) {
			count++
		}
	}
	return core.Number(sign * float64(count))
}

func nowDiff(fromNow bool) func(*Call, []core.Value) core.Value {
	return func(call *Call, args []core.Value) core.Value {
		t, err := dateArg(call, args, 0)
		if err != nil {
			return core.FromError(err)
		}
		u, err := unitArg(call, args, 1, unitDay)
		if err != nil {
			return core.FromError(err)
		}
		now := call.Now.In(call.Loc())
		if fromNow {
			return core.Number(diffUnits(now, t, u))
		}
		return core.Number(diffUnits(t, now, u))
	}
}
