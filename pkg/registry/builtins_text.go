package registry

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

// maxTextLen bounds text produced by REPT and friends.
const maxTextLen = 1 << 20

func textFunctions() []*Function {
	text := returns(core.TypeText)
	num := returns(core.TypeNumber)
	return []*Function{
		{Name: "CONCATENATE", Category: CategoryText, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamText}, Returns: text, Eval: fnConcatenate,
			Description: "Joins the text of all arguments."},
		{Name: "FIND", Category: CategoryText, MinArgs: 2, MaxArgs: 3, Params: []Param{ParamText, ParamText, ParamNumber}, Returns: num, Eval: finder(false),
			Description: "1-based position of the first occurrence of a string, 0 when absent. Case-sensitive."},
		{Name: "SEARCH", Category: CategoryText, MinArgs: 2, MaxArgs: 3, Params: []Param{ParamText, ParamText, ParamNumber}, Returns: num, Eval: finder(true),
			Description: "Like FIND but ignores case."},
		{Name: "MID", Category: CategoryText, MinArgs: 3, MaxArgs: 3, Params: []Param{ParamText, ParamNumber, ParamNumber}, Returns: text, Eval: fnMid,
			Description: "Substring from a 1-based start position with the given length."},
		{Name: "LEFT", Category: CategoryText, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamText, ParamNumber}, Returns: text, Eval: fnLeft,
			Description: "First characters of a string (default 1)."},
		{Name: "RIGHT", Category: CategoryText, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamText, ParamNumber}, Returns: text, Eval: fnRight,
			Description: "Last characters of a string (default 1)."},
		{Name: "REPLACE", Category: CategoryText, MinArgs: 4, MaxArgs: 4, Params: []Param{ParamText, ParamNumber, ParamNumber, ParamText}, Returns: text, Eval: fnReplace,
			Description: "Replaces count characters starting at a 1-based position."},
		{Name: "SUBSTITUTE", Category: CategoryText, MinArgs: 3, MaxArgs: 4, Params: []Param{ParamText, ParamText, ParamText, ParamNumber}, Returns: text, Eval: fnSubstitute,
			Description: "Replaces occurrences of a string, or only the nth when an index is given."},
		{Name: "REGEXP_MATCH", Category: CategoryText, MinArgs: 2, MaxArgs: 2, Params: []Param{ParamText, ParamText}, Returns: returns(core.TypeBoolean), Eval: fnRegexpMatch,
			Description: "Reports whether the text matches an RE2 regular expression."},
		{Name: "REGEXP_REPLACE", Category: CategoryText, MinArgs: 3, MaxArgs: 3, Params: []Param{ParamText, ParamText, ParamText}, Returns: text, Eval: fnRegexpReplace,
			Description: "Replaces every match of an RE2 regular expression; $1 refers to groups."},
		{Name: "LOWER", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamText}, Returns: text, Eval: fnLower,
			Description: "Lower-cases text."},
		{Name: "UPPER", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamText}, Returns: text, Eval: fnUpper,
			Description: "Upper-cases text."},
		{Name: "REPT", Category: CategoryText, MinArgs: 2, MaxArgs: 2, Params: []Param{ParamText, ParamNumber}, Returns: text, Eval: fnRept,
			Description: "Repeats text the given number of times."},
		{Name: "TRIM", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamText}, Returns: text, Eval: fnTrim,
			Description: "Removes leading and trailing whitespace."},
		{Name: "LEN", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamText}, Returns: num, Eval: fnLen,
			Description: "Number of characters in the text."},
		{Name: "T", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamAny}, Returns: text, Eval: fnT,
			Description: "The argument if it is text, otherwise empty text."},
		{Name: "ENCODE_URL_COMPONENT", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamText}, Returns: text, Eval: fnEncodeURLComponent,
			Description: "Percent-encodes text for use in a URL query component."},
	}
}

func fnConcatenate(_ *Call, args []core.Value) core.Value {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(arg.AsText())
	}
	return core.Text(sb.String())
}

func finder(ignoreCase bool) func(*Call, []core.Value) core.Value {
	return func(call *Call, args []core.Value) core.Value {
		needle := []rune(args[0].AsText())
		haystack := []rune(args[1].AsText())
		start, err := integer(args, 2, 1)
		if err != nil {
			return core.FromError(err)
		}
		if start < 1 {
			return core.ErrorValue(core.InvalidArgument, "%s: start position must be at least 1", call.Name)
		}
		if start > len(haystack)+1 {
			return core.Number(0)
		}
		h, n := string(haystack[start-1:]), string(needle)
		if ignoreCase {
			// per-rune mapping keeps rune offsets stable
			h, n = strings.Map(unicode.ToLower, h), strings.Map(unicode.ToLower, n)
		}
		idx := strings.Index(h, n)
		if idx < 0 {
			return core.Number(0)
		}
		return core.Number(float64(start + utf8.RuneCountInString(h[:idx])))
	}
}

func fnMid(call *Call, args []core.Value) core.Value {
	s := []rune(args[0].AsText())
	start, err := integer(args, 1, 1)
	if err != nil {
		return core.FromError(err)
	}
	count, err := integer(args, 2, 0)
	if err != nil {
		return core.FromError(err)
	}
	if start < 1 || count < 0 {
		return core.ErrorValue(core.InvalidArgument, "%s: start must be at least 1 and count non-negative", call.Name)
	}
	from := min(start-1, len(s))
	to := min(from+count, len(s))
	return core.Text(string(s[from:to]))
}

func fnLeft(call *Call, args []core.Value) core.Value {
	s := []rune(args[0].AsText())
	count, err := integer(args, 1, 1)
	if err != nil {
		return core.FromError(err)
	}
	if count < 0 {
		return core.ErrorValue(core.InvalidArgument, "%s: count must be non-negative", call.Name)
	}
	return core.Text(string(s[:min(count, len(s))]))
}

func fnRight(call *Call, args []core.Value) core.Value {
	s := []rune(args[0].AsText())
	count, err := integer(args, 1, 1)
	if err != nil {
		return core.FromError(err)
	}
	if count < 0 {
		return core.ErrorValue(core.InvalidArgument, "%s: count must be non-negative", call.Name)
	}
	return core.Text(string(s[len(s)-min(count, len(s)):]))
}

func fnReplace(call *Call, args []core.Value) core.Value {
	s := []rune(args[0].AsText())
	start, err := integer(args, 1, 1)
	if err != nil {
		return core.FromError(err)
	}
	count, err := integer(args, 2, 0)
	if err != nil {
		return core.FromError(err)
	}
	if start < 1 || count < 0 {
		return core.ErrorValue(core.InvalidArgument, "%s: start must be at least 1 and count non-negative", call.Name)
	}
	from := min(start-1, len(s))
	to := min(from+count, len(s))
	return core.Text(string(s[:from]) + args[3].AsText() + string(s[to:]))
}

func fnSubstitute(call *Call, args []core.Value) core.Value {
	s, old, repl := args[0].AsText(), args[1].AsText(), args[2].AsText()
	if old == "" {
		return core.Text(s)
	}
	if len(args) < 4 {
		return core.Text(strings.ReplaceAll(s, old, repl))
	}
	nth, err := integer(args, 3, 1)
	if err != nil {
		return core.FromError(err)
	}
	if nth < 1 {
		return core.ErrorValue(core.InvalidArgument, "%s: occurrence index must be at least 1", call.Name)
	}
	offset := 0
	for i := 1; ; i++ {
		idx := strings.Index(s[offset:], old)
		if idx < 0 {
			return core.Text(s)
		}
		pos := offset + idx
		if i == nth {
			return core.Text(s[:pos] + repl + s[pos+len(old):])
		}
		offset = pos + len(old)
	}
}

func compilePattern(call *Call, pattern string) (*regexp.Regexp, *core.EvalError) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, core.NewEvalError(core.InvalidArgument, "%s: invalid regular expression: %v", call.Name, err)
	}
	return re, nil
}

func fnRegexpMatch(call *Call, args []core.Value) core.Value {
	re, err := compilePattern(call, args[1].AsText())
	if err != nil {
		return core.FromError(err)
	}
	return core.Bool(re.MatchString(args[0].AsText()))
}

func fnRegexpReplace(call *Call, args []core.Value) core.Value {
	re, err := compilePattern(call, args[1].AsText())
	if err != nil {
		return core.FromError(err)
	}
	out := re.ReplaceAllString(args[0].AsText(), args[2].AsText())
	if len(out) > maxTextLen {
		return core.ErrorValue(core.InvalidArgument, "%s: result is too long", call.Name)
	}
	return core.Text(out)
}

func fnLower(_ *Call, args []core.Value) core.Value {
	return core.Text(cases.Lower(language.Und).String(args[0].AsText()))
}

func fnUpper(_ *Call, args []core.Value) core.Value {
	return core.Text(cases.Upper(language.Und).String(args[0].AsText()))
}

func fnRept(call *Call, args []core.Value) core.Value {
	s := args[0].AsText()
	n, err := integer(args, 1, 0)
	if err != nil {
		return core.FromError(err)
	}
	if n < 0 {
		return core.ErrorValue(core.InvalidArgument, "%s: count must be non-negative", call.Name)
	}
	if len(s) > 0 && n > maxTextLen/len(s) {
		return core.ErrorValue(core.InvalidArgument, "%s: result is too long", call.Name)
	}
	return core.Text(strings.Repeat(s, n))
}

func fnTrim(_ *Call, args []core.Value) core.Value {
	return core.Text(strings.TrimSpace(args[0].AsText()))
}

func fnLen(_ *Call, args []core.Value) core.Value {
	return core.Number(float64(utf8.RuneCountInString(args[0].AsText())))
}

func fnT(_ *Call, args []core.Value) core.Value {
	if args[0].Kind() == core.KindText {
		return args[0]
	}
	return core.Text("")
}

// fnEncodeURLComponent escapes every byte except A-Z a-z 0-9 and
// - _ . ! ~ * ' ( ).
func fnEncodeURLComponent(_ *Call, args []core.Value) core.Value {
	const hex = "0123456789ABCDEF"
	s := args[0].AsText()
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isLetterByte(c) || (c >= '0' && c <= '9') || strings.IndexByte("-_.!~*'()", c) >= 0 {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&15])
	}
	return core.Text(sb.String())
}

func isLetterByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
