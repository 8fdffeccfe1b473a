package output

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

// FormatHeader returns a Markdown heading.
func FormatHeader(level int, text string) string {
	return strings.Repeat("#", max(level, 1)) + " " + text
}

// FormatKeyValue returns a Markdown list item "- **key:** value".
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

// FormatCode wraps s in backticks.
func FormatCode(s string) string {
	return "`" + s + "`"
}

// FormatValue renders a cell value for tables. Text is shown as-is and
// errors by their display code, e.g. "#DIV/0!".
func FormatValue(v core.Value) string {
	switch {
	case !v.IsValid():
		return ""
	case v.IsError():
		return v.Err().Kind.Code()
	case v.Kind() == core.KindArray:
		parts := make([]string, 0, v.Len())
		for _, item := range v.Items() {
			parts = append(parts, FormatValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return v.String()
	}
}
