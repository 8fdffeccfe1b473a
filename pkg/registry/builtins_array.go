package registry

import (
	"strings"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

func arrayFunctions() []*Function {
	num := returns(core.TypeNumber)
	arr := returns(core.TypeArray)
	return []*Function{
		{Name: "COUNT", Category: CategoryArray, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamAny}, Returns: num, Eval: counter(func(v core.Value) bool {
			return v.Kind() == core.KindNumber
		}), Description: "Number of numeric items."},
		{Name: "COUNTA", Category: CategoryArray, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamAny}, Returns: num, Eval: counter(func(v core.Value) bool {
			return v.Kind() != core.KindText || v.Str() != ""
		}), Description: "Number of non-empty items."},
		{Name: "COUNTALL", Category: CategoryArray, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamAny}, Returns: num, Eval: counter(func(core.Value) bool {
			return true
		}), Description: "Number of items, including empty ones."},
		{Name: "ARRAY_JOIN", Category: CategoryArray, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamArray, ParamText}, Returns: returns(core.TypeText), Eval: fnArrayJoin,
			Description: "Joins the items of an array with a separator (default \", \")."},
		{Name: "ARRAY_UNIQUE", Category: CategoryArray, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamArray}, Returns: arr, Eval: fnArrayUnique,
			Description: "Removes duplicate items, keeping first occurrences."},
		{Name: "ARRAY_COMPACT", Category: CategoryArray, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamArray}, Returns: arr, Eval: fnArrayCompact,
			Description: "Removes empty text items."},
		{Name: "ARRAY_FLATTEN", Category: CategoryArray, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamAny}, Returns: arr, Eval: fnArrayFlatten,
			Description: "Flattens nested arrays and scalars into one array."},
	}
}

func counter(keep func(core.Value) bool) func(*Call, []core.Value) core.Value {
	return func(_ *Call, args []core.Value) core.Value {
		n := 0
		for _, arg := range args {
			for _, leaf := range arg.Flatten() {
				if keep(leaf) {
					n++
				}
			}
		}
		return core.Number(float64(n))
	}
}

func fnArrayJoin(_ *Call, args []core.Value) core.Value {
	sep := optText(args, 1, ", ")
	leaves := args[0].Flatten()
	parts := make([]string, len(leaves))
	for i, leaf := range leaves {
		parts[i] = leaf.AsText()
	}
	return core.Text(strings.Join(parts, sep))
}

func fnArrayUnique(call *Call, args []core.Value) core.Value {
	var out []core.Value
	for _, item := range args[0].Items() {
		dup := false
		for _, seen := range out {
			if item.Kind() == seen.Kind() && core.Equal(item, seen, call.Loc()) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	return core.Array(out...)
}

func fnArrayCompact(_ *Call, args []core.Value) core.Value {
	var out []core.Value
	for _, item := range args[0].Items() {
		if item.Kind() == core.KindText && item.Str() == "" {
			continue
		}
		out = append(out, item)
	}
	return core.Array(out...)
}

func fnArrayFlatten(_ *Call, args []core.Value) core.Value {
	var out []core.Value
	for _, arg := range args {
		out = append(out, arg.Flatten()...)
	}
	return core.Array(out...)
}
