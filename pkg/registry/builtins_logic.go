package registry

import "github.com/leapstack-labs/leapformula/pkg/core"

func logicalFunctions() []*Function {
	boolean := returns(core.TypeBoolean)
	return []*Function{
		{Name: "IF", Category: CategoryLogical, MinArgs: 2, MaxArgs: 3, Params: []Param{ParamBoolean, ParamAny, ParamAny}, Returns: ifReturns, Lazy: fnIf,
			Description: "Evaluates the second argument when the condition is true, otherwise the third (default FALSE)."},
		{Name: "SWITCH", Category: CategoryLogical, MinArgs: 3, MaxArgs: Variadic, Params: []Param{ParamAny}, Returns: switchReturns, Lazy: fnSwitch,
			Description: "Compares an expression with each pattern and evaluates the result of the first match, or the trailing default."},
		{Name: "AND", Category: CategoryLogical, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamBoolean}, Returns: boolean, Lazy: fnAnd,
			Description: "True when every argument is true. Stops at the first false argument."},
		{Name: "OR", Category: CategoryLogical, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamBoolean}, Returns: boolean, Lazy: fnOr,
			Description: "True when any argument is true. Stops at the first true argument."},
		{Name: "XOR", Category: CategoryLogical, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamBoolean}, Returns: boolean, Eval: fnXor,
			Description: "True when an odd number of arguments are true."},
		{Name: "NOT", Category: CategoryLogical, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamBoolean}, Returns: boolean, Eval: fnNot,
			Description: "Logical negation."},
		{Name: "IFERROR", Category: CategoryLogical, MinArgs: 2, MaxArgs: 2, Params: []Param{ParamAny, ParamAny}, Returns: unifyArgs(0, 1), Lazy: fnIfError,
			Description: "The first argument, or the second when the first is an error."},
		{Name: "ISERROR", Category: CategoryLogical, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamAny}, Returns: boolean, Eval: fnIsError, PassErrors: true,
			Description: "True when the argument is an error."},
		{Name: "ERROR", Category: CategoryLogical, MinArgs: 0, MaxArgs: 1, Params: []Param{ParamText}, Returns: returns(core.TypeAny), Eval: fnError,
			Description: "Produces an error value with an optional message."},
	}
}

func ifReturns(args []core.Type) core.Type {
	if len(args) < 3 {
		return unify(args[1], core.TypeBoolean)
	}
	return unify(args[1], args[2])
}

// switchReturns unifies the result positions: every second argument after
// the expression, plus the trailing default when the count is even.
func switchReturns(args []core.Type) core.Type {
	var ts []core.Type
	for i := 2; i < len(args); i += 2 {
		ts = append(ts, args[i])
	}
	if len(args)%2 == 0 {
		ts = append(ts, args[len(args)-1])
	}
	return unify(ts...)
}

// truth evaluates a thunk as a condition.
func truth(t Thunk) (bool, core.Value) {
	v := t()
	if v.IsError() {
		return false, v
	}
	b, err := v.AsBool()
	if err != nil {
		return false, core.FromError(err)
	}
	return b, core.Value{}
}

func fnIf(_ *Call, args []Thunk) core.Value {
	cond, errv := truth(args[0])
	if errv.IsValid() {
		return errv
	}
	if cond {
		return args[1]()
	}
	if len(args) > 2 {
		return args[2]()
	}
	return core.Bool(false)
}

func fnSwitch(call *Call, args []Thunk) core.Value {
	subject := args[0]()
	if subject.IsError() {
		return subject
	}
	rest := args[1:]
	for len(rest) >= 2 {
		pattern := rest[0]()
		if pattern.IsError() {
			return pattern
		}
		if core.Equal(subject, pattern, call.Loc()) {
			return rest[1]()
		}
		rest = rest[2:]
	}
	if len(rest) == 1 {
		return rest[0]()
	}
	return core.ErrorValue(core.InvalidArgument, "%s: no case matched %s", call.Name, subject.AsText())
}

func fnAnd(_ *Call, args []Thunk) core.Value {
	for _, arg := range args {
		b, errv := truth(arg)
		if errv.IsValid() {
			return errv
		}
		if !b {
			return core.Bool(false)
		}
	}
	return core.Bool(true)
}

func fnOr(_ *Call, args []Thunk) core.Value {
	for _, arg := range args {
		b, errv := truth(arg)
		if errv.IsValid() {
			return errv
		}
		if b {
			return core.Bool(true)
		}
	}
	return core.Bool(false)
}

func fnXor(_ *Call, args []core.Value) core.Value {
	odd := false
	for _, arg := range args {
		b, err := arg.AsBool()
		if err != nil {
			return core.FromError(err)
		}
		if b {
			odd = !odd
		}
	}
	return core.Bool(odd)
}

func fnNot(_ *Call, args []core.Value) core.Value {
	b, err := args[0].AsBool()
	if err != nil {
		return core.FromError(err)
	}
	return core.Bool(!b)
}

func fnIfError(_ *Call, args []Thunk) core.Value {
	v := args[0]()
	if v.IsError() {
		return args[1]()
	}
	return v
}

func fnIsError(_ *Call, args []core.Value) core.Value {
	return core.Bool(args[0].IsError())
}

func fnError(_ *Call, args []core.Value) core.Value {
	msg := optText(args, 0, "")
	return core.FromError(&core.EvalError{Kind: core.UserError, Message: msg})
}
