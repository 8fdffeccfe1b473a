package registry

// Builtins returns fresh descriptors for every built-in function.
func Builtins() []*Function {
	var fns []*Function
	fns = append(fns, numericFunctions()...)
	fns = append(fns, textFunctions()...)
	fns = append(fns, logicalFunctions()...)
	fns = append(fns, dateFunctions()...)
	fns = append(fns, arrayFunctions()...)
	return fns
}
