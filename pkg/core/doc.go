// Package core defines the shared language of the formula engine.
//
// This package contains:
//   - The AST (Expr and its node types)
//   - Result types and field types (Type, FieldType, FieldMeta)
//   - The closed run-time value variant (Value)
//   - Compile-time and run-time error types
//   - The schema collaborator interface (Schema)
//
// The Golden Rule: pkg/core imports ONLY pkg/token and stdlib.
// All other packages depend on core, not the reverse.
package core
