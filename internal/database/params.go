package database

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

type bindKind int

const (
	bindNone bindKind = iota
	bindNamed
	bindPositional
)

// Binding is an explicit parameter-binding variant for procedure calls:
// named, positional, or none. The caller picks the variant; nothing is
// inferred from argument shape. The zero value binds nothing.
type Binding struct {
	kind  bindKind
	names []string
	vals  []any
}

// NoParams binds nothing.
func NoParams() Binding { return Binding{} }

// Positional binds args in order as @p1..@pN.
func Positional(args ...any) Binding {
	return Binding{kind: bindPositional, vals: args}
}

// Named binds args by parameter name. Names are rendered in sorted order so
// the generated SQL is deterministic.
func Named(args map[string]any) Binding {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	vals := make([]any, len(names))
	for i, name := range names {
		vals[i] = sql.Named(name, args[name])
	}
	return Binding{kind: bindNamed, names: names, vals: vals}
}

// Placeholders renders the argument list of an EXEC statement for this
// binding. Empty for NoParams.
func (b Binding) Placeholders() string {
	switch b.kind {
	case bindNamed:
		parts := make([]string, len(b.names))
		for i, name := range b.names {
			parts[i] = fmt.Sprintf("@%s = @%s", name, name)
		}
		return strings.Join(parts, ", ")
	case bindPositional:
		parts := make([]string, len(b.vals))
		for i := range b.vals {
			parts[i] = fmt.Sprintf("@p%d", i+1)
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// Args returns the driver-level argument slice for this binding.
func (b Binding) Args() []any { return b.vals }
