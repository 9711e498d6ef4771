// Package keyderive builds the stable, deterministic textual cache key
// used by the memoize decorator: a space-separated join of an optional
// prefix, the function's package path, its name, its positional arguments,
// and its keyword arguments sorted lexicographically by key.
package keyderive

import (
	"fmt"
	"sort"
	"strings"
)

// Derive returns the cache key for a call to a function identified by
// pkgPath and funcName, with the given positional args and kwargs.
//
// Go has no runtime introspection of a function's first declared parameter
// name, so there is no automatic "self"/"cls" detection: callers that want
// a receiver excluded from the key must omit it from args themselves
// before calling Derive (mirroring the include_self knob described in the
// original design notes for statically typed ports).
func Derive(prefix, pkgPath, funcName string, args []any, kwargs map[string]any) string {
	parts := make([]string, 0, 3+len(args)+len(kwargs))
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, pkgPath, funcName)

	for _, a := range args {
		parts = append(parts, text(a))
	}

	if len(kwargs) > 0 {
		keys := make([]string, 0, len(kwargs))
		for k := range kwargs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", text(k), text(kwargs[k])))
		}
	}

	return strings.Join(parts, " ")
}

// text renders v as its natural textual form: strings pass through
// unchanged, fmt.Stringer values use String(), everything else uses the
// default %v formatting.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
