// Package enums holds the closed string sets stored in the database and
// exchanged over the API.
package enums

import (
	"fmt"
	"slices"
)

func oneOf[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

func parseOneOf[T ~string](kind, raw string, set []T) (T, error) {
	if v := T(raw); oneOf(v, set) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
