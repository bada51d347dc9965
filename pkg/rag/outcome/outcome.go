// Package outcome models best-effort steps whose failure degrades to a fallback value.
package outcome

type Result[T any] struct {
	Value    T
	Degraded bool
	Cause    error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fallback carries the substitute value and the reason the primary path was abandoned.
// cause may be nil when the primary path produced an unusable result rather than an error.
func Fallback[T any](v T, cause error) Result[T] {
	return Result[T]{Value: v, Degraded: true, Cause: cause}
}
