package domain

// Outcome is the result of a pipeline step that either produced a value or failed.
// It replaces "return nothing on failure" with an explicit tag callers must inspect.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Succeeded wraps a value in a successful Outcome.
func Succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Failed wraps err in a failed Outcome.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err}
}

// Ok reports whether the step succeeded.
func (o Outcome[T]) Ok() bool {
	return o.Err == nil
}

// Unwrap returns the value and error as a conventional Go pair.
func (o Outcome[T]) Unwrap() (T, error) {
	return o.Value, o.Err
}
