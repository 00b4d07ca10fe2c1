package analytics

// Result carries a value together with the error that forced it to the
// zero state, if any. Value is always safe to render.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the value came from a successful fetch or write.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func fallback[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Err: err}
}
