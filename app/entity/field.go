package entity

// Field is an optional patch value. The zero Field leaves the column untouched.
type Field[T any] struct {
	value T
	set   bool
}

func Set[T any](v T) Field[T] {
	return Field[T]{value: v, set: true}
}

func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

func (f Field[T]) IsSet() bool {
	return f.set
}

func (f Field[T]) apply(dst *T) {
	if f.set {
		*dst = f.value
	}
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
