package mock

// CallLog records arguments of calls to a mocked method.
type CallLog[T any] []T

func (l CallLog[T]) Times() uint {
	return uint(len(l))
}

// Last returns the most recent call. It panics when no calls are recorded.
func (l CallLog[T]) Last() T {
	return l[len(l)-1]
}
