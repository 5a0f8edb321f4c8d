// Package cmp provides equivalence of slices and maps with custom predicates.
package cmp

// SliceEqWith tells a and b have same length, and pred holds for each pair in the same position.
func SliceEqWith[T, U any](a []T, b []U, pred func(T, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if !pred(a[nth], b[nth]) {
			return false
		}
	}
	return true
}

// SliceContentEq tells a and b have the same elements, ignoring their order.
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, func(x, y T) bool { return x == y })
}

// SliceContentEqWith tells a and b have the equivalent elements, ignoring their order.
//
// Each element is matched at most once.
func SliceContentEqWith[S, T any](a []S, b []T, equiv func(S, T) bool) bool {
	if len(a) != len(b) {
		return false
	}

	used := make([]bool, len(b))
NEXT:
	for _, x := range a {
		for nth, y := range b {
			if used[nth] || !equiv(x, y) {
				continue
			}
			used[nth] = true
			continue NEXT
		}
		return false
	}
	return true
}

// MapEqWith tells a and b have the same keys, and pred holds for values of each key.
func MapEqWith[K comparable, V, U any](a map[K]V, b map[K]U, pred func(V, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !pred(va, vb) {
			return false
		}
	}
	return true
}
