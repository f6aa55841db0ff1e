package form

import "reflect"

// valueEqual reports whether two field values are the same without deep
// comparison. Comparable values (numbers, strings, bools, comparable
// structs) use ==; maps, slices and funcs compare by reference identity.
// Values of different dynamic types are never equal.
func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}

	switch reflect.ValueOf(a).Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return false
}

// shallowEqual reports whether two maps hold the same keys with pairwise
// equal values under eq. It never recurses into the values.
func shallowEqual[V any](a, b map[string]V, eq func(V, V) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !eq(av, bv) {
			return false
		}
	}
	return true
}
