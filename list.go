package eventfsm

import (
	"reflect"
	"slices"
	"unsafe"
)

// callbackList is an ordered, insertion-order container.
// A limit of zero means unbounded; otherwise add fails once the list holds limit items.
type callbackList[F any] struct {
	items []F
	limit int
}

func newCallbackList[F any](limit int) callbackList[F] {
	l := callbackList[F]{limit: limit}
	if limit > 0 {
		l.items = make([]F, 0, limit)
	}
	return l
}

// add appends item, keeping duplicates. Returns false when the list is full.
func (l *callbackList[F]) add(item F) bool {
	if l.limit > 0 && len(l.items) >= l.limit {
		return false
	}
	l.items = append(l.items, item)
	return true
}

// removeFirst removes the first item satisfying match
func (l *callbackList[F]) removeFirst(match func(F) bool) bool {
	i := slices.IndexFunc(l.items, match)
	if i < 0 {
		return false
	}
	l.items = slices.Delete(l.items, i, i+1)
	return true
}

func (l *callbackList[F]) len() int {
	return len(l.items)
}

// snapshot returns a copy safe to iterate while the list is mutated
func (l *callbackList[F]) snapshot() []F {
	return slices.Clone(l.items)
}

// funcKey identifies a function value by the closure object it points to,
// so two closures built from one literal have different keys while copies
// of the same value share one. Zero for nil and non-func values.
func funcKey[F any](fn F) uintptr {
	if v := reflect.ValueOf(fn); v.Kind() != reflect.Func || v.IsNil() {
		return 0
	}
	return uintptr(*(*unsafe.Pointer)(unsafe.Pointer(&fn)))
}

func sameFunc[F any](target F) func(F) bool {
	key := funcKey(target)
	return func(candidate F) bool {
		return key != 0 && funcKey(candidate) == key
	}
}
