/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package atomic provides small type-safe wrappers over sync/atomic.Value
// and sync.Map for callers holding heterogeneous values behind a single
// lock-free cell or map: the iowrapper package swaps its I/O functions
// through Value[T], and the errors package keeps its code-to-message
// registry in a MapTyped.
package atomic

import (
	"sync/atomic"
)

type Value[T any] interface {
	// SetDefaultLoad sets the default load value for this Value.
	// The default value is returned when Load is called and the value is not present in the underlying store.
	//
	// Note: SetDefaultLoad should be called before first use of Load.
	SetDefaultLoad(def T)
	// SetDefaultStore sets the default store value for this Value.
	// The default value is used when Store is called with a value of zero.
	// Note: SetDefaultStore should be called before first use of Store.
	SetDefaultStore(def T)

	// Load returns the value stored in the underlying store for this Value.
	// If no value is present, the default load value (set by SetDefaultLoad) is returned.
	// Note: Load will return the default load value until the first successful call to Store.
	Load() (val T)
	// Store sets the value held in the underlying store for this Value.
	// Note: Store will use the default store value (set by SetDefaultStore) if the value passed is zero.
	Store(val T)
	// Swap atomically swaps the value of the underlying store for this Value with the given new value.
	// It returns the previous value stored in the underlying store.
	// If the previous value is zero, the default load value (set by SetDefaultLoad) is returned.
	Swap(new T) (old T)
	// CompareAndSwap atomically compares the value stored in the underlying store for this Value
	// with the given old value. If they are equal, it atomically swaps the value with the given new value.
	// It returns true if the swap was successful, or false otherwise.
	//
	// Note: If the old or new value is zero, the default store value (set by SetDefaultStore) takes its place.
	CompareAndSwap(old, new T) (swapped bool)
}

// MapTyped is a typed projection of sync.Map: keys and values keep their
// static types on every operation, and entries whose stored value no longer
// casts to V are dropped during Range rather than surfaced untyped.
type MapTyped[K comparable, V any] interface {
	// Load returns the value stored for key, with ok false when absent.
	Load(key K) (value V, ok bool)
	// Store sets the value for key, overwriting any existing entry.
	Store(key K, value V)
	// LoadOrStore returns the existing value for key if present, storing
	// and returning value otherwise. loaded is true if the value was
	// already present.
	LoadOrStore(key K, value V) (actual V, loaded bool)
	// LoadAndDelete deletes the entry for key, returning the previous
	// value and whether it was present.
	LoadAndDelete(key K) (value V, loaded bool)
	// Delete removes the entry for key.
	Delete(key K)
	// Swap stores value for key and returns the previous value, with
	// loaded true if an entry was present.
	Swap(key K, value V) (previous V, loaded bool)
	// CompareAndSwap swaps the entry for key to new only if it currently
	// equals old. V must be comparable.
	CompareAndSwap(key K, old, new V) bool
	// CompareAndDelete deletes the entry for key only if it currently
	// equals old. V must be comparable.
	CompareAndDelete(key K, old V) (deleted bool)
	// Range calls f for each entry in unspecified order until f returns
	// false.
	Range(f func(key K, value V) bool)
}

// NewValue returns a new Value with the given type. The default load value is the zero value
// of the given type, and the default store value is the zero value of the given type.
//
// Example:
//
//	v := NewValue[int]()
//	// v is a Value with default load value 0 and default store value 0.
func NewValue[T any]() Value[T] {
	var (
		tmp1 T
		tmp2 T
	)

	return NewValueDefault[T](tmp1, tmp2)
}

// NewValueDefault returns a new Value with the given type, default load value, and default store value.
// The default load value is the value passed to the load parameter, and the default store value is the value
// passed to the store parameter.
//
// Example:
//
//	v := NewValueDefault[int](0, 42)
//	// v is a Value with default load value 0 and default store value 42.
func NewValueDefault[T any](load, store T) Value[T] {
	o := &val[T]{
		av: new(atomic.Value),
		dl: new(atomic.Value),
		ds: new(atomic.Value),
	}

	o.SetDefaultLoad(load)
	o.SetDefaultStore(store)

	return o
}

// NewMapTyped returns a new MapTyped with the given key and value types,
// backed by a sync.Map.
func NewMapTyped[K comparable, V any]() MapTyped[K, V] {
	return &mt[K, V]{}
}
