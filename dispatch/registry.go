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

package dispatch

import (
	"sync"
)

// Callback is invoked with a server-originated message's payload. It
// returns ResultReschedule to ask the dispatcher to retry it later.
type Callback func(payload []byte) Result

// Entry is one (class-name, callback) registration. It keeps no reference
// count: an in-flight dispatch holds its own pointer to the entry, so the
// entry stays usable after Remove. A used flag tells Remove whether a
// thread-disconnect notification is owed before the entry is released.
type Entry struct {
	class    string
	callback Callback
	mu       sync.Mutex
	used     bool
	removed  bool
}

// Class returns the registered class name this entry matches.
func (e *Entry) Class() string {
	return e.class
}

// Registry holds every live (class, callback) registration in
// registration order, the order Lookup matches in.
type Registry struct {
	mu      sync.Mutex
	entries []*Entry
}

// NewRegistry creates an empty callback registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a new entry for class, returning it so the caller can
// later Remove it.
func (r *Registry) Register(class string, cb Callback) *Entry {
	e := &Entry{class: class, callback: cb}
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	return e
}

// Lookup returns the first (in registration order) live entry whose class
// equals name, or nil if none matches.
func (r *Registry) Lookup(name string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if !e.removed && e.class == name {
			return e
		}
	}
	return nil
}

// All returns a snapshot of every live entry, for broadcasting a
// thread-disconnect notification to all registrations at once.
func (r *Registry) All() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.removed {
			out = append(out, e)
		}
	}
	return out
}

// markUsed records that entry has been handed a dispatch at least once,
// so a later Remove knows a thread-disconnect notification is owed.
func (e *Entry) markUsed() {
	e.mu.Lock()
	e.used = true
	e.mu.Unlock()
}

func (e *Entry) wasUsed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.used
}

// Remove unregisters entry. If it was never dispatched to, it is released
// synchronously. If it was, d submits a vital, synthetic
// thread-disconnected notification and the entry is released once that
// notification has run.
func (r *Registry) Remove(d *Dispatcher, entry *Entry, onDisconnect func(*Entry)) {
	r.mu.Lock()
	entry.removed = true
	for i, e := range r.entries {
		if e == entry {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if !entry.wasUsed() {
		return
	}

	d.SubmitVital(func() Result {
		if onDisconnect != nil {
			onDisconnect(entry)
		}
		return ResultDone
	})
}

// Dispatch looks up the callback registered for class and submits a
// non-vital operation running it with payload, marking the entry used
// first so a concurrent Remove knows to notify rather than release
// synchronously.
func (r *Registry) Dispatch(d *Dispatcher, class string, payload []byte) bool {
	entry := r.Lookup(class)
	if entry == nil {
		return false
	}
	entry.markUsed()
	d.Submit(func() Result {
		return entry.callback(payload)
	})
	return true
}
