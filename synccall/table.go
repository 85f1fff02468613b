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

package synccall

import (
	"sync"
)

// DefaultGrowBy is the number of slots added each time the table grows.
const DefaultGrowBy = 64

// WarnFunc receives a message when a slot's sequence crosses a reuse
// threshold, surfacing long-lived slot misuse. Table's zero value is a
// no-op logger.
type WarnFunc func(slotID uint32, sequence uint32)

// Table is the synchronous-call table: a growable array of slots plus a
// free list, handing out handles that are safe to correlate with replies
// arriving out of order or after reuse.
type Table struct {
	mu     sync.Mutex
	enc    Encoding
	growBy int
	slots  []*Slot
	free   []*Slot
	warn   WarnFunc
}

// NewTable creates a table using EncodingMedium and DefaultGrowBy.
func NewTable() *Table {
	return NewTableWithEncoding(EncodingMedium, DefaultGrowBy)
}

// NewTableWithEncoding creates a table using a specific handle encoding and
// growth increment.
func NewTableWithEncoding(enc Encoding, growBy int) *Table {
	if growBy <= 0 {
		growBy = DefaultGrowBy
	}
	t := &Table{enc: enc, growBy: growBy}
	t.growLocked()
	return t
}

// SetWarnFunc installs the callback invoked when a slot's sequence crosses
// its encoding's reuse-warning threshold.
func (t *Table) SetWarnFunc(fn WarnFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warn = fn
}

// growLocked appends growBy new slots and free-list entries. Must be
// called with mu held.
func (t *Table) growLocked() {
	base := uint32(len(t.slots))
	for i := 0; i < t.growBy; i++ {
		s := newSlot(base+uint32(i), t.enc)
		t.slots = append(t.slots, s)
		t.free = append(t.free, s)
	}
}

// Acquire takes a free slot from the free list, growing the table if none
// is available.
func (t *Table) Acquire() *Slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.free) == 0 {
		t.growLocked()
	}
	n := len(t.free) - 1
	s := t.free[n]
	t.free = t.free[:n]
	return s
}

// Release returns a slot to the free list, after giving the slot itself
// the chance to drop any unconsumed message and bump its sequence.
func (t *Table) Release(s *Slot) {
	newSeq := s.release()

	if every := t.enc.WarnEvery(); every > 0 && newSeq%every == 0 {
		t.mu.Lock()
		warn := t.warn
		t.mu.Unlock()
		if warn != nil {
			warn(s.id, newSeq)
		}
	}

	t.mu.Lock()
	t.free = append(t.free, s)
	t.mu.Unlock()
}

// Deliver decodes handle's (id, seq); if id is out of range or seq doesn't
// match the slot's current sequence, the message is dropped silently
// (SlotInvalid, logged upstream by the caller — not propagated). Otherwise
// it is posted to the slot.
func (t *Table) Deliver(handle uint32, msg []byte) {
	id, seq, ok := t.enc.Decode(handle)
	if !ok {
		return
	}

	t.mu.Lock()
	if int(id) >= len(t.slots) {
		t.mu.Unlock()
		return
	}
	s := t.slots[id]
	t.mu.Unlock()

	_, curSeq := unpack(s.word.Load())
	if curSeq%t.enc.SeqModulus() != seq {
		return
	}
	s.deliver(msg)
}

// ClearAllSemaphores drains any stray permit on every slot. Called on
// RUNNING entry so freshly reacquired slots do not inherit a signal left
// over from a previous lifecycle.
func (t *Table) ClearAllSemaphores() {
	t.mu.Lock()
	slots := append([]*Slot(nil), t.slots...)
	t.mu.Unlock()

	for _, s := range slots {
		s.clearSemaphore()
	}
}

// SignalAllSemaphores wakes every slot currently parked in Wait, called on
// RUNNING exit so blocked callers return promptly with a defined error
// instead of waiting out their full timeout.
func (t *Table) SignalAllSemaphores() {
	t.mu.Lock()
	slots := append([]*Slot(nil), t.slots...)
	t.mu.Unlock()

	for _, s := range slots {
		s.signalClosed()
	}
}
