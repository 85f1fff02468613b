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

// Package synccall turns message-send-plus-awaited-reply into a blocking
// call with timeout and cancel: a table of reusable slots, each carrying a
// packed (id, sequence) handle on the wire so a late or duplicate reply for
// a previous use of the slot is detected and dropped.
package synccall

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

type state uint32

const (
	stateIdle state = iota
	stateMsgPre
	stateMsgOk
	stateWaiting
	stateDone
)

const stateBits = 3
const stateMask = 1<<stateBits - 1

func pack(st state, seq uint32) uint32 {
	return (seq << stateBits) | uint32(st)
}

func unpack(w uint32) (state, uint32) {
	return state(w & stateMask), w >> stateBits
}

// Slot is one reusable bookkeeping record for an in-flight synchronous
// call. Exactly one consumer holds it at a time; wait and release are
// mutually exclusive for that holder.
type Slot struct {
	id    uint32
	enc   Encoding
	word  atomic.Uint32
	inbox atomic.Pointer[[]byte]
	sem   *semaphore.Weighted
}

func newSlot(id uint32, enc Encoding) *Slot {
	s := &Slot{id: id, enc: enc, sem: semaphore.NewWeighted(1)}
	// Hold the only permit so a Wait parks until deliver or signalClosed
	// posts it.
	_ = s.sem.TryAcquire(1)
	return s
}

// ID returns the slot's stable table index.
func (s *Slot) ID() uint32 {
	return s.id
}

// Handle encodes this slot's id and current sequence per the table's
// handle encoding.
func (s *Slot) Handle() uint32 {
	_, seq := unpack(s.word.Load())
	return s.enc.Encode(s.id, seq)
}

// closedMarker is a unique, identity-comparable inbox value meaning "the
// table was closed while a consumer was parked here", distinguishing a
// synthetic wakeup from a real delivered message without adding a second
// field to the state word.
var closedMarker = new([]byte)

// deliver is the producer side: store msg if the slot is IDLE or WAITING,
// and signal the semaphore if a consumer is parked. A duplicate delivery
// (state already MSG_OK or DONE) drops its message. Only one producer per
// (slot, sequence) is expected; if another deliver is mid-transition
// (MSG_PRE) this spin-yields until it stabilizes.
func (s *Slot) deliver(msg []byte) {
	for {
		w := s.word.Load()
		st, seq := unpack(w)

		switch st {
		case stateIdle, stateWaiting:
			if !s.word.CompareAndSwap(w, pack(stateMsgPre, seq)) {
				continue
			}
			s.inbox.Store(&msg)
			wasWaiting := st == stateWaiting
			s.word.Store(pack(stateMsgOk, seq))
			if wasWaiting {
				s.sem.Release(1)
			}
			return
		case stateMsgPre:
			runtime.Gosched()
			continue
		case stateMsgOk, stateDone:
			// Duplicate delivery for a handle already satisfied. Drop it.
			return
		default:
			return
		}
	}
}

// ErrTimeout is returned by Wait when the deadline elapses with no message.
type ErrTimeout struct{}

func (ErrTimeout) Error() string { return "synccall: wait timed out" }

// ErrClosed is returned by Wait when the table signals all semaphores
// because the owning client left RUNNING.
type ErrClosed struct{}

func (ErrClosed) Error() string { return "synccall: table closed" }

// Wait parks on the slot until a message arrives, ctx is done, or the
// table is signaled closed. A timed-out wait whose CAS back to IDLE loses
// the race against a concurrent deliver still drains the semaphore once,
// so the next Wait is not pre-signaled by a stale post.
func (s *Slot) Wait(ctx context.Context) ([]byte, error) {
	w := s.word.Load()
	st, seq := unpack(w)
	if st == stateMsgOk {
		return s.take(seq)
	}
	if st == stateIdle && s.word.CompareAndSwap(w, pack(stateWaiting, seq)) {
		// transitioned to WAITING; fall through to the semaphore wait below.
	} else {
		// Lost the race to a concurrent deliver that moved us straight to
		// MSG_PRE/MSG_OK, or another consumer is already parked here.
		st, seq = unpack(s.word.Load())
		if st == stateMsgOk {
			return s.take(seq)
		}
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		// Timeout or cancellation. Try to reclaim IDLE; if that race is
		// lost a delivery landed concurrently and signaled us, so drain
		// the permit it posted rather than leave it pre-signaling the
		// next Wait.
		cur := s.word.Load()
		curSt, curSeq := unpack(cur)
		if curSt == stateWaiting && s.word.CompareAndSwap(cur, pack(stateIdle, curSeq)) {
			return nil, ErrTimeout{}
		}
		// Lost the race: a deliver already moved us to MSG_OK and posted
		// the semaphore. Drain that post and take the message.
		_ = s.sem.Acquire(context.Background(), 1)
		_, finalSeq := unpack(s.word.Load())
		return s.take(finalSeq)
	}

	_, finalSeq := unpack(s.word.Load())
	return s.take(finalSeq)
}

func (s *Slot) take(seq uint32) ([]byte, error) {
	msg := s.inbox.Load()
	s.word.Store(pack(stateDone, seq))
	if msg == closedMarker {
		return nil, ErrClosed{}
	}
	if msg == nil {
		return nil, nil
	}
	return *msg, nil
}

// release returns the slot to IDLE with an incremented sequence, dropping
// any pending message if the consumer never took one. It reports the new
// sequence so the table can log a reuse warning when appropriate.
func (s *Slot) release() uint32 {
	w := s.word.Load()
	_, seq := unpack(w)
	newSeq := seq + 1
	s.inbox.Store(nil)
	s.word.Store(pack(stateIdle, newSeq))
	return newSeq
}

// signalClosed wakes a parked Wait with the closed marker so it observes
// ErrClosed instead of blocking until its deadline.
func (s *Slot) signalClosed() {
	for {
		w := s.word.Load()
		st, seq := unpack(w)
		if st != stateWaiting {
			return
		}
		if !s.word.CompareAndSwap(w, pack(stateMsgOk, seq)) {
			continue
		}
		s.inbox.Store(closedMarker)
		s.sem.Release(1)
		return
	}
}

// clearSemaphore drains any stray permit left by a race between timeout and
// delivery, called on RUNNING entry so a freshly (re)acquired slot does not
// inherit a stale signal from a previous lifecycle.
func (s *Slot) clearSemaphore() {
	_ = s.sem.TryAcquire(1)
}
