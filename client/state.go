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

package client

import "sync/atomic"

// State is one node of the client lifecycle FSM.
type State uint32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StatePoisoned
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StatePoisoned:
		return "POISONED"
	case StateErrored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// StateChangeFunc is notified of every transition the FSM makes.
type StateChangeFunc func(old, new State)

// fsm holds the current state and the single callback interested parties
// register, guarded by a CAS word like every other small state machine in
// this codebase (see synccall.Slot).
type fsm struct {
	word atomic.Uint32
	cb   atomic.Pointer[StateChangeFunc]
}

func newFSM(initial State) *fsm {
	f := &fsm{}
	f.word.Store(uint32(initial))
	return f
}

func (f *fsm) current() State {
	return State(f.word.Load())
}

func (f *fsm) setCallback(cb StateChangeFunc) {
	if cb == nil {
		f.cb.Store(nil)
		return
	}
	f.cb.Store(&cb)
}

// transition unconditionally moves to next and notifies the callback. Used
// for moves that don't need to race against a concurrent transition (the
// runner goroutine is the only writer outside of Start/Stop, which serialize
// via their own dedicated mutexes).
func (f *fsm) transition(next State) {
	old := State(f.word.Swap(uint32(next)))
	if old == next {
		return
	}
	if cb := f.cb.Load(); cb != nil {
		(*cb)(old, next)
	}
}

// compareAndTransition moves from expect to next only if the FSM is still
// at expect, reporting whether it did.
func (f *fsm) compareAndTransition(expect, next State) bool {
	if !f.word.CompareAndSwap(uint32(expect), uint32(next)) {
		return false
	}
	if cb := f.cb.Load(); cb != nil {
		(*cb)(expect, next)
	}
	return true
}
