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

// Package dispatch routes server-originated messages that carry no reply
// handle to registered per-class callbacks, on a single dedicated worker
// that delivers them in submission order.
package dispatch

import (
	"container/list"
	"sync"
	"time"
)

// Result tells the dispatcher what to do after a callback runs.
type Result int

const (
	// ResultDone means the operation is finished.
	ResultDone Result = iota
	// ResultReschedule asks the dispatcher to requeue this operation at the
	// head of the queue after a fixed delay.
	ResultReschedule
)

const (
	// DefaultRescheduleDelay is how long a rescheduled operation waits
	// before its next attempt.
	DefaultRescheduleDelay = 250 * time.Millisecond
	// DefaultRescheduleInfoPeriod is the wall-clock span of reschedules
	// after which a WARN is logged for one operation.
	DefaultRescheduleInfoPeriod = 10 * time.Second
	// DefaultRescheduleAbortPeriod is the wall-clock span of reschedules
	// after which the operation (and everything else non-vital in the
	// queue) is abandoned.
	DefaultRescheduleAbortPeriod = 60 * time.Second
	// DefaultInactivityTimeout is how long the worker idles before exiting;
	// the next submission respawns it.
	DefaultInactivityTimeout = 30 * time.Second
)

// Logger receives WARN-level messages about long-rescheduled operations.
// A nil Logger is a no-op.
type Logger func(format string, args ...interface{})

// Options configures a Dispatcher's timing thresholds. Zero values take
// the Default* constants.
type Options struct {
	RescheduleDelay       time.Duration
	RescheduleInfoPeriod  time.Duration
	RescheduleAbortPeriod time.Duration
	InactivityTimeout     time.Duration
	Logger                Logger
}

func (o Options) withDefaults() Options {
	if o.RescheduleDelay <= 0 {
		o.RescheduleDelay = DefaultRescheduleDelay
	}
	if o.RescheduleInfoPeriod <= 0 {
		o.RescheduleInfoPeriod = DefaultRescheduleInfoPeriod
	}
	if o.RescheduleAbortPeriod <= 0 {
		o.RescheduleAbortPeriod = DefaultRescheduleAbortPeriod
	}
	if o.InactivityTimeout <= 0 {
		o.InactivityTimeout = DefaultInactivityTimeout
	}
	return o
}

type operation struct {
	run      func() Result
	vital    bool
	requeues int
}

// Dispatcher owns a single-threaded FIFO task queue with a dedicated,
// lazily (re)spawned worker goroutine.
type Dispatcher struct {
	opt Options

	mu       sync.Mutex
	cond     *sync.Cond
	queue    *list.List
	running  bool
	poisoned bool
	stopped  chan struct{}
}

// New creates a Dispatcher. The worker is not started until the first
// operation is submitted.
func New(opt Options) *Dispatcher {
	d := &Dispatcher{opt: opt.withDefaults(), queue: list.New()}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Submit enqueues a non-vital operation at the tail of the queue,
// respawning the worker if it had idled out.
func (d *Dispatcher) Submit(run func() Result) {
	d.submit(run, false)
}

// SubmitVital enqueues an operation that keeps running even after the
// dispatcher has been poisoned — used for thread-disconnect notifications
// and other teardown work.
func (d *Dispatcher) SubmitVital(run func() Result) {
	d.submit(run, true)
}

func (d *Dispatcher) submit(run func() Result, vital bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.poisoned && !vital {
		return
	}
	d.queue.PushBack(&operation{run: run, vital: vital})
	if !d.running {
		d.running = true
		d.stopped = make(chan struct{})
		go d.loop(d.stopped)
	}
	d.cond.Signal()
}

func (d *Dispatcher) requeueFront(op *operation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.poisoned && !op.vital {
		return
	}
	d.queue.PushFront(op)
	if !d.running {
		d.running = true
		d.stopped = make(chan struct{})
		go d.loop(d.stopped)
	}
	d.cond.Signal()
}

// Poison shuts the worker down after draining only VITAL operations;
// non-vital operations still in the queue are discarded without running.
func (d *Dispatcher) Poison() {
	d.mu.Lock()
	d.poisoned = true
	d.dropNonVitalLocked()
	d.cond.Signal()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped != nil {
		<-stopped
	}
}

func (d *Dispatcher) dropNonVitalLocked() {
	var next *list.Element
	for e := d.queue.Front(); e != nil; e = next {
		next = e.Next()
		if !e.Value.(*operation).vital {
			d.queue.Remove(e)
		}
	}
}

// loop is the dispatcher's single worker goroutine: pop, run, maybe
// requeue with delay, maybe warn, maybe abandon on too many reschedules.
func (d *Dispatcher) loop(stopped chan struct{}) {
	defer close(stopped)

	for {
		d.mu.Lock()
		for d.queue.Len() == 0 && !d.poisoned {
			if !d.waitIdleLocked() {
				d.running = false
				d.mu.Unlock()
				return
			}
		}
		if d.queue.Len() == 0 {
			// Poisoned with nothing left to drain.
			d.running = false
			d.mu.Unlock()
			return
		}
		front := d.queue.Front()
		op := d.queue.Remove(front).(*operation)
		d.mu.Unlock()

		if op.run == nil {
			continue
		}
		result := op.run()
		if result != ResultReschedule {
			continue
		}

		op.requeues++
		delay := d.opt.RescheduleDelay
		infoAt := int(d.opt.RescheduleInfoPeriod / delay)
		abortAt := int(d.opt.RescheduleAbortPeriod / delay)

		if abortAt > 0 && op.requeues >= abortAt {
			if d.opt.Logger != nil {
				d.opt.Logger("dispatch: abandoning operation after %d reschedules", op.requeues)
			}
			d.mu.Lock()
			d.dropNonVitalLocked()
			d.mu.Unlock()
			continue
		}
		if infoAt > 0 && op.requeues >= infoAt && op.requeues%infoAt == 0 {
			if d.opt.Logger != nil {
				d.opt.Logger("dispatch: operation rescheduled %d times", op.requeues)
			}
		}

		time.Sleep(delay)
		d.requeueFront(op)
	}
}

// waitIdleLocked blocks on the condvar until work arrives, the dispatcher
// is poisoned, or InactivityTimeout elapses with nothing submitted; it
// must be called with mu held and returns false if the worker should exit.
func (d *Dispatcher) waitIdleLocked() bool {
	timer := time.AfterFunc(d.opt.InactivityTimeout, func() {
		d.mu.Lock()
		d.cond.Broadcast()
		d.mu.Unlock()
	})
	defer timer.Stop()

	deadline := time.Now().Add(d.opt.InactivityTimeout)
	for d.queue.Len() == 0 && !d.poisoned {
		if !time.Now().Before(deadline) {
			return false
		}
		d.cond.Wait()
	}
	return true
}
