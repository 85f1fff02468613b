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

// Package alert translates engine-side invocation
// errors into host-facing text, and routing Good/Bad user feedback messages
// through a host-provided sink that can be disabled (log-only) or enabled.
package alert

import (
	"fmt"
	"sync"
)

// Kind distinguishes the three shapes of engine-side invocation error.
type Kind uint8

const (
	// KindOther covers anything not specifically a parameter- or
	// result-conversion failure; rendered as "Error <code>".
	KindOther Kind = iota
	KindParameterConversion
	KindResultConversion
)

// Value is the encoded error value arriving from an engine-side
// invocation failure: an integer code, an optional parameter index, and an
// optional detail string.
type Value struct {
	Kind   Kind
	Code   int
	Index  *int
	Detail string
}

// Translate renders v into its host-facing text.
func Translate(v Value) string {
	switch v.Kind {
	case KindParameterConversion:
		idx := 0
		if v.Index != nil {
			idx = *v.Index
		}
		return fmt.Sprintf("Invalid parameter %d - %s", idx, v.Detail)
	case KindResultConversion:
		return fmt.Sprintf("Invalid function result - %s", v.Detail)
	default:
		return fmt.Sprintf("Error %d", v.Code)
	}
}

// Sink is the host-provided surface for Good/Bad user feedback. It may be
// Disabled, in which case messages are only written to the log; it must be
// Enabled before messages are actually delivered to the user.
type Sink interface {
	Enable()
	Disable()
	Good(message string)
	Bad(message string)
}

// Router serializes every alert operation through one internal mutex and falls
// back to log-only behavior when disabled or when no Sink is installed.
type Router struct {
	mu      sync.Mutex
	sink    Sink
	enabled bool
	logger  func(good bool, message string)
}

// NewRouter creates a Router wrapping sink. logger, if non-nil, is called
// for every Good/Bad message regardless of enabled state, so messages are
// always at least logged.
func NewRouter(sink Sink, logger func(good bool, message string)) *Router {
	return &Router{sink: sink, logger: logger}
}

// Enable arms delivery to the underlying Sink.
func (r *Router) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = true
	if r.sink != nil {
		r.sink.Enable()
	}
}

// Disable reverts to log-only behavior.
func (r *Router) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
	if r.sink != nil {
		r.sink.Disable()
	}
}

// Good routes a positive user-facing message.
func (r *Router) Good(message string) {
	r.emit(true, message)
}

// Bad routes a negative user-facing message.
func (r *Router) Bad(message string) {
	r.emit(false, message)
}

func (r *Router) emit(good bool, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.logger != nil {
		r.logger(good, message)
	}
	if !r.enabled || r.sink == nil {
		return
	}
	if good {
		r.sink.Good(message)
	} else {
		r.sink.Bad(message)
	}
}
