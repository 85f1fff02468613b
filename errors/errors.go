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

// Package errors implements the connector's error taxonomy as a registry of
// CodeError values, the way the host reports errors by code rather than by
// matching on error strings.
package errors

import (
	"fmt"

	libatm "github.com/sabouaram/connector/atomic"
)

// CodeError is a registered error code. Zero is never a valid registered code.
type CodeError uint16

const (
	CodeUnknown CodeError = iota
	CodeTransportClosed
	CodeTimeout
	CodeHandshakeFailed
	CodeEngineUnavailable
	CodeNotConnected
	CodeAlreadyPending
	CodeSlotInvalid
	CodeProtocol
	CodeOutOfMemory
	CodeInternal
	CodeCannotCreateEndpoint
	CodeCannotConnectRendezvous
	CodeCannotWriteDescriptor
	CodeCannotAccept
	CodePoisoned
)

// registry maps each registered code to its message function. Lookups run
// on every error render and host applications may register codes at any
// time, so the registry lives in a lock-free typed map.
var registry = libatm.NewMapTyped[CodeError, func(CodeError) string]()

func init() {
	for code, fct := range map[CodeError]func(CodeError) string{
		CodeTransportClosed:  func(CodeError) string { return "transport closed" },
		CodeTimeout:          func(CodeError) string { return "operation timed out" },
		CodeHandshakeFailed:  func(CodeError) string { return "session handshake failed" },
		CodeEngineUnavailable: func(CodeError) string { return "engine unavailable" },
		CodeNotConnected:     func(CodeError) string { return "client not connected" },
		CodeAlreadyPending:   func(CodeError) string { return "call already pending" },
		CodeSlotInvalid:      func(CodeError) string { return "stale or unknown call slot" },
		CodeProtocol:         func(CodeError) string { return "malformed message" },
		CodeOutOfMemory:      func(CodeError) string { return "allocation failed" },
		CodeInternal:         func(CodeError) string { return "internal invariant violated" },
		CodeCannotCreateEndpoint:    func(CodeError) string { return "cannot create session endpoint" },
		CodeCannotConnectRendezvous: func(CodeError) string { return "cannot connect to rendezvous endpoint" },
		CodeCannotWriteDescriptor:   func(CodeError) string { return "cannot write connect descriptor" },
		CodeCannotAccept:            func(CodeError) string { return "cannot accept engine connection" },
		CodePoisoned:                func(CodeError) string { return "client poisoned, restart required" },
	} {
		registry.Store(code, fct)
	}
}

// RegisterIdFctMessage registers (or replaces) the message function for a code.
// Host applications use this to attach their own localized or detailed message
// to a code without the connector needing to know about it.
func RegisterIdFctMessage(code CodeError, fct func(CodeError) string) {
	registry.Store(code, fct)
}

// ExistInMapMessage reports whether a message function is registered for code.
func ExistInMapMessage(code CodeError) bool {
	_, ok := registry.Load(code)
	return ok
}

func message(code CodeError) string {
	fct, ok := registry.Load(code)
	if !ok {
		return fmt.Sprintf("error %d", code)
	}
	return fct(code)
}

// Error is a CodeError paired with contextual detail and an optional cause.
type Error struct {
	code   CodeError
	detail string
	cause  error
}

// New builds an Error for code with the given detail text.
func New(code CodeError, detail string) *Error {
	return &Error{code: code, detail: detail}
}

// WithCause attaches an underlying cause, preserved for Unwrap.
func (e *Error) WithCause(cause error) *Error {
	return &Error{code: e.code, detail: e.detail, cause: cause}
}

// Code returns the registered CodeError this Error carries.
func (e *Error) Code() CodeError {
	return e.code
}

func (e *Error) Error() string {
	msg := message(e.code)
	if e.detail != "" {
		msg = msg + ": " + e.detail
	}
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code, so callers can
// use errors.Is(err, errors.New(errors.CodeTimeout, "")) as a code check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.code == e.code
}

// NewErrorRecovered wraps a recovered panic value as an Internal Error,
// capturing the original panic text as detail.
func NewErrorRecovered(message string, recovered interface{}) *Error {
	return New(CodeInternal, fmt.Sprintf("%s: %v", message, recovered))
}

// Is reports whether err is an *Error registered with code, walking
// Unwrap the way errors.Is does. Callers use this instead of a type
// assertion to check "is this a NotConnected error" without caring
// whether it came wrapped in another cause.
func Is(err error, code CodeError) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.code == code {
				return true
			}
			err = e.cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
