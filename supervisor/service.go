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

package supervisor

import "errors"

// ServiceState is the OS service manager's reported state for one service.
type ServiceState int

const (
	ServiceStateUnknown ServiceState = iota
	ServiceStateStopped
	ServiceStateRunning
	ServiceStateTransient
)

// ServiceManager abstracts the platform service control manager (Windows
// SCM; no manager on platforms where openServiceManager always fails).
type ServiceManager interface {
	Query(name string) (ServiceState, error)
	Start(name string) error
	Kill(name string) error
	PID(name string) (int32, error)
	Close() error
}

// ErrServiceUnknown means the OS service manager has no service by that
// name; the caller should fall back to process find-or-spawn.
var ErrServiceUnknown = errors.New("supervisor: service unknown to service manager")

// ErrServiceStuck means the service sat in a transient state past
// start-timeout and was killed.
var ErrServiceStuck = errors.New("supervisor: service stuck in transient state")

// ErrNoServiceManager means this platform exposes no OS service manager
// API; Start always falls back to process find-or-spawn.
var ErrNoServiceManager = errors.New("supervisor: no OS service manager on this platform")
