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

// Package supervisor decides whether the engine runtime is already
// reachable as a running system service or process, starts it when it is
// not, and reports liveness to the client state machine.
package supervisor

import (
	"context"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Config configures one Supervisor instance.
type Config struct {
	// ServiceName, when non-empty, is interrogated against the OS service
	// manager before falling back to process find-or-spawn.
	ServiceName string
	// ExecutablePath is the engine binary, used both to search for an
	// already-running instance and to spawn a fresh one.
	ExecutablePath string
	Args           []string

	StartTimeout       time.Duration
	ServicePollInterval time.Duration
	StopTimeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.StartTimeout <= 0 {
		c.StartTimeout = 10 * time.Second
	}
	if c.ServicePollInterval <= 0 {
		c.ServicePollInterval = 200 * time.Millisecond
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	return c
}

// Handle identifies the engine instance a Supervisor is watching, however
// it was obtained.
type Handle struct {
	PID      int32
	Attached bool // true if we found and attached to an existing process/service
}

// Supervisor owns exactly one engine instance's lifecycle: start it (or
// find it already running), answer liveness queries, and stop it.
type Supervisor struct {
	cfg Config

	mu      sync.Mutex
	cmd     *exec.Cmd
	handle  Handle
	started bool

	firstConn atomic.Bool
}

// New creates a Supervisor for cfg. Nothing is started until Start runs.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg.withDefaults()}
}

// Start brings the engine up: if a service name is
// configured and the OS exposes a service manager, drive that service
// through its states; otherwise look for an already-running process with
// the configured executable image and attach to it, or spawn it.
func (s *Supervisor) Start(ctx context.Context) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.ServiceName != "" {
		if mgr, err := openServiceManager(); err == nil {
			defer mgr.Close()
			h, serr := s.startViaServiceLocked(ctx, mgr)
			if serr == nil {
				return h, nil
			}
			if serr != ErrServiceUnknown {
				return Handle{}, serr
			}
			// Unknown service: fall through to find-or-spawn.
		}
	}

	return s.startProcessLocked(ctx)
}

func (s *Supervisor) startViaServiceLocked(ctx context.Context, mgr ServiceManager) (Handle, error) {
	st, err := mgr.Query(s.cfg.ServiceName)
	if err != nil {
		return Handle{}, err
	}

	switch st {
	case ServiceStateStopped:
		if err := mgr.Start(s.cfg.ServiceName); err != nil {
			return Handle{}, err
		}
	case ServiceStateRunning:
		// Already up; nothing to do.
	default:
		// Transient (starting/stopping): poll until stable or give up and
		// kill the image.
		deadline := time.Now().Add(s.cfg.StartTimeout)
		for {
			st, err = mgr.Query(s.cfg.ServiceName)
			if err != nil {
				return Handle{}, err
			}
			if st == ServiceStateRunning {
				break
			}
			if time.Now().After(deadline) {
				_ = mgr.Kill(s.cfg.ServiceName)
				return Handle{}, ErrServiceStuck
			}
			select {
			case <-ctx.Done():
				return Handle{}, ctx.Err()
			case <-time.After(s.cfg.ServicePollInterval):
			}
		}
	}

	pid, err := mgr.PID(s.cfg.ServiceName)
	if err != nil {
		return Handle{}, err
	}

	h := Handle{PID: pid, Attached: true}
	s.handle = h
	s.started = true
	s.firstConn.Store(true)
	return h, nil
}

func (s *Supervisor) startProcessLocked(ctx context.Context) (Handle, error) {
	if pid, ok := findRunningProcess(s.cfg.ExecutablePath); ok {
		h := Handle{PID: pid, Attached: true}
		s.handle = h
		s.started = true
		s.firstConn.Store(true)
		return h, nil
	}

	cmd := exec.CommandContext(ctx, s.cfg.ExecutablePath, s.cfg.Args...)
	if err := cmd.Start(); err != nil {
		return Handle{}, ErrCannotSpawn{Cause: err}
	}
	// Reap the child when it exits so its PID stops being reported alive.
	go func() { _ = cmd.Wait() }()

	s.cmd = cmd
	h := Handle{PID: int32(cmd.Process.Pid), Attached: false}
	s.handle = h
	s.started = true
	s.firstConn.Store(true)
	return h, nil
}

// IsAlive reports whether the watched PID still exists.
func (s *Supervisor) IsAlive() bool {
	s.mu.Lock()
	pid := s.handle.PID
	started := s.started
	s.mu.Unlock()
	if !started {
		return false
	}
	alive, err := process.PidExists(pid)
	return err == nil && alive
}

// FirstConnection returns true on the first call after a successful Start
// and false on every later call. Each successful Start, whether it spawned
// the engine or attached to a running instance, re-arms it.
func (s *Supervisor) FirstConnection() bool {
	return s.firstConn.CompareAndSwap(true, false)
}

// Stop asks the engine to exit: a spawned child gets an interrupt signal,
// an attached process is left to the caller's own session-level shutdown
// (poison message) since the supervisor did not create it. Either way
// Stop polls for exit up to StopTimeout, then force-terminates.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	pid := s.handle.PID
	attached := s.handle.Attached
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(interruptSignal())
	}

	deadline := time.Now().Add(s.cfg.StopTimeout)
	for time.Now().Before(deadline) {
		if alive, _ := process.PidExists(pid); !alive {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.ServicePollInterval):
		}
	}

	if cmd != nil && cmd.Process != nil {
		return cmd.Process.Kill()
	}
	if attached {
		return killPID(pid)
	}
	return nil
}

// ErrCannotSpawn wraps the underlying os/exec failure when starting the
// engine image directly.
type ErrCannotSpawn struct {
	Cause error
}

func (e ErrCannotSpawn) Error() string { return "supervisor: cannot spawn engine: " + e.Cause.Error() }
func (e ErrCannotSpawn) Unwrap() error { return e.Cause }

func findRunningProcess(executablePath string) (int32, bool) {
	procs, err := process.Processes()
	if err != nil {
		return 0, false
	}
	for _, p := range procs {
		exe, err := p.Exe()
		if err != nil {
			continue
		}
		if exe == executablePath {
			return p.Pid, true
		}
	}
	return 0, false
}
