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

//go:build linux || darwin

package transport

import (
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	libprm "github.com/sabouaram/connector/file/perm"
)

// A peer closing its read side between our write and its read would
// otherwise raise SIGPIPE against the whole process; writes must fail
// with EPIPE instead.
func init() {
	signal.Ignore(syscall.SIGPIPE)
}

// setSendBuffer sizes a newly created endpoint's OS send buffer to
// SendBufferSize. Best-effort: a socket that rejects the option still
// works, just with the kernel default.
func setSendBuffer(conn net.Conn) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, SendBufferSize)
	})
}

type unixStream struct {
	mu        sync.Mutex
	conn      net.Conn
	closed    bool
	lazyIdle  time.Duration
	lazyTimer *time.Timer
}

func dial(name string, deadline time.Time) (Stream, error) {
	d := net.Dialer{}
	if !deadline.IsZero() {
		d.Deadline = deadline
	}
	conn, err := d.Dial("unix", name)
	if err != nil {
		return nil, err
	}
	setSendBuffer(conn)
	s := &unixStream{conn: conn}
	if err := s.readHandshakeByte(deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *unixStream) readHandshakeByte(deadline time.Time) error {
	var b [1]byte
	_, err := s.Read(b[:], deadline)
	return err
}

func (s *unixStream) effectiveDeadline(caller time.Time) time.Time {
	s.mu.Lock()
	idle := s.lazyIdle
	s.mu.Unlock()
	if idle <= 0 {
		return caller
	}
	lazy := time.Now().Add(idle)
	if caller.IsZero() || lazy.Before(caller) {
		return lazy
	}
	return caller
}

func (s *unixStream) Read(buf []byte, deadline time.Time) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	eff := s.effectiveDeadline(deadline)
	if err := conn.SetReadDeadline(eff); err != nil {
		return 0, err
	}
	n, err := conn.Read(buf)
	return n, s.translate(err, eff, deadline)
}

func (s *unixStream) Write(buf []byte, deadline time.Time) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	eff := s.effectiveDeadline(deadline)
	if err := conn.SetWriteDeadline(eff); err != nil {
		return 0, err
	}
	n, err := conn.Write(buf)
	return n, s.translate(err, eff, deadline)
}

// translate maps a net.Conn timeout into ErrTimeout, closing the stream
// first if the timeout came from a lazy-close deadline shorter than the
// caller's own deadline.
func (s *unixStream) translate(err error, eff, caller time.Time) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if as, ok := err.(net.Error); ok {
		ne = as
	}
	if ne != nil && ne.Timeout() {
		if !eff.Equal(caller) {
			_ = s.Close()
		}
		return ErrTimeout
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return err
}

func (s *unixStream) Flush() error {
	return nil
}

func (s *unixStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.lazyTimer != nil {
		s.lazyTimer.Stop()
	}
	return s.conn.Close()
}

func (s *unixStream) LazyClose(idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lazyIdle = idle
}

func (s *unixStream) CancelLazyClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lazyIdle = 0
}

type unixServer struct {
	unixStream
	name string
	ln   *net.UnixListener
}

func newServer(name string, perm libprm.Perm) (ServerStream, error) {
	_ = os.Remove(name)

	addr, err := net.ResolveUnixAddr("unix", name)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	if perm != 0 {
		if err := os.Chmod(name, perm.FileMode()); err != nil {
			_ = ln.Close()
			return nil, err
		}
	}

	return &unixServer{name: name, ln: ln}, nil
}

func (s *unixServer) Accept(deadline time.Time) (Stream, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	ln := s.ln
	s.mu.Unlock()

	if !deadline.IsZero() {
		if err := ln.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}
	conn, err := ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrTimeout
		}
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		return nil, err
	}

	setSendBuffer(conn)
	if _, err := conn.Write([]byte{handshakeByte}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &unixStream{conn: conn}, nil
}

func (s *unixServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.ln.Close()
	_ = os.Remove(s.name)
	return err
}

func (s *unixServer) Read([]byte, time.Time) (int, error) {
	return 0, ErrClosed
}

func (s *unixServer) Write([]byte, time.Time) (int, error) {
	return 0, ErrClosed
}
