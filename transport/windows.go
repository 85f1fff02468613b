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

//go:build windows

package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/Microsoft/go-winio"

	libprm "github.com/sabouaram/connector/file/perm"
)

type winStream struct {
	mu        sync.Mutex
	conn      net.Conn
	closed    bool
	lazyIdle  time.Duration
}

func dial(name string, deadline time.Time) (Stream, error) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if !deadline.IsZero() {
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	conn, err := winio.DialPipeContext(ctx, name)
	if err != nil {
		return nil, err
	}
	s := &winStream{conn: conn}
	if err := s.readHandshakeByte(deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *winStream) readHandshakeByte(deadline time.Time) error {
	var b [1]byte
	_, err := s.Read(b[:], deadline)
	return err
}

func (s *winStream) effectiveDeadline(caller time.Time) time.Time {
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

func (s *winStream) Read(buf []byte, deadline time.Time) (int, error) {
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

func (s *winStream) Write(buf []byte, deadline time.Time) (int, error) {
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

func (s *winStream) translate(err error, eff, caller time.Time) error {
	if err == nil {
		return nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
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

func (s *winStream) Flush() error {
	return nil
}

func (s *winStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func (s *winStream) LazyClose(idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lazyIdle = idle
}

func (s *winStream) CancelLazyClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lazyIdle = 0
}

// winServer re-creates its listener after every Accept: Windows named pipes
// are single-instance-per-handle, so the slot this listener occupied is gone
// the moment a client connects to it and a fresh one must take its place for
// the next caller, matching the multi-instance server-side pattern go-winio
// documents for net.Listener-style pipe servers.
type winServer struct {
	mu     sync.Mutex
	name   string
	cfg    *winio.PipeConfig
	ln     net.Listener
	closed bool
}

func newServer(name string, perm libprm.Perm) (ServerStream, error) {
	cfg := &winio.PipeConfig{
		SecurityDescriptor: "",
		MessageMode:        false,
		InputBufferSize:    int32(SendBufferSize),
		OutputBufferSize:   int32(SendBufferSize),
	}
	ln, err := winio.ListenPipe(name, cfg)
	if err != nil {
		return nil, err
	}
	return &winServer{name: name, cfg: cfg, ln: ln}, nil
}

func (s *winServer) Accept(deadline time.Time) (Stream, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	ln := s.ln
	s.mu.Unlock()

	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- result{conn, err}
	}()

	var timer *time.Timer
	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer = time.NewTimer(time.Until(deadline))
		timeout = timer.C
		defer timer.Stop()
	}

	select {
	case r := <-ch:
		if r.err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil, ErrClosed
			}
			return nil, r.err
		}
		next, err := winio.ListenPipe(s.name, s.cfg)
		if err == nil {
			s.mu.Lock()
			s.ln = next
			s.mu.Unlock()
		}
		if _, err := r.conn.Write([]byte{handshakeByte}); err != nil {
			_ = r.conn.Close()
			return nil, err
		}
		return &winStream{conn: r.conn}, nil
	case <-timeout:
		return nil, ErrTimeout
	}
}

func (s *winServer) Read([]byte, time.Time) (int, error)  { return 0, ErrClosed }
func (s *winServer) Write([]byte, time.Time) (int, error) { return 0, ErrClosed }
func (s *winServer) Flush() error                         { return nil }

func (s *winServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.ln.Close()
}

func (s *winServer) LazyClose(time.Duration) {}
func (s *winServer) CancelLazyClose()         {}
