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

// Package transport exposes bidirectional, local, connection-oriented byte
// streams: a named pipe on systems that provide one, a
// Unix-domain stream socket elsewhere. Both backends are hidden behind the
// same Stream/ServerStream contract so the rest of the connector never
// branches on OS.
package transport

import (
	"errors"
	"time"

	libprm "github.com/sabouaram/connector/file/perm"
)

// ErrTimeout is returned by Read/Write/Accept when the deadline expires
// without completing. The stream remains usable afterwards.
var ErrTimeout = errors.New("transport: i/o timeout")

// ErrClosed is returned by any operation on a stream that Close (or an
// expired lazy-close) has already torn down.
var ErrClosed = errors.New("transport: stream closed")

// SendBufferSize is the OS send buffer newly created endpoints are sized
// to. 4 KiB is sufficient for the frame sizes this protocol uses in tests;
// it is a package constant, and no constructor takes a different size.
const SendBufferSize = 4 * 1024

// handshakeByte defends against the kernel accepting a connection that the
// server-side code then discards: every backend's server writes it right
// after accept, and its client must read it before the stream is handed to
// the caller.
const handshakeByte = 0x01

// Stream is one end of a local byte-stream connection.
type Stream interface {
	// Read blocks until data is available, the deadline expires, or the
	// stream is closed.
	Read(buf []byte, deadline time.Time) (n int, err error)

	// Write blocks until buf is fully accepted by the OS, the deadline
	// expires, or the stream is closed.
	Write(buf []byte, deadline time.Time) (n int, err error)

	// Flush pushes any buffered output. Streams in this package are
	// unbuffered, so Flush never blocks and never fails.
	Flush() error

	// Close is synchronous, idempotent, and unblocks any reader or writer
	// parked on this stream with ErrClosed.
	Close() error

	// LazyClose arms a soft deadline: any read/write whose caller-supplied
	// deadline is further out than idle uses idle instead, and closes the
	// stream if that shorter deadline expires.
	LazyClose(idle time.Duration)

	// CancelLazyClose disarms a deadline previously armed by LazyClose.
	CancelLazyClose()
}

// ServerStream additionally accepts incoming connections.
type ServerStream interface {
	Stream

	// Accept blocks for one incoming connection. On the named-pipe backend
	// a successful Accept immediately creates a replacement listener under
	// the same name so it stays available; on the Unix-domain-socket
	// backend the same listener continues to accept further connections.
	Accept(deadline time.Time) (Stream, error)
}

// NewServer creates a listening endpoint named name with permission perm.
// perm is only meaningful on the Unix-domain-socket backend, where the
// listening socket is a filesystem path.
func NewServer(name string, perm libprm.Perm) (ServerStream, error) {
	return newServer(name, perm)
}

// Dial connects to an existing endpoint named name, blocking until deadline.
func Dial(name string, deadline time.Time) (Stream, error) {
	return dial(name, deadline)
}
