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

// Package request is the thin, typed RPC surface over the call table: a caller
// fills a Builder's fields, Send()s it (marshal, acquire a slot, write,
// retain the pending-call token), then Recv(timeout) to unmarshal the
// reply. The Builder owns the decoded reply until Detach hands it to the
// caller.
package request

import (
	"context"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sabouaram/connector/codec"
	liberr "github.com/sabouaram/connector/errors"
	"github.com/sabouaram/connector/synccall"
)

// Sender is the subset of client.Client a Builder needs: somewhere to
// write a framed message, a slot table to correlate the reply, and a way
// to tell whether sends are currently accepted.
type Sender interface {
	// Running reports whether the client is in a state that accepts sends.
	Running() bool
	// WriteMessage writes one framed user message within deadline.
	WriteMessage(msg codec.UserMessage, deadline time.Time) error
	// Table exposes the synchronous call table the Builder acquires a slot
	// from.
	Table() *synccall.Table
}

var (
	defaultTimeoutOnce sync.Once
	defaultTimeout     time.Duration
)

// DefaultTimeout returns 2 x sendTimeout, computed once on first use (per
// the default reply timeout is twice the configured send timeout) and
// cached for every subsequent Builder that doesn't pass its own timeout to
// Recv.
func DefaultTimeout(sendTimeout time.Duration) time.Duration {
	defaultTimeoutOnce.Do(func() {
		defaultTimeout = 2 * sendTimeout
	})
	return defaultTimeout
}

// Builder is a one-shot request/reply round trip over a Sender.
type Builder struct {
	sender Sender

	sent   bool
	slot   *synccall.Slot
	reply  cbor.RawMessage
	recvd  bool
	detach bool
}

// New creates a Builder bound to sender. Nothing is sent until Send.
func New(sender Sender) *Builder {
	return &Builder{sender: sender}
}

// Send marshals payload (any value the codec can encode, typically a
// []interface{class, ...fields}), acquires a slot, and writes the framed
// message with handle set to that slot's current handle. Send may be
// called at most once per Builder.
func (b *Builder) Send(payload interface{}, deadline time.Time) error {
	if b.sent {
		return liberr.New(liberr.CodeAlreadyPending, "request already sent")
	}
	if !b.sender.Running() {
		return liberr.New(liberr.CodeNotConnected, "send")
	}

	raw, err := cbor.Marshal(payload)
	if err != nil {
		return liberr.New(liberr.CodeProtocol, "marshal request").WithCause(err)
	}

	b.slot = b.sender.Table().Acquire()
	handle := b.slot.Handle()
	msg := codec.UserMessage{Handle: &handle, Payload: raw}

	if err := b.sender.WriteMessage(msg, deadline); err != nil {
		b.sender.Table().Release(b.slot)
		b.slot = nil
		return liberr.New(liberr.CodeNotConnected, "write request").WithCause(err)
	}

	b.sent = true
	return nil
}

// Recv blocks until the reply arrives, timeout elapses, or the client
// leaves RUNNING, then unmarshals the reply payload into out (a pointer,
// as cbor.Unmarshal expects). A zero timeout behaves as if timeout were
// never reached (context.Background semantics the caller is expected not
// to rely on without an outer deadline).
func (b *Builder) Recv(timeout time.Duration, out interface{}) error {
	if !b.sent {
		return liberr.New(liberr.CodeInternal, "recv before send")
	}
	if b.recvd {
		return liberr.New(liberr.CodeAlreadyPending, "reply already consumed")
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := b.slot.Wait(ctx)
	b.recvd = true
	if !b.detach {
		b.sender.Table().Release(b.slot)
	}

	if err != nil {
		switch err.(type) {
		case synccall.ErrTimeout:
			return liberr.New(liberr.CodeTimeout, "recv")
		case synccall.ErrClosed:
			return liberr.New(liberr.CodeNotConnected, "recv")
		default:
			return liberr.New(liberr.CodeInternal, "recv").WithCause(err)
		}
	}

	b.reply = raw
	if out != nil {
		if err := cbor.Unmarshal(raw, out); err != nil {
			return liberr.New(liberr.CodeProtocol, "unmarshal reply").WithCause(err)
		}
	}
	return nil
}

// Detach marks the Builder's slot as owned by the caller rather than
// released automatically on Recv, returning ownership of the underlying
// synccall.Slot so the caller can Release it itself once truly done with
// any late-arriving duplicate. Must be called before Recv.
func (b *Builder) Detach() *synccall.Slot {
	b.detach = true
	return b.slot
}

// Call is the one-shot convenience path: Send, then Recv
// with DefaultTimeout(sendTimeout) unless timeout is positive, retrying
// once via waitForStartup if the client was not yet RUNNING.
func Call(sender Sender, payload interface{}, out interface{}, timeout, sendTimeout time.Duration, waitForStartup func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultTimeout(sendTimeout)
	}

	b := New(sender)
	deadline := time.Now().Add(sendTimeout)
	err := b.Send(payload, deadline)
	if liberr.Is(err, liberr.CodeNotConnected) && waitForStartup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		werr := waitForStartup(ctx)
		cancel()
		if werr == nil {
			b = New(sender)
			err = b.Send(payload, time.Now().Add(sendTimeout))
		}
	}
	if err != nil {
		return err
	}

	return b.Recv(timeout, out)
}
