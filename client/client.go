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

// Package client drives one connector's entire lifecycle: it owns a
// supervisor, a handshake session, the synchronous call table, and the
// async dispatcher, and runs the single dispatch loop that reads framed
// messages off the engine and routes them.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sabouaram/connector/codec"
	"github.com/sabouaram/connector/dispatch"
	liberr "github.com/sabouaram/connector/errors"
	"github.com/sabouaram/connector/handshake"
	"github.com/sabouaram/connector/supervisor"
	"github.com/sabouaram/connector/synccall"
	"github.com/sabouaram/connector/transport"
)

const heartbeatClass = "Heartbeat"
const poisonClass = "Poison"

// Config wires together every subsystem a Client owns.
type Config struct {
	Supervisor supervisor.Config
	Handshake  handshake.Config
	Dispatch   dispatch.Options

	Encoding synccall.Encoding
	GrowBy   int

	// HeartbeatTimeout bounds how long the dispatch loop waits for a framed
	// message before considering a heartbeat due.
	HeartbeatTimeout time.Duration

	OnStateChange StateChangeFunc
	Logger        func(format string, args ...interface{})
}

func (c Config) withDefaults() Config {
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 5 * time.Second
	}
	if c.Encoding.SeqModulus() == 0 {
		c.Encoding = synccall.EncodingMedium
	}
	if c.GrowBy <= 0 {
		c.GrowBy = synccall.DefaultGrowBy
	}
	return c
}

// Client owns the whole per-connection lifecycle: supervisor, session,
// call table, dispatcher, and the FSM tying them together.
type Client struct {
	cfg Config
	fsm *fsm

	supervisor *supervisor.Supervisor
	table      *synccall.Table
	dispatcher *dispatch.Dispatcher
	registry   *dispatch.Registry

	sessionMu sync.Mutex
	session   *handshake.Session
	frames    *frameReader

	stopMu  sync.Mutex
	stopped bool

	runnerWG sync.WaitGroup

	retriedThisLifecycle bool
}

// New builds a Client. Nothing runs until Start is called.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	f := newFSM(StateStopped)
	f.setCallback(cfg.OnStateChange)

	table := synccall.NewTableWithEncoding(cfg.Encoding, cfg.GrowBy)
	if cfg.Logger != nil {
		logFn := cfg.Logger
		table.SetWarnFunc(func(slotID, sequence uint32) {
			logFn("synccall: slot %d sequence %d crossed reuse-warning threshold", slotID, sequence)
		})
	}

	return &Client{
		cfg:        cfg,
		fsm:        f,
		supervisor: supervisor.New(cfg.Supervisor),
		table:      table,
		dispatcher: dispatch.New(cfg.Dispatch),
		registry:   dispatch.NewRegistry(),
	}
}

// State returns the client's current FSM state.
func (c *Client) State() State {
	return c.fsm.current()
}

// Registry exposes the async callback registry for class-routed messages.
func (c *Client) Registry() *dispatch.Registry {
	return c.registry
}

// Dispatcher exposes the async dispatcher, needed by Registry.Remove to
// submit a vital thread-disconnect notification.
func (c *Client) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// Table exposes the synchronous call table for the request package.
func (c *Client) Table() *synccall.Table {
	return c.table
}

// Running reports whether the client is currently RUNNING, the only state
// in which the request package's Builder is allowed to send. Implements
// request.Sender.
func (c *Client) Running() bool {
	return c.fsm.current() == StateRunning
}

// WriteMessage writes one framed user message to the engine within
// deadline. Implements request.Sender.
func (c *Client) WriteMessage(msg codec.UserMessage, deadline time.Time) error {
	sess := c.Session()
	if sess == nil {
		return liberr.New(liberr.CodeNotConnected, "write message")
	}
	return writeUserMessage(sess.ToEngine, msg, deadline)
}

// WaitForStartup blocks until the client reaches RUNNING or ctx is done,
// for the request package's Call convenience, which waits once and
// retries a send that found the client not yet connected.
func (c *Client) WaitForStartup(ctx context.Context) error {
	if c.Running() {
		return nil
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return liberr.New(liberr.CodeNotConnected, "wait for startup").WithCause(ctx.Err())
		case <-ticker.C:
			if c.Running() {
				return nil
			}
		}
	}
}

// Session returns the current handshake session, or nil if not RUNNING.
func (c *Client) Session() *handshake.Session {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.session
}

// Start brings the client from STOPPED/ERRORED to RUNNING: one retry
// (tearing down partial state first) if the first attempt fails, ERRORED
// if the retry also fails.
func (c *Client) Start(ctx context.Context) error {
	from := c.fsm.current()
	if from != StateStopped && from != StateErrored && from != StatePoisoned {
		return liberr.New(liberr.CodeInternal, "start called from "+from.String())
	}
	if !c.fsm.compareAndTransition(from, StateStarting) {
		return liberr.New(liberr.CodeInternal, "concurrent start")
	}

	if err := c.attemptStart(ctx); err != nil {
		if c.retriedThisLifecycle {
			c.fsm.transition(StateErrored)
			return err
		}
		c.retriedThisLifecycle = true
		if err2 := c.attemptStart(ctx); err2 != nil {
			c.fsm.transition(StateErrored)
			return err2
		}
	}

	c.retriedThisLifecycle = false
	c.table.ClearAllSemaphores()
	c.fsm.transition(StateRunning)

	c.runnerWG.Add(1)
	go c.runLoop()
	return nil
}

func (c *Client) attemptStart(ctx context.Context) error {
	if _, err := c.supervisor.Start(ctx); err != nil {
		return liberr.New(liberr.CodeEngineUnavailable, "start engine").WithCause(err)
	}

	sess, err := handshake.Establish(c.cfg.Handshake)
	if err != nil {
		return liberr.New(liberr.CodeHandshakeFailed, "establish session").WithCause(err)
	}

	c.sessionMu.Lock()
	c.session = sess
	c.frames = newFrameReader(sess.FromEngine)
	c.sessionMu.Unlock()

	deadline := time.Now().Add(c.cfg.HeartbeatTimeout)
	if err := writeUserMessage(sess.ToEngine, heartbeatMessage(), deadline); err != nil {
		sess.Close()
		c.sessionMu.Lock()
		c.session = nil
		c.frames = nil
		c.sessionMu.Unlock()
		return liberr.New(liberr.CodeHandshakeFailed, "initial heartbeat").WithCause(err)
	}

	return nil
}

func heartbeatMessage() codec.UserMessage {
	return classMessage(heartbeatClass)
}

func poisonMessage() codec.UserMessage {
	return classMessage(poisonClass)
}

func classMessage(class string) codec.UserMessage {
	payload, _ := cbor.Marshal([]interface{}{class})
	return codec.UserMessage{Payload: payload}
}

// runLoop is the single dispatch-loop goroutine driving RUNNING: read
// one framed message with a bounded deadline; send a
// heartbeat on silence; leave RUNNING with restart intent after two
// unanswered heartbeats or any unrecoverable I/O error.
func (c *Client) runLoop() {
	defer c.runnerWG.Done()

	var missedHeartbeats int
	var lastHeartbeatSent time.Time

	for c.fsm.current() == StateRunning {
		c.sessionMu.Lock()
		sess, frames := c.session, c.frames
		c.sessionMu.Unlock()
		if sess == nil || frames == nil {
			return
		}

		readDeadline := time.Now().Add(c.cfg.HeartbeatTimeout)
		msg, err := frames.read(readDeadline)
		if err != nil {
			if isTimeout(err) {
				if time.Since(lastHeartbeatSent) >= c.cfg.HeartbeatTimeout {
					sendDeadline := time.Now().Add(c.cfg.HeartbeatTimeout)
					if werr := writeUserMessage(sess.ToEngine, heartbeatMessage(), sendDeadline); werr != nil {
						c.poisonAndRetry()
						return
					}
					lastHeartbeatSent = time.Now()
					missedHeartbeats++
					if missedHeartbeats > 2 {
						c.poisonAndRetry()
						return
					}
				}
				continue
			}
			c.poisonAndRetry()
			return
		}

		missedHeartbeats = 0
		if c.cfg.Handshake.Debug && c.cfg.Logger != nil {
			c.cfg.Logger("frame recv: handle=%v payload=%d bytes", msg.Handle, len(msg.Payload))
		}
		c.route(msg)
	}
}

func (c *Client) route(msg codec.UserMessage) {
	if msg.Handle != nil {
		c.table.Deliver(*msg.Handle, msg.Payload)
		return
	}
	if class, ok := codec.ClassName(msg.Payload); ok {
		c.registry.Dispatch(c.dispatcher, class, msg.Payload)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, transport.ErrTimeout)
}

// poisonAndRetry leaves RUNNING with restart intent: POISONED, then
// attempts one retry start; success returns to RUNNING, failure to
// ERRORED.
func (c *Client) poisonAndRetry() {
	if !c.fsm.compareAndTransition(StateRunning, StatePoisoned) {
		return
	}
	c.table.SignalAllSemaphores()
	c.closeSession()

	if err := c.attemptStart(context.Background()); err != nil {
		c.fsm.transition(StateErrored)
		return
	}
	c.table.ClearAllSemaphores()
	c.fsm.compareAndTransition(StatePoisoned, StateRunning)

	c.runnerWG.Add(1)
	go c.runLoop()
}

func (c *Client) closeSession() {
	c.sessionMu.Lock()
	sess := c.session
	c.session = nil
	c.frames = nil
	c.sessionMu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

// Stop is idempotent and safe to call concurrently: exactly one caller
// drives the STOPPING transition, signals every parked slot, sends a
// best-effort poison message, closes the session, and joins the runner.
func (c *Client) Stop(ctx context.Context) error {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true

	c.fsm.transition(StateStopping)
	c.table.SignalAllSemaphores()

	if sess := c.Session(); sess != nil {
		deadline := time.Now().Add(c.cfg.HeartbeatTimeout)
		_ = writeUserMessage(sess.ToEngine, poisonMessage(), deadline)
	}

	c.closeSession()
	c.runnerWG.Wait()
	c.dispatcher.Poison()

	if err := c.supervisor.Stop(ctx); err != nil {
		c.fsm.transition(StateStopped)
		return liberr.New(liberr.CodeInternal, "stop engine").WithCause(err)
	}

	c.fsm.transition(StateStopped)
	return nil
}
