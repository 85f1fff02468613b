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

// Package connector is the public entry point of the native-side
// connector library: it composes transport, handshake, supervisor,
// client state machine, synchronous call table, async dispatcher, and
// request builder into one object an application embeds behind a small,
// typed request-builder API.
package connector

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sabouaram/connector/alert"
	"github.com/sabouaram/connector/client"
	"github.com/sabouaram/connector/console"
	"github.com/sabouaram/connector/dispatch"
	liberr "github.com/sabouaram/connector/errors"
	libprm "github.com/sabouaram/connector/file/perm"
	"github.com/sabouaram/connector/handshake"
	"github.com/sabouaram/connector/logger"
	"github.com/sabouaram/connector/request"
	"github.com/sabouaram/connector/supervisor"
	"github.com/sabouaram/connector/synccall"
)

// Config is the plain struct the core consumes, populated by the config
// package (or any other external collaborator). Every *Ms field is
// milliseconds, matching the external key names.
type Config struct {
	ConnectionPipe    string
	InputPipePrefix   string
	OutputPipePrefix  string
	MaxPipeAttempts   int
	ConnectTimeoutMs  int
	SendTimeoutMs     int
	HeartbeatTimeoutMs int

	ServiceName       string
	ServiceExecutable string
	ServiceArgs       []string
	ServicePollMs     int
	StartTimeoutMs    int
	StopTimeoutMs     int

	// LogConfiguration is an external path, opaque to the core; the host
	// interprets it.
	LogConfiguration string
	DisplayAlerts    bool

	LanguageID string
	UserName   string
	Debug      bool

	SocketPerm libprm.Perm

	Encoding synccall.Encoding
	GrowBy   int
	Dispatch dispatch.Options
}

func (c Config) userName() string {
	if c.UserName != "" {
		return c.UserName
	}
	return uuid.NewString()
}

func (c Config) toClientConfig(log *logger.Logger, onState client.StateChangeFunc) client.Config {
	return client.Config{
		Supervisor: supervisor.Config{
			ServiceName:         c.ServiceName,
			ExecutablePath:      c.ServiceExecutable,
			Args:                c.ServiceArgs,
			StartTimeout:        millis(c.StartTimeoutMs, 10*time.Second),
			ServicePollInterval: millis(c.ServicePollMs, 200*time.Millisecond),
			StopTimeout:         millis(c.StopTimeoutMs, 5*time.Second),
		},
		Handshake: handshake.Config{
			InputPipePrefix:   c.InputPipePrefix,
			OutputPipePrefix:  c.OutputPipePrefix,
			MaxCreateAttempts: c.MaxPipeAttempts,
			ConnectTimeout:    millis(c.ConnectTimeoutMs, 5*time.Second),
			RendezvousName:    c.ConnectionPipe,
			LanguageID:        c.LanguageID,
			UserName:          c.userName(),
			Debug:             c.Debug,
			SocketPerm:        c.SocketPerm,
		},
		Dispatch:         dispatchOptions(c.Dispatch, log),
		Encoding:         c.Encoding,
		GrowBy:           c.GrowBy,
		HeartbeatTimeout: millis(c.HeartbeatTimeoutMs, 5*time.Second),
		OnStateChange:    onState,
		Logger:           log.Printf,
	}
}

func dispatchOptions(opt dispatch.Options, log *logger.Logger) dispatch.Options {
	if opt.Logger == nil {
		opt.Logger = log.Printf
	}
	return opt
}

func millis(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// Connector is the application-facing handle onto one connection's worth
// of client state machine, call table, dispatcher, and alert routing.
type Connector struct {
	cfg    Config
	log    *logger.Logger
	client *client.Client
	alerts *alert.Router
}

// New builds a Connector. Nothing is started until Start is called.
func New(cfg Config, log *logger.Logger, sink alert.Sink) *Connector {
	if log == nil {
		log = logger.New(logger.InfoLevel)
	}
	if sink == nil {
		sink = console.New()
	}

	c := &Connector{cfg: cfg, log: log}
	c.alerts = alert.NewRouter(sink, func(good bool, message string) {
		if good {
			c.log.Info().Log(message)
		} else {
			c.log.Warn().Log(message)
		}
	})
	if cfg.DisplayAlerts {
		c.alerts.Enable()
	}

	c.client = client.New(cfg.toClientConfig(log, c.onStateChange))
	return c
}

func (c *Connector) onStateChange(old, new client.State) {
	c.log.Info().FieldAdd("from", old.String()).FieldAdd("to", new.String()).Log("client state transition")

	switch new {
	case client.StateRunning:
		c.alerts.Good("Connected to service")
	case client.StatePoisoned:
		c.alerts.Bad("Restarting service")
	case client.StateErrored:
		c.alerts.Bad("Unable to start service")
	}
}

// Start brings the connector up.
func (c *Connector) Start(ctx context.Context) error {
	return c.client.Start(ctx)
}

// Stop tears the connector down, idempotently.
func (c *Connector) Stop(ctx context.Context) error {
	return c.client.Stop(ctx)
}

// State reports the client's current lifecycle state.
func (c *Connector) State() client.State {
	return c.client.State()
}

// Alerts exposes the alert router so application code can Enable/Disable
// it independent of DisplayAlerts at construction time.
func (c *Connector) Alerts() *alert.Router {
	return c.alerts
}

// RegisterCallback registers cb for server-originated messages of the
// given class, returning the Entry so the caller can Unregister later.
func (c *Connector) RegisterCallback(class string, cb dispatch.Callback) *dispatch.Entry {
	return c.client.Registry().Register(class, cb)
}

// Unregister removes entry, delivering a synthetic thread-disconnected
// notification through onDisconnect if entry was ever dispatched to.
func (c *Connector) Unregister(entry *dispatch.Entry, onDisconnect func(*dispatch.Entry)) {
	c.client.Registry().Remove(c.client.Dispatcher(), entry, onDisconnect)
}

// Call is the typed request-builder convenience: marshal
// payload, send it, block for the reply (default timeout 2 x
// send-timeout unless timeout is positive), and decode it into out.
// NotConnected is retried exactly once via WaitForStartup.
func (c *Connector) Call(payload interface{}, out interface{}, timeout time.Duration) error {
	sendTimeout := millis(c.cfg.SendTimeoutMs, 5*time.Second)
	return request.Call(c.client, payload, out, timeout, sendTimeout, c.client.WaitForStartup)
}

// Translate renders an engine-side invocation error value into its
// host-facing text.
func Translate(v alert.Value) string {
	return alert.Translate(v)
}

// Code re-exports the connector's registered error-code type so callers
// can match on it without importing the errors package directly.
type Code = liberr.CodeError

const (
	CodeTransportClosed  = liberr.CodeTransportClosed
	CodeTimeout          = liberr.CodeTimeout
	CodeHandshakeFailed  = liberr.CodeHandshakeFailed
	CodeEngineUnavailable = liberr.CodeEngineUnavailable
	CodeNotConnected     = liberr.CodeNotConnected
	CodeAlreadyPending   = liberr.CodeAlreadyPending
	CodeSlotInvalid      = liberr.CodeSlotInvalid
	CodeProtocol         = liberr.CodeProtocol
)
