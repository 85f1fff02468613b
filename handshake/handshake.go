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

// Package handshake establishes one connector session: it creates the two
// session endpoints, rendezvouses with the engine to hand over their names,
// and accepts the engine's connection on each, per the five-step sequence
// the client state machine drives once per connection attempt.
package handshake

import (
	"fmt"
	"time"

	"github.com/sabouaram/connector/codec"
	liberr "github.com/sabouaram/connector/errors"
	libprm "github.com/sabouaram/connector/file/perm"
	"github.com/sabouaram/connector/transport"
)

// Config carries every input the five handshake steps need.
type Config struct {
	// InputPipePrefix names the C->E listener this side creates.
	InputPipePrefix string
	// OutputPipePrefix names the E->C listener this side creates.
	OutputPipePrefix string
	// MaxCreateAttempts bounds retries on endpoint-name collision.
	MaxCreateAttempts int
	// ConnectTimeout bounds rendezvous connect, descriptor write, and accept.
	ConnectTimeout time.Duration
	// RendezvousName is the well-known endpoint the engine listens on.
	RendezvousName string
	// LanguageID and UserName populate the connect descriptor.
	LanguageID string
	UserName   string
	// Debug propagates to the engine and gates the client's per-frame
	// receive logging (handle and payload size).
	Debug bool
	// SocketPerm is applied to newly created Unix-domain listening sockets;
	// ignored on the named-pipe backend.
	SocketPerm libprm.Perm
}

// Session is the accepted pair of streams a successful handshake yields.
type Session struct {
	ToEngine   transport.Stream
	FromEngine transport.Stream
}

// Close tears down both session streams.
func (s *Session) Close() {
	if s.ToEngine != nil {
		_ = s.ToEngine.Close()
	}
	if s.FromEngine != nil {
		_ = s.FromEngine.Close()
	}
}

// Establish runs the five handshake steps and returns the accepted session,
// or a distinct, registered error identifying which step failed. No
// endpoint is left behind on any failure path.
func Establish(cfg Config) (*Session, error) {
	inName, inLn, err := createListener(cfg.InputPipePrefix, cfg.MaxCreateAttempts, cfg.SocketPerm)
	if err != nil {
		return nil, liberr.New(liberr.CodeCannotCreateEndpoint, "create C->E endpoint").WithCause(err)
	}
	outName, outLn, err := createListener(cfg.OutputPipePrefix, cfg.MaxCreateAttempts, cfg.SocketPerm)
	if err != nil {
		_ = inLn.Close()
		return nil, liberr.New(liberr.CodeCannotCreateEndpoint, "create E->C endpoint").WithCause(err)
	}

	deadline := time.Now().Add(cfg.ConnectTimeout)

	rendezvous, err := transport.Dial(cfg.RendezvousName, deadline)
	if err != nil {
		_ = inLn.Close()
		_ = outLn.Close()
		return nil, liberr.New(liberr.CodeCannotConnectRendezvous, "connect rendezvous").WithCause(err)
	}

	desc := codec.ConnectDescriptor{
		CharWidth:     codec.CharWidthNarrow,
		UserName:      cfg.UserName,
		CPPToJavaPipe: inName,
		JavaToCPPPipe: outName,
		LanguageID:    cfg.LanguageID,
		Debug:         cfg.Debug,
	}
	if err := writeDescriptor(rendezvous, desc, deadline); err != nil {
		_ = rendezvous.Close()
		_ = inLn.Close()
		_ = outLn.Close()
		return nil, liberr.New(liberr.CodeCannotWriteDescriptor, "write connect descriptor").WithCause(err)
	}
	_ = rendezvous.Close()

	toEngine, err := inLn.Accept(deadline)
	if err != nil {
		_ = inLn.Close()
		_ = outLn.Close()
		return nil, liberr.New(liberr.CodeCannotAccept, "accept on C->E endpoint").WithCause(err)
	}
	fromEngine, err := outLn.Accept(deadline)
	if err != nil {
		_ = toEngine.Close()
		_ = inLn.Close()
		_ = outLn.Close()
		return nil, liberr.New(liberr.CodeCannotAccept, "accept on E->C endpoint").WithCause(err)
	}

	_ = inLn.Close()
	_ = outLn.Close()

	return &Session{ToEngine: toEngine, FromEngine: fromEngine}, nil
}

func writeDescriptor(s transport.Stream, desc codec.ConnectDescriptor, deadline time.Time) error {
	w := &deadlineWriter{stream: s, deadline: deadline}
	return codec.NewEncoder(w).Encode(desc)
}

// deadlineWriter adapts transport.Stream's deadline-per-call Write to the
// io.Writer the codec package expects, pinning every call to one deadline.
type deadlineWriter struct {
	stream   transport.Stream
	deadline time.Time
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	return w.stream.Write(p, w.deadline)
}

func createListener(prefix string, maxAttempts int, perm libprm.Perm) (string, transport.ServerStream, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		name := endpointName(prefix)
		ln, err := transport.NewServer(name, perm)
		if err == nil {
			return name, ln, nil
		}
		lastErr = err
	}
	return "", nil, lastErr
}

// endpointName derives the 8-hex-digit suffix from the low 32 bits of the
// current wall-clock time in nanoseconds, with its bytes reversed. Peers may only rely on the
// "prefix + 8 hex digits" shape; the exact mangling is not externally
// visible.
func endpointName(prefix string) string {
	tick := uint32(time.Now().UnixNano())
	reversed := (tick&0xFF)<<24 | (tick&0xFF00)<<8 | (tick&0xFF0000)>>8 | (tick&0xFF000000)>>24
	return fmt.Sprintf("%s%08X", prefix, reversed)
}
