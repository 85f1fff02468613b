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

package client

import (
	"time"

	"github.com/sabouaram/connector/codec"
	"github.com/sabouaram/connector/transport"
)

// deadlineReader/deadlineWriter pin a transport.Stream's per-call deadline
// parameter to one fixed instant, adapting it to the io.Reader/io.Writer the
// codec package expects (the same technique handshake.deadlineWriter uses).
type deadlineReader struct {
	stream   transport.Stream
	deadline time.Time
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	return r.stream.Read(p, r.deadline)
}

type deadlineWriter struct {
	stream   transport.Stream
	deadline time.Time
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	return w.stream.Write(p, w.deadline)
}

func writeUserMessage(s transport.Stream, msg codec.UserMessage, deadline time.Time) error {
	return codec.NewEncoder(&deadlineWriter{stream: s, deadline: deadline}).Encode(msg)
}

// frameReader pairs one session's E->C stream with a persistent decoder.
// The codec reads ahead of frame boundaries, so back-to-back frames
// arriving in one OS read must be decoded by the same decoder instance;
// a fresh decoder per frame would drop the buffered remainder.
type frameReader struct {
	rd  *deadlineReader
	dec *codec.Decoder
}

func newFrameReader(s transport.Stream) *frameReader {
	rd := &deadlineReader{stream: s}
	return &frameReader{rd: rd, dec: codec.NewDecoder(rd)}
}

// read is only ever called from the single runner goroutine, so mutating
// the reader's deadline between decodes is race-free.
func (f *frameReader) read(deadline time.Time) (codec.UserMessage, error) {
	f.rd.deadline = deadline
	var msg codec.UserMessage
	err := f.dec.Decode(&msg)
	return msg, err
}
