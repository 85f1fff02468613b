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

// Package codec treats the engine wire protocol as an opaque, self-describing
// message codec: it encodes and decodes the connect descriptor and the user
// message envelope described by the connector's data model, without knowing
// anything about individual application message shapes.
//
// Messages are encoded with CBOR (github.com/fxamacker/cbor/v2), adapting the
// framing technique used elsewhere in this codebase for multiplexed streams
// (length-free, self-delimiting CBOR items read one at a time off the
// stream) to the connector's envelope/payload split.
package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// CharWidth identifies the string width a connect descriptor was written
// with. This implementation only ever emits CharWidthNarrow; nothing in it
// reads a descriptor back or checks the width of one.
type CharWidth uint8

const (
	CharWidthNarrow CharWidth = 1
	CharWidthWide   CharWidth = 2
)

// ConnectDescriptor is the single message written to the rendezvous endpoint
// during session establishment.
type ConnectDescriptor struct {
	CharWidth     CharWidth `cbor:"charWidth"`
	UserName      string    `cbor:"userName"`
	CPPToJavaPipe string    `cbor:"CPPToJavaPipe"`
	JavaToCPPPipe string    `cbor:"JavaToCPPPipe"`
	LanguageID    string    `cbor:"languageID"`
	Debug         bool      `cbor:"debug"`
}

// UserMessage is the wire shape of every framed message that flows over a
// session once established. Handle is present for synchronous calls and
// their replies; it is absent for server-originated, class-routed messages.
type UserMessage struct {
	Handle  *uint32         `cbor:"handle,omitempty"`
	Payload cbor.RawMessage `cbor:"payload"`
}

// ClassName extracts the ordinal-zero string field from a user message's
// payload, the async dispatcher's routing key. Returns ok=false if the
// payload does not decode as an array whose first element is a string.
func ClassName(payload cbor.RawMessage) (name string, ok bool) {
	var probe []cbor.RawMessage
	if err := cbor.Unmarshal(payload, &probe); err != nil || len(probe) == 0 {
		return "", false
	}
	if err := cbor.Unmarshal(probe[0], &name); err != nil {
		return "", false
	}
	return name, true
}

// Encoder writes self-describing messages to a stream, one per Encode call.
type Encoder struct {
	enc *cbor.Encoder
}

// NewEncoder wraps w in a CBOR encoder using this connector's canonical mode.
func NewEncoder(w io.Writer) *Encoder {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		// CanonicalEncOptions() is a fixed, known-good option set; this
		// can only fail if the cbor library's defaults change shape.
		panic(err)
	}
	return &Encoder{enc: mode.NewEncoder(w)}
}

// Encode writes v as one CBOR data item.
func (e *Encoder) Encode(v interface{}) error {
	return e.enc.Encode(v)
}

// Decoder reads self-describing messages from a stream, one per Decode call.
type Decoder struct {
	dec *cbor.Decoder
}

// NewDecoder wraps r in a CBOR decoder that reads exactly one item per call,
// leaving any following bytes in r for the next call.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: cbor.NewDecoder(r)}
}

// Decode reads one CBOR data item from the underlying stream into v.
func (d *Decoder) Decode(v interface{}) error {
	return d.dec.Decode(v)
}
