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

package synccall

// Encoding packs a slot id and a sequence number into a 32-bit call handle.
// The top 2 bits select which of three encodings produced the handle, so a
// table's Decode rejects handles from any other encoding outright rather
// than misreading their bits.
//
// Three encodings cover different table sizes, trading id range for
// sequence entropy: small tables get more sequence bits, so a handle from a
// long-lived slot takes longer to wrap around and be mistaken for a later
// use of the same slot.
type Encoding struct {
	name    string
	tag     uint32
	idBits  uint
	seqBits uint
}

const tagBits = 2
const tagShift = 32 - tagBits

var (
	// EncodingNarrow favors sequence entropy over table size: 1024 slots,
	// ~1M releases before a handle can wrap.
	EncodingNarrow = Encoding{name: "narrow", tag: 0b01, idBits: 10, seqBits: 20}
	// EncodingMedium is the default: 65536 slots, 16384 releases per slot
	// before wraparound, a realistic balance for most deployments.
	EncodingMedium = Encoding{name: "medium", tag: 0b10, idBits: 16, seqBits: 14}
	// EncodingWide favors table size: 512K slots, 2048 releases per slot.
	EncodingWide = Encoding{name: "wide", tag: 0b11, idBits: 19, seqBits: 11}
)

// MaxID returns the largest slot id this encoding can represent.
func (e Encoding) MaxID() uint32 {
	return 1<<e.idBits - 1
}

// SeqModulus returns the modulus sequence numbers wrap at in a handle.
func (e Encoding) SeqModulus() uint32 {
	return 1 << e.seqBits
}

// WarnEvery returns the release count between "slot has been reused many
// times" warnings, scaled to this encoding's sequence range as modulus/256
// (4096 for Narrow, 64 for Medium, 8 for Wide), or 1 when the sequence has
// 8 bits or fewer.
func (e Encoding) WarnEvery() uint32 {
	if e.seqBits <= 8 {
		return 1
	}
	return 1 << (e.seqBits - 8)
}

// Encode packs id and seq (seq taken modulo SeqModulus) into a handle.
func (e Encoding) Encode(id, seq uint32) uint32 {
	idMask := uint32(1)<<e.idBits - 1
	seqMask := uint32(1)<<e.seqBits - 1
	return (e.tag << tagShift) | ((id & idMask) << e.seqBits) | (seq & seqMask)
}

// Decode unpacks a handle produced by this encoding. ok is false if the
// handle's tag bits belong to a different encoding.
func (e Encoding) Decode(handle uint32) (id, seq uint32, ok bool) {
	if handle>>tagShift != e.tag {
		return 0, 0, false
	}
	seqMask := uint32(1)<<e.seqBits - 1
	idMask := uint32(1)<<e.idBits - 1
	seq = handle & seqMask
	id = (handle >> e.seqBits) & idMask
	return id, seq, true
}
