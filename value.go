package microscheme

// Value is a single tagged machine word. The low two bits are a
// special-tag distinguishing what the rest of the word means,
// following §3.1:
//
//	00  tagCons      real index into the cons arena
//	10  tagStorage   real index into the storage arena
//	11  tagImmediate the rest of the word encodes the value inline
//	01  tagReserved  unused pointer tag (kept for symmetry with the
//	                 cell-level hint encoding of §3.2)
//
// Per the tagged-union rendition recommended for strict target
// languages (a Go slice has no notion of "address"), Cons and
// Storage carry arena indices rather than raw addresses; GC mark
// bits and the environment/procedure hint are not packed into the
// word at all -- they live as fields on the cons cell record they
// describe (see ConsCell in heap.go). That sidesteps the bit-budget
// conflict the original C encoding has between pointer tag and hint
// (both claimed bits 1-2 of the same word) without changing any
// observable semantics.
type Value uint64

const (
	tagCons      Value = 0
	tagReserved  Value = 1
	tagStorage   Value = 2
	tagImmediate Value = 3
	tagMask      Value = 3
)

// NIL is the distinguished non-immediate zero pointer: tag tagCons,
// index 0. Index 0 of the cons arena is never handed out by NewCons,
// so no live cell is ever mistaken for NIL.
const NIL Value = Value(tagCons)

func (v Value) tag() Value { return v & tagMask }

func (v Value) IsNil() bool  { return v == NIL }
func (v Value) IsCons() bool { return v.tag() == tagCons && v != NIL }
func (v Value) IsStorage() bool {
	return v.tag() == tagStorage
}
func (v Value) IsImmediate() bool { return v.tag() == tagImmediate }

func consPtr(idx uint32) Value    { return Value(idx)<<2 | tagCons }
func storagePtr(idx uint32) Value { return Value(idx)<<2 | tagStorage }

func (v Value) index() uint32 { return uint32(v >> 2) }

// immSubtag identifies what an immediate's payload means.
type immSubtag uint8

const (
	subBool immSubtag = iota
	subChar
	subStr0
	subStr1
	subStr2
	subStr3
	subSym1
	subSym2
	subSym3
	subShort
)

const subtagMask = 0x1F

func makeImmediate(sub immSubtag, payload uint64) Value {
	return Value(payload)<<7 | Value(sub&subtagMask)<<2 | tagImmediate
}

func (v Value) subtag() immSubtag { return immSubtag((v >> 2) & subtagMask) }
func (v Value) payload() uint64   { return uint64(v >> 7) }

// MakeBool constructs the immediate boolean value. Always immediate.
func MakeBool(b bool) Value {
	var p uint64
	if b {
		p = 1
	}
	return makeImmediate(subBool, p)
}

// BoolOf reports the boolean carried by an immediate boolean value.
func BoolOf(v Value) bool {
	return v.subtag() == subBool && v.payload() != 0
}

func isBool(v Value) bool {
	return v.IsImmediate() && v.subtag() == subBool
}

// Truthy implements §4.6's truthiness rule: only #F is false.
func Truthy(v Value) bool {
	return !(isBool(v) && !BoolOf(v))
}

// MakeChar constructs the immediate character value from a signed
// 16-bit code. Always immediate.
func MakeChar(code int16) Value {
	return makeImmediate(subChar, uint64(uint16(code)))
}

func isChar(v Value) bool { return v.IsImmediate() && v.subtag() == subChar }

// CharOf returns the signed 16-bit code of a character value.
func CharOf(v Value) int16 {
	return int16(uint16(v.payload()))
}

// MakeShort constructs an immediate signed 16-bit integer.
func MakeShort(n int16) Value {
	return makeImmediate(subShort, uint64(uint16(n)))
}

func isShort(v Value) bool { return v.IsImmediate() && v.subtag() == subShort }

func shortOf(v Value) int16 { return int16(uint16(v.payload())) }

// packInlineBytes packs up to 3 bytes little-endian into a payload.
func packInlineBytes(b []byte) uint64 {
	var p uint64
	for i, c := range b {
		p |= uint64(c) << (8 * i)
	}
	return p
}

func unpackInlineBytes(p uint64, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(p >> (8 * i))
	}
	return b
}

var strSubtags = [4]immSubtag{subStr0, subStr1, subStr2, subStr3}
var symSubtags = [4]immSubtag{0, subSym1, subSym2, subSym3} // index 0 unused, symbols need length >= 1

func isInlineString(v Value) bool {
	if !v.IsImmediate() {
		return false
	}
	switch v.subtag() {
	case subStr0, subStr1, subStr2, subStr3:
		return true
	}
	return false
}

func isInlineSymbol(v Value) bool {
	if !v.IsImmediate() {
		return false
	}
	switch v.subtag() {
	case subSym1, subSym2, subSym3:
		return true
	}
	return false
}

func inlineLen(sub immSubtag) int {
	switch sub {
	case subStr0:
		return 0
	case subStr1, subSym1:
		return 1
	case subStr2, subSym2:
		return 2
	case subStr3, subSym3:
		return 3
	}
	return 0
}
