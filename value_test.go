package microscheme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilIsDistinguishedConsPointer(t *testing.T) {
	assert.True(t, NIL.IsNil())
	assert.False(t, NIL.IsCons())
	assert.False(t, NIL.IsImmediate())
}

func TestBoolRoundtrip(t *testing.T) {
	assert.True(t, BoolOf(MakeBool(true)))
	assert.False(t, BoolOf(MakeBool(false)))
	assert.True(t, isBool(MakeBool(true)))
	assert.False(t, isBool(MakeChar('x')))
}

func TestTruthinessOnlyHashFIsFalse(t *testing.T) {
	assert.False(t, Truthy(MakeBool(false)))
	assert.True(t, Truthy(MakeBool(true)))
	assert.True(t, Truthy(MakeShort(0)))
	assert.True(t, Truthy(NIL))
}

func TestCharRoundtrip(t *testing.T) {
	v := MakeChar('\n')
	assert.True(t, isChar(v))
	assert.Equal(t, int16('\n'), CharOf(v))
}

func TestShortRoundtrip(t *testing.T) {
	for _, n := range []int16{0, 1, -1, 32767, -32768} {
		v := MakeShort(n)
		assert.True(t, isShort(v))
		assert.Equal(t, n, shortOf(v))
	}
}

func TestInlineBytesRoundtrip(t *testing.T) {
	b := []byte{1, 2, 3}
	p := packInlineBytes(b)
	assert.Equal(t, b, unpackInlineBytes(p, 3))
}

func TestConsAndStoragePointerIndexing(t *testing.T) {
	assert.Equal(t, uint32(7), consPtr(7).index())
	assert.Equal(t, tagCons, consPtr(7).tag())
	assert.Equal(t, uint32(9), storagePtr(9).index())
	assert.Equal(t, tagStorage, storagePtr(9).tag())
}
