package microscheme

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReaderTestHeap(t *testing.T) *Heap {
	t.Helper()
	h := NewHeap(NewConfig())
	h.internReserved()
	return h
}

func readOne(h *Heap, src string) (Value, ReadStatus, error) {
	rd := NewReader(bufio.NewReader(strings.NewReader(src)), h)
	return rd.Read()
}

func TestReadBooleans(t *testing.T) {
	h := newReaderTestHeap(t)
	v, status, err := readOne(h, "#T")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.True(t, BoolOf(v))

	v, _, err = readOne(h, "#f")
	require.NoError(t, err)
	assert.False(t, BoolOf(v))
}

func TestReadMalformedBooleanIsParseError(t *testing.T) {
	h := newReaderTestHeap(t)
	_, status, err := readOne(h, "#Tx")
	assert.Equal(t, StatusError, status)
	assert.Error(t, err)
}

func TestReadCharacters(t *testing.T) {
	h := newReaderTestHeap(t)
	v, status, err := readOne(h, `#\a`)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int16('a'), CharOf(v))

	v, _, err = readOne(h, `#\newline`)
	require.NoError(t, err)
	assert.Equal(t, int16('\n'), CharOf(v))

	v, _, err = readOne(h, `#\space`)
	require.NoError(t, err)
	assert.Equal(t, int16(' '), CharOf(v))
}

func TestReadSignedIntegers(t *testing.T) {
	h := newReaderTestHeap(t)
	v, status, err := readOne(h, "-42")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(-42), h.IntOf(v))

	v, _, err = readOne(h, "+7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), h.IntOf(v))

	v, _, err = readOne(h, "#d123")
	require.NoError(t, err)
	assert.Equal(t, int64(123), h.IntOf(v))
}

func TestReadStringWithEscapes(t *testing.T) {
	h := newReaderTestHeap(t)
	v, status, err := readOne(h, `"ab\ncd"`)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "ab\ncd", h.StringOf(v))
}

func TestReadStringUnterminatedIsEOF(t *testing.T) {
	h := newReaderTestHeap(t)
	_, status, err := readOne(h, `"unterminated`)
	assert.Equal(t, StatusTerm, status)
	assert.Error(t, err)
}

func TestReadSymbol(t *testing.T) {
	h := newReaderTestHeap(t)
	v, status, err := readOne(h, "my-symbol?")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "my-symbol?", h.SymbolOf(v))
}

func TestReadQuoteShorthand(t *testing.T) {
	h := newReaderTestHeap(t)
	v, status, err := readOne(h, "'x")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.True(t, v.IsCons())
	assert.Equal(t, "quote", h.SymbolOf(h.Car(v)))
	assert.Equal(t, "x", h.SymbolOf(h.Car(h.Cdr(v))))
	assert.Equal(t, NIL, h.Cdr(h.Cdr(v)))
}

func TestReadProperList(t *testing.T) {
	h := newReaderTestHeap(t)
	v, status, err := readOne(h, "(1 2 3)")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	n := 0
	for v != NIL {
		n++
		v = h.Cdr(v)
	}
	assert.Equal(t, 3, n)
}

func TestReadDottedPair(t *testing.T) {
	h := newReaderTestHeap(t)
	v, status, err := readOne(h, "(1 . 2)")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(1), h.IntOf(h.Car(v)))
	assert.Equal(t, int64(2), h.IntOf(h.Cdr(v)))
}

func TestReadSkipsCommentsToEndOfLine(t *testing.T) {
	h := newReaderTestHeap(t)
	v, status, err := readOne(h, "; a leading comment\n42")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(42), h.IntOf(v))
}

func TestReadEmptyInputIsTerm(t *testing.T) {
	h := newReaderTestHeap(t)
	_, status, err := readOne(h, "")
	assert.Equal(t, StatusTerm, status)
	assert.NoError(t, err)
}

func TestReadMultipleTopLevelForms(t *testing.T) {
	h := newReaderTestHeap(t)
	rd := NewReader(bufio.NewReader(strings.NewReader("1 2 3")), h)

	var got []int64
	for {
		v, status, err := rd.Read()
		require.NoError(t, err)
		if status == StatusTerm {
			break
		}
		got = append(got, h.IntOf(v))
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}

// TestReadResynchronizesAfterParseErrorToBlankLine confirms that once
// a malformed form triggers StatusError, the reader discards input up
// to the next blank line and the following Read() picks back up
// cleanly.
func TestReadResynchronizesAfterParseErrorToBlankLine(t *testing.T) {
	h := newReaderTestHeap(t)
	rd := NewReader(bufio.NewReader(strings.NewReader("#Tx bad\n\n(+ 1 2)")), h)

	_, status, err := rd.Read()
	require.Error(t, err)
	assert.Equal(t, StatusError, status)

	v, status, err := rd.Read()
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.True(t, v.IsCons())
	assert.Equal(t, "+", h.SymbolOf(h.Car(v)))
}
