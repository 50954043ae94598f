package microscheme

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadStatus reports how a call to Read concluded (§6, grounded on
// PARSER.C's read_call()/parse_datum()).
type ReadStatus int

const (
	// StatusOK means a complete datum was read.
	StatusOK ReadStatus = iota
	// StatusStop means a complete datum was read but EOF followed
	// immediately; the value is still meaningful.
	StatusStop
	// StatusTerm means nothing useful was read: EOF before any datum,
	// or EOF during error resynchronization. The caller should stop
	// reading.
	StatusTerm
	// StatusError means a parse error occurred; the reader has
	// already resynchronized to the next blank line.
	StatusError
)

// Reader parses the surface syntax of §6 into heap values: booleans
// `#T`/`#F`, characters `#\x`/`#\newline`/`#\space`, decimal integers
// with optional `#d` and sign, `"..."` strings with `\n`/`\\`
// escapes, symbols, `'x` read as `(quote x)`, and `;` comments to
// end-of-line. Lookahead is an explicit rune pushback stack rather
// than the original's fixed-size ring buffer -- a growable slice has
// no fixed capacity to overflow, and it only ever holds the one or two
// runes put back between reads.
type Reader struct {
	r    io.RuneScanner
	h    *Heap
	push []rune
}

// NewReader wraps src for reading S-expressions. src's own
// UnreadRune is never called -- lookahead is tracked with an
// explicit pushback stack instead, since the parser sometimes needs
// to put back more than one rune between two consumed runes.
func NewReader(src io.RuneScanner, h *Heap) *Reader {
	return &Reader{r: src, h: h}
}

const (
	maxSymbolLen = 40
	maxStringLen = 256
	maxIdentLen  = 10
)

func (rd *Reader) nextRune() (rune, error) {
	if n := len(rd.push); n > 0 {
		ch := rd.push[n-1]
		rd.push = rd.push[:n-1]
		return ch, nil
	}
	ch, _, err := rd.r.ReadRune()
	return ch, err
}

// unreadRune pushes ch back so the next nextRune() returns it again.
func (rd *Reader) unreadRune(ch rune) {
	rd.push = append(rd.push, ch)
}

func isAlpha(ch rune) bool { return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }
func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }
func isWhitespace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
func isSpecialChar(ch rune) bool {
	switch ch {
	case '*', '/', '<', '=', '>', '!', '?', ':', '$', '%', '_', '&', '^', '~', '-', '+', '.':
		return true
	}
	return false
}
func isTerminal(ch rune) bool {
	return isWhitespace(ch) || ch == '(' || ch == ')' || ch == ';'
}

// skipWhitespace consumes whitespace and `;`-comments. Returns an
// error (typically io.EOF) if the stream ends before any non-blank
// character.
func (rd *Reader) skipWhitespace() error {
	for {
		ch, err := rd.nextRune()
		if err != nil {
			return err
		}
		if isWhitespace(ch) {
			continue
		}
		if ch == ';' {
			for {
				ch, err = rd.nextRune()
				if err != nil {
					return err
				}
				if ch == '\n' {
					break
				}
			}
			continue
		}
		rd.unreadRune(ch)
		return nil
	}
}

// Read parses and returns exactly one top-level datum (§6).
func (rd *Reader) Read() (Value, ReadStatus, error) {
	if err := rd.skipWhitespace(); err != nil {
		return NIL, StatusTerm, nil
	}
	v, status, perr := rd.parseDatum()
	if status == StatusError {
		rd.synchronize()
		return NIL, StatusError, perr
	}
	return v, status, perr
}

// synchronize flushes input up to the next blank line ("\n\n"),
// mirroring PARSER.C's synchronize().
func (rd *Reader) synchronize() {
	for {
		ch, err := rd.nextRune()
		if err != nil {
			return
		}
		if ch != '\n' {
			continue
		}
		ch, err = rd.nextRune()
		if err != nil {
			return
		}
		if ch == '\n' {
			return
		}
	}
}

func (rd *Reader) parseDatum() (Value, ReadStatus, error) {
	ch, err := rd.nextRune()
	if err != nil {
		return NIL, StatusTerm, fmt.Errorf("ParseError: unexpected end of input")
	}

	switch {
	case ch == '(':
		return rd.parseList()
	case ch == '#':
		return rd.parseHash()
	case ch == '\'':
		return rd.parseQuoted()
	case ch == '"':
		rd.unreadRune(ch)
		return rd.parseString()
	default:
		return rd.parseIntegerOrSymbol(ch)
	}
}

func (rd *Reader) parseQuoted() (Value, ReadStatus, error) {
	if err := rd.skipWhitespace(); err != nil {
		return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading quoted expression")
	}
	v, status, err := rd.parseDatum()
	if status != StatusOK && status != StatusStop {
		return NIL, status, err
	}
	h := rd.h
	h.PushValue(v)
	rest := h.Cons(v, NIL)
	h.PopValue()
	h.PushValue(rest)
	quote := h.Cons(h.keywords.quoteSym, rest)
	h.PopValue()
	return quote, status, nil
}

func (rd *Reader) parseHash() (Value, ReadStatus, error) {
	ch, err := rd.nextRune()
	if err != nil {
		return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading hash-expression")
	}
	switch {
	case ch == 'T' || ch == 't' || ch == 'F' || ch == 'f':
		next, nerr := rd.nextRune()
		if nerr == nil && !isTerminal(next) {
			return NIL, StatusError, fmt.Errorf("ParseError: malformed boolean literal")
		}
		if nerr == nil {
			rd.unreadRune(next)
		}
		return MakeBool(ch == 'T' || ch == 't'), StatusOK, nil
	case ch == '\\':
		return rd.parseCharacter()
	case ch == 'd' || ch == 'D':
		return rd.parseInteger(true)
	default:
		return NIL, StatusError, fmt.Errorf("ParseError: unknown hash-expression #%c", ch)
	}
}

func (rd *Reader) parseCharacter() (Value, ReadStatus, error) {
	ch, err := rd.nextRune()
	if err != nil {
		return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading character-expression")
	}
	next, nerr := rd.nextRune()
	if nerr != nil || isTerminal(next) || !isAlpha(ch) {
		if nerr == nil {
			rd.unreadRune(next)
		}
		return MakeChar(int16(ch)), StatusOK, nil
	}

	var ident strings.Builder
	ident.WriteRune(ch)
	ident.WriteRune(next)
	for ident.Len() < maxIdentLen {
		c, cerr := rd.nextRune()
		if cerr != nil {
			break
		}
		if !isAlpha(c) {
			rd.unreadRune(c)
			break
		}
		ident.WriteRune(c)
	}
	switch ident.String() {
	case "newline":
		return MakeChar('\n'), StatusOK, nil
	case "space":
		return MakeChar(' '), StatusOK, nil
	default:
		return NIL, StatusError, fmt.Errorf("ParseError: unknown char-ident %q", ident.String())
	}
}

func (rd *Reader) parseString() (Value, ReadStatus, error) {
	rd.nextRune() // consume opening quote
	var s strings.Builder
	for {
		ch, err := rd.nextRune()
		if err != nil {
			return NIL, StatusTerm, fmt.Errorf("ParseError: unexpected EOF in string")
		}
		if ch == '"' {
			return rd.h.MakeString(s.String()), StatusOK, nil
		}
		if s.Len() >= maxStringLen {
			return NIL, StatusError, fmt.Errorf("ParseError: string too long")
		}
		if ch == '\\' {
			esc, eerr := rd.nextRune()
			if eerr != nil {
				return NIL, StatusTerm, fmt.Errorf("ParseError: unexpected EOF in string escape")
			}
			if esc == 'n' {
				s.WriteByte('\n')
			} else {
				s.WriteRune(esc)
			}
			continue
		}
		s.WriteRune(ch)
	}
}

func (rd *Reader) parseList() (Value, ReadStatus, error) {
	if err := rd.skipWhitespace(); err != nil {
		return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading parenthesized expression")
	}

	h := rd.h
	head := NIL
	var tail Value

	for {
		ch, err := rd.nextRune()
		if err != nil {
			return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading parenthesized expression")
		}
		if ch == ')' {
			return head, StatusOK, nil
		}

		dotted := false
		if ch == '.' {
			next, nerr := rd.nextRune()
			if nerr == nil && isWhitespace(next) {
				dotted = true
				if err := rd.skipWhitespace(); err != nil {
					return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading parenthesized expression")
				}
			} else {
				if nerr == nil {
					rd.unreadRune(next)
				}
				rd.unreadRune(ch)
			}
		} else {
			rd.unreadRune(ch)
		}

		h.PushValue(head)
		v, status, perr := rd.parseDatum()
		head = h.PopValue()
		if status != StatusOK && status != StatusStop {
			return NIL, status, perr
		}

		if dotted {
			if head == NIL {
				return NIL, StatusError, fmt.Errorf("ParseError: dotted pair without car")
			}
			h.SetCdr(tail, v)
		} else if head == NIL {
			h.PushValue(v)
			cell := h.Cons(v, NIL)
			h.PopValue()
			head = cell
			tail = cell
		} else {
			h.PushValue(head)
			h.PushValue(v)
			cell := h.Cons(v, NIL)
			h.PopValue()
			h.PopValue()
			h.SetCdr(tail, cell)
			tail = cell
		}

		if err := rd.skipWhitespace(); err != nil {
			return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading parenthesized expression")
		}
		peek, perr2 := rd.nextRune()
		if perr2 != nil {
			return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading parenthesized expression")
		}
		rd.unreadRune(peek)
		if dotted && peek != ')' {
			return NIL, StatusError, fmt.Errorf("ParseError: illegal %q instead of final \")\"", peek)
		}
	}
}

// parseIntegerOrSymbol continues a datum whose first character, ch,
// has already been consumed.
func (rd *Reader) parseIntegerOrSymbol(ch rune) (Value, ReadStatus, error) {
	if ch == '-' || ch == '+' {
		sign := int64(1)
		if ch == '-' {
			sign = -1
		}
		next, nerr := rd.nextRune()
		if nerr == nil && isDigit(next) {
			return rd.finishInteger(sign, next, false)
		}
		if nerr == nil {
			rd.unreadRune(next)
		}
		return rd.parseSymbol(ch)
	}
	if isDigit(ch) {
		return rd.finishInteger(1, ch, false)
	}
	return rd.parseSymbol(ch)
}

func (rd *Reader) parseInteger(explicit bool) (Value, ReadStatus, error) {
	ch, err := rd.nextRune()
	if err != nil {
		return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading integer")
	}
	sign := int64(1)
	if ch == '-' || ch == '+' {
		if ch == '-' {
			sign = -1
		}
		ch, err = rd.nextRune()
		if err != nil {
			return NIL, StatusTerm, fmt.Errorf("ParseError: early EOF reading integer")
		}
	}
	if !isDigit(ch) {
		return NIL, StatusError, fmt.Errorf("ParseError: integer contains illegal %q", ch)
	}
	return rd.finishInteger(sign, ch, explicit)
}

func (rd *Reader) finishInteger(sign int64, first rune, explicit bool) (Value, ReadStatus, error) {
	var digits strings.Builder
	digits.WriteRune(first)
	for {
		ch, err := rd.nextRune()
		if err != nil {
			break
		}
		if !isDigit(ch) {
			if explicit && !isTerminal(ch) {
				return NIL, StatusError, fmt.Errorf("ParseError: integer contains illegal %q", ch)
			}
			rd.unreadRune(ch)
			break
		}
		digits.WriteRune(ch)
	}
	n, perr := strconv.ParseInt(digits.String(), 10, 64)
	if perr != nil {
		return NIL, StatusError, fmt.Errorf("ParseError: integer too large")
	}
	return rd.h.MakeInt(sign * n), StatusOK, nil
}

// parseSymbol continues a symbol whose first character, first, has
// already been consumed.
func (rd *Reader) parseSymbol(first rune) (Value, ReadStatus, error) {
	var s strings.Builder
	s.WriteRune(first)
	for s.Len() < maxSymbolLen {
		ch, err := rd.nextRune()
		if err != nil {
			break
		}
		if isDigit(ch) || isAlpha(ch) || isSpecialChar(ch) {
			s.WriteRune(ch)
			continue
		}
		rd.unreadRune(ch)
		break
	}
	name := s.String()
	if name == "." {
		return NIL, StatusError, fmt.Errorf("ParseError: unexpected character starting a datum")
	}
	return rd.h.MakeSymbol(name), StatusOK, nil
}
