package microscheme

import (
	"fmt"
	"io"
	"strings"
)

// maxPrintDepth bounds list traversal so set-car!/set-cdr!-built
// cycles can't hang the printer (§5's External Contracts).
const maxPrintDepth = 100000

// Write renders v as external representation into w: proper and
// dotted lists, strings (re-escaped), characters (#\newline, #\space,
// or the literal char), symbols, integers, and booleans (#T/#F). It
// mirrors the original's write_expr(), minus the ring-buffer plumbing
// that had no counterpart once Go owns the output stream directly.
func Write(w io.Writer, v Value, h *Heap) {
	writeValue(w, v, h, 0)
}

func writeValue(w io.Writer, v Value, h *Heap, depth int) {
	if depth > maxPrintDepth {
		fmt.Fprint(w, "...")
		return
	}
	switch {
	case v == NIL:
		fmt.Fprint(w, "()")
	case isBool(v):
		if BoolOf(v) {
			fmt.Fprint(w, "#T")
		} else {
			fmt.Fprint(w, "#F")
		}
	case isChar(v):
		writeChar(w, CharOf(v))
	case v.IsInteger(h):
		fmt.Fprintf(w, "%d", h.IntOf(v))
	case v.IsString(h):
		writeString(w, h.StringOf(v))
	case v.IsSymbol(h):
		fmt.Fprint(w, h.SymbolOf(v))
	case h.HintProcedureP(v):
		writeProcedure(w, v, h)
	case v.IsCons():
		writeList(w, v, h, depth)
	default:
		fmt.Fprint(w, "#<unknown>")
	}
}

func writeChar(w io.Writer, code int16) {
	switch code {
	case '\n':
		fmt.Fprint(w, `#\newline`)
	case ' ':
		fmt.Fprint(w, `#\space`)
	default:
		fmt.Fprintf(w, `#\%c`, rune(code))
	}
}

func writeString(w io.Writer, s string) {
	var b strings.Builder
	b.WriteByte('"')
	for _, ch := range s {
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('"')
	fmt.Fprint(w, b.String())
}

func writeProcedure(w io.Writer, v Value, h *Heap) {
	car := h.Car(v)
	if car.IsSymbol(h) {
		fmt.Fprintf(w, "#<primitive %s>", h.SymbolOf(car))
		return
	}
	fmt.Fprint(w, "#<compound-procedure>")
}

func writeList(w io.Writer, v Value, h *Heap, depth int) {
	fmt.Fprint(w, "(")
	first := true
	truncated := false
	for v.IsCons() {
		if depth > maxPrintDepth {
			fmt.Fprint(w, " ...")
			truncated = true
			break
		}
		if !first {
			fmt.Fprint(w, " ")
		}
		first = false
		writeValue(w, h.Car(v), h, depth+1)
		v = h.Cdr(v)
		depth++
	}
	if !truncated && v != NIL {
		fmt.Fprint(w, " . ")
		writeValue(w, v, h, depth+1)
	}
	fmt.Fprint(w, ")")
}
