package microscheme

import (
	"fmt"
	"strings"
)

// reservedNames is the complete reserved-symbol roster (§4.7),
// recovered in full from the original's MAGIC.H. Every name here is
// pre-interned at startup and refused as a define/set! target.
var reservedNames = []string{
	"#T", "#F",

	"+", "-", "*", "/", "<", "<=", "=", ">", ">=",

	"and", "or", "not",

	"car", "cdr",
	"caar", "cadr", "cdar", "cddr",
	"caaar", "caadr", "cadar", "caddr", "cdaar", "cdadr", "cddar", "cdddr",
	"caaaar", "caaadr", "caadar", "caaddr", "cadaar", "cadadr", "caddar", "cadddr",
	"cdaaar", "cdaadr", "cdadar", "cdaddr", "cddaar", "cddadr", "cdddar", "cddddr",

	"let", "gcstat", "quote", "cond", "if", "else", "cons", "define",
	"error", "integer?", "lambda", "length", "list", "newline", "null?",
	"number?", "odd?", "pair?", "eq?", "string?", "symbol?", "even?",
	"list?", "boolean?",
	"set!", "set-car!", "set-cdr!",
	"read", "write", "memdump", "garbagecollect", "synchecktoggle",
	"gcstatwrite",

	"!!",
}

// keywordSet holds fast-access handles to the syntax keywords
// eval.go and syntax.go dispatch on directly, avoiding a name lookup
// on every step of the trampoline.
type keywordSet struct {
	quoteSym, defineSym, letSym, andSym, orSym, setSym, ifSym,
	condSym, elseSym, lambdaSym Value
}

// internReserved builds the reserved-symbol list, pinning every
// member via the root stack so the collector always finds them
// (§4.7). Must run once, before any evaluation.
func (h *Heap) internReserved() {
	for _, name := range reservedNames {
		sym := h.MakeSymbol(name)
		h.reservedName[name] = sym
		h.reserved = append(h.reserved, sym)
		h.Pin(sym)
	}
	h.keywords = keywordSet{
		quoteSym:  h.reservedName["quote"],
		defineSym: h.reservedName["define"],
		letSym:    h.reservedName["let"],
		andSym:    h.reservedName["and"],
		orSym:     h.reservedName["or"],
		setSym:    h.reservedName["set!"],
		ifSym:     h.reservedName["if"],
		condSym:   h.reservedName["cond"],
		elseSym:   h.reservedName["else"],
		lambdaSym: h.reservedName["lambda"],
	}
}

// Reserved reports whether sym is a member of the reserved-symbol
// list.
func (h *Heap) Reserved(sym Value) bool {
	if !sym.IsSymbol(h) {
		return false
	}
	name := h.SymbolOf(sym)
	_, ok := h.reservedName[name]
	return ok
}

// cxr decodes a c[ad]{1,4}r operator name into its sequence of
// car/cdr steps, innermost first (i.e. applied right to left against
// the name, matching Scheme's reading order: "cadr" = car(cdr(x))).
func cxr(name string) (steps []byte, ok bool) {
	if len(name) < 3 || len(name) > 6 || name[0] != 'c' || name[len(name)-1] != 'r' {
		return nil, false
	}
	mid := name[1 : len(name)-1]
	if len(mid) < 1 || len(mid) > 4 {
		return nil, false
	}
	steps = make([]byte, len(mid))
	for i, c := range []byte(mid) {
		if c != 'a' && c != 'd' {
			return nil, false
		}
		steps[len(mid)-1-i] = c
	}
	return steps, true
}

func (h *Heap) applyCxr(steps []byte, v Value) Value {
	for _, s := range steps {
		if !v.IsCons() {
			throw(ArgumentType, "the object %s, passed as the first argument to c%sr, is not the correct type",
				h.describe(v), string(steps))
		}
		if s == 'a' {
			v = h.Car(v)
		} else {
			v = h.Cdr(v)
		}
	}
	return v
}

func (h *Heap) describe(v Value) string {
	return h.TypeName(v)
}

func (h *Heap) checkArity(name string, argl Value, want int) {
	if !h.cfg.GetBool("eval.syntaxcheck") {
		return
	}
	if h.listLength(argl) != want {
		throw(ArgumentArity, "%s expects %d argument(s)", name, want)
	}
}

func (h *Heap) checkMinArity(name string, argl Value, min int) {
	if !h.cfg.GetBool("eval.syntaxcheck") {
		return
	}
	if h.listLength(argl) < min {
		throw(ArgumentArity, "%s expects at least %d argument(s)", name, min)
	}
}

func (h *Heap) checkInteger(name string, v Value) {
	if !h.cfg.GetBool("eval.syntaxcheck") {
		return
	}
	if !v.IsInteger(h) {
		throw(ArgumentType, "%s: expected an integer, got %s", name, h.TypeName(v))
	}
}

func (h *Heap) checkPair(name string, v Value) {
	if !h.cfg.GetBool("eval.syntaxcheck") {
		return
	}
	if !v.IsCons() {
		throw(ArgumentType, "%s: expected a pair, got %s", name, h.TypeName(v))
	}
}

// arg extracts the n-th (0-based) positional argument from a proper
// argument list with no arity check beyond what the caller already
// performed.
func (h *Heap) arg(argl Value, n int) Value {
	for ; n > 0; n-- {
		argl = h.Cdr(argl)
	}
	return h.Car(argl)
}

// Apply dispatches a reserved operator symbol against argl, an
// already-evaluated argument list, per the primitive groups of §4.7.
// It is called from the trampoline's MICRO_APPLY label for built-in
// procedures.
func (h *Heap) Apply(op Value, argl Value) Value {
	name := h.SymbolOf(op)

	if steps, ok := cxr(name); ok {
		h.checkArity(name, argl, 1)
		return h.applyCxr(steps, h.arg(argl, 0))
	}

	switch name {
	// pair access
	case "car":
		h.checkArity(name, argl, 1)
		h.checkPair(name, h.arg(argl, 0))
		return h.Car(h.arg(argl, 0))
	case "cdr":
		h.checkArity(name, argl, 1)
		h.checkPair(name, h.arg(argl, 0))
		return h.Cdr(h.arg(argl, 0))

	// pair construction
	case "cons":
		h.checkArity(name, argl, 2)
		return h.Cons(h.arg(argl, 0), h.arg(argl, 1))
	case "list":
		return argl
	case "set-car!":
		h.checkArity(name, argl, 2)
		h.checkPair(name, h.arg(argl, 0))
		p := h.arg(argl, 0)
		h.SetCar(p, h.arg(argl, 1))
		return p
	case "set-cdr!":
		h.checkArity(name, argl, 2)
		h.checkPair(name, h.arg(argl, 0))
		p := h.arg(argl, 0)
		h.SetCdr(p, h.arg(argl, 1))
		return p

	// arithmetic
	case "+":
		return h.foldArith(name, argl, 0, func(a, b int64) int64 { return a + b })
	case "*":
		return h.foldArith(name, argl, 1, func(a, b int64) int64 { return a * b })
	case "-":
		return h.subOrNeg(argl)
	case "/":
		return h.divOrRecip(argl)
	case "<":
		return h.chainCompare(argl, func(a, b int64) bool { return a < b })
	case "<=":
		return h.chainCompare(argl, func(a, b int64) bool { return a <= b })
	case "=":
		return h.chainCompare(argl, func(a, b int64) bool { return a == b })
	case ">":
		return h.chainCompare(argl, func(a, b int64) bool { return a > b })
	case ">=":
		return h.chainCompare(argl, func(a, b int64) bool { return a >= b })

	// logic
	case "not":
		h.checkArity(name, argl, 1)
		return MakeBool(!Truthy(h.arg(argl, 0)))

	// predicates
	case "pair?":
		h.checkArity(name, argl, 1)
		return MakeBool(h.arg(argl, 0).IsCons())
	case "null?":
		h.checkArity(name, argl, 1)
		return MakeBool(h.arg(argl, 0) == NIL)
	case "number?", "integer?":
		h.checkArity(name, argl, 1)
		return MakeBool(h.arg(argl, 0).IsInteger(h))
	case "string?":
		h.checkArity(name, argl, 1)
		return MakeBool(h.arg(argl, 0).IsString(h))
	case "symbol?":
		h.checkArity(name, argl, 1)
		return MakeBool(h.arg(argl, 0).IsSymbol(h))
	case "boolean?":
		h.checkArity(name, argl, 1)
		return MakeBool(isBool(h.arg(argl, 0)))
	case "eq?":
		h.checkArity(name, argl, 2)
		return MakeBool(h.Eq(h.arg(argl, 0), h.arg(argl, 1)))
	case "odd?":
		h.checkArity(name, argl, 1)
		h.checkInteger(name, h.arg(argl, 0))
		return MakeBool(h.IntOf(h.arg(argl, 0))%2 != 0)
	case "even?":
		h.checkArity(name, argl, 1)
		h.checkInteger(name, h.arg(argl, 0))
		return MakeBool(h.IntOf(h.arg(argl, 0))%2 == 0)
	case "list?":
		h.checkArity(name, argl, 1)
		return MakeBool(h.isProperList(h.arg(argl, 0)))

	// misc
	case "length":
		h.checkArity(name, argl, 1)
		n := h.listLength(h.arg(argl, 0))
		if n < 0 {
			throw(ArgumentType, "length: expected a proper list")
		}
		return h.MakeInt(int64(n))
	case "newline":
		h.checkArity(name, argl, 0)
		fmt.Fprintln(h.out)
		return MakeBool(false)
	case "write":
		h.checkArity(name, argl, 1)
		Write(h.out, h.arg(argl, 0), h)
		return MakeBool(false)
	case "read":
		// Reserved as a no-op stub: the reader is an external
		// collaborator the core does not itself drive (§1).
		return MakeBool(false)
	case "error":
		h.checkMinArity(name, argl, 1)
		throw(UserError, "%s", h.formatUserError(argl))
		return NIL

	// runtime
	case "gcstat":
		return h.gcStatList()
	case "gcstatwrite":
		Write(h.out, h.gcStatList(), h)
		fmt.Fprintln(h.out)
		return MakeBool(false)
	case "garbagecollect":
		h.checkArity(name, argl, 0)
		h.Collect()
		return MakeBool(false)
	case "synchecktoggle":
		h.checkArity(name, argl, 0)
		newVal := !h.cfg.GetBool("eval.syntaxcheck")
		h.cfg.SetBool("eval.syntaxcheck", newVal)
		return MakeBool(newVal)
	case "memdump":
		h.checkArity(name, argl, 0)
		h.dumpState(h.out)
		return MakeBool(false)
	}

	throw(SyntaxError, "unknown reserved operator: %s", name)
	return NIL
}

func (h *Heap) foldArith(name string, argl Value, identity int64, op func(a, b int64) int64) Value {
	acc := identity
	for argl != NIL {
		v := h.Car(argl)
		h.checkInteger(name, v)
		acc = op(acc, h.IntOf(v))
		argl = h.Cdr(argl)
	}
	return h.MakeInt(acc)
}

// subOrNeg implements §4.7's `-`: unary negates, variadic subtracts
// the rest from the first.
func (h *Heap) subOrNeg(argl Value) Value {
	h.checkMinArity("-", argl, 1)
	first := h.Car(argl)
	h.checkInteger("-", first)
	rest := h.Cdr(argl)
	if rest == NIL {
		return h.MakeInt(-h.IntOf(first))
	}
	acc := h.IntOf(first)
	for rest != NIL {
		v := h.Car(rest)
		h.checkInteger("-", v)
		acc -= h.IntOf(v)
		rest = h.Cdr(rest)
	}
	return h.MakeInt(acc)
}

// divOrRecip implements §4.7/§9's `/`: unary is floor(1/x) (an
// observable-but-probably-unintended quirk of the original, kept per
// the Design Note); variadic divides the first by the rest, floored.
func (h *Heap) divOrRecip(argl Value) Value {
	h.checkMinArity("/", argl, 1)
	first := h.Car(argl)
	h.checkInteger("/", first)
	rest := h.Cdr(argl)
	if rest == NIL {
		return h.MakeInt(floorDiv(1, h.IntOf(first)))
	}
	acc := h.IntOf(first)
	for rest != NIL {
		v := h.Car(rest)
		h.checkInteger("/", v)
		d := h.IntOf(v)
		if d == 0 {
			throw(UserError, "/: division by zero")
		}
		acc = floorDiv(acc, d)
		rest = h.Cdr(rest)
	}
	return h.MakeInt(acc)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (h *Heap) chainCompare(argl Value, cmp func(a, b int64) bool) Value {
	if argl == NIL || h.Cdr(argl) == NIL {
		h.checkMinArity("compare", argl, 1)
		return MakeBool(true)
	}
	prev := h.arg(argl, 0)
	h.checkInteger("compare", prev)
	rest := h.Cdr(argl)
	for rest != NIL {
		cur := h.Car(rest)
		h.checkInteger("compare", cur)
		if !cmp(h.IntOf(prev), h.IntOf(cur)) {
			return MakeBool(false)
		}
		prev = cur
		rest = h.Cdr(rest)
	}
	return MakeBool(true)
}

func (h *Heap) formatUserError(argl Value) string {
	msg := ""
	first := true
	for argl != NIL {
		if !first {
			msg += " "
		}
		first = false
		msg += h.displayString(h.Car(argl))
		argl = h.Cdr(argl)
	}
	return msg
}

func (h *Heap) displayString(v Value) string {
	if v.IsString(h) {
		return h.StringOf(v)
	}
	var b strings.Builder
	Write(&b, v, h)
	return b.String()
}
