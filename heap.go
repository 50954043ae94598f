package microscheme

import (
	"io"
	"os"
)

// Hint distinguishes an ordinary cons cell from one whose cdr carries
// special meaning (§3.2, §3.3, §3.4).
type Hint uint8

const (
	HintNone Hint = iota
	HintEnvHeader
	HintProcedure
)

// ConsCell is one cell of the cons arena: two tagged words plus the
// GC mark and hint state that the original packs into the low bits
// of the same words. Keeping them as separate fields (rather than
// stealing bits from Car/Cdr) is the struct-of-fields rendition
// Design Note §9 prescribes for a strict target language; see
// value.go's Value doc comment for the full reasoning.
type ConsCell struct {
	Car, Cdr         Value
	CarMark, CdrMark bool
	Hint             Hint
}

// TypeDesc is the 15-bit type descriptor carried by a storage block.
type TypeDesc uint16

const (
	TypeString TypeDesc = iota
	TypeInteger
	TypeSymbol
)

// The storage arena is one flat array of words, addressed by word
// index exactly as the original addresses it by byte pointer (§4.1).
// A block's first word is its header: mark(1) | typedesc(15) |
// size(16), size in words including the header, even, 0 meaning
// 65536. Addressing by a stable word index -- rather than by a
// slice-of-records position -- is what lets the sweep coalesce a run
// of dead blocks (rewriting only the words of that run) without
// disturbing the word index of any block that survives it, live or
// free, on either side.
const (
	hdrMarkBit    = uint64(1)
	hdrTypeShift  = 1
	hdrTypeMask   = uint64(0x7FFF)
	hdrSizeShift  = 16
	hdrSizeMask16 = uint64(0xFFFF)
)

func headerMarked(w uint64) bool        { return w&hdrMarkBit != 0 }
func headerWithMark(w uint64, m bool) uint64 {
	if m {
		return w | hdrMarkBit
	}
	return w &^ hdrMarkBit
}
func headerTypeDesc(w uint64) TypeDesc { return TypeDesc((w >> hdrTypeShift) & hdrTypeMask) }
func headerSize(w uint64) int {
	sz := (w >> hdrSizeShift) & hdrSizeMask16
	if sz == 0 {
		return 65536
	}
	return int(sz)
}
func makeHeader(marked bool, td TypeDesc, size int) uint64 {
	sz := uint64(size)
	if sz == 65536 {
		sz = 0
	}
	w := (sz & hdrSizeMask16) << hdrSizeShift
	w |= (uint64(td) & hdrTypeMask) << hdrTypeShift
	return headerWithMark(w, marked)
}

// Heap owns both arenas, both stacks, the root stack and the seven
// machine registers. Every operation that can allocate is a method
// on *Heap so the collector always has a single place to look for
// live roots (§4.3).
type Heap struct {
	cfg *Config

	cons     []ConsCell
	consFree uint32 // 0 = empty; cons arena index 0 is the NIL sentinel, never allocated

	storage     []uint64
	storageFree uint32 // 0 = empty; storage index 0 is an unused sentinel

	valueStack []Value
	labelStack []byte

	rootStack []Value // append-only; always scanned by the collector

	// argCounts is a side-channel LIFO of pending-application operand
	// counts, plain ints rather than tagged Values, so COLLECT knows
	// how many evaluated arguments to gather without either
	// disturbing the value stack's ordering or growing the official
	// register set (§4.6).
	argCounts []int

	regs Registers

	// reserved is the pre-interned reserved-symbol list, pinned via
	// the root stack at startup (§4.7).
	reserved     []Value
	reservedName map[string]Value
	keywords     keywordSet

	// out is where write/newline/gcstatwrite/memdump send their
	// output; defaults to os.Stdout, replaced by REPL with its own
	// stdout writer and by tests directly.
	out io.Writer

	gcRuns int
}

// NewHeap allocates both arenas and both stacks per cfg and returns a
// ready-to-use Heap. Callers must call internReserved (done by
// NewInterpreter) before evaluating anything.
func NewHeap(cfg *Config) *Heap {
	h := &Heap{
		cfg:          cfg,
		cons:         make([]ConsCell, cfg.GetInt("heap.cons_words")/2+1),
		valueStack:   make([]Value, 0, cfg.GetInt("stack.value_depth")),
		labelStack:   make([]byte, 0, cfg.GetInt("stack.label_depth")),
		rootStack:    make([]Value, 0, cfg.GetInt("stack.root_depth")),
		reservedName: make(map[string]Value),
		out:          os.Stdout,
	}
	h.initConsFreeList()
	h.initStorage(cfg.GetInt("heap.storage_words"))
	return h
}

func (h *Heap) initConsFreeList() {
	h.consFree = 0
	for i := len(h.cons) - 1; i >= 1; i-- {
		h.cons[i] = ConsCell{Car: NIL, Cdr: consPtr(h.consFree)}
		h.consFree = uint32(i)
	}
}

// initStorage carves the whole storage budget into <=65536-word free
// blocks, word index 0 reserved as an unused sentinel.
func (h *Heap) initStorage(words int) {
	if words < 2 {
		words = 2
	}
	h.storage = make([]uint64, words+1)
	h.storageFree = 0
	idx := 1
	remaining := words
	for remaining > 0 {
		size := remaining
		if size > 65536 {
			size = 65536
		}
		if size%2 != 0 {
			size--
		}
		if size < 2 {
			break
		}
		h.storage[idx] = makeHeader(false, 0, size)
		h.storage[idx+1] = uint64(h.storageFree)
		h.storageFree = uint32(idx)
		idx += size
		remaining -= size
	}
}

// --- cons arena -----------------------------------------------------

// NewCons allocates a fresh cell with car and cdr set to NIL,
// collecting once and retrying before failing with OutOfConsSpace.
func (h *Heap) NewCons() Value {
	if h.consFree == 0 {
		h.Collect()
		if h.consFree == 0 {
			throw(OutOfConsSpace, "cons arena exhausted")
		}
	}
	idx := h.consFree
	cell := &h.cons[idx]
	h.consFree = cell.Cdr.index()
	*cell = ConsCell{Car: NIL, Cdr: NIL}
	return consPtr(idx)
}

func (h *Heap) cell(v Value) *ConsCell {
	if !v.IsCons() {
		throw(ArgumentType, "expected a pair, got %s", h.TypeName(v))
	}
	return &h.cons[v.index()]
}

func (h *Heap) Car(v Value) Value { return h.cell(v).Car }
func (h *Heap) Cdr(v Value) Value { return h.cell(v).Cdr }

func (h *Heap) SetCar(v, val Value) { h.cell(v).Car = val }
func (h *Heap) SetCdr(v, val Value) { h.cell(v).Cdr = val }

func (h *Heap) SetHintEnvironment(v Value) { h.cell(v).Hint = HintEnvHeader }
func (h *Heap) SetHintProcedure(v Value)   { h.cell(v).Hint = HintProcedure }
func (h *Heap) HintEnvironmentP(v Value) bool {
	return v.IsCons() && h.cell(v).Hint == HintEnvHeader
}
func (h *Heap) HintProcedureP(v Value) bool {
	return v.IsCons() && h.cell(v).Hint == HintProcedure
}

// Cons builds a fresh pair. NewCons may run a collection before the
// cell is filled in, so both a and d must already be reachable from a
// register, the value stack or the root stack when Cons is called.
func (h *Heap) Cons(a, d Value) Value {
	c := h.NewCons()
	h.SetCar(c, a)
	h.SetCdr(c, d)
	return c
}

// --- storage arena ----------------------------------------------------

func wordsForBytes(n int) int {
	words := 1 + 1 + (n+7)/8 // header + length word + data words
	if words%2 != 0 {
		words++
	}
	if words < 2 {
		words = 2
	}
	return words
}

// newStorage allocates a block able to hold wordsNeeded words
// (including its own header), first-fit, collecting once and
// retrying before failing with OutOfStorage.
func (h *Heap) newStorage(wordsNeeded int, td TypeDesc) Value {
	if wordsNeeded > 65536 {
		throw(OutOfStorage, "block of %d words exceeds the 65536-word maximum", wordsNeeded)
	}
	idx := h.firstFit(wordsNeeded, td)
	if idx == 0 {
		h.Collect()
		idx = h.firstFit(wordsNeeded, td)
		if idx == 0 {
			throw(OutOfStorage, "storage arena exhausted")
		}
	}
	return storagePtr(idx)
}

// firstFit finds the first free block of at least wordsNeeded words,
// splits off and re-frees its tail if any, and stamps the head's
// header with td. Returns 0 (the unused sentinel) on failure.
func (h *Heap) firstFit(wordsNeeded int, td TypeDesc) uint32 {
	var prev uint32
	cur := h.storageFree
	for cur != 0 {
		size := headerSize(h.storage[cur])
		next := uint32(h.storage[cur+1])
		if size >= wordsNeeded {
			if prev == 0 {
				h.storageFree = next
			} else {
				h.storage[prev+1] = uint64(next)
			}
			rest := size - wordsNeeded
			if rest > 0 {
				tail := cur + uint32(wordsNeeded)
				h.storage[tail] = makeHeader(false, 0, rest)
				h.storage[tail+1] = uint64(h.storageFree)
				h.storageFree = tail
			}
			h.storage[cur] = makeHeader(false, td, wordsNeeded)
			return cur
		}
		prev = cur
		cur = next
	}
	return 0
}

func (h *Heap) blockTypeDesc(idx uint32) TypeDesc { return headerTypeDesc(h.storage[idx]) }

// MakeInt constructs an integer: immediate when it fits a signed
// 16-bit short, otherwise boxed in the storage arena.
func (h *Heap) MakeInt(n int64) Value {
	if n >= -0x8000 && n <= 0x7FFF {
		return MakeShort(int16(n))
	}
	v := h.newStorage(2, TypeInteger)
	h.storage[v.index()+1] = uint64(n)
	return v
}

func isStorageInt(h *Heap, v Value) bool {
	return v.IsStorage() && h.blockTypeDesc(v.index()) == TypeInteger
}

// IntOf returns the integer value of an immediate short or boxed
// integer.
func (h *Heap) IntOf(v Value) int64 {
	if isShort(v) {
		return int64(shortOf(v))
	}
	if isStorageInt(h, v) {
		return int64(h.storage[v.index()+1])
	}
	throw(ArgumentType, "expected an integer, got %s", h.TypeName(v))
	return 0
}

func (h *Heap) storeBytes(idx uint32, b []byte) {
	h.storage[idx+1] = uint64(len(b))
	word := idx + 2
	for i := 0; i < len(b); i += 8 {
		end := i + 8
		if end > len(b) {
			end = len(b)
		}
		h.storage[word] = packWord(b[i:end])
		word++
	}
}

func (h *Heap) loadBytes(idx uint32) []byte {
	n := int(h.storage[idx+1])
	b := make([]byte, 0, n)
	word := idx + 2
	for len(b) < n {
		end := n - len(b)
		if end > 8 {
			end = 8
		}
		b = append(b, unpackWord(h.storage[word], end)...)
		word++
	}
	return b
}

func packWord(b []byte) uint64 {
	var w uint64
	for i, c := range b {
		w |= uint64(c) << (8 * i)
	}
	return w
}

func unpackWord(w uint64, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(w >> (8 * i))
	}
	return b
}

// MakeString constructs a string: immediate when it is 3 bytes or
// fewer, otherwise boxed.
func (h *Heap) MakeString(s string) Value {
	b := []byte(s)
	if len(b) <= 3 {
		return makeImmediate(strSubtags[len(b)], packInlineBytes(b))
	}
	v := h.newStorage(wordsForBytes(len(b)), TypeString)
	h.storeBytes(v.index(), b)
	return v
}

func isStorageString(h *Heap, v Value) bool {
	return v.IsStorage() && h.blockTypeDesc(v.index()) == TypeString
}

// StringOf returns the Go string carried by a string value.
func (h *Heap) StringOf(v Value) string {
	if isInlineString(v) {
		n := inlineLen(v.subtag())
		return string(unpackInlineBytes(v.payload(), n))
	}
	if isStorageString(h, v) {
		return string(h.loadBytes(v.index()))
	}
	throw(ArgumentType, "expected a string, got %s", h.TypeName(v))
	return ""
}

// MakeSymbol constructs a symbol. Symbols of length 1-3 are always
// immediate. Longer symbols are interned only if they are reserved
// (§4.7); ordinary user symbols of length >= 4 get a fresh storage
// block each time and are compared structurally, never by identity
// (§4.4).
func (h *Heap) MakeSymbol(s string) Value {
	b := []byte(s)
	if len(b) >= 1 && len(b) <= 3 {
		return makeImmediate(symSubtags[len(b)], packInlineBytes(b))
	}
	if v, ok := h.reservedName[s]; ok {
		return v
	}
	v := h.newStorage(wordsForBytes(len(b)), TypeSymbol)
	h.storeBytes(v.index(), b)
	return v
}

func isStorageSymbol(h *Heap, v Value) bool {
	return v.IsStorage() && h.blockTypeDesc(v.index()) == TypeSymbol
}

// SymbolOf returns the name carried by a symbol value.
func (h *Heap) SymbolOf(v Value) string {
	if isInlineSymbol(v) {
		n := inlineLen(v.subtag())
		return string(unpackInlineBytes(v.payload(), n))
	}
	if isStorageSymbol(h, v) {
		return string(h.loadBytes(v.index()))
	}
	throw(ArgumentType, "expected a symbol, got %s", h.TypeName(v))
	return ""
}

func (v Value) IsSymbol(h *Heap) bool {
	return isInlineSymbol(v) || isStorageSymbol(h, v)
}
func (v Value) IsString(h *Heap) bool {
	return isInlineString(v) || isStorageString(h, v)
}
func (v Value) IsInteger(h *Heap) bool {
	return isShort(v) || isStorageInt(h, v)
}

// --- equality ---------------------------------------------------------

// Eq implements eq? (§4.4): identical words are always equal; two
// boxed values of equal type descriptor and equal payload are also
// equal, even if they are distinct allocations. Cons cells are eq?
// only by identity.
func (h *Heap) Eq(a, b Value) bool {
	if a == b {
		return true
	}
	if a.IsStorage() && b.IsStorage() {
		tda, tdb := h.blockTypeDesc(a.index()), h.blockTypeDesc(b.index())
		if tda != tdb {
			return false
		}
		if tda == TypeInteger {
			return h.storage[a.index()+1] == h.storage[b.index()+1]
		}
		return string(h.loadBytes(a.index())) == string(h.loadBytes(b.index()))
	}
	return false
}

// TypeName names the runtime type of v, used in diagnostics.
func (h *Heap) TypeName(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsCons():
		return "pair"
	case isBool(v):
		return "boolean"
	case isChar(v):
		return "character"
	case v.IsInteger(h):
		return "integer"
	case v.IsString(h):
		return "string"
	case v.IsSymbol(h):
		return "symbol"
	default:
		return "value"
	}
}
