package microscheme

import (
	"fmt"
	"io"
)

// consFreeCount walks the cons free list and counts its entries.
func (h *Heap) consFreeCount() int {
	n := 0
	for idx := h.consFree; idx != 0; idx = h.cons[idx].Cdr.index() {
		n++
	}
	return n
}

// storageFreeStats walks the storage free list and reports total
// free words and the number of free blocks, mirroring
// statistics_mem()'s stat_storage_free()/stat_storage_blocs().
func (h *Heap) storageFreeStats() (words, blocks int) {
	for idx := h.storageFree; idx != 0; idx = uint32(h.storage[idx+1]) {
		words += headerSize(h.storage[idx])
		blocks++
	}
	return
}

// gcStatList builds the `gcstat` primitive's result: an association
// list exposing the same figures the original's statistics_mem()
// printed (§4.7's Runtime group).
func (h *Heap) gcStatList() Value {
	consFree := h.MakeInt(int64(h.consFreeCount()))
	words, blocks := h.storageFreeStats()
	storFree := h.MakeInt(int64(words))
	storBlocks := h.MakeInt(int64(blocks))
	runs := h.MakeInt(int64(h.gcRuns))

	h.PushValue(consFree)
	h.PushValue(storFree)
	h.PushValue(storBlocks)
	h.PushValue(runs)

	entries := []struct {
		name string
		val  Value
	}{
		{"free-cons-boxes", consFree},
		{"free-storage-words", storFree},
		{"free-storage-blocks", storBlocks},
		{"gc-runs", runs},
	}

	result := NIL
	for i := len(entries) - 1; i >= 0; i-- {
		h.PushValue(result)
		sym := h.MakeSymbol(entries[i].name)
		h.PushValue(sym)
		pair := h.Cons(sym, entries[i].val)
		h.PopValue()
		h.PopValue()

		h.PushValue(pair)
		h.PushValue(result)
		result = h.Cons(pair, result)
		h.PopValue()
		h.PopValue()
	}

	h.PopValue()
	h.PopValue()
	h.PopValue()
	h.PopValue()
	return result
}

// dumpState prints a map of both arenas, grounded on the original's
// dump_state(): one line per cons cell (index, car, cdr and their mark
// bits) and one line per storage block (index, header word, mark bit,
// decoded size/typedesc).
func (h *Heap) dumpState(w io.Writer) {
	fmt.Fprintln(w, "cons arena")
	fmt.Fprintln(w, "----------")
	for i := 1; i < len(h.cons); i++ {
		c := h.cons[i]
		fmt.Fprintf(w, "%6d: car=%#x%s cdr=%#x%s\n", i,
			uint64(c.Car), markStar(c.CarMark), uint64(c.Cdr), markStar(c.CdrMark))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "storage arena")
	fmt.Fprintln(w, "-------------")
	for i := uint32(1); int(i) < len(h.storage); {
		hdr := h.storage[i]
		size := headerSize(hdr)
		fmt.Fprintf(w, "%6d: [%#x]%s (size=%d typedesc=%d)\n", i, hdr,
			markStar(headerMarked(hdr)), size, headerTypeDesc(hdr))
		i += uint32(size)
	}
}

func markStar(marked bool) string {
	if marked {
		return "*"
	}
	return " "
}
