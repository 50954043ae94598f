package microscheme

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"

	"github.com/clarete/microscheme/ascii"
)

// Interpreter ties the heap, global environment, and configuration
// together into the unit the REPL and file loader both drive (§1,
// §4.8).
type Interpreter struct {
	Heap   *Heap
	Env    Value
	Config *Config
	Theme  ascii.Theme
}

// NewInterpreter allocates a heap per cfg, interns the reserved-symbol
// roster, and builds the initial global environment. Cfg must not be
// nil; callers typically start from NewConfig().
func NewInterpreter(cfg *Config) *Interpreter {
	h := NewHeap(cfg)
	h.internReserved()
	env := h.newGlobalEnvironment()
	h.Pin(env)
	return &Interpreter{Heap: h, Env: env, Config: cfg, Theme: ascii.DefaultTheme}
}

const replPrompt = "Micro-eval => "

// REPL runs an interactive read-eval-print loop against stdin/stdout,
// binding each result to `!!` (§4.8) and recovering from every
// recoverable ErrorKind by resetting the stacks and registers and
// running a collection before reading the next datum -- the
// panic/recover pair plays the role the original gave setjmp/longjmp
// in MAIN.C's error recovery point.
func (in *Interpreter) REPL(stdin io.Reader, stdout io.Writer) error {
	in.Heap.out = stdout

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		Stdin:           io.NopCloser(stdin),
		Stdout:          stdout,
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return newError(FatalStartup, "can't start line editor: %s", err)
	}
	defer rl.Close()

	pending := &pendingInput{rl: rl}
	rd := NewReader(bufio.NewReader(pending), in.Heap)

	for {
		v, status, rerr := rd.Read()
		switch status {
		case StatusTerm:
			return nil
		case StatusError:
			fmt.Fprintln(stdout, ascii.Color(in.Theme.Error, "ParseError: %s", rerr))
			continue
		}

		result, ok := in.evalRecovered(v)
		if !ok {
			continue
		}

		in.Heap.DefineVariable(in.Heap.MakeSymbol("!!"), result, in.Env)
		Write(stdout, result, in.Heap)
		fmt.Fprintln(stdout)

		if status == StatusStop {
			return nil
		}
	}
}

// evalRecovered evaluates one datum against the interpreter's global
// environment, recovering a recoverable RuntimeError into a
// diagnostic print and a stack/register reset plus a collection, the
// same shape as the original's error recovery point in MAIN.C.
func (in *Interpreter) evalRecovered(v Value) (result Value, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rerr, isOurs := isRuntimeError(r)
			if !isOurs || !rerr.Kind.Recoverable() {
				panic(r)
			}
			fmt.Fprintln(in.Heap.out, ascii.Color(in.Theme.Error, "%s", rerr.Error()))
			in.Heap.ResetStacks()
			in.Heap.resetRegisters()
			in.Heap.Collect()
			ok = false
		}
	}()
	result = in.Heap.Eval(v, in.Env)
	ok = true
	return
}

// LoadFile reads and evaluates every top-level datum in path in
// order, returning an error for an unopenable file rather than
// treating it as fatal -- mirrors the
// original's batch-mode file handling, which skips a missing argument
// file instead of aborting the whole run.
func (in *Interpreter) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("can't open %q: %w", path, err)
	}
	defer f.Close()

	rd := NewReader(bufio.NewReader(f), in.Heap)
	for {
		v, status, rerr := rd.Read()
		if status == StatusError {
			fmt.Fprintln(in.Heap.out, ascii.Color(in.Theme.Error, "%s: %s", path, rerr))
			continue
		}
		if status == StatusTerm {
			return nil
		}
		in.evalRecovered(v) // diagnostic already printed on failure; keep loading
		if status == StatusStop {
			return nil
		}
	}
}

// pendingInput adapts a readline.Instance into an io.Reader so a
// Reader can be driven line-by-line through the line editor instead
// of a raw stream -- readline handles history, cursor movement, and
// EOF/Ctrl-C itself and this just forwards the bytes it accepts.
type pendingInput struct {
	rl  *readline.Instance
	buf []byte
}

func (p *pendingInput) Read(out []byte) (int, error) {
	for len(p.buf) == 0 {
		line, err := p.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return 0, io.EOF
		}
		p.buf = append([]byte(line), '\n')
	}
	n := copy(out, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

