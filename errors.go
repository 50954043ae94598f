package microscheme

import "fmt"

// ErrorKind enumerates the error kinds of §7: every one except
// FatalStartup unwinds to the REPL's recovery point.
type ErrorKind int

const (
	ParseError ErrorKind = iota
	SyntaxError
	UnboundVariable
	BindingRaced
	ArgumentArity
	ArgumentType
	ReservedMutation
	UserError
	OutOfConsSpace
	OutOfStorage
	StackFault
	FatalStartup
)

func (k ErrorKind) String() string {
	return [...]string{
		"ParseError", "SyntaxError", "UnboundVariable", "BindingRaced",
		"ArgumentArity", "ArgumentType", "ReservedMutation", "UserError",
		"OutOfConsSpace", "OutOfStorage", "StackFault", "FatalStartup",
	}[k]
}

// Recoverable reports whether this error kind unwinds to the REPL's
// recovery point instead of terminating the process.
func (k ErrorKind) Recoverable() bool {
	return k != FatalStartup
}

// RuntimeError is the single error type raised by every component of
// the core. It is thrown with panic and, for recoverable kinds,
// caught by Interpreter.REPL at the iteration boundary.
type RuntimeError struct {
	Kind    ErrorKind
	Message string
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) RuntimeError {
	return RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// throw panics with a RuntimeError of the given kind. Every fallible
// core operation raises through this helper rather than returning an
// error, so that the trampoline's dispatch loop never has to thread
// an error return through every label transition -- only the REPL
// boundary (or, for FatalStartup, main) ever recovers it.
func throw(kind ErrorKind, format string, args ...any) {
	panic(newError(kind, format, args...))
}

// isRuntimeError reports whether err is a RuntimeError, used by the
// recovery point to distinguish our own errors from a genuine Go
// programming-error panic that should keep propagating.
func isRuntimeError(v any) (RuntimeError, bool) {
	e, ok := v.(RuntimeError)
	return e, ok
}
