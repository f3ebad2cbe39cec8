// Package errors implements the error type used throughout ostore. An
// Error carries a Kind drawn from the store's error taxonomy plus an
// optional message and cause, so that callers can distinguish e.g. a
// missing object from a corrupt file without parsing strings. Errors
// built by this package can be chained: each wraps the error that
// caused it, and the full chain is printed by Error().
package errors

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/Papadiddypub/ostore/log"
)

// Separator defines the separation string inserted between
// chained errors in error messages.
var Separator = ":\n\t"

// Kind classifies an error according to the store's error codes. It
// is the Go encoding of the result codes an ostore operation can
// fail with.
type Kind int

const (
	// Other indicates an unspecified internal error.
	Other Kind = iota
	// NotFound indicates the requested object id does not exist.
	NotFound
	// AlreadyExists indicates the object id is already in use.
	AlreadyExists
	// Corrupt indicates an on-disk invariant was violated: a bad
	// magic number, a dangling block link, an inconsistent chain.
	Corrupt
	// OutOfBounds indicates an offset or length fell outside an
	// object's current extent.
	OutOfBounds
	// IO indicates a failure from the underlying file (a read, write,
	// sync or close error). A short read at end of file is reported as
	// Corrupt instead.
	IO
	// NoMem indicates the file ran out of space to allocate a block.
	NoMem
	// InvalidArg indicates the caller supplied a malformed argument,
	// such as a reserved object id.
	InvalidArg

	maxKind
)

var kinds = map[Kind]string{
	Other:         "internal error",
	NotFound:      "object not found",
	AlreadyExists: "object already exists",
	Corrupt:       "store corrupt",
	OutOfBounds:   "out of bounds",
	IO:            "i/o error",
	NoMem:         "no space left in store",
	InvalidArg:    "invalid argument",
}

// kindStdErrs maps some Kinds to the standard library's equivalent,
// so that errors.Is interoperates with os-level errors.
var kindStdErrs = map[Kind]error{
	NotFound:      os.ErrNotExist,
	AlreadyExists: os.ErrExist,
	InvalidArg:    os.ErrInvalid,
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

// Error is the standard error type used by ostore. Errors should be
// constructed by E, which interprets its arguments by type.
type Error struct {
	// Kind is the error's classification.
	Kind Kind
	// Message is an optional description of what went wrong.
	Message string
	// Err is the error that caused this one, if any. Errors form
	// chains through Err; the chain is printed by Error().
	Err error
}

// E constructs an error from the provided arguments. Arguments are
// interpreted according to their types:
//
//   - Kind: sets the Error's kind
//   - string: appended to the Error's message; multiple strings are
//     joined with a space
//   - *Error: copied and set as the cause
//   - error: set as the cause
//
// If no Kind is given but a cause is, E attempts to infer a Kind from
// the cause: an *Error contributes its own Kind, and an os-level
// "does not exist" / "already exists" error maps to NotFound /
// AlreadyExists.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Error.Printf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, arg)
			return &Error{Kind: InvalidArg, Message: fmt.Sprintf("unknown type %T in error call", arg)}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
	default:
		if e.Kind != Other {
			break
		}
		for kind := Kind(0); kind < maxKind; kind++ {
			stdErr := kindStdErrs[kind]
			if stdErr != nil && errors.Is(e.Err, stdErr) {
				e.Kind = kind
				break
			}
		}
	}
	return e
}

// Recover recovers any error into an *Error, wrapping it with E if it
// is not already one (so its Kind is inferred from the cause as E
// does, and is Other when nothing matches).
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Error returns a human readable string describing this error,
// joining chained causes with Separator.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

// Unwrap returns e's cause, if any, letting the standard library's
// errors.Unwrap and errors.As work with *Error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is tells whether e.Kind corresponds to err, for interoperability
// with the standard library's errors.Is (e.g. errors.Is(e,
// os.ErrNotExist)). It does not recurse into e's cause.
func (e *Error) Is(err error) bool {
	if err == nil {
		return false
	}
	return err == kindStdErrs[e.Kind]
}

// Is tells whether err's Kind equals kind. Errors of Kind Other defer
// to their cause, so the first error in the chain whose Kind is not
// Other decides; causes below it are not examined.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	return is(kind, Recover(err))
}

func is(kind Kind, e *Error) bool {
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		if e2, ok := e.Err.(*Error); ok {
			return is(kind, e2)
		}
	}
	return false
}

// Match tells whether every nonempty field in err1 matches the
// corresponding field in err2, recursing on chained causes. Match is
// designed to aid in testing errors.
func Match(err1, err2 error) bool {
	var (
		e1 = Recover(err1)
		e2 = Recover(err2)
	)
	if e1.Kind != Other && e1.Kind != e2.Kind {
		return false
	}
	if e1.Message != "" && e1.Message != e2.Message {
		return false
	}
	if e1.Err != nil {
		if e2.Err == nil {
			return false
		}
		switch e1.Err.(type) {
		case *Error:
			return Match(e1.Err, e2.Err)
		default:
			return e1.Err.Error() == e2.Err.Error()
		}
	}
	return true
}

// Visit calls callback for every error in the chain starting at err,
// stopping after the first error whose type is not *Error.
func Visit(err error, callback func(err error)) {
	callback(err)
	for {
		next, ok := err.(*Error)
		if !ok {
			break
		}
		err = next.Err
		callback(err)
	}
}

// New is synonymous with errors.New, provided so that callers need
// only import this package.
func New(msg string) error {
	return errors.New(msg)
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}
