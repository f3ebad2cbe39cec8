// Package log provides simple level logging for ostore. Log output
// is implemented by an outputter, which by default writes to Go's
// standard logging package; callers embedding ostore in a larger
// program can supply their own Outputter to unify log output.
package log

import (
	"fmt"
)

// An Outputter provides a destination for leveled log output.
type Outputter interface {
	// Level returns the level at which the outputter is accepting
	// messages.
	Level() Level

	// Output writes s to the outputter at the given call depth and
	// level. It is a no-op if the outputter isn't logging at level.
	Output(calldepth int, level Level, s string) error
}

var out Outputter = gologOutputter{}

// SetOutputter installs a new outputter, returning the previous one.
// It should not be called concurrently with log output, and so is
// suitable only at program initialization.
func SetOutputter(newOut Outputter) Outputter {
	old := out
	out = newOut
	return old
}

// GetOutputter returns the current outputter.
func GetOutputter() Outputter {
	return out
}

// At reports whether the current outputter is logging at level.
func At(level Level) bool {
	return level <= out.Level()
}

// Output writes a log message to the current outputter at the given
// level and call depth.
func Output(calldepth int, level Level, s string) error {
	return out.Output(calldepth+1, level, s)
}

// A Level is a log verbosity level. Lower levels have higher
// priority: if the outputter logs at level L, every message with
// level M <= L is emitted.
type Level int

const (
	// Off never outputs messages.
	Off = Level(-3)
	// Error outputs error messages.
	Error = Level(-2)
	// Info outputs informational messages; the standard level.
	Info = Level(0)
	// Debug outputs messages intended for development, not users.
	Debug = Level(1)
)

// String returns the string representation of level l.
func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Error:
		return "error"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		if l < 0 {
			panic("invalid log level")
		}
		return fmt.Sprintf("debug%d", l)
	}
}

// Print formats a message like fmt.Sprint and outputs it at level l.
func (l Level) Print(v ...interface{}) {
	if At(l) {
		out.Output(2, l, fmt.Sprint(v...))
	}
}

// Printf formats a message like fmt.Sprintf and outputs it at level l.
func (l Level) Printf(format string, v ...interface{}) {
	if At(l) {
		out.Output(2, l, fmt.Sprintf(format, v...))
	}
}

// Print formats a message like fmt.Sprint at the Info level.
func Print(v ...interface{}) {
	if At(Info) {
		out.Output(2, Info, fmt.Sprint(v...))
	}
}

// Printf formats a message like fmt.Sprintf at the Info level.
func Printf(format string, v ...interface{}) {
	if At(Info) {
		out.Output(2, Info, fmt.Sprintf(format, v...))
	}
}

// Panic formats a message like fmt.Sprint, logs it at the Error
// level, and panics.
func Panic(v ...interface{}) {
	s := fmt.Sprint(v...)
	out.Output(2, Error, s)
	panic(s)
}
