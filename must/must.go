// Package must expresses internal invariants of the storage engine:
// conditions that, if false, mean the engine's own bookkeeping (not
// the on-disk file) is inconsistent. Use errors.E with Kind Corrupt
// for file-content problems; use must for bugs in this package.
package must

import (
	"fmt"

	"github.com/Papadiddypub/ostore/log"
)

// Func is called to report a failed assertion and interrupt
// execution. It defaults to log.Panic.
var Func func(...interface{}) = log.Panic

// Truef is a no-op if b is true. Otherwise it formats a message like
// fmt.Sprintf and calls Func.
func Truef(b bool, format string, v ...interface{}) {
	if b {
		return
	}
	Func(fmt.Sprintf(format, v...))
}
