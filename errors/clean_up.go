package errors

import "fmt"

// CleanUp is defer-able syntactic sugar that calls cleanUp and
// reports its error, if any, into *dst. Pass the caller's named
// return error. Example usage:
//
//	func (s *Store) Close() (err error) {
//	  defer errors.CleanUp(s.f.Close, &err)
//	  ...
//	}
//
// If the caller returns with its own error, any error from cleanUp
// is folded into *dst rather than discarded.
func CleanUp(cleanUp func() error, dst *error) {
	addErr(cleanUp(), dst)
}

func addErr(err2 error, dst *error) {
	if err2 == nil {
		return
	}
	if *dst == nil {
		*dst = err2
		return
	}
	// Note: err2 is not chained as *dst's cause, since *dst may
	// already carry a meaningful one and err2 may be unrelated.
	*dst = E(*dst, fmt.Sprintf("additional error on close: %v", err2))
}
