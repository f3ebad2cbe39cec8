//go:build linux

package ostorefile

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Papadiddypub/ostore/errors"
)

func init() {
	preallocate = preallocateLinux
}

// preallocateLinux extends f to at least size bytes using fallocate,
// so the blocks a chain grows into are allocated on disk up front
// rather than discovered lazily as the file is written sparsely.
func preallocateLinux(f *localFile, size int64) error {
	err := unix.Fallocate(int(f.f.Fd()), 0, 0, size)
	if err == unix.ENOSYS || err == unix.EOPNOTSUPP {
		return f.f.Truncate(size)
	}
	if err != nil {
		return errors.E(errors.IO, fmt.Sprintf("fallocate %s to %d", f.path, size), err)
	}
	return nil
}
