//go:build !linux

package ostorefile

func init() {
	preallocate = preallocatePortable
}

// preallocatePortable extends f to at least size bytes with a plain
// truncate. On most non-Linux filesystems this creates a sparse
// region rather than allocating real blocks, but it is correct.
func preallocatePortable(f *localFile, size int64) error {
	return f.Truncate(size)
}
