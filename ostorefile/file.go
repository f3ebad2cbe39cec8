// Package ostorefile provides the file primitive that the storage
// engine is built on: a single local file opened for random-access
// reads and writes at absolute offsets, with no buffering and no
// concept of a seek position. Every other layer of ostore (block,
// chain, addressing, meta) is built exclusively on this interface,
// so a different File implementation could in principle be
// substituted without touching the rest of the engine.
package ostorefile

// Info describes file metadata needed by the engine: just its
// current size.
type Info interface {
	// Size returns the file's current length in bytes.
	Size() int64
}

// File is a single randomly-addressed file. Implementations need not
// be safe for concurrent use: ostore's concurrency model is
// single-threaded and synchronous, so callers never call a File's
// methods from more than one goroutine at a time.
type File interface {
	// Name returns the path given to Open or Create.
	Name() string

	// Stat returns the file's current metadata.
	Stat() (Info, error)

	// ReadAt reads len(p) bytes starting at offset off, returning an
	// error (including io.EOF) if fewer than len(p) bytes are
	// available.
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes p at offset off, extending the file if
	// necessary. Bytes between the previous end of file and off that
	// are newly exposed read back as zero.
	WriteAt(p []byte, off int64) (int, error)

	// Truncate changes the file's length to size, zero-filling any
	// newly exposed bytes if size is larger than the current length.
	Truncate(size int64) error

	// Grow behaves like Truncate(size) but additionally hints to the
	// OS that the new range should be allocated on disk now, rather
	// than discovered lazily as a sparse file is written. It is used
	// when a chain grows by one or more blocks.
	Grow(size int64) error

	// Sync commits the file's contents to stable storage.
	Sync() error

	// Close releases the underlying OS resources. No other method may
	// be called on a File after Close.
	Close() error
}

// MustClose is a defer-able function that calls f.Close and panics on
// error.
func MustClose(f File) {
	if err := f.Close(); err != nil {
		panic(err)
	}
}
