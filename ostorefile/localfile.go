package ostorefile

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/Papadiddypub/ostore/errors"
)

type localFile struct {
	f    *os.File
	path string
}

type localInfo struct {
	size int64
}

func (i *localInfo) Size() int64 { return i.size }

// Open opens an existing file at path for random-access reads and
// writes. It fails with Kind NotFound if no file exists at path.
func Open(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotFound, fmt.Sprintf("open %s", path), err)
		}
		return nil, errors.E(errors.IO, fmt.Sprintf("open %s", path), err)
	}
	return &localFile{f: f, path: path}, nil
}

// Create creates a new file at path for random-access reads and
// writes. It fails with Kind AlreadyExists if a file already exists
// at path.
func Create(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.E(errors.AlreadyExists, fmt.Sprintf("create %s", path), err)
		}
		return nil, errors.E(errors.IO, fmt.Sprintf("create %s", path), err)
	}
	return &localFile{f: f, path: path}, nil
}

func (f *localFile) Name() string { return f.path }

func (f *localFile) Stat() (Info, error) {
	info, err := f.f.Stat()
	if err != nil {
		return nil, errors.E(errors.IO, fmt.Sprintf("stat %s", f.path), err)
	}
	return &localInfo{size: info.Size()}, nil
}

// ReadAt distinguishes a short read at end-of-file, which means the
// file is structurally smaller than the engine expects (Kind
// Corrupt), from a genuine failure of the underlying device (Kind
// IO).
func (f *localFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.f.ReadAt(p, off)
	if err != nil {
		if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
			return n, errors.E(errors.Corrupt, fmt.Sprintf("short read of %s at %d: got %d bytes, wanted %d", f.path, off, n, len(p)), err)
		}
		return n, errors.E(errors.IO, fmt.Sprintf("read %s at %d", f.path, off), err)
	}
	return n, nil
}

func (f *localFile) WriteAt(p []byte, off int64) (int, error) {
	n, err := f.f.WriteAt(p, off)
	if err != nil {
		return n, errors.E(errors.IO, fmt.Sprintf("write %s at %d", f.path, off), err)
	}
	return n, nil
}

func (f *localFile) Truncate(size int64) error {
	if err := f.f.Truncate(size); err != nil {
		return errors.E(errors.IO, fmt.Sprintf("truncate %s to %d", f.path, size), err)
	}
	return nil
}

// preallocate is platform-specific: preallocateLinux uses fallocate,
// preallocatePortable falls back to a plain truncate.
var preallocate func(f *localFile, size int64) error

func (f *localFile) Grow(size int64) error {
	if err := preallocate(f, size); err != nil {
		return err
	}
	return nil
}

func (f *localFile) Sync() error {
	if err := f.f.Sync(); err != nil {
		return errors.E(errors.IO, fmt.Sprintf("sync %s", f.path), err)
	}
	return nil
}

func (f *localFile) Close() error {
	if err := f.f.Close(); err != nil {
		return errors.E(errors.IO, fmt.Sprintf("close %s", f.path), err)
	}
	return nil
}
