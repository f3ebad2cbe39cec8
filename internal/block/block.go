// Package block provides the lowest engine layer above the raw file:
// reading and writing the file header, growing the file by appending
// new physical blocks, and reading/writing a single block's header or
// payload. It knows nothing about chains or objects.
package block

import (
	"fmt"

	"github.com/Papadiddypub/ostore/errors"
	"github.com/Papadiddypub/ostore/internal/wire"
	"github.com/Papadiddypub/ostore/ostorefile"
)

// Store wraps an ostorefile.File with block-level operations. It
// caches the file header in memory; every mutation of BlockSize or
// BlockCount is immediately persisted.
type Store struct {
	f      ostorefile.File
	Header wire.FileHeader
}

// Open reads and validates the file header and returns a Store bound
// to f. It does not read any block.
func Open(f ostorefile.File) (*Store, error) {
	buf := make([]byte, wire.FileHeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, errors.E("reading file header", err)
	}
	h := wire.DecodeFileHeader(buf)
	if h.Magic != wire.Magic {
		return nil, errors.E(errors.Corrupt, "bad file magic")
	}
	if h.Version != wire.Version {
		return nil, errors.E(errors.Corrupt, fmt.Sprintf("unsupported version %d", h.Version))
	}
	if h.BlockSize == 0 {
		return nil, errors.E(errors.Corrupt, "zero block size")
	}
	return &Store{f: f, Header: h}, nil
}

// Init writes and persists a fresh file header for a newly created
// store with a block count of zero. It appends no block; block 0, the
// index chain's head, is added by the first chain growth.
func Init(f ostorefile.File, blockSize uint32) (*Store, error) {
	s := &Store{
		f: f,
		Header: wire.FileHeader{
			Magic:      wire.Magic,
			Version:    wire.Version,
			BlockSize:  blockSize,
			BlockCount: 0,
		},
	}
	if err := s.writeHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) writeHeader() error {
	if _, err := s.f.WriteAt(s.Header.Encode(), 0); err != nil {
		return errors.E(errors.IO, "writing file header", err)
	}
	return nil
}

// BlockSize returns the store's fixed payload size per block.
func (s *Store) BlockSize() uint32 { return s.Header.BlockSize }

// BlockCount returns the number of physical blocks currently
// allocated in the file, including blocks on the trash chain.
func (s *Store) BlockCount() uint32 { return s.Header.BlockCount }

// AppendBlock extends the file by one physical block, writes its
// header, zero-fills its payload, and returns its new physical index.
// It does not link the block into any chain; callers do that.
func (s *Store) AppendBlock(h wire.BlockHeader) (uint32, error) {
	n := s.Header.BlockCount
	h.BlockIndex = n
	h.Magic = wire.BlockMagic
	newSize := wire.BlockOffset(s.Header.BlockSize, n+1)
	if err := s.f.Grow(newSize); err != nil {
		return 0, errors.E(errors.NoMem, fmt.Sprintf("extending file to %d bytes", newSize), err)
	}
	if _, err := s.f.WriteAt(h.Encode(), wire.BlockHeaderOffset(s.Header.BlockSize, n)); err != nil {
		return 0, errors.E(errors.IO, fmt.Sprintf("writing header for new block %d", n), err)
	}
	s.Header.BlockCount = n + 1
	if err := s.writeHeader(); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadHeader reads the header of physical block n.
func (s *Store) ReadHeader(n uint32) (wire.BlockHeader, error) {
	if n >= s.Header.BlockCount {
		return wire.BlockHeader{}, errors.E(errors.Corrupt, fmt.Sprintf("block %d out of range", n))
	}
	buf := make([]byte, wire.BlockHeaderSize)
	if _, err := s.f.ReadAt(buf, wire.BlockHeaderOffset(s.Header.BlockSize, n)); err != nil {
		return wire.BlockHeader{}, errors.E(fmt.Sprintf("reading header for block %d", n), err)
	}
	h := wire.DecodeBlockHeader(buf)
	if h.Magic != wire.BlockMagic {
		return wire.BlockHeader{}, errors.E(errors.Corrupt, fmt.Sprintf("bad magic in block %d", n))
	}
	if h.BlockIndex != n {
		return wire.BlockHeader{}, errors.E(errors.Corrupt, fmt.Sprintf("block %d header claims index %d", n, h.BlockIndex))
	}
	return h, nil
}

// WriteHeader overwrites the header of physical block n.
func (s *Store) WriteHeader(n uint32, h wire.BlockHeader) error {
	h.BlockIndex = n
	h.Magic = wire.BlockMagic
	if _, err := s.f.WriteAt(h.Encode(), wire.BlockHeaderOffset(s.Header.BlockSize, n)); err != nil {
		return errors.E(errors.IO, fmt.Sprintf("writing header for block %d", n), err)
	}
	return nil
}

// ReadPayload reads len(p) bytes from block n's payload starting at
// byte offset within the block. offset+len(p) must not exceed the
// block size.
func (s *Store) ReadPayload(n uint32, offset uint32, p []byte) error {
	if uint64(offset)+uint64(len(p)) > uint64(s.Header.BlockSize) {
		return errors.E(errors.Corrupt, fmt.Sprintf("payload read past end of block %d", n))
	}
	at := wire.BlockPayloadOffset(s.Header.BlockSize, n) + int64(offset)
	if _, err := s.f.ReadAt(p, at); err != nil {
		return errors.E(fmt.Sprintf("reading payload of block %d", n), err)
	}
	return nil
}

// WritePayload writes p into block n's payload starting at byte
// offset within the block. offset+len(p) must not exceed the block
// size.
func (s *Store) WritePayload(n uint32, offset uint32, p []byte) error {
	if uint64(offset)+uint64(len(p)) > uint64(s.Header.BlockSize) {
		return errors.E(errors.Corrupt, fmt.Sprintf("payload write past end of block %d", n))
	}
	at := wire.BlockPayloadOffset(s.Header.BlockSize, n) + int64(offset)
	if _, err := s.f.WriteAt(p, at); err != nil {
		return errors.E(errors.IO, fmt.Sprintf("writing payload of block %d", n), err)
	}
	return nil
}

// ReadBootstrapField reads one of the three fixed-offset bootstrap
// fields (object count, index descriptor, trash descriptor).
func (s *Store) ReadBootstrapField(off int64, p []byte) error {
	if _, err := s.f.ReadAt(p, off); err != nil {
		return errors.E(fmt.Sprintf("reading bootstrap field at %d", off), err)
	}
	return nil
}

// WriteBootstrapField overwrites one of the three fixed-offset
// bootstrap fields in place.
func (s *Store) WriteBootstrapField(off int64, p []byte) error {
	if _, err := s.f.WriteAt(p, off); err != nil {
		return errors.E(errors.IO, fmt.Sprintf("writing bootstrap field at %d", off), err)
	}
	return nil
}

// Sync flushes the underlying file to stable storage.
func (s *Store) Sync() error {
	if err := s.f.Sync(); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying file.
func (s *Store) Close() error {
	return s.f.Close()
}
