// Package ostore implements an embedded, single-file binary object
// store: a fixed set of named objects, each an independently
// growable and shrinkable byte array, all packed into one file on top
// of a block-allocation engine with a free list. The store is
// single-threaded and synchronous: a *Store must not be used from more
// than one goroutine at a time, and every operation blocks until it
// completes or fails.
package ostore

import (
	"fmt"

	"github.com/Papadiddypub/ostore/errors"
	"github.com/Papadiddypub/ostore/internal/addr"
	"github.com/Papadiddypub/ostore/internal/block"
	"github.com/Papadiddypub/ostore/internal/chain"
	"github.com/Papadiddypub/ostore/internal/meta"
	"github.com/Papadiddypub/ostore/internal/wire"
	"github.com/Papadiddypub/ostore/ostorefile"
)

// DefaultBlockSize is the block size Create uses when none is given.
const DefaultBlockSize = wire.DefaultBlockSize

// Store is an open ostore file.
type Store struct {
	f ostorefile.File
	b *block.Store
	m *meta.Store
}

// Create makes a new, empty store at path with the given block size.
// It fails with Kind AlreadyExists if a file already exists there. A
// blockSize of 0 selects DefaultBlockSize.
func Create(path string, blockSize uint32) (*Store, error) {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	f, err := ostorefile.Create(path)
	if err != nil {
		return nil, err
	}
	b, err := block.Init(f, blockSize)
	if err != nil {
		ostorefile.MustClose(f)
		return nil, err
	}
	c := chain.New(b)
	a := addr.New(b, c)
	m, err := meta.Init(b, c, a)
	if err != nil {
		ostorefile.MustClose(f)
		return nil, err
	}
	return &Store{f: f, b: b, m: m}, nil
}

// Open opens an existing store at path. It fails with Kind NotFound if
// no file exists there, and with Kind Corrupt if the file is not a
// valid ostore file.
func Open(path string) (*Store, error) {
	f, err := ostorefile.Open(path)
	if err != nil {
		return nil, err
	}
	b, err := block.Open(f)
	if err != nil {
		ostorefile.MustClose(f)
		return nil, err
	}
	c := chain.New(b)
	a := addr.New(b, c)
	m, err := meta.Open(b, c, a)
	if err != nil {
		ostorefile.MustClose(f)
		return nil, err
	}
	return &Store{f: f, b: b, m: m}, nil
}

// Close flushes and closes the underlying file. No other method may
// be called on s afterward. The file is closed even if the flush
// fails, so that a failed Sync never leaks the descriptor.
func (s *Store) Close() (err error) {
	defer errors.CleanUp(s.b.Close, &err)
	return s.b.Sync()
}

// reserved reports whether id names one of the store's own
// bookkeeping chains, which no caller-supplied id may reference.
func reserved(id uint32) bool {
	return id == wire.IndexTableID || id == wire.TrashTableID
}

func checkUserID(id uint32) error {
	if reserved(id) {
		return errors.E(errors.InvalidArg, fmt.Sprintf("object id %#x is reserved", id))
	}
	return nil
}

// Enumerate returns the number of live objects in the store.
func (s *Store) Enumerate() uint32 {
	return s.m.ObjectCount
}

// IDAt returns the id of the object at enumeration position i, where
// 0 <= i < Enumerate(). Positions follow insertion order: Add appends
// at the end, and Remove shifts every later object down by one.
func (s *Store) IDAt(i uint32) (uint32, error) {
	return s.m.IDAt(i)
}

// Exists reports whether id names a live object.
func (s *Store) Exists(id uint32) bool {
	if reserved(id) {
		return false
	}
	return s.m.Exists(id)
}

// Add creates a new, empty object identified by id and immediately
// grows it to hold length bytes (zero-filled). It fails with Kind
// AlreadyExists if id is already present, and with Kind InvalidArg if
// id is reserved.
func (s *Store) Add(id uint32, length uint32) error {
	if err := checkUserID(id); err != nil {
		return err
	}
	if _, err := s.m.Add(id); err != nil {
		return err
	}
	blocks := wire.RequiredBlocksForBytes(s.b.BlockSize(), int64(length))
	if blocks == 0 {
		blocks = 1
	}
	if _, err := s.m.GrowObject(id, blocks); err != nil {
		return err
	}
	return nil
}

// Remove deletes the object identified by id, returning its blocks to
// the free list. It fails with Kind NotFound if id is not present, and
// with Kind InvalidArg if id is reserved.
func (s *Store) Remove(id uint32) error {
	if err := checkUserID(id); err != nil {
		return err
	}
	return s.m.Remove(id)
}

// SetLength grows or shrinks the object identified by id so that its
// length is the smallest block-aligned size that can hold length
// bytes. It fails with Kind NotFound if id is not present, and with
// Kind InvalidArg if id is reserved.
func (s *Store) SetLength(id uint32, length uint32) error {
	if err := checkUserID(id); err != nil {
		return err
	}
	blocks := wire.RequiredBlocksForBytes(s.b.BlockSize(), int64(length))
	_, err := s.m.SetObjectLength(id, blocks)
	return err
}

// GetLength returns the object identified by id's current length in
// bytes, always a multiple of the store's block size. It fails with
// Kind NotFound if id is not present, and with Kind InvalidArg if id
// is reserved.
func (s *Store) GetLength(id uint32) (uint32, error) {
	if err := checkUserID(id); err != nil {
		return 0, err
	}
	d, _, err := s.m.Find(id)
	if err != nil {
		return 0, err
	}
	return d.NumberOfBlocks * s.b.BlockSize(), nil
}

// Read reads len(p) bytes from the object identified by id starting
// at byte offset position. position+len(p) must not exceed the
// object's current length. It fails with Kind NotFound if id is not
// present, Kind OutOfBounds if the range is out of range, and Kind
// InvalidArg if id is reserved.
func (s *Store) Read(id uint32, position uint32, p []byte) error {
	if err := checkUserID(id); err != nil {
		return err
	}
	d, _, err := s.m.Find(id)
	if err != nil {
		return err
	}
	return s.m.Addr().ReadAt(d, int64(position), p)
}

// Write writes p into the object identified by id starting at byte
// offset position. position+len(p) may reach, but must not exceed,
// the object's current length; callers that want to write past the
// current length must call SetLength first. It fails with Kind
// NotFound if id is not present, Kind OutOfBounds if the range is out
// of range, and Kind InvalidArg if id is reserved.
func (s *Store) Write(id uint32, position uint32, p []byte) error {
	if err := checkUserID(id); err != nil {
		return err
	}
	d, _, err := s.m.Find(id)
	if err != nil {
		return err
	}
	return s.m.Addr().WriteAt(d, int64(position), p)
}
