// Package meta implements the store's bookkeeping: the bootstrap area
// (object count, index-chain descriptor, trash-chain descriptor) and
// the object-index chain itself, which holds one wire.Descriptor per
// live object. It provides the object-level primitives the root
// ostore package composes into its public API: finding, adding,
// removing and updating object descriptors, and growing or shrinking
// an object's own chain.
package meta

import (
	"fmt"

	"github.com/Papadiddypub/ostore/errors"
	"github.com/Papadiddypub/ostore/internal/addr"
	"github.com/Papadiddypub/ostore/internal/block"
	"github.com/Papadiddypub/ostore/internal/chain"
	"github.com/Papadiddypub/ostore/internal/wire"
)

// Store is the in-memory view of a store's bootstrap area, kept in
// sync with the on-disk copy on every mutation.
type Store struct {
	b *block.Store
	c *chain.Manager
	a *addr.Manager

	ObjectCount uint32
	Index       wire.Descriptor
	Trash       wire.Descriptor
}

// Addr returns the addressing manager used to read and write object
// payloads; the root ostore package uses it directly for Read/Write.
func (s *Store) Addr() *addr.Manager { return s.a }

// Open reads and validates block 0's header and the bootstrap area of
// an existing store.
func Open(b *block.Store, c *chain.Manager, a *addr.Manager) (*Store, error) {
	s := &Store{b: b, c: c, a: a}

	h, err := b.ReadHeader(0)
	if err != nil {
		return nil, err
	}
	if h.ObjectID != wire.IndexTableID || h.Prev != wire.NoBlock || h.Sequence != 0 {
		return nil, errors.E(errors.Corrupt, "block 0 is not a valid index chain head")
	}

	countBuf := make([]byte, 4)
	if err := b.ReadBootstrapField(wire.BootstrapOffset(), countBuf); err != nil {
		return nil, err
	}
	s.ObjectCount = leUint32(countBuf)

	idxBuf := make([]byte, wire.DescriptorSize)
	if err := b.ReadBootstrapField(wire.IndexDescriptorOffset(), idxBuf); err != nil {
		return nil, err
	}
	s.Index = wire.DecodeDescriptor(idxBuf)

	trashBuf := make([]byte, wire.DescriptorSize)
	if err := b.ReadBootstrapField(wire.TrashDescriptorOffset(), trashBuf); err != nil {
		return nil, err
	}
	s.Trash = wire.DecodeDescriptor(trashBuf)

	return s, nil
}

// Init creates a fresh bootstrap area for a newly initialized store:
// an empty trash chain and a one-block index chain ready to hold
// object descriptors.
func Init(b *block.Store, c *chain.Manager, a *addr.Manager) (*Store, error) {
	s := &Store{b: b, c: c, a: a}

	index := wire.Descriptor{ID: wire.IndexTableID, HeadBlock: wire.NoBlock, TailBlock: wire.NoBlock}
	trash := wire.Descriptor{ID: wire.TrashTableID, HeadBlock: wire.NoBlock, TailBlock: wire.NoBlock}

	index, trash, err := c.Grow(index, trash, 1)
	if err != nil {
		return nil, err
	}
	s.Index = index
	s.Trash = trash
	s.ObjectCount = 0

	if err := s.persistBootstrap(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) persistBootstrap() error {
	countBuf := make([]byte, 4)
	putUint32(countBuf, s.ObjectCount)
	if err := s.b.WriteBootstrapField(wire.BootstrapOffset(), countBuf); err != nil {
		return err
	}
	if err := s.b.WriteBootstrapField(wire.IndexDescriptorOffset(), s.Index.Encode()); err != nil {
		return err
	}
	if err := s.b.WriteBootstrapField(wire.TrashDescriptorOffset(), s.Trash.Encode()); err != nil {
		return err
	}
	return nil
}

func descriptorOffset(i uint32) int64 {
	return int64(wire.ReservedWordSize) + int64(i)*wire.DescriptorSize
}

func (s *Store) readSlot(i uint32) (wire.Descriptor, error) {
	buf := make([]byte, wire.DescriptorSize)
	if err := s.a.IndexReadAt(s.Index, descriptorOffset(i), buf); err != nil {
		return wire.Descriptor{}, err
	}
	return wire.DecodeDescriptor(buf), nil
}

func (s *Store) writeSlot(i uint32, d wire.Descriptor) error {
	return s.a.IndexWriteAt(s.Index, descriptorOffset(i), d.Encode())
}

// indexCapacityBlocks returns how many blocks the index chain needs
// to hold n descriptor slots, accounting for the bootstrap area
// reserved in its sequence-0 block.
func (s *Store) indexCapacityBlocks(n uint32) uint32 {
	bytes := int64(wire.ReservedWordSize) + int64(n)*wire.DescriptorSize
	return wire.RequiredBlocksForSkippedBytes(s.b.BlockSize(), wire.BootstrapSize, bytes)
}

// Find scans the index chain for id and returns its descriptor and
// slot position. It returns a NotFound error if id is not present.
func (s *Store) Find(id uint32) (wire.Descriptor, uint32, error) {
	for i := uint32(0); i < s.ObjectCount; i++ {
		d, err := s.readSlot(i)
		if err != nil {
			return wire.Descriptor{}, 0, err
		}
		if d.ID == id {
			return d, i, nil
		}
	}
	return wire.Descriptor{}, 0, errors.E(errors.NotFound, fmt.Sprintf("object %d not found", id))
}

// Exists reports whether id has a live descriptor in the index.
func (s *Store) Exists(id uint32) bool {
	_, _, err := s.Find(id)
	return err == nil
}

// IDAt returns the object id stored at enumeration position i.
func (s *Store) IDAt(i uint32) (uint32, error) {
	if i >= s.ObjectCount {
		return 0, errors.E(errors.OutOfBounds, fmt.Sprintf("index %d beyond %d objects", i, s.ObjectCount))
	}
	d, err := s.readSlot(i)
	if err != nil {
		return 0, err
	}
	return d.ID, nil
}

// Add inserts a new zero-length descriptor for id at the end of the
// index and grows the index chain first if it needs more capacity.
// It fails with AlreadyExists if id is already present.
func (s *Store) Add(id uint32) (wire.Descriptor, error) {
	if s.Exists(id) {
		return wire.Descriptor{}, errors.E(errors.AlreadyExists, fmt.Sprintf("object %d already exists", id))
	}

	needed := s.indexCapacityBlocks(s.ObjectCount + 1)
	if needed > s.Index.NumberOfBlocks {
		idx, trash, err := s.c.Grow(s.Index, s.Trash, needed-s.Index.NumberOfBlocks)
		if err != nil {
			return wire.Descriptor{}, err
		}
		s.Index, s.Trash = idx, trash
	}

	d := wire.Descriptor{ID: id, HeadBlock: wire.NoBlock, TailBlock: wire.NoBlock}
	if err := s.writeSlot(s.ObjectCount, d); err != nil {
		return wire.Descriptor{}, err
	}
	s.ObjectCount++
	if err := s.persistBootstrap(); err != nil {
		return wire.Descriptor{}, err
	}
	return d, nil
}

// Update overwrites the descriptor stored at id's slot.
func (s *Store) Update(d wire.Descriptor) error {
	_, i, err := s.Find(d.ID)
	if err != nil {
		return err
	}
	return s.writeSlot(i, d)
}

// GrowObject extends id's own chain by n blocks, reusing trash blocks
// first, and persists the updated descriptor and trash chain.
func (s *Store) GrowObject(id uint32, n uint32) (wire.Descriptor, error) {
	d, _, err := s.Find(id)
	if err != nil {
		return wire.Descriptor{}, err
	}
	d, trash, err := s.c.Grow(d, s.Trash, n)
	if err != nil {
		return wire.Descriptor{}, err
	}
	s.Trash = trash
	if err := s.Update(d); err != nil {
		return wire.Descriptor{}, err
	}
	if err := s.persistBootstrap(); err != nil {
		return wire.Descriptor{}, err
	}
	return d, nil
}

// SetObjectLength grows or shrinks id's own chain to exactly
// targetBlocks blocks.
func (s *Store) SetObjectLength(id uint32, targetBlocks uint32) (wire.Descriptor, error) {
	d, _, err := s.Find(id)
	if err != nil {
		return wire.Descriptor{}, err
	}
	d, trash, err := s.c.SetLength(d, s.Trash, targetBlocks)
	if err != nil {
		return wire.Descriptor{}, err
	}
	s.Trash = trash
	if err := s.Update(d); err != nil {
		return wire.Descriptor{}, err
	}
	if err := s.persistBootstrap(); err != nil {
		return wire.Descriptor{}, err
	}
	return d, nil
}

// Remove frees id's blocks to trash, then non-transactionally
// compacts the index by shifting every later slot down by one
// position and decrementing the object count. The index chain itself
// is never shrunk on remove: the vacated slot is bloat that the next
// Add reuses.
func (s *Store) Remove(id uint32) error {
	d, i, err := s.Find(id)
	if err != nil {
		return err
	}

	if d.NumberOfBlocks > 0 {
		_, trash, err := s.c.Shrink(d, s.Trash, d.NumberOfBlocks)
		if err != nil {
			return err
		}
		s.Trash = trash
	}

	for j := i; j+1 < s.ObjectCount; j++ {
		next, err := s.readSlot(j + 1)
		if err != nil {
			return err
		}
		if err := s.writeSlot(j, next); err != nil {
			return err
		}
	}
	s.ObjectCount--

	return s.persistBootstrap()
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
