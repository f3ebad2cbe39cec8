// Package chain implements the doubly-linked block chains that back
// every object in the store: growing a chain by allocating blocks
// (reusing the trash free list before extending the file), shrinking
// a chain by moving its tail blocks onto the trash chain, and walking
// a chain to find the physical block at a given sequence number.
//
// Every operation here takes and returns wire.Descriptor values by
// value; callers (the meta layer) are responsible for persisting the
// updated descriptors.
package chain

import (
	"fmt"

	"github.com/Papadiddypub/ostore/errors"
	"github.com/Papadiddypub/ostore/internal/block"
	"github.com/Papadiddypub/ostore/internal/wire"
	"github.com/Papadiddypub/ostore/must"
)

// Manager grows, shrinks and walks chains on top of a block.Store.
type Manager struct {
	b *block.Store
}

// New returns a Manager operating on the blocks of b.
func New(b *block.Store) *Manager {
	return &Manager{b: b}
}

// BlockAt returns the physical block index at sequence position seq
// within the chain described by desc.
func (m *Manager) BlockAt(desc wire.Descriptor, seq uint32) (uint32, error) {
	if seq >= desc.NumberOfBlocks {
		return 0, errors.E(errors.OutOfBounds, fmt.Sprintf("sequence %d beyond chain length %d", seq, desc.NumberOfBlocks))
	}
	cur := desc.HeadBlock
	for i := uint32(0); i < seq; i++ {
		h, err := m.b.ReadHeader(cur)
		if err != nil {
			return 0, err
		}
		cur = h.Next
		if cur == wire.NoBlock {
			return 0, errors.E(errors.Corrupt, fmt.Sprintf("chain %d ended before sequence %d", desc.ID, seq))
		}
	}
	return cur, nil
}

// Next returns the physical block index following cur within its
// chain, or wire.NoBlock if cur is the chain's tail.
func (m *Manager) Next(cur uint32) (uint32, error) {
	h, err := m.b.ReadHeader(cur)
	if err != nil {
		return 0, err
	}
	return h.Next, nil
}

// Grow appends n freshly-zeroed blocks to the tail of the chain
// described by desc, preferring to reuse blocks from the trash
// chain's tail before extending the underlying file. It returns the
// updated descriptors for the chain and for trash.
func (m *Manager) Grow(desc, trash wire.Descriptor, n uint32) (wire.Descriptor, wire.Descriptor, error) {
	for i := uint32(0); i < n; i++ {
		var (
			idx uint32
			err error
		)
		if trash.NumberOfBlocks > 0 {
			idx, trash, err = m.unlinkTail(trash)
			if err != nil {
				return desc, trash, err
			}
			if err := m.zeroPayload(idx); err != nil {
				return desc, trash, err
			}
		} else {
			idx, err = m.b.AppendBlock(wire.BlockHeader{Prev: wire.NoBlock, Next: wire.NoBlock})
			if err != nil {
				return desc, trash, errors.E(errors.NoMem, "growing chain", err)
			}
		}
		desc, err = m.linkTail(desc, idx)
		if err != nil {
			return desc, trash, err
		}
	}
	return desc, trash, nil
}

// Shrink removes n blocks from the tail of the chain described by
// desc, moving them onto the tail of the trash chain. It returns the
// updated descriptors for the chain and for trash.
func (m *Manager) Shrink(desc, trash wire.Descriptor, n uint32) (wire.Descriptor, wire.Descriptor, error) {
	if n > desc.NumberOfBlocks {
		return desc, trash, errors.E(errors.InvalidArg, fmt.Sprintf("shrinking by %d exceeds chain length %d", n, desc.NumberOfBlocks))
	}
	for i := uint32(0); i < n; i++ {
		idx, newDesc, err := m.unlinkTail(desc)
		if err != nil {
			return desc, trash, err
		}
		desc = newDesc
		trash, err = m.linkTail(trash, idx)
		if err != nil {
			return desc, trash, err
		}
	}
	return desc, trash, nil
}

// SetLength grows or shrinks the chain described by desc so that it
// has exactly targetBlocks blocks.
func (m *Manager) SetLength(desc, trash wire.Descriptor, targetBlocks uint32) (wire.Descriptor, wire.Descriptor, error) {
	switch {
	case targetBlocks > desc.NumberOfBlocks:
		return m.Grow(desc, trash, targetBlocks-desc.NumberOfBlocks)
	case targetBlocks < desc.NumberOfBlocks:
		return m.Shrink(desc, trash, desc.NumberOfBlocks-targetBlocks)
	default:
		return desc, trash, nil
	}
}

// unlinkTail detaches desc's tail block and returns its physical
// index along with the updated descriptor. desc must have at least
// one block.
func (m *Manager) unlinkTail(desc wire.Descriptor) (uint32, wire.Descriptor, error) {
	if desc.NumberOfBlocks == 0 {
		return 0, desc, errors.E(errors.Corrupt, fmt.Sprintf("chain %d is empty", desc.ID))
	}
	victim := desc.TailBlock
	h, err := m.b.ReadHeader(victim)
	if err != nil {
		return 0, desc, err
	}
	desc.NumberOfBlocks--
	if desc.NumberOfBlocks == 0 {
		desc.HeadBlock = wire.NoBlock
		desc.TailBlock = wire.NoBlock
		return victim, desc, nil
	}
	desc.TailBlock = h.Prev
	newTail, err := m.b.ReadHeader(desc.TailBlock)
	if err != nil {
		return 0, desc, err
	}
	newTail.Next = wire.NoBlock
	if err := m.b.WriteHeader(desc.TailBlock, newTail); err != nil {
		return 0, desc, err
	}
	return victim, desc, nil
}

// linkTail appends the physical block idx to the tail of desc,
// writing idx's header to reflect its new chain membership and
// position, and returns the updated descriptor.
func (m *Manager) linkTail(desc wire.Descriptor, idx uint32) (wire.Descriptor, error) {
	must.Truef((desc.HeadBlock == wire.NoBlock) == (desc.TailBlock == wire.NoBlock),
		"chain %d: head/tail nil-ness mismatch (head=%d tail=%d)", desc.ID, desc.HeadBlock, desc.TailBlock)
	h := wire.BlockHeader{
		ObjectID: desc.ID,
		Sequence: desc.NumberOfBlocks,
		Prev:     desc.TailBlock,
		Next:     wire.NoBlock,
	}
	if err := m.b.WriteHeader(idx, h); err != nil {
		return desc, err
	}
	if desc.TailBlock != wire.NoBlock {
		tail, err := m.b.ReadHeader(desc.TailBlock)
		if err != nil {
			return desc, err
		}
		tail.Next = idx
		if err := m.b.WriteHeader(desc.TailBlock, tail); err != nil {
			return desc, err
		}
	} else {
		desc.HeadBlock = idx
	}
	desc.TailBlock = idx
	desc.NumberOfBlocks++
	return desc, nil
}

func (m *Manager) zeroPayload(idx uint32) error {
	zeros := make([]byte, m.b.BlockSize())
	return m.b.WritePayload(idx, 0, zeros)
}
