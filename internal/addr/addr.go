// Package addr provides generic addressing across a chain: translating
// a logical byte offset into a sequence of (physical block, in-block
// offset, length) spans and reading or writing them in order. It is
// used identically for an object's own data chain and for the index
// chain's descriptor-array payload, which is why it only ever deals
// in wire.Descriptor and raw bytes, never object ids or semantics
// above that.
//
// The one asymmetry, per the file layout, is that the index chain's
// sequence-0 block reserves its leading wire.BootstrapSize bytes for
// the bootstrap area (object count, index descriptor, trash
// descriptor), which are read and written directly through
// block.Store rather than through this package. IndexReadAt and
// IndexWriteAt account for that reservation; ReadAt and WriteAt are
// for every other chain, including an object's own data.
package addr

import (
	"fmt"

	"github.com/Papadiddypub/ostore/errors"
	"github.com/Papadiddypub/ostore/internal/block"
	"github.com/Papadiddypub/ostore/internal/chain"
	"github.com/Papadiddypub/ostore/internal/wire"
)

// Manager reads and writes logical byte ranges of a chain.
type Manager struct {
	b *block.Store
	c *chain.Manager
}

// New returns a Manager operating on the blocks of b via c.
func New(b *block.Store, c *chain.Manager) *Manager {
	return &Manager{b: b, c: c}
}

// ReadAt reads len(p) bytes of desc's logical payload starting at
// offset into p. offset+len(p) must not exceed desc's capacity in
// bytes (desc.NumberOfBlocks * block size).
func (m *Manager) ReadAt(desc wire.Descriptor, offset int64, p []byte) error {
	return m.readWrite(desc, 0, offset, p, m.b.ReadPayload)
}

// WriteAt writes p into desc's logical payload starting at offset.
// offset+len(p) must not exceed desc's capacity in bytes
// (desc.NumberOfBlocks * block size).
func (m *Manager) WriteAt(desc wire.Descriptor, offset int64, p []byte) error {
	return m.readWrite(desc, 0, offset, p, m.b.WritePayload)
}

// IndexReadAt reads len(p) bytes of the index chain's post-bootstrap
// logical payload (everything after the reserved bootstrap area in
// its sequence-0 block) starting at offset.
func (m *Manager) IndexReadAt(desc wire.Descriptor, offset int64, p []byte) error {
	return m.readWrite(desc, wire.BootstrapSize, offset, p, m.b.ReadPayload)
}

// IndexWriteAt writes p into the index chain's post-bootstrap logical
// payload starting at offset.
func (m *Manager) IndexWriteAt(desc wire.Descriptor, offset int64, p []byte) error {
	return m.readWrite(desc, wire.BootstrapSize, offset, p, m.b.WritePayload)
}

func (m *Manager) readWrite(desc wire.Descriptor, skip uint32, offset int64, p []byte, do func(blockIdx, inBlockOff uint32, span []byte) error) error {
	n := len(p)
	if n == 0 {
		return nil
	}
	if offset < 0 {
		return errors.E(errors.InvalidArg, "negative offset")
	}
	blockSize := int64(m.b.BlockSize())
	firstCap := blockSize - int64(skip)
	capacity := int64(desc.NumberOfBlocks)*blockSize - int64(skip)
	if offset+int64(n) > capacity {
		return errors.E(errors.OutOfBounds, fmt.Sprintf("range [%d,%d) exceeds chain %d capacity %d", offset, offset+int64(n), desc.ID, capacity))
	}

	var seq uint32
	var inBlockOff uint32
	if offset < firstCap {
		seq = 0
		inBlockOff = uint32(skip) + uint32(offset)
	} else {
		rel := offset - firstCap
		seq = 1 + uint32(rel/blockSize)
		inBlockOff = uint32(rel % blockSize)
	}

	blockIdx, err := m.c.BlockAt(desc, seq)
	if err != nil {
		return err
	}

	remaining := p
	for len(remaining) > 0 {
		spanLen := uint32(blockSize) - inBlockOff
		if uint32(len(remaining)) < spanLen {
			spanLen = uint32(len(remaining))
		}
		if err := do(blockIdx, inBlockOff, remaining[:spanLen]); err != nil {
			return err
		}
		remaining = remaining[spanLen:]
		inBlockOff = 0
		if len(remaining) > 0 {
			next, err := m.c.Next(blockIdx)
			if err != nil {
				return err
			}
			if next == wire.NoBlock {
				return errors.E(errors.Corrupt, fmt.Sprintf("chain %d ended mid-range", desc.ID))
			}
			blockIdx = next
		}
	}
	return nil
}
