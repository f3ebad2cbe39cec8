// Package wire defines the on-disk layout of an ostore file: the
// file header, the per-file bootstrap area, block headers and object
// descriptors, and the fixed-width little-endian encoding of each.
// Nothing in this package touches a file; it only converts between
// Go structs and their byte representations, and computes the
// absolute and block-relative offsets the rest of the engine uses to
// place them.
package wire

import "encoding/binary"

// Magic identifies an ostore file. It is the first four bytes of any
// valid file.
const Magic uint32 = 0x4f53544f // "OSTO"

// BlockMagic identifies a block header. Every block begins with it.
const BlockMagic uint32 = 0x424c4b48 // "BLKH"

// Version is the on-disk format version. Open rejects any file whose
// stored version does not match exactly.
const Version uint32 = 1

// NoBlock is the sentinel physical block index meaning "no block":
// it terminates a chain's head/tail/prev/next links.
const NoBlock uint32 = 0xffffffff

// IndexTableID and TrashTableID are the two object ids reserved for
// the store's own bookkeeping chains. No caller-supplied id may equal
// either; Add, Remove, SetLength, GetLength, Read and Write all
// reject them with InvalidArg.
const (
	IndexTableID uint32 = 0xfffffffe
	TrashTableID uint32 = 0xfffffffd
)

// DefaultBlockSize is the block size used by Create when the caller
// does not request one explicitly.
const DefaultBlockSize uint32 = 4096

// Sizes, in bytes, of the fixed-width structures below.
const (
	FileHeaderSize  = 16
	BlockHeaderSize = 24
	DescriptorSize  = 16

	// BootstrapSize is the size of the bootstrap prefix living at the
	// start of block 0's payload: object count + index descriptor +
	// trash descriptor. It is consumed directly via absolute-offset
	// field access, never through the chain addressing routine.
	BootstrapSize = 4 + 2*DescriptorSize

	// ReservedWordSize is a further leading word of the index chain's
	// own logical payload, immediately after the bootstrap prefix,
	// that the object-descriptor formula in the source layout leaves
	// unused. Descriptor slot i sits at logical offset
	// ReservedWordSize + i*DescriptorSize within the index chain's
	// post-bootstrap address space.
	ReservedWordSize = 4
)

// FileHeader is the first 16 bytes of an ostore file.
type FileHeader struct {
	Magic      uint32
	Version    uint32
	BlockSize  uint32
	BlockCount uint32
}

// Encode writes h to a fixed 16-byte buffer.
func (h FileHeader) Encode() []byte {
	b := make([]byte, FileHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.BlockSize)
	binary.LittleEndian.PutUint32(b[12:16], h.BlockCount)
	return b
}

// DecodeFileHeader parses a FileHeader from b, which must be at least
// FileHeaderSize bytes.
func DecodeFileHeader(b []byte) FileHeader {
	return FileHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		BlockSize:  binary.LittleEndian.Uint32(b[8:12]),
		BlockCount: binary.LittleEndian.Uint32(b[12:16]),
	}
}

// BlockHeader prefixes every block: the file is a FileHeader followed
// by (BlockHeader, payload) pairs repeating BlockCount times. Block
// 0's payload additionally begins with the bootstrap area (see
// BootstrapOffset).
type BlockHeader struct {
	Magic      uint32
	ObjectID   uint32 // id of the chain this block belongs to
	BlockIndex uint32 // this block's own physical index
	Sequence   uint32 // 0-based position within its chain
	Prev       uint32 // physical index of previous block, or NoBlock
	Next       uint32 // physical index of next block, or NoBlock
}

// Encode writes h to a fixed 24-byte buffer.
func (h BlockHeader) Encode() []byte {
	b := make([]byte, BlockHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.ObjectID)
	binary.LittleEndian.PutUint32(b[8:12], h.BlockIndex)
	binary.LittleEndian.PutUint32(b[12:16], h.Sequence)
	binary.LittleEndian.PutUint32(b[16:20], h.Prev)
	binary.LittleEndian.PutUint32(b[20:24], h.Next)
	return b
}

// DecodeBlockHeader parses a BlockHeader from b, which must be at
// least BlockHeaderSize bytes.
func DecodeBlockHeader(b []byte) BlockHeader {
	return BlockHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		ObjectID:   binary.LittleEndian.Uint32(b[4:8]),
		BlockIndex: binary.LittleEndian.Uint32(b[8:12]),
		Sequence:   binary.LittleEndian.Uint32(b[12:16]),
		Prev:       binary.LittleEndian.Uint32(b[16:20]),
		Next:       binary.LittleEndian.Uint32(b[20:24]),
	}
}

// Descriptor is a chain's root: the object id it belongs to, its
// head and tail physical block indices, and its length in blocks.
// The same structure describes user objects, the object-index chain
// and the trash chain.
type Descriptor struct {
	ID             uint32
	HeadBlock      uint32
	TailBlock      uint32
	NumberOfBlocks uint32
}

// Encode writes d to a fixed 16-byte buffer.
func (d Descriptor) Encode() []byte {
	b := make([]byte, DescriptorSize)
	binary.LittleEndian.PutUint32(b[0:4], d.ID)
	binary.LittleEndian.PutUint32(b[4:8], d.HeadBlock)
	binary.LittleEndian.PutUint32(b[8:12], d.TailBlock)
	binary.LittleEndian.PutUint32(b[12:16], d.NumberOfBlocks)
	return b
}

// DecodeDescriptor parses a Descriptor from b, which must be at least
// DescriptorSize bytes.
func DecodeDescriptor(b []byte) Descriptor {
	return Descriptor{
		ID:             binary.LittleEndian.Uint32(b[0:4]),
		HeadBlock:      binary.LittleEndian.Uint32(b[4:8]),
		TailBlock:      binary.LittleEndian.Uint32(b[8:12]),
		NumberOfBlocks: binary.LittleEndian.Uint32(b[12:16]),
	}
}

// Empty reports whether d describes a chain with no blocks.
func (d Descriptor) Empty() bool {
	return d.NumberOfBlocks == 0
}

// FirstBlockOffset returns the absolute file offset of block 0's
// header, immediately after the file header. Every block, including
// block 0, has an identical BlockHeaderSize+blockSize footprint; the
// bootstrap area lives inside block 0's payload, not in a separate
// region (see BootstrapOffset).
func FirstBlockOffset() int64 {
	return FileHeaderSize
}

// BlockOffset returns the absolute file offset of the header of the
// n'th physical block, given the file's block payload size.
func BlockOffset(blockSize uint32, n uint32) int64 {
	return FirstBlockOffset() + int64(n)*(BlockHeaderSize+int64(blockSize))
}

// BootstrapOffset returns the absolute file offset of the bootstrap
// area's object-count field, at the very start of block 0's payload.
// The index descriptor follows it at BootstrapOffset()+4, and the
// trash descriptor at BootstrapOffset()+20.
func BootstrapOffset() int64 {
	return BlockPayloadOffset(0, 0)
}

// IndexDescriptorOffset returns the absolute file offset of the
// persisted index-chain descriptor.
func IndexDescriptorOffset() int64 {
	return BootstrapOffset() + 4
}

// TrashDescriptorOffset returns the absolute file offset of the
// persisted trash-chain descriptor.
func TrashDescriptorOffset() int64 {
	return IndexDescriptorOffset() + DescriptorSize
}

// BlockHeaderOffset is an alias for BlockOffset, named for clarity at
// call sites that read or write only the header.
func BlockHeaderOffset(blockSize uint32, n uint32) int64 {
	return BlockOffset(blockSize, n)
}

// BlockPayloadOffset returns the absolute file offset of the n'th
// block's payload, immediately after its header.
func BlockPayloadOffset(blockSize uint32, n uint32) int64 {
	return BlockOffset(blockSize, n) + BlockHeaderSize
}

// FileSizeForBlockCount returns the total file size for a store with
// the given block size and block count.
func FileSizeForBlockCount(blockSize, blockCount uint32) int64 {
	return BlockOffset(blockSize, blockCount)
}

// RequiredBlocksForBytes returns the number of blocks of blockSize
// needed to hold length bytes, rounding up, with a minimum of zero
// for a zero length.
func RequiredBlocksForBytes(blockSize uint32, length int64) uint32 {
	if length <= 0 {
		return 0
	}
	bs := int64(blockSize)
	return uint32((length + bs - 1) / bs)
}

// RequiredBlocksForSkippedBytes returns the number of blocks needed
// to hold length logical bytes in a chain whose first block has only
// blockSize-skip usable bytes (the rest reserved by the bootstrap
// area), with every later block holding the full blockSize. It is
// used only for the index chain.
func RequiredBlocksForSkippedBytes(blockSize, skip uint32, length int64) uint32 {
	first := int64(blockSize) - int64(skip)
	if length <= 0 {
		return 1
	}
	if length <= first {
		return 1
	}
	rest := length - first
	bs := int64(blockSize)
	return 1 + uint32((rest+bs-1)/bs)
}
