package wire

import "testing"

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{Magic: Magic, Version: Version, BlockSize: 4096, BlockCount: 7}
	got := DecodeFileHeader(h.Encode())
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := BlockHeader{Magic: BlockMagic, ObjectID: 3, BlockIndex: 9, Sequence: 2, Prev: 8, Next: NoBlock}
	got := DecodeBlockHeader(h.Encode())
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := Descriptor{ID: IndexTableID, HeadBlock: 0, TailBlock: 4, NumberOfBlocks: 5}
	got := DecodeDescriptor(d.Encode())
	if got != d {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, d)
	}
	if d.Empty() {
		t.Fatalf("descriptor with blocks reported Empty")
	}
	if !(Descriptor{}).Empty() {
		t.Fatalf("zero-value descriptor should be Empty")
	}
}

func TestBlockOffsets(t *testing.T) {
	const blockSize = 128
	if got := BlockOffset(blockSize, 0); got != FirstBlockOffset() {
		t.Fatalf("block 0 offset = %d, want %d", got, FirstBlockOffset())
	}
	want := FirstBlockOffset() + (BlockHeaderSize + blockSize)
	if got := BlockOffset(blockSize, 1); got != want {
		t.Fatalf("block 1 offset = %d, want %d", got, want)
	}
	if got := BlockPayloadOffset(blockSize, 1); got != want+BlockHeaderSize {
		t.Fatalf("block 1 payload offset = %d, want %d", got, want+BlockHeaderSize)
	}
}

func TestBootstrapOffsetsLieInsideBlockZeroPayload(t *testing.T) {
	const blockSize = 128
	payloadStart := BlockPayloadOffset(blockSize, 0)
	payloadEnd := BlockOffset(blockSize, 1)

	if BootstrapOffset() != payloadStart {
		t.Fatalf("bootstrap offset = %d, want block 0 payload start %d", BootstrapOffset(), payloadStart)
	}
	if IndexDescriptorOffset() != BootstrapOffset()+4 {
		t.Fatalf("index descriptor offset = %d, want %d", IndexDescriptorOffset(), BootstrapOffset()+4)
	}
	if TrashDescriptorOffset() != IndexDescriptorOffset()+DescriptorSize {
		t.Fatalf("trash descriptor offset = %d, want %d", TrashDescriptorOffset(), IndexDescriptorOffset()+DescriptorSize)
	}
	if end := TrashDescriptorOffset() + DescriptorSize; end >= payloadEnd {
		t.Fatalf("bootstrap area (ending at %d) does not fit inside block 0's payload (ending at %d)", end, payloadEnd)
	}
}

func TestRequiredBlocksForBytes(t *testing.T) {
	cases := []struct {
		blockSize uint32
		length    int64
		want      uint32
	}{
		{4096, 0, 0},
		{4096, -1, 0},
		{4096, 1, 1},
		{4096, 4096, 1},
		{4096, 4097, 2},
	}
	for _, c := range cases {
		if got := RequiredBlocksForBytes(c.blockSize, c.length); got != c.want {
			t.Errorf("RequiredBlocksForBytes(%d,%d) = %d, want %d", c.blockSize, c.length, got, c.want)
		}
	}
}

func TestRequiredBlocksForSkippedBytes(t *testing.T) {
	const blockSize, skip = 64, 36
	cases := []struct {
		length int64
		want   uint32
	}{
		{0, 1},
		{1, 1},
		{blockSize - skip, 1},
		{blockSize - skip + 1, 2},
		{2*blockSize - skip, 2},
		{2*blockSize - skip + 1, 3},
	}
	for _, c := range cases {
		if got := RequiredBlocksForSkippedBytes(blockSize, skip, c.length); got != c.want {
			t.Errorf("RequiredBlocksForSkippedBytes(%d,%d,%d) = %d, want %d", blockSize, skip, c.length, got, c.want)
		}
	}
}
