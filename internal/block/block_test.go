package block

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Papadiddypub/ostore/internal/wire"
	"github.com/Papadiddypub/ostore/ostorefile"
)

func newStore(t *testing.T, blockSize uint32) *Store {
	t.Helper()
	f, err := ostorefile.Create(filepath.Join(t.TempDir(), "store.ostore"))
	require.NoError(t, err)
	s, err := Init(f, blockSize)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestInitStartsWithNoBlocks(t *testing.T) {
	s := newStore(t, 64)
	require.EqualValues(t, 64, s.BlockSize())
	require.EqualValues(t, 0, s.BlockCount())
}

func TestAppendBlockAssignsSequentialIndices(t *testing.T) {
	s := newStore(t, 64)
	for want := uint32(0); want < 3; want++ {
		n, err := s.AppendBlock(wire.BlockHeader{ObjectID: 9, Sequence: want, Prev: wire.NoBlock, Next: wire.NoBlock})
		require.NoError(t, err)
		require.Equal(t, want, n)
	}
	require.EqualValues(t, 3, s.BlockCount())

	h, err := s.ReadHeader(1)
	require.NoError(t, err)
	require.EqualValues(t, 9, h.ObjectID)
	require.EqualValues(t, 1, h.Sequence)
	require.EqualValues(t, 1, h.BlockIndex)
}

func TestReadHeaderRejectsOutOfRange(t *testing.T) {
	s := newStore(t, 64)
	_, err := s.ReadHeader(0)
	require.Error(t, err)
}

func TestPayloadReadWriteRoundTrip(t *testing.T) {
	s := newStore(t, 64)
	_, err := s.AppendBlock(wire.BlockHeader{ObjectID: 1, Sequence: 0, Prev: wire.NoBlock, Next: wire.NoBlock})
	require.NoError(t, err)

	want := bytes.Repeat([]byte{0x42}, 10)
	require.NoError(t, s.WritePayload(0, 20, want))

	got := make([]byte, 10)
	require.NoError(t, s.ReadPayload(0, 20, got))
	require.Equal(t, want, got)
}

func TestPayloadWritePastBlockSizeFails(t *testing.T) {
	s := newStore(t, 64)
	_, err := s.AppendBlock(wire.BlockHeader{ObjectID: 1, Sequence: 0, Prev: wire.NoBlock, Next: wire.NoBlock})
	require.NoError(t, err)

	require.Error(t, s.WritePayload(0, 60, make([]byte, 10)))
	require.NoError(t, s.WritePayload(0, 0, make([]byte, 64)))
}

func TestBootstrapFieldRoundTrip(t *testing.T) {
	s := newStore(t, 128)
	_, err := s.AppendBlock(wire.BlockHeader{ObjectID: wire.IndexTableID, Sequence: 0, Prev: wire.NoBlock, Next: wire.NoBlock})
	require.NoError(t, err)

	d := wire.Descriptor{ID: wire.IndexTableID, HeadBlock: 0, TailBlock: 0, NumberOfBlocks: 1}
	require.NoError(t, s.WriteBootstrapField(wire.IndexDescriptorOffset(), d.Encode()))

	got := make([]byte, wire.DescriptorSize)
	require.NoError(t, s.ReadBootstrapField(wire.IndexDescriptorOffset(), got))
	require.Equal(t, d, wire.DecodeDescriptor(got))
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.ostore")
	f, err := ostorefile.Create(path)
	require.NoError(t, err)
	_, err = Init(f, 64)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := ostorefile.Open(path)
	require.NoError(t, err)
	defer f2.Close()

	bad := wire.FileHeader{Magic: 0, Version: wire.Version, BlockSize: 64}
	_, err = f2.WriteAt(bad.Encode(), 0)
	require.NoError(t, err)

	_, err = Open(f2)
	require.Error(t, err)
}
