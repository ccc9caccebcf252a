package core_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gbx/core"
	"github.com/meigma/gbx/core/testutil"
)

func TestReadChunks_OpaqueSkippableRoundTrip(t *testing.T) {
	t.Parallel()

	unknown := testutil.ClassMap | 0x0F1 | core.SkippableBit
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01}

	var b testutil.Builder
	b.U32(unknown).Data(payload)
	b.U32(testutil.ChunkMapRaw).Data([]byte{1, 2, 3})
	b.End()
	stream := b.Bytes()

	n := core.NewNode(testutil.ClassMap, nil)
	r := core.NewReader(bytes.NewReader(stream), core.WithRegistry(testutil.NewRegistry()))
	require.NoError(t, r.ReadChunks(n))

	require.Len(t, n.Chunks, 2)
	raw, ok := n.Chunks[0].(*core.RawChunk)
	require.True(t, ok)
	assert.Equal(t, unknown, raw.ChunkID)
	assert.Equal(t, payload, raw.Data)
	_, ok = n.Chunks[1].(*core.RawChunk)
	assert.True(t, ok, "a nil factory keeps the chunk raw")

	var out bytes.Buffer
	require.NoError(t, core.NewWriter(&out).WriteChunks(n))
	assert.Equal(t, stream, out.Bytes())
}

func TestReadChunks_UnsupportedChunk(t *testing.T) {
	t.Parallel()

	unknown := testutil.ClassMap | 0x0F2
	var b testutil.Builder
	b.U32(unknown).U32(0).End()

	n := core.NewNode(testutil.ClassMap, nil)
	r := core.NewReader(bytes.NewReader(b.Bytes()), core.WithRegistry(testutil.NewRegistry()))
	err := r.ReadChunks(n)

	var unsupported *core.UnsupportedChunkError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, unknown, unsupported.ChunkID)
	assert.Equal(t, testutil.ClassMap, unsupported.ClassID)

	var chunkErr *core.ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, "read", chunkErr.Op)
}

func TestReadChunks_VersionedAndInherited(t *testing.T) {
	t.Parallel()

	var b testutil.Builder
	b.U32(testutil.ChunkBaseLabel).Str("base")
	b.U32(testutil.ChunkMapExtra).Data(le32(9, 0x00030201)[:7])
	b.End()

	n := core.NewNode(testutil.ClassMap, nil)
	r := core.NewReader(bytes.NewReader(b.Bytes()), core.WithRegistry(testutil.NewRegistry()))
	require.NoError(t, r.ReadChunks(n))

	require.Len(t, n.Chunks, 2)
	label, ok := n.Chunks[0].(*testutil.LabelChunk)
	require.True(t, ok)
	assert.Equal(t, "base", label.Label)

	extra, ok := n.Chunks[1].(*testutil.ExtraChunk)
	require.True(t, ok)
	assert.Equal(t, uint32(9), extra.Flags)
	assert.Equal(t, core.Byte3{X: 1, Y: 2, Z: 3}, extra.Tint)
}

func TestReadChunks_KnownSkippableStaysAligned(t *testing.T) {
	t.Parallel()

	// Trailing bytes the chunk does not consume are dropped, and the next
	// chunk still decodes.
	var b testutil.Builder
	b.U32(testutil.ChunkMapExtra).Data(append(le32(5, 0x00030201)[:7], 0xFF, 0xFF))
	b.U32(testutil.ChunkBaseLabel).Str("after")
	b.End()

	n := core.NewNode(testutil.ClassMap, nil)
	r := core.NewReader(bytes.NewReader(b.Bytes()), core.WithRegistry(testutil.NewRegistry()))
	require.NoError(t, r.ReadChunks(n))
	require.Len(t, n.Chunks, 2)
	assert.Equal(t, "after", n.Chunks[1].(*testutil.LabelChunk).Label)
}

func TestReadChunks_SkippableOverrunFails(t *testing.T) {
	t.Parallel()

	var b testutil.Builder
	b.U32(testutil.ChunkMapExtra).Data([]byte{1, 2})
	b.End()

	n := core.NewNode(testutil.ClassMap, nil)
	r := core.NewReader(bytes.NewReader(b.Bytes()), core.WithRegistry(testutil.NewRegistry()))
	assert.Error(t, r.ReadChunks(n))
}

func TestReadChunks_ChunkOfUnrelatedClass(t *testing.T) {
	t.Parallel()

	// A Block chunk on a Map node is not valid for the Map hierarchy.
	var b testutil.Builder
	b.U32(testutil.ChunkBlock).End()

	n := core.NewNode(testutil.ClassMap, nil)
	r := core.NewReader(bytes.NewReader(b.Bytes()), core.WithRegistry(testutil.NewRegistry()))
	assert.ErrorIs(t, r.ReadChunks(n), core.ErrUnsupportedChunk)
}

func TestWriteChunks_Errors(t *testing.T) {
	t.Parallel()

	n := core.NewNode(testutil.ClassMap, nil)
	n.AddChunk(&core.RawChunk{ChunkID: testutil.ClassMap | 0x0F3, Data: []byte{1}})
	err := core.NewWriter(&bytes.Buffer{}).WriteChunks(n)
	assert.ErrorIs(t, err, core.ErrUnsupportedChunk, "raw chunks need the skippable bit")

	boom := errors.New("boom")
	n = core.NewNode(testutil.ClassMap, nil)
	n.AddChunk(&failingChunk{err: boom})
	err = core.NewWriter(&bytes.Buffer{}).WriteChunks(n)
	var chunkErr *core.ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, "write", chunkErr.Op)
	assert.ErrorIs(t, err, boom)
}

func TestChunks_VersionWritten(t *testing.T) {
	t.Parallel()

	n := core.NewNode(testutil.ClassMap, nil)
	n.AddChunk(&testutil.HeaderInfoChunk{V: 4, UID: "abc", Laps: 3})

	var buf bytes.Buffer
	require.NoError(t, core.NewWriter(&buf).WriteChunks(n))

	var want testutil.Builder
	want.U32(testutil.ChunkMapHeader).I32(4)
	want.I32(3).U32(0x40000000).Str("abc")
	want.U32(3)
	want.End()
	assert.Equal(t, want.Bytes(), buf.Bytes())

	got := core.NewNode(testutil.ClassMap, nil)
	r := core.NewReader(bytes.NewReader(buf.Bytes()), core.WithRegistry(testutil.NewRegistry()))
	require.NoError(t, r.ReadChunks(got))
	assert.Equal(t, n.Chunks, got.Chunks)
}

type failingChunk struct{ err error }

func (c *failingChunk) ID() uint32 { return testutil.ClassMap | 0x0F4 }

func (c *failingChunk) Write(*core.Node, *core.Writer) error { return c.err }

func le32(vals ...uint32) []byte {
	var b testutil.Builder
	for _, v := range vals {
		b.U32(v)
	}
	return b.Bytes()
}
