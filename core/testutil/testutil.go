// Package testutil provides fixtures shared by the codec tests: a byte-level
// container builder, mock compressors and a small class catalog.
package testutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"github.com/meigma/gbx/core"
)

// Builder assembles little-endian byte streams by hand.
type Builder struct {
	buf bytes.Buffer
}

// U8 appends a byte.
func (b *Builder) U8(v byte) *Builder {
	b.buf.WriteByte(v)
	return b
}

// U32 appends a little-endian uint32.
func (b *Builder) U32(v uint32) *Builder {
	b.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
	return b
}

// I32 appends a little-endian int32.
func (b *Builder) I32(v int32) *Builder {
	return b.U32(uint32(v)) //nolint:gosec // two's complement reinterpretation
}

// F32 appends a little-endian float32.
func (b *Builder) F32(v float32) *Builder {
	return b.U32(math.Float32bits(v))
}

// Raw appends bytes verbatim.
func (b *Builder) Raw(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

// Str appends an int32 length-prefixed string.
func (b *Builder) Str(s string) *Builder {
	b.I32(int32(len(s))) //nolint:gosec // test strings are short
	b.buf.WriteString(s)
	return b
}

// Data appends an int32 length-prefixed blob.
func (b *Builder) Data(p []byte) *Builder {
	b.I32(int32(len(p))) //nolint:gosec // test blobs are short
	b.buf.Write(p)
	return b
}

// Header appends a binary header with no user data.
func (b *Builder) Header(classID uint32) *Builder {
	b.buf.WriteString(core.Magic)
	b.U8(byte(core.FormatBinary))
	b.U32(classID)
	return b.U32(core.ChunkEnd)
}

// Preamble appends the compression flag, node count and an empty reference table.
func (b *Builder) Preamble(c core.Compression, nodeCount int32) *Builder {
	b.U8(byte(c))
	b.I32(nodeCount)
	return b.I32(0)
}

// End appends the chunk list terminator.
func (b *Builder) End() *Builder {
	return b.U32(core.ChunkEnd)
}

// Bytes returns the assembled stream.
func (b *Builder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}

// Len returns the number of bytes assembled so far.
func (b *Builder) Len() int {
	return b.buf.Len()
}

// ErrMockCompressor is returned by a MockCompressor configured to fail.
var ErrMockCompressor = errors.New("testutil: compressor failure")

// MockCompressor is a concurrency-safe Compressor that stores bodies with a
// reversible XOR so compressed and plain bytes differ. It counts calls.
type MockCompressor struct {
	mu          sync.Mutex
	compress    int
	decompress  int
	fail        bool
	lastDeclare int
}

// NewMockCompressor returns a working mock compressor.
func NewMockCompressor() *MockCompressor {
	return &MockCompressor{}
}

// NewFailingCompressor returns a mock compressor whose calls always fail.
func NewFailingCompressor() *MockCompressor {
	return &MockCompressor{fail: true}
}

// Compress implements core.Compressor.
func (m *MockCompressor) Compress(src []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compress++
	if m.fail {
		return nil, ErrMockCompressor
	}
	return xor(src), nil
}

// Decompress implements core.Compressor.
func (m *MockCompressor) Decompress(src []byte, size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decompress++
	m.lastDeclare = size
	if m.fail {
		return nil, ErrMockCompressor
	}
	return xor(src), nil
}

// Calls returns the number of Compress and Decompress calls.
func (m *MockCompressor) Calls() (compress, decompress int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compress, m.decompress
}

// LastDeclaredSize returns the size passed to the last Decompress call.
func (m *MockCompressor) LastDeclaredSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDeclare
}

// Pack returns what Compress would produce for src.
func Pack(src []byte) []byte {
	return xor(src)
}

func xor(src []byte) []byte {
	out := make([]byte, len(src))
	for i, c := range src {
		out[i] = c ^ 0x5A
	}
	return out
}

// IdentityCompressor returns its input unchanged in both directions.
type IdentityCompressor struct{}

// Compress implements core.Compressor.
func (IdentityCompressor) Compress(src []byte) ([]byte, error) {
	return bytes.Clone(src), nil
}

// Decompress implements core.Compressor.
func (IdentityCompressor) Decompress(src []byte, _ int) ([]byte, error) {
	return bytes.Clone(src), nil
}
