package core

// Format identifies the serialization mode recorded in the header.
type Format uint8

const (
	// FormatBinary is the binary container mode, the only mode this codec decodes.
	FormatBinary Format = 'B'
	// FormatText is the legacy text mode. It is recognized and rejected.
	FormatText Format = 'T'
)

// String returns the human-readable name of the format.
func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatText:
		return "text"
	default:
		return "unknown"
	}
}

// Compression identifies how the body is stored.
type Compression uint8

const (
	CompressionNone       Compression = 'U'
	CompressionCompressed Compression = 'C'
)

// String returns the human-readable name of the compression mode.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "uncompressed"
	case CompressionCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

const (
	// Magic is the three-byte signature of every container.
	Magic = "GBX"

	// MaxDataSize is the absolute ceiling for any length-prefixed value (~268MB).
	MaxDataSize = 0x10000000

	// ChunkEnd terminates chunk lists and the header user data list.
	ChunkEnd uint32 = 0xFACADE01

	// SkippableBit marks a chunk whose payload is length-prefixed and may be
	// kept as opaque bytes when not understood.
	SkippableBit uint32 = 0x80000000

	// MaxNodeDepth bounds how deeply nodes declared inline inside other
	// nodes' chunks may nest, on read and on write.
	MaxNodeDepth = 1024

	// NullIndex is the node reference index for "no node".
	NullIndex int32 = -1

	// EmptyIDIndex encodes the empty identifier.
	EmptyIDIndex uint32 = 0xFFFFFFFF

	// MinIDVersion is the lowest ID table version this codec reads.
	MinIDVersion int32 = 3

	// IDVersion is the ID table version written by this codec.
	IDVersion int32 = 3

	classMask uint32 = 0x7FFFF000
)

// ChunkClass returns the class family a chunk ID belongs to.
func ChunkClass(chunkID uint32) uint32 {
	return chunkID & classMask
}

// IsSkippable reports whether the chunk ID carries the skippable bit.
func IsSkippable(chunkID uint32) bool {
	return chunkID&SkippableBit != 0
}
