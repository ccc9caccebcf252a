package core

import (
	"fmt"
	"sync/atomic"
)

// Compressor compresses and decompresses container bodies.
//
// Implementations must be safe for concurrent use: one installed Compressor
// serves every parse in the process.
type Compressor interface {
	// Compress returns the compressed form of src.
	Compress(src []byte) ([]byte, error)

	// Decompress returns the decompressed form of src. size is the declared
	// uncompressed size; implementations should not produce more than size bytes.
	Decompress(src []byte, size int) ([]byte, error)
}

type compressorBox struct{ c Compressor }

var installedCompressor atomic.Pointer[compressorBox]

// SetCompressor installs the process-wide Compressor. It is meant to be called
// once at start-up; the codec only reads it afterwards.
func SetCompressor(c Compressor) {
	installedCompressor.Store(&compressorBox{c: c})
}

// DefaultCompressor returns the installed Compressor, or nil.
func DefaultCompressor() Compressor {
	if box := installedCompressor.Load(); box != nil {
		return box.c
	}
	return nil
}

// decompressBody validates sizes and delegates to comp.
func decompressBody(comp Compressor, src []byte, uncompressedSize int) ([]byte, error) {
	if comp == nil {
		return nil, ErrNoCompressor
	}
	out, err := comp.Decompress(src, uncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("gbx: decompress body: %w", err)
	}
	if len(out) != uncompressedSize {
		return nil, fmt.Errorf("%w: got %d bytes, declared %d", ErrSizeMismatch, len(out), uncompressedSize)
	}
	return out, nil
}

// compressBody delegates to comp.
func compressBody(comp Compressor, src []byte) ([]byte, error) {
	if comp == nil {
		return nil, ErrNoCompressor
	}
	out, err := comp.Compress(src)
	if err != nil {
		return nil, fmt.Errorf("gbx: compress body: %w", err)
	}
	if len(out) > MaxDataSize {
		return nil, lengthLimit(int64(len(out)), MaxDataSize)
	}
	return out, nil
}
