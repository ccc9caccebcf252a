package compress

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// ErrIncompressible is returned by the block encoder when the output would
// not be smaller than the input.
var ErrIncompressible = errors.New("compress: lz4: input is incompressible")

// LZ4 compresses bodies as a single raw LZ4 block. The block carries no
// length of its own; the declared uncompressed size bounds decoding.
type LZ4 struct {
	// Level selects the high-compression encoder when nonzero.
	Level lz4.CompressionLevel
}

// NewLZ4 returns an LZ4 block provider using the fast encoder.
func NewLZ4() *LZ4 {
	return &LZ4{}
}

// Compress implements core.Compressor.
func (l *LZ4) Compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	var (
		n   int
		err error
	)
	if l.Level != 0 {
		n, err = lz4.CompressBlockHC(src, dst, l.Level, nil, nil)
	} else {
		var c lz4.Compressor
		n, err = c.CompressBlock(src, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("compress: lz4: %w", err)
	}
	if n == 0 && len(src) > 0 {
		return nil, ErrIncompressible
	}
	return dst[:n], nil
}

// Decompress implements core.Compressor.
func (l *LZ4) Decompress(src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("compress: negative size %d", size)
	}
	if size == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) {
			return nil, fmt.Errorf("%w: %w", ErrTooLarge, err)
		}
		return nil, fmt.Errorf("compress: lz4: %w", err)
	}
	return dst[:n], nil
}
