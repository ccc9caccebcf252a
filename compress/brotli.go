package compress

import (
	"bytes"
	"fmt"

	"github.com/andybalholm/brotli"
)

// Brotli compresses bodies with brotli.
type Brotli struct {
	quality int
}

// NewBrotli returns a brotli provider. quality ranges from
// brotli.BestSpeed to brotli.BestCompression.
func NewBrotli(quality int) *Brotli {
	return &Brotli{quality: quality}
}

// Compress implements core.Compressor.
func (b *Brotli) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	bw := brotli.NewWriterLevel(&buf, b.quality)
	if _, err := bw.Write(src); err != nil {
		return nil, fmt.Errorf("compress: brotli write: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("compress: brotli close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress implements core.Compressor.
func (b *Brotli) Decompress(src []byte, size int) ([]byte, error) {
	out, err := readBounded(brotli.NewReader(bytes.NewReader(src)), size)
	if err != nil {
		return nil, fmt.Errorf("compress: brotli: %w", err)
	}
	return out, nil
}
