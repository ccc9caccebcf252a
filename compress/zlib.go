package compress

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zlib"
)

// Zlib compresses bodies with zlib, the codec the format's producers use
// for most files.
type Zlib struct {
	level int
}

// NewZlib returns a zlib provider. level is one of the zlib constants
// (zlib.DefaultCompression, zlib.BestSpeed, ...).
func NewZlib(level int) *Zlib {
	return &Zlib{level: level}
}

// Compress implements core.Compressor.
func (z *Zlib) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, z.level)
	if err != nil {
		return nil, fmt.Errorf("compress: zlib writer: %w", err)
	}
	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("compress: zlib write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress: zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress implements core.Compressor.
func (z *Zlib) Decompress(src []byte, size int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("compress: zlib reader: %w", err)
	}
	defer zr.Close()

	out, err := readBounded(zr, size)
	if err != nil {
		return nil, fmt.Errorf("compress: zlib: %w", err)
	}
	return out, nil
}
