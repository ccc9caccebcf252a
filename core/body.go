package core

import (
	"fmt"
	"io"

	"github.com/meigma/gbx/core/internal/sizing"
)

// Body is the stored form of a container body.
type Body struct {
	// Compression is how Raw is stored.
	Compression Compression

	UncompressedSize int32

	// CompressedSize is 0 for uncompressed bodies.
	CompressedSize int32

	// Raw holds the body bytes as stored. It is nil after the graph has been
	// decoded unless WithRetainRawBody was set.
	Raw []byte

	// Err is the decode failure captured by WithContainedBodyErrors. A body
	// with an error cannot be written.
	Err error
}

// ParseBody reads body framing for the given compression from r. The
// returned body holds the stored bytes; it is not decompressed.
func ParseBody(r io.Reader, compression Compression, opts ...ReadOption) (*Body, error) {
	return NewReader(r, opts...).ReadBody(compression)
}

// ReadBody reads body framing. Declared sizes are validated against
// MaxDataSize and the configured maximum before anything is allocated.
func (r *Reader) ReadBody(compression Compression) (*Body, error) {
	limit := r.sess.cfg.maxBodySize
	b := &Body{Compression: compression}

	switch compression {
	case CompressionNone:
		if limit <= 0 {
			limit = MaxDataSize
		}
		raw, err := r.ReadToEnd(limit)
		if err != nil {
			return nil, fmt.Errorf("gbx: read body: %w", err)
		}
		b.Raw = raw
		b.UncompressedSize = int32(len(raw)) //nolint:gosec // bounded by MaxDataSize
		return b, nil

	case CompressionCompressed:
		var err error
		if b.UncompressedSize, err = r.ReadInt32(); err != nil {
			return nil, fmt.Errorf("gbx: read body size: %w", err)
		}
		if err := checkLength(int64(b.UncompressedSize)); err != nil {
			return nil, fmt.Errorf("gbx: uncompressed body size: %w", err)
		}
		if !sizing.Within(int64(b.UncompressedSize), limit) {
			return nil, fmt.Errorf("gbx: uncompressed body size: %w", lengthLimit(int64(b.UncompressedSize), limit))
		}
		if b.CompressedSize, err = r.ReadInt32(); err != nil {
			return nil, fmt.Errorf("gbx: read compressed body size: %w", err)
		}
		if err := checkLength(int64(b.CompressedSize)); err != nil {
			return nil, fmt.Errorf("gbx: compressed body size: %w", err)
		}
		if b.Raw, err = r.ReadBytes(int(b.CompressedSize)); err != nil {
			return nil, fmt.Errorf("gbx: read compressed body: %w", err)
		}
		return b, nil

	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidCompression, byte(compression))
	}
}

// Decompress returns the uncompressed body bytes, decompressing Raw with comp
// when the body is compressed.
func (b *Body) Decompress(comp Compressor) ([]byte, error) {
	if b.Raw == nil {
		return nil, ErrNoBody
	}
	if b.Compression != CompressionCompressed {
		return b.Raw, nil
	}
	return decompressBody(comp, b.Raw, int(b.UncompressedSize))
}

// WriteBody writes body framing for plain, compressing it when compression
// says so.
func (w *Writer) WriteBody(compression Compression, plain []byte) error {
	switch compression {
	case CompressionNone:
		if err := checkLength(int64(len(plain))); err != nil {
			return err
		}
		return w.WriteBytes(plain)
	case CompressionCompressed:
		if err := checkLength(int64(len(plain))); err != nil {
			return err
		}
		packed, err := compressBody(w.sess.cfg.compressor, plain)
		if err != nil {
			return err
		}
		return w.writeStoredBody(int32(len(plain)), packed) //nolint:gosec // checked against MaxDataSize
	default:
		return fmt.Errorf("%w: 0x%02X", ErrInvalidCompression, byte(compression))
	}
}

func (w *Writer) writeStoredBody(uncompressedSize int32, packed []byte) error {
	if err := w.WriteInt32(uncompressedSize); err != nil {
		return err
	}
	return w.WriteData(packed)
}
