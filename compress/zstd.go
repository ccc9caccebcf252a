package compress

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstd compresses bodies with zstd. Decoders are pooled and reused across
// calls.
type Zstd struct {
	level zstd.EncoderLevel

	pool                  sync.Pool
	maxDecoderMemory      uint64
	decoderConcurrencySet bool
	decoderConcurrency    int
	decoderLowmemSet      bool
	decoderLowmem         bool

	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error
}

// ZstdOption configures a Zstd provider.
type ZstdOption func(*Zstd)

// WithZstdLevel sets the encoder level (default zstd.SpeedDefault).
func WithZstdLevel(level zstd.EncoderLevel) ZstdOption {
	return func(z *Zstd) {
		z.level = level
	}
}

// WithZstdMaxDecoderMemory caps the memory a decoder may use. 0 applies no
// limit beyond the declared body size.
func WithZstdMaxDecoderMemory(limit uint64) ZstdOption {
	return func(z *Zstd) {
		z.maxDecoderMemory = limit
	}
}

// WithZstdDecoderConcurrency sets the decoder concurrency level.
func WithZstdDecoderConcurrency(n int) ZstdOption {
	return func(z *Zstd) {
		if n < 0 {
			n = 0
		}
		z.decoderConcurrency = n
		z.decoderConcurrencySet = true
	}
}

// WithZstdDecoderLowmem enables or disables low-memory mode for decoders.
func WithZstdDecoderLowmem(b bool) ZstdOption {
	return func(z *Zstd) {
		z.decoderLowmem = b
		z.decoderLowmemSet = true
	}
}

// NewZstd returns a zstd provider.
func NewZstd(opts ...ZstdOption) *Zstd {
	z := &Zstd{
		level:                 zstd.SpeedDefault,
		decoderConcurrencySet: true,
		decoderConcurrency:    1,
		decoderLowmemSet:      true,
	}
	for _, opt := range opts {
		opt(z)
	}
	z.pool.New = func() any {
		dec, err := z.newDecoder()
		if err != nil {
			return nil
		}
		return dec
	}
	return z
}

// Compress implements core.Compressor.
func (z *Zstd) Compress(src []byte) ([]byte, error) {
	z.encOnce.Do(func() {
		z.enc, z.encErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(z.level),
			zstd.WithEncoderConcurrency(1))
	})
	if z.encErr != nil {
		return nil, fmt.Errorf("compress: zstd encoder: %w", z.encErr)
	}
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2+64)), nil
}

// Decompress implements core.Compressor.
func (z *Zstd) Decompress(src []byte, size int) ([]byte, error) {
	dec, release, err := z.get()
	if err != nil {
		return nil, fmt.Errorf("compress: zstd decoder: %w", err)
	}
	defer release()

	if err := dec.Reset(bytes.NewReader(src)); err != nil {
		return nil, fmt.Errorf("compress: zstd reset: %w", err)
	}
	out, err := readBounded(dec, size)
	if err != nil {
		return nil, fmt.Errorf("compress: zstd: %w", err)
	}
	return out, nil
}

// get returns a pooled decoder and the function that gives it back.
func (z *Zstd) get() (*zstd.Decoder, func(), error) {
	if dec, ok := z.pool.Get().(*zstd.Decoder); ok && dec != nil {
		return dec, func() {
			_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
			z.pool.Put(dec)
		}, nil
	}
	// Pool's New function failed; try directly.
	dec, err := z.newDecoder()
	if err != nil {
		return nil, nil, err
	}
	return dec, dec.Close, nil
}

func (z *Zstd) newDecoder() (*zstd.Decoder, error) {
	opts := make([]zstd.DOption, 0, 3)
	if z.decoderConcurrencySet {
		opts = append(opts, zstd.WithDecoderConcurrency(z.decoderConcurrency))
	}
	if z.decoderLowmemSet {
		opts = append(opts, zstd.WithDecoderLowmem(z.decoderLowmem))
	}
	if z.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(z.maxDecoderMemory))
	}
	return zstd.NewReader(nil, opts...)
}
