package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrTooLarge is returned when a body decompresses to more bytes than declared.
var ErrTooLarge = errors.New("compress: output exceeds declared size")

// directAllocLimit is the largest output buffer reserved up front. Larger
// outputs grow as data is actually produced.
const directAllocLimit = 1 << 20

// readBounded reads all of r, failing once more than size bytes are produced.
func readBounded(r io.Reader, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("compress: negative size %d", size)
	}
	var buf bytes.Buffer
	buf.Grow(min(size, directAllocLimit))
	n, err := buf.ReadFrom(io.LimitReader(r, int64(size)+1))
	if err != nil {
		return nil, err
	}
	if n > int64(size) {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, size)
	}
	return buf.Bytes(), nil
}
