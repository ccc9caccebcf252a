// Package sizing provides length guards against hostile allocations.
package sizing

import (
	"io"
	"math"
)

// Within reports whether n is in [0, limit]. A limit of 0 or less disables
// the upper bound.
func Within(n int64, limit int64) bool {
	if n < 0 {
		return false
	}
	return limit <= 0 || n <= limit
}

// Prealloc returns the capacity to reserve for a collection that claims n
// elements. Claims above ceiling are not trusted; the collection grows as
// elements are actually decoded.
func Prealloc(n, ceiling int) int {
	if n < 0 {
		return 0
	}
	return min(n, ceiling)
}

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int64(maxSize) + 1 //nolint:gosec // checked above
	lr := &io.LimitedReader{R: r, N: limit}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize { //nolint:gosec // len is always non-negative
		return nil, overflowErr
	}
	return data, nil
}
