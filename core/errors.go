package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for codec operations.
var (
	// ErrModeNotSupported is returned when an operation is invoked in a format
	// mode this codec cannot handle (the text mode).
	ErrModeNotSupported = errors.New("gbx: format mode not supported")

	// ErrLengthLimit is returned when a declared length exceeds MaxDataSize or
	// a configured maximum. It is raised before anything is allocated.
	ErrLengthLimit = errors.New("gbx: length limit exceeded")

	// ErrRange is returned when a decoded value falls outside its valid range.
	ErrRange = errors.New("gbx: value out of range")

	// ErrUnsupportedVersion is returned for unsupported ID table versions.
	ErrUnsupportedVersion = errors.New("gbx: unsupported version")

	// ErrUnsupportedChunk is returned for an unknown chunk that cannot be skipped.
	ErrUnsupportedChunk = errors.New("gbx: unsupported chunk")

	// ErrUnknownClass is returned when no factory exists for a class ID.
	ErrUnknownClass = errors.New("gbx: unknown class")

	// ErrInvalidIndex is returned when a lookback index does not resolve.
	ErrInvalidIndex = errors.New("gbx: invalid lookback index")

	// ErrIDNotString is returned when a numeric identifier is read as a string.
	ErrIDNotString = errors.New("gbx: identifier is not a string")

	// ErrNoCompressor is returned when a compressed body is decoded or encoded
	// without a Compressor installed.
	ErrNoCompressor = errors.New("gbx: no compressor installed")

	// ErrSizeMismatch is returned when decompressed data does not match the
	// declared uncompressed size.
	ErrSizeMismatch = errors.New("gbx: body size mismatch")

	// ErrInvalidMagic is returned when the stream does not start with "GBX".
	ErrInvalidMagic = errors.New("gbx: invalid magic")

	// ErrInvalidCompression is returned for an unknown body compression flag.
	ErrInvalidCompression = errors.New("gbx: invalid compression flag")

	// ErrRawBodyNode is returned when raw-body mode is combined with decoding
	// into a node.
	ErrRawBodyNode = errors.New("gbx: raw body mode cannot decode into a node")

	// ErrPartialBody is returned when writing a body whose decode failed and
	// was contained.
	ErrPartialBody = errors.New("gbx: body was only partially decoded")

	// ErrExternalRef is returned when an in-body node was expected but the
	// reference points into the reference table.
	ErrExternalRef = errors.New("gbx: reference points to an external file")

	// ErrNoHeader is returned when writing a container without a header.
	ErrNoHeader = errors.New("gbx: no header")

	// ErrNoBody is returned when there is neither a node nor raw body to operate on.
	ErrNoBody = errors.New("gbx: no body")

	// ErrNestingTooDeep is returned when inline node references nest deeper
	// than MaxNodeDepth.
	ErrNestingTooDeep = errors.New("gbx: node nesting too deep")

	// ErrRootReference is returned when writing a graph in which a node
	// references the body root. The root has no lookback index.
	ErrRootReference = errors.New("gbx: reference to the body root")
)

// ModeError reports an operation attempted in an unsupported format mode.
type ModeError struct {
	Mode Format
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrModeNotSupported, e.Mode)
}

func (e *ModeError) Unwrap() error { return ErrModeNotSupported }

// LengthLimitError reports a declared length above its ceiling.
type LengthLimitError struct {
	Length int64
	Limit  int64
}

func (e *LengthLimitError) Error() string {
	return fmt.Sprintf("%v: %d exceeds %d", ErrLengthLimit, e.Length, e.Limit)
}

func (e *LengthLimitError) Unwrap() error { return ErrLengthLimit }

// RangeError reports a decoded value outside its valid range.
type RangeError struct {
	What  string
	Value int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: %s = %d", ErrRange, e.What, e.Value)
}

func (e *RangeError) Unwrap() error { return ErrRange }

// VersionError reports an unsupported version value.
type VersionError struct {
	What    string
	Version int32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%v: %s version %d", ErrUnsupportedVersion, e.What, e.Version)
}

func (e *VersionError) Unwrap() error { return ErrUnsupportedVersion }

// InvalidIndexError reports a lookback index with no entry.
type InvalidIndexError struct {
	What  string
	Index uint32
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("%v: %s 0x%08X", ErrInvalidIndex, e.What, e.Index)
}

func (e *InvalidIndexError) Unwrap() error { return ErrInvalidIndex }

// UnknownClassError reports a class ID the NodeFactory cannot create.
type UnknownClassError struct {
	ClassID uint32
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("%v: 0x%08X", ErrUnknownClass, e.ClassID)
}

func (e *UnknownClassError) Unwrap() error { return ErrUnknownClass }

// UnsupportedChunkError reports an unknown, non-skippable chunk.
type UnsupportedChunkError struct {
	ClassID uint32
	ChunkID uint32
}

func (e *UnsupportedChunkError) Error() string {
	return fmt.Sprintf("%v: 0x%08X in class 0x%08X", ErrUnsupportedChunk, e.ChunkID, e.ClassID)
}

func (e *UnsupportedChunkError) Unwrap() error { return ErrUnsupportedChunk }

// NestingError reports an inline node nested past the depth limit.
type NestingError struct {
	Index int32
	Limit int
}

func (e *NestingError) Error() string {
	return fmt.Sprintf("%v: node %d below %d levels", ErrNestingTooDeep, e.Index, e.Limit)
}

func (e *NestingError) Unwrap() error { return ErrNestingTooDeep }

// ChunkError wraps a failure raised while decoding or encoding a chunk.
type ChunkError struct {
	Op      string
	ClassID uint32
	ChunkID uint32
	Err     error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("gbx: %s chunk 0x%08X (class 0x%08X): %v", e.Op, e.ChunkID, e.ClassID, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

func lengthLimit(n, limit int64) error {
	return &LengthLimitError{Length: n, Limit: limit}
}
