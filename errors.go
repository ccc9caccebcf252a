package gbx

import "github.com/meigma/gbx/core"

// Errors re-exported from core.
var (
	// ErrModeNotSupported is returned for text-mode containers.
	ErrModeNotSupported = core.ErrModeNotSupported

	// ErrLengthLimit is returned when a declared length exceeds a limit.
	ErrLengthLimit = core.ErrLengthLimit

	// ErrRange is returned when a value is outside its valid range.
	ErrRange = core.ErrRange

	// ErrUnsupportedVersion is returned for unknown chunk or table versions.
	ErrUnsupportedVersion = core.ErrUnsupportedVersion

	// ErrUnsupportedChunk is returned for unknown non-skippable chunks.
	ErrUnsupportedChunk = core.ErrUnsupportedChunk

	// ErrUnknownClass is returned for class IDs with no registered factory.
	ErrUnknownClass = core.ErrUnknownClass

	// ErrInvalidIndex is returned for identifier or node indices that do not
	// resolve.
	ErrInvalidIndex = core.ErrInvalidIndex

	// ErrIDNotString is returned when a string identifier decodes as a number.
	ErrIDNotString = core.ErrIDNotString

	// ErrNoCompressor is returned when a compressed body is met and no
	// compressor is installed.
	ErrNoCompressor = core.ErrNoCompressor

	// ErrSizeMismatch is returned when a body does not decompress to its
	// declared size.
	ErrSizeMismatch = core.ErrSizeMismatch

	// ErrInvalidMagic is returned when a stream does not start with "GBX".
	ErrInvalidMagic = core.ErrInvalidMagic

	// ErrInvalidCompression is returned for an unknown compression flag.
	ErrInvalidCompression = core.ErrInvalidCompression

	// ErrPartialBody is returned when writing a container whose body failed
	// to decode.
	ErrPartialBody = core.ErrPartialBody

	// ErrExternalRef is returned when a node is expected but the reference
	// points outside the container.
	ErrExternalRef = core.ErrExternalRef
)

// Typed errors re-exported from core.
type (
	ModeError             = core.ModeError
	LengthLimitError      = core.LengthLimitError
	RangeError            = core.RangeError
	VersionError          = core.VersionError
	InvalidIndexError     = core.InvalidIndexError
	UnknownClassError     = core.UnknownClassError
	UnsupportedChunkError = core.UnsupportedChunkError
	ChunkError            = core.ChunkError
)
