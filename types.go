package gbx

import "github.com/meigma/gbx/core"

// --- Re-exports from core ---

// Gbx is a parsed or assembled container.
type Gbx = core.Gbx

// Header is the container header with its user data chunks.
type Header = core.Header

// HeaderChunk is one user data entry of the header.
type HeaderChunk = core.HeaderChunk

// Body is the container body as stored.
type Body = core.Body

// Node is an instance of a serialized class.
type Node = core.Node

// NodeRef refers to a node in the body or to an external file.
type NodeRef = core.NodeRef

// ExternalRef is an entry of the reference table.
type ExternalRef = core.ExternalRef

// Locator points at a file outside the container.
type Locator = core.Locator

// Chunk is a unit of node data.
type Chunk = core.Chunk

// Registry maps class IDs and chunk IDs to factories.
type Registry = core.Registry

// Compressor compresses and decompresses container bodies.
type Compressor = core.Compressor

// Compression identifies how the body is stored.
type Compression = core.Compression

// ReadOption configures parsing.
type ReadOption = core.ReadOption

// WriteOption configures writing.
type WriteOption = core.WriteOption

// Compression constants.
const (
	CompressionNone       = core.CompressionNone
	CompressionCompressed = core.CompressionCompressed
)

// Read options re-exported from core.
var (
	WithMaxUncompressedBodySize = core.WithMaxUncompressedBodySize
	WithRetainRawBody           = core.WithRetainRawBody
	WithRawBody                 = core.WithRawBody
	WithContainedBodyErrors     = core.WithContainedBodyErrors
	WithStrictBooleans          = core.WithStrictBooleans
	WithPreviousStringCache     = core.WithPreviousStringCache
	WithUnknownClasses          = core.WithUnknownClasses
	WithRegistry                = core.WithRegistry
	WithCompressor              = core.WithCompressor
	WithLogger                  = core.WithLogger
	WithNode                    = core.WithNode
)

// Write options re-exported from core.
var (
	WithWriteCompressor = core.WithWriteCompressor
	WithWriteLogger     = core.WithWriteLogger
)

// New returns an empty container for a root node, ready to be written.
var New = core.New

// Parse reads a complete container from r.
var Parse = core.Parse

// ParseContext is Parse with cancellation.
var ParseContext = core.ParseContext
