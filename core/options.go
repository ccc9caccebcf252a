package core

import (
	"log/slog"
)

// readConfig holds configuration for parsing and for standalone Readers.
type readConfig struct {
	maxBodySize    int64
	retainRawBody  bool
	rawBody        bool
	containErrors  bool
	strictBooleans bool
	stringCache    bool
	unknownClasses bool
	mode           Format
	nodes          NodeFactory
	chunks         ChunkRegistry
	compressor     Compressor
	compressorSet  bool
	node           *Node
	logger         *slog.Logger
}

// ReadOption configures parsing.
type ReadOption func(*readConfig)

func newReadConfig(opts []ReadOption) *readConfig {
	cfg := &readConfig{mode: FormatBinary}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.nodes == nil || cfg.chunks == nil {
		reg := DefaultRegistry()
		if cfg.nodes == nil {
			cfg.nodes = reg
		}
		if cfg.chunks == nil {
			cfg.chunks = reg
		}
	}
	if !cfg.compressorSet {
		cfg.compressor = DefaultCompressor()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// WithMaxUncompressedBodySize rejects bodies that declare more than limit
// uncompressed bytes. Set limit to 0 to apply only MaxDataSize.
func WithMaxUncompressedBodySize(limit int64) ReadOption {
	return func(c *readConfig) {
		c.maxBodySize = limit
	}
}

// WithRetainRawBody keeps the raw (possibly compressed) body bytes alongside
// the decoded node graph.
func WithRetainRawBody(enabled bool) ReadOption {
	return func(c *readConfig) {
		c.retainRawBody = enabled
	}
}

// WithRawBody skips node decoding and keeps only the raw body bytes.
// Use (*Gbx).Decode to decode the graph later.
func WithRawBody(enabled bool) ReadOption {
	return func(c *readConfig) {
		c.rawBody = enabled
	}
}

// WithContainedBodyErrors captures a failure while decoding the body in
// Body.Err instead of failing the parse. The node graph is left partially
// populated and the container can no longer be written.
func WithContainedBodyErrors(enabled bool) ReadOption {
	return func(c *readConfig) {
		c.containErrors = enabled
	}
}

// WithStrictBooleans rejects encoded booleans other than 0 and 1.
func WithStrictBooleans(enabled bool) ReadOption {
	return func(c *readConfig) {
		c.strictBooleans = enabled
	}
}

// WithPreviousStringCache reuses the previously decoded string instance when
// the next short string is identical.
func WithPreviousStringCache(enabled bool) ReadOption {
	return func(c *readConfig) {
		c.stringCache = enabled
	}
}

// WithUnknownClasses stores nodes of unknown classes as placeholders instead
// of failing. Only their skippable chunks can be decoded.
func WithUnknownClasses(enabled bool) ReadOption {
	return func(c *readConfig) {
		c.unknownClasses = enabled
	}
}

// WithFormat sets the format mode of a standalone Reader (default binary).
// Parse takes the mode from the header.
func WithFormat(f Format) ReadOption {
	return func(c *readConfig) {
		c.mode = f
	}
}

// WithRegistry uses reg both as the NodeFactory and the ChunkRegistry.
func WithRegistry(reg *Registry) ReadOption {
	return func(c *readConfig) {
		c.nodes = reg
		c.chunks = reg
	}
}

// WithNodeFactory sets the factory used to instantiate referenced nodes.
func WithNodeFactory(f NodeFactory) ReadOption {
	return func(c *readConfig) {
		c.nodes = f
	}
}

// WithChunkRegistry sets the registry used to look up chunk factories.
func WithChunkRegistry(r ChunkRegistry) ReadOption {
	return func(c *readConfig) {
		c.chunks = r
	}
}

// WithCompressor overrides the installed Compressor. A nil compressor
// disables decompression.
func WithCompressor(comp Compressor) ReadOption {
	return func(c *readConfig) {
		c.compressor = comp
		c.compressorSet = true
	}
}

// WithNode decodes the body into n instead of a node created by the factory.
// n.ClassID is set from the header.
func WithNode(n *Node) ReadOption {
	return func(c *readConfig) {
		c.node = n
	}
}

// WithLogger sets the logger for parse diagnostics.
func WithLogger(l *slog.Logger) ReadOption {
	return func(c *readConfig) {
		c.logger = l
	}
}

// writeConfig holds configuration for writing.
type writeConfig struct {
	compressor    Compressor
	compressorSet bool
	logger        *slog.Logger
}

// WriteOption configures writing.
type WriteOption func(*writeConfig)

func newWriteConfig(opts []WriteOption) *writeConfig {
	cfg := &writeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if !cfg.compressorSet {
		cfg.compressor = DefaultCompressor()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// WithWriteCompressor overrides the installed Compressor for writing.
func WithWriteCompressor(comp Compressor) WriteOption {
	return func(c *writeConfig) {
		c.compressor = comp
		c.compressorSet = true
	}
}

// WithWriteLogger sets the logger for write diagnostics.
func WithWriteLogger(l *slog.Logger) WriteOption {
	return func(c *writeConfig) {
		c.logger = l
	}
}
