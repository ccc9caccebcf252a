// Package core implements the binary container codec: typed primitive reads
// and writes, the identifier lookback table, node references, the chunk
// dispatcher and the header/body framing with pluggable compression.
//
// A container consists of:
//   - Header: magic, format mode, root class ID and header-only user data chunks
//   - Preamble: body compression flag, node slot count and the reference table
//   - Body: the root node's chunk stream, optionally compressed
//
// Class and chunk definitions are supplied through a NodeFactory and a
// ChunkRegistry (usually a *Registry). Chunks without a registered factory
// are kept as RawChunk when the format marks them skippable, so files written
// by newer producers round-trip byte for byte.
//
// Compressed bodies are handled by the installed Compressor; see package
// compress for concrete providers.
package core
