// Package compress provides core.Compressor implementations for container
// bodies.
//
// Install one at start-up:
//
//	core.SetCompressor(compress.NewZlib(zlib.DefaultCompression))
//
// Every provider is safe for concurrent use and never produces more bytes
// than the declared uncompressed size plus one, so a corrupt or hostile body
// cannot expand without bound.
package compress
