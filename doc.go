// Package gbx reads and writes GBX containers: a versioned binary format
// holding a header with user data chunks, a reference table of external
// files, and an optionally compressed body that serializes a graph of
// class-tagged nodes.
//
// This package is a thin facade over [core] with file-level helpers. Use
// [core] directly for stream-level encoding, custom chunk codecs and the
// primitive Reader and Writer.
//
// # Quick Start
//
// Install a compressor and a registry once at start-up, then parse:
//
//	core.SetCompressor(compress.NewZlib(zlib.DefaultCompression))
//	core.SetRegistry(myClasses())
//
//	g, err := gbx.ParseFile("Maps/Stadium.Map.Gbx")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(g.Header.ClassID, len(g.Node.Chunks))
//
// Write it back:
//
//	err = gbx.SaveFile("Maps/Copy.Map.Gbx", g)
//
// # Many files
//
// ParseFiles parses a batch of files concurrently:
//
//	results, err := gbx.ParseFiles(ctx, paths, gbx.WithFileConcurrency(8))
//
// # External references
//
// Entries of a container's reference table point at other files. Load them
// with the [resolve] package:
//
//	r := resolve.New(resolve.WithDir("GameData"))
//	deps, err := r.ResolveAll(ctx, g)
package gbx
