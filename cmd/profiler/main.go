package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"

	"github.com/meigma/gbx"
	"github.com/meigma/gbx/compress"
	"github.com/meigma/gbx/core"
	"github.com/meigma/gbx/resolve"
)

type config struct {
	mode           string
	blocks         int
	refs           int
	files          int
	compression    string
	refHTTPLatency time.Duration
	refHTTPBPS     int64
	duration       time.Duration
	iterations     int
	concurrency    int
	pprofAddr      string
	cpuProfile     string
	memProfile     string
	traceFile      string
	tempDir        string
	keepTemp       bool
	randomSeed     int64
	verbose        bool
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkGbx   *core.Gbx
	sinkCount int
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	logger := slog.New(slog.DiscardHandler)
	if cfg.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	comp, compression := parseCompression(cfg.compression)
	core.SetCompressor(comp)
	core.SetRegistry(newRegistry())

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	refFiles, err := writeRefFiles(dir, cfg.refs, comp, compression)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}
	baseURL, client, stopServer := newRefServer(cfg, refFiles)
	defer stopServer()

	g := synthMap(cfg.blocks, cfg.refs, baseURL, cfg.randomSeed)
	g.Compression = compression
	g.Body.Compression = compression
	var encoded bytes.Buffer
	if err := g.Write(&encoded); err != nil {
		log.Fatal(err)
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	env := profileEnv{
		data:   encoded.Bytes(),
		root:   g,
		dir:    dir,
		client: client,
		logger: logger,
	}
	stats, err := runProfile(cfg, env)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s compression=%s size=%d ops=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		cfg.compression,
		len(env.data),
		stats.ops,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

type profileEnv struct {
	data   []byte
	root   *core.Gbx
	dir    string
	client *http.Client
	logger *slog.Logger
}

type profileStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, env profileEnv) (profileStats, error) {
	start := time.Now()
	ops := 0
	var byteCount int64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}
	readOpts := []core.ReadOption{core.WithLogger(env.logger)}

	switch cfg.mode {
	case "parse":
		for shouldContinue() {
			g, err := core.Parse(bytes.NewReader(env.data), readOpts...)
			if err != nil {
				return profileStats{}, err
			}
			sinkGbx = g
			byteCount += int64(len(env.data))
			ops++
		}

	case "framing":
		opts := append(readOpts, core.WithRawBody(true))
		for shouldContinue() {
			g, err := core.Parse(bytes.NewReader(env.data), opts...)
			if err != nil {
				return profileStats{}, err
			}
			sinkGbx = g
			byteCount += int64(len(env.data))
			ops++
		}

	case "decode":
		g, err := core.Parse(bytes.NewReader(env.data), append(readOpts, core.WithRawBody(true), core.WithRetainRawBody(true))...)
		if err != nil {
			return profileStats{}, err
		}
		raw := g.Body.Raw
		start = time.Now()
		for shouldContinue() {
			g.Body.Raw = raw
			if err := g.Decode(core.WithRetainRawBody(true)); err != nil {
				return profileStats{}, err
			}
			sinkGbx = g
			byteCount += int64(g.Body.UncompressedSize)
			ops++
		}

	case "write":
		var buf bytes.Buffer
		for shouldContinue() {
			buf.Reset()
			if err := env.root.Write(&buf, core.WithWriteLogger(env.logger)); err != nil {
				return profileStats{}, err
			}
			byteCount += int64(buf.Len())
			ops++
		}

	case "parse-files":
		paths := make([]string, cfg.files)
		for i := range paths {
			paths[i] = filepath.Join(env.dir, fmt.Sprintf("Map%04d.Map.Gbx", i))
			if err := os.WriteFile(paths[i], env.data, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
				return profileStats{}, err
			}
		}
		start = time.Now()
		for shouldContinue() {
			got, err := gbx.ParseFiles(context.Background(), paths,
				gbx.WithFileConcurrency(cfg.concurrency),
				gbx.WithFileReadOptions(readOpts...))
			if err != nil {
				return profileStats{}, err
			}
			sinkCount = len(got)
			byteCount += int64(len(env.data) * len(paths))
			ops++
		}

	case "resolve":
		for shouldContinue() {
			// A fresh resolver per iteration so every reference is fetched.
			r := resolve.New(
				resolve.WithRemote(true),
				resolve.WithClient(env.client),
				resolve.WithConcurrency(cfg.concurrency),
				resolve.WithReadOptions(readOpts...),
				resolve.WithLogger(env.logger),
			)
			got, err := r.ResolveAll(context.Background(), env.root)
			if err != nil {
				return profileStats{}, err
			}
			for _, g := range got {
				byteCount += int64(g.Body.UncompressedSize)
			}
			sinkCount = len(got)
			ops++
		}

	case "resolve-local":
		r := resolve.New(
			resolve.WithDir(env.dir),
			resolve.WithConcurrency(cfg.concurrency),
			resolve.WithReadOptions(readOpts...),
			resolve.WithLogger(env.logger),
		)
		for shouldContinue() {
			r.Purge()
			got, err := r.ResolveAll(context.Background(), env.root)
			if err != nil {
				return profileStats{}, err
			}
			sinkCount = len(got)
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	return profileStats{
		ops:     ops,
		bytes:   byteCount,
		elapsed: time.Since(start),
	}, nil
}

func parseFlags() config {
	var cfg config
	var refHTTPBPS string
	flag.StringVar(&cfg.mode, "mode", "parse", "mode: parse, framing, decode, write, parse-files, resolve, resolve-local")
	flag.IntVar(&cfg.blocks, "blocks", 4096, "number of block nodes in the synthesized map")
	flag.IntVar(&cfg.refs, "refs", 16, "number of reference table entries")
	flag.IntVar(&cfg.files, "files", 32, "number of files for parse-files")
	flag.StringVar(&cfg.compression, "compression", "zlib", "compression: none, zlib, zstd, lz4, brotli")
	flag.DurationVar(&cfg.refHTTPLatency, "ref-http-latency", 0, "per-request latency for reference fetches")
	flag.StringVar(&refHTTPBPS, "ref-http-bps", "", "bytes/sec throttle for reference fetches (e.g. 10MBps)")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flag.IntVar(&cfg.concurrency, "concurrency", runtime.GOMAXPROCS(0), "workers for parse-files and resolve modes")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for generated files")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.BoolVar(&cfg.verbose, "v", false, "log codec diagnostics to stderr")
	flag.Parse()
	if refHTTPBPS != "" {
		bps, err := parseBytesPerSecond(refHTTPBPS)
		if err != nil {
			log.Fatalf("ref-http-bps: %v", err)
		}
		cfg.refHTTPBPS = bps
	}
	return cfg
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "gbx-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

func parseCompression(name string) (core.Compressor, core.Compression) {
	switch name {
	case "none":
		return nil, core.CompressionNone
	case "zlib":
		return compress.NewZlib(zlib.DefaultCompression), core.CompressionCompressed
	case "zstd":
		return compress.NewZstd(), core.CompressionCompressed
	case "lz4":
		return compress.NewLZ4(), core.CompressionCompressed
	case "brotli":
		return compress.NewBrotli(brotli.DefaultCompression), core.CompressionCompressed
	default:
		log.Fatalf("unknown compression: %s", name)
		return nil, core.CompressionNone
	}
}
