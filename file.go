package gbx

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/gbx/core"
)

// ParseFile reads and parses the container at path.
//
// The file is read into memory before parsing.
func ParseFile(path string, opts ...ReadOption) (*Gbx, error) {
	return ParseFileContext(context.Background(), path, opts...)
}

// ParseFileContext is ParseFile with cancellation.
func ParseFileContext(ctx context.Context, path string, opts ...ReadOption) (*Gbx, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("read container file: %w", err)
	}
	g, err := core.ParseContext(ctx, bytes.NewReader(data), opts...)
	if err != nil {
		return g, fmt.Errorf("parse %s: %w", path, err)
	}
	return g, nil
}

// parseFilesConfig holds configuration for ParseFiles.
type parseFilesConfig struct {
	concurrency int
	readOpts    []ReadOption
}

// ParseFilesOption configures ParseFiles.
type ParseFilesOption func(*parseFilesConfig)

// WithFileConcurrency sets how many files are parsed at once.
// Values < 1 use GOMAXPROCS.
func WithFileConcurrency(n int) ParseFilesOption {
	return func(c *parseFilesConfig) {
		c.concurrency = n
	}
}

// WithFileReadOptions sets the options used to parse each file.
func WithFileReadOptions(opts ...ReadOption) ParseFilesOption {
	return func(c *parseFilesConfig) {
		c.readOpts = append(c.readOpts, opts...)
	}
}

// ParseFiles parses the files at paths concurrently. Results are returned in
// the order of paths. The first failure cancels the files not yet parsed and
// is returned.
func ParseFiles(ctx context.Context, paths []string, opts ...ParseFilesOption) ([]*Gbx, error) {
	cfg := parseFilesConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = runtime.GOMAXPROCS(0)
	}

	out := make([]*Gbx, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.concurrency)
	for i, path := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			g, err := ParseFileContext(ctx, path, cfg.readOpts...)
			if err != nil {
				return err
			}
			out[i] = g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveFile writes g to path. The container is written to a temporary file in
// the same directory and renamed into place, so path never holds a partial
// container.
func SaveFile(path string, g *Gbx, opts ...WriteOption) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gbx-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := g.Write(bw, opts...); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
