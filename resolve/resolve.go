// Package resolve loads the containers named by a container's reference
// table.
//
// A reference is looked up on disk first, relative to the directory set with
// WithDir, and then at its locator URL when remote fetching is enabled.
// Loaded containers are cached by location, and concurrent requests for the
// same location share a single load.
package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/gbx/core"
)

// Sentinel errors.
var (
	// ErrUnresolvable is returned when no configured source can supply a
	// referenced file.
	ErrUnresolvable = errors.New("resolve: reference cannot be resolved")

	// ErrChecksumMismatch is returned when a loaded file does not match the
	// checksum recorded in its locator.
	ErrChecksumMismatch = errors.New("resolve: checksum mismatch")

	// ErrTooLarge is returned when a file exceeds the configured size limit.
	ErrTooLarge = errors.New("resolve: file too large")
)

// ChecksumError reports the recorded and actual digests of a file.
type ChecksumError struct {
	Location string
	Want     digest.Digest
	Got      digest.Digest
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("resolve: %s: checksum %s, want %s", e.Location, e.Got, e.Want)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// DownloadCache stores files fetched from locator URLs across resolvers.
// Implementations must be safe for concurrent use.
type DownloadCache interface {
	Get(key digest.Digest) ([]byte, bool)
	Put(key digest.Digest, data []byte) error
}

// defaultMaxFileSize bounds a referenced file: a header plus the largest
// body the codec accepts.
const defaultMaxFileSize = 2 * core.MaxDataSize

// Resolver loads referenced containers.
type Resolver struct {
	dir         string
	remote      bool
	client      *nethttp.Client
	headers     nethttp.Header
	verify      bool
	maxFileSize int64
	concurrency int
	readOpts    []core.ReadOption
	downloads   DownloadCache
	logger      *slog.Logger

	fetchGroup singleflight.Group
	mu         sync.Mutex
	cache      map[string]*core.Gbx
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDir sets the directory that locator paths are relative to. Paths may
// not escape it. Without a directory, references are never read from disk.
func WithDir(dir string) Option {
	return func(r *Resolver) {
		r.dir = dir
	}
}

// WithRemote enables fetching references from their locator URL when they
// are not found on disk.
func WithRemote(enabled bool) Option {
	return func(r *Resolver) {
		r.remote = enabled
	}
}

// WithClient sets the HTTP client used for remote fetches. Shared loads
// outlive a canceled caller, so the client should carry a Timeout.
func WithClient(client *nethttp.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithHeader sets a single header on each remote request.
func WithHeader(key, value string) Option {
	return func(r *Resolver) {
		if r.headers == nil {
			r.headers = make(nethttp.Header)
		}
		r.headers.Set(key, value)
	}
}

// WithVerifyChecksums checks loaded files against the checksum recorded in
// their locator, when one is recorded. Enabled by default.
func WithVerifyChecksums(enabled bool) Option {
	return func(r *Resolver) {
		r.verify = enabled
	}
}

// WithMaxFileSize limits the size of a single referenced file.
func WithMaxFileSize(limit int64) Option {
	return func(r *Resolver) {
		if limit > 0 {
			r.maxFileSize = limit
		}
	}
}

// WithConcurrency sets how many references ResolveAll loads at once.
// Values < 1 mean unlimited.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		r.concurrency = n
	}
}

// WithReadOptions sets the options used to parse loaded files.
func WithReadOptions(opts ...core.ReadOption) Option {
	return func(r *Resolver) {
		r.readOpts = append([]core.ReadOption(nil), opts...)
	}
}

// WithDownloadCache keeps remote files in c. Entries are keyed by the
// locator checksum when one is recorded, else by the URL.
func WithDownloadCache(c DownloadCache) Option {
	return func(r *Resolver) {
		r.downloads = c
	}
}

// WithLogger sets the logger for resolver operations.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		client:      nethttp.DefaultClient,
		verify:      true,
		maxFileSize: defaultMaxFileSize,
		concurrency: 4,
		cache:       make(map[string]*core.Gbx),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.client == nil {
		r.client = nethttp.DefaultClient
	}
	return r
}

func (r *Resolver) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Resolve loads and parses the container ref points at.
//
// Concurrent calls for the same location are deduplicated, and a location
// that loaded once is served from memory afterwards. The shared load does
// not stop when one caller's ctx is cancelled; that caller returns
// ctx.Err() while the load finishes for the others and fills the cache.
func (r *Resolver) Resolve(ctx context.Context, ref *core.ExternalRef) (*core.Gbx, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: nil reference", ErrUnresolvable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve reference %d: %w", ref.Index, err)
	}
	key := cacheKey(ref.Locator)
	if g, ok := r.cached(key); ok {
		r.log().Debug("reference cache hit", "index", ref.Index, "path", ref.Locator.Path)
		return g, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.fetchGroup.DoChan(key, func() (any, error) {
		// Another caller may have finished loading this location between
		// the cache check and joining the group.
		if g, ok := r.cached(key); ok {
			return g, nil
		}
		g, err := r.load(loadCtx, ref)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = g
		r.mu.Unlock()
		return g, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("resolve reference %d: %w", ref.Index, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("resolve reference %d: %w", ref.Index, res.Err)
		}
		g, _ := res.Val.(*core.Gbx) //nolint:errcheck // type assertion always succeeds when err is nil
		return g, nil
	}
}

// ResolveAll loads every entry of g's reference table and returns them keyed
// by node index. The first failure cancels the remaining loads.
func (r *Resolver) ResolveAll(ctx context.Context, g *core.Gbx) (map[int32]*core.Gbx, error) {
	out := make(map[int32]*core.Gbx, len(g.Refs))
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		eg.SetLimit(r.concurrency)
	}
	for _, ref := range g.Refs {
		eg.Go(func() error {
			resolved, err := r.Resolve(ctx, ref)
			if err != nil {
				return err
			}
			mu.Lock()
			out[ref.Index] = resolved
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Purge drops every cached container.
func (r *Resolver) Purge() {
	r.mu.Lock()
	clear(r.cache)
	r.mu.Unlock()
}

func (r *Resolver) cached(key string) (*core.Gbx, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.cache[key]
	return g, ok
}

func (r *Resolver) load(ctx context.Context, ref *core.ExternalRef) (*core.Gbx, error) {
	data, location, remote, err := r.fetch(ctx, ref.Locator)
	if err != nil {
		return nil, err
	}
	if err := r.verifyChecksum(ref.Locator, location, data); err != nil {
		return nil, err
	}
	if remote && r.downloads != nil {
		if err := r.downloads.Put(downloadKey(ref.Locator), data); err != nil {
			r.log().Warn("download cache put failed", "url", location, "error", err)
		}
	}
	g, err := core.ParseContext(ctx, bytes.NewReader(data), r.readOpts...)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", location, err)
	}
	if ref.ClassID != 0 && g.Header.ClassID != ref.ClassID {
		r.log().Debug("referenced class differs from header class",
			"location", location,
			"ref_class", fmt.Sprintf("0x%08X", ref.ClassID),
			"header_class", fmt.Sprintf("0x%08X", g.Header.ClassID))
	}
	return g, nil
}

// fetch reads the file from disk, falling back to its URL. remote reports
// whether the bytes came from the network rather than disk or a cache.
func (r *Resolver) fetch(ctx context.Context, loc core.Locator) (data []byte, location string, remote bool, err error) {
	var errs []error
	if r.dir != "" && loc.Path != "" {
		data, err := r.readLocal(loc.Path)
		if err == nil {
			return data, loc.Path, false, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, loc.Path, false, err
		}
		errs = append(errs, err)
	}
	if r.remote && loc.URL != "" {
		if r.downloads != nil {
			if data, ok := r.downloads.Get(downloadKey(loc)); ok {
				r.log().Debug("download cache hit", "url", loc.URL)
				return data, loc.URL, false, nil
			}
		}
		data, err := r.readRemote(ctx, loc.URL)
		if err != nil {
			return nil, loc.URL, false, err
		}
		return data, loc.URL, true, nil
	}
	err = fmt.Errorf("%w: path %q, url %q", ErrUnresolvable, loc.Path, loc.URL)
	if len(errs) > 0 {
		err = fmt.Errorf("%w: %w", err, errors.Join(errs...))
	}
	return nil, "", false, err
}

func (r *Resolver) readLocal(path string) ([]byte, error) {
	name := filepath.FromSlash(strings.ReplaceAll(path, `\`, "/"))
	f, err := os.OpenInRoot(r.dir, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f, r.maxFileSize)
}

func (r *Resolver) readRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for k, v := range r.headers {
		req.Header[k] = v
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != nethttp.StatusOK {
		if resp.StatusCode == nethttp.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %s", ErrUnresolvable, url, resp.Status)
		}
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	if resp.ContentLength > r.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, url, resp.ContentLength)
	}
	return readLimited(resp.Body, r.maxFileSize)
}

func (r *Resolver) verifyChecksum(loc core.Locator, location string, data []byte) error {
	want := loc.Digest()
	if !r.verify || want == "" {
		return nil
	}
	v := want.Verifier()
	if _, err := v.Write(data); err != nil {
		return err
	}
	if !v.Verified() {
		return &ChecksumError{Location: location, Want: want, Got: digest.SHA256.FromBytes(data)}
	}
	return nil
}

func readLimited(rd io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(rd, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

func downloadKey(loc core.Locator) digest.Digest {
	if d := loc.Digest(); d != "" {
		return d
	}
	return digest.FromString(loc.URL)
}

func cacheKey(loc core.Locator) string {
	return loc.Path + "\x00" + loc.URL
}
