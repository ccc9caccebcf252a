package resolve_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gbx/core"
	"github.com/meigma/gbx/core/testutil"
	"github.com/meigma/gbx/resolve"
	"github.com/meigma/gbx/resolve/disk"
)

func blockFile(t *testing.T, name string) []byte {
	t.Helper()

	g := core.New(testutil.NewBlock(name, core.Int3{X: 1, Y: 2, Z: 3}), core.CompressionNone)
	var buf bytes.Buffer
	require.NoError(t, g.Write(&buf))
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, rel string, data []byte) {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func readOpts() resolve.Option {
	return resolve.WithReadOptions(core.WithRegistry(testutil.NewRegistry()))
}

func blockName(t *testing.T, g *core.Gbx) string {
	t.Helper()

	require.NotNil(t, g.Node)
	c, ok := g.Node.Chunk(testutil.ChunkBlock)
	require.True(t, ok)
	return c.(*testutil.BlockChunk).Name
}

func TestResolver_Local(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "Blocks/Road.gbx", blockFile(t, "Road"))

	r := resolve.New(resolve.WithDir(dir), readOpts())
	ref := &core.ExternalRef{Index: 0, ClassID: testutil.ClassBlock, Locator: core.Locator{Version: 1, Path: `Blocks\Road.gbx`}}

	g, err := r.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "Road", blockName(t, g))

	again, err := r.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Same(t, g, again, "second resolve is served from the cache")

	r.Purge()
	fresh, err := r.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.NotSame(t, g, fresh)
}

func TestResolver_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "bad.gbx", []byte("not a container"))
	writeFile(t, dir, "big.gbx", bytes.Repeat([]byte{1}, 128))

	tests := []struct {
		name string
		opts []resolve.Option
		loc  core.Locator
		want error
	}{
		{
			name: "missing file",
			loc:  core.Locator{Path: "missing.gbx"},
			want: resolve.ErrUnresolvable,
		},
		{
			name: "no location",
			want: resolve.ErrUnresolvable,
		},
		{
			name: "url without remote",
			loc:  core.Locator{URL: "https://example.invalid/x.gbx"},
			want: resolve.ErrUnresolvable,
		},
		{
			name: "not a container",
			loc:  core.Locator{Path: "bad.gbx"},
			want: core.ErrInvalidMagic,
		},
		{
			name: "over size limit",
			opts: []resolve.Option{resolve.WithMaxFileSize(64)},
			loc:  core.Locator{Path: "big.gbx"},
			want: resolve.ErrTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := append([]resolve.Option{resolve.WithDir(dir), readOpts()}, tt.opts...)
			_, err := resolve.New(opts...).Resolve(context.Background(), &core.ExternalRef{Locator: tt.loc})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolver_PathEscape(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	dir := filepath.Join(parent, "maps")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeFile(t, parent, "secret.gbx", blockFile(t, "Secret"))

	r := resolve.New(resolve.WithDir(dir), readOpts())
	_, err := r.Resolve(context.Background(), &core.ExternalRef{Locator: core.Locator{Path: "../secret.gbx"}})
	require.Error(t, err)
}

func TestResolver_Checksum(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := blockFile(t, "Road")
	writeFile(t, dir, "road.gbx", data)
	sum := sha256.Sum256(data)

	good := &core.ExternalRef{Locator: core.Locator{Version: 3, Checksum: sum[:], Path: "road.gbx"}}
	_, err := resolve.New(resolve.WithDir(dir), readOpts()).Resolve(context.Background(), good)
	require.NoError(t, err)

	wrong := bytes.Clone(sum[:])
	wrong[0] ^= 0xFF
	bad := &core.ExternalRef{Locator: core.Locator{Version: 3, Checksum: wrong, Path: "road.gbx"}}
	_, err = resolve.New(resolve.WithDir(dir), readOpts()).Resolve(context.Background(), bad)
	var sumErr *resolve.ChecksumError
	require.ErrorAs(t, err, &sumErr)
	assert.ErrorIs(t, err, resolve.ErrChecksumMismatch)
	assert.Equal(t, good.Locator.Digest(), sumErr.Got)

	_, err = resolve.New(resolve.WithDir(dir), readOpts(), resolve.WithVerifyChecksums(false)).
		Resolve(context.Background(), bad)
	assert.NoError(t, err)
}

func TestResolver_RemoteDeduplicates(t *testing.T) {
	t.Parallel()

	data := blockFile(t, "Remote")
	var hits atomic.Int64
	release := make(chan struct{})
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		<-release
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)

	r := resolve.New(
		resolve.WithDir(t.TempDir()),
		resolve.WithRemote(true),
		resolve.WithClient(server.Client()),
		resolve.WithHeader("X-Token", "secret"),
		readOpts(),
	)
	ref := &core.ExternalRef{Locator: core.Locator{Version: 1, Path: "missing/locally.gbx", URL: server.URL + "/remote.gbx"}}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*core.Gbx, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Go(func() {
			results[i], errs[i] = r.Resolve(context.Background(), ref)
		})
	}
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, "Remote", blockName(t, results[0]))
	assert.Equal(t, int64(1), hits.Load())
}

func TestResolver_RemoteStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/gone.gbx":
			nethttp.NotFound(w, r)
		default:
			w.WriteHeader(nethttp.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	r := resolve.New(resolve.WithRemote(true), resolve.WithClient(server.Client()), readOpts())

	_, err := r.Resolve(context.Background(), &core.ExternalRef{Locator: core.Locator{URL: server.URL + "/gone.gbx"}})
	assert.ErrorIs(t, err, resolve.ErrUnresolvable)

	_, err = r.Resolve(context.Background(), &core.ExternalRef{Locator: core.Locator{URL: server.URL + "/broken.gbx"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, resolve.ErrUnresolvable)
}

func TestResolver_ResolveAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.gbx", blockFile(t, "A"))
	writeFile(t, dir, "b.gbx", blockFile(t, "B"))

	g := &core.Gbx{Refs: []*core.ExternalRef{
		{Index: 0, ClassID: testutil.ClassBlock, Locator: core.Locator{Version: 1, Path: "a.gbx"}},
		{Index: 3, ClassID: testutil.ClassBlock, Locator: core.Locator{Version: 1, Path: "b.gbx"}},
		{Index: 5, ClassID: testutil.ClassBlock, Locator: core.Locator{Version: 1, Path: "a.gbx"}},
	}}

	r := resolve.New(resolve.WithDir(dir), resolve.WithConcurrency(2), readOpts())
	got, err := r.ResolveAll(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "A", blockName(t, got[0]))
	assert.Equal(t, "B", blockName(t, got[3]))
	assert.Same(t, got[0], got[5])

	g.Refs = append(g.Refs, &core.ExternalRef{Index: 7, Locator: core.Locator{Path: "nope.gbx"}})
	_, err = r.ResolveAll(context.Background(), g)
	assert.True(t, errors.Is(err, resolve.ErrUnresolvable))
}

func TestResolver_Canceled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := resolve.New(resolve.WithRemote(true), resolve.WithClient(server.Client()), readOpts())
	_, err := r.Resolve(ctx, &core.ExternalRef{Locator: core.Locator{URL: server.URL + "/x.gbx"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolver_CanceledCallerLeavesSharedLoad(t *testing.T) {
	t.Parallel()

	data := blockFile(t, "Shared")
	var hits atomic.Int64
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		hits.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)

	r := resolve.New(resolve.WithRemote(true), resolve.WithClient(server.Client()), readOpts())
	ref := &core.ExternalRef{Locator: core.Locator{Version: 1, URL: server.URL + "/shared.gbx"}}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, ref)
		firstErr <- err
	}()
	<-started

	type result struct {
		g   *core.Gbx
		err error
	}
	second := make(chan result, 1)
	go func() {
		g, err := r.Resolve(context.Background(), ref)
		second <- result{g, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "Shared", blockName(t, res.g))
	assert.Equal(t, int64(1), hits.Load())

	again, err := r.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Same(t, res.g, again)
}

func TestResolver_DownloadCache(t *testing.T) {
	t.Parallel()

	data := blockFile(t, "Cached")
	var hits atomic.Int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		hits.Add(1)
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)

	downloads, err := disk.New(t.TempDir())
	require.NoError(t, err)
	ref := &core.ExternalRef{Locator: core.Locator{Version: 1, URL: server.URL + "/cached.gbx"}}

	for range 3 {
		// Each resolver has its own memory cache; the download cache is shared.
		r := resolve.New(
			resolve.WithRemote(true),
			resolve.WithClient(server.Client()),
			resolve.WithDownloadCache(downloads),
			readOpts(),
		)
		g, err := r.Resolve(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, "Cached", blockName(t, g))
	}
	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, int64(len(data)), downloads.SizeBytes())
}
