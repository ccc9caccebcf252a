package gbx_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gbx"
	"github.com/meigma/gbx/compress"
	"github.com/meigma/gbx/core"
	"github.com/meigma/gbx/core/testutil"
)

func saveMap(t *testing.T, dir, name string, compression gbx.Compression) string {
	t.Helper()

	path := filepath.Join(dir, name)
	g := gbx.New(testutil.NewMap(), compression)
	require.NoError(t, gbx.SaveFile(path, g, gbx.WithWriteCompressor(compress.NewZlib(zlib.BestSpeed))))
	return path
}

func TestSaveFile_ParseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := saveMap(t, dir, "Stadium.Map.Gbx", gbx.CompressionCompressed)

	g, err := gbx.ParseFile(path,
		gbx.WithRegistry(testutil.NewRegistry()),
		gbx.WithCompressor(compress.NewZlib(zlib.BestSpeed)))
	require.NoError(t, err)
	assert.Equal(t, testutil.ClassMap, g.Header.ClassID)
	require.NotNil(t, g.Node)
	assert.Len(t, g.Node.Chunks, 5)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestSaveFile_FailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.Gbx")

	g := gbx.New(testutil.NewMap(), gbx.CompressionCompressed)
	err := gbx.SaveFile(path, g, gbx.WithWriteCompressor(nil))
	require.ErrorIs(t, err, gbx.ErrNoCompressor)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := gbx.ParseFile(filepath.Join(dir, "missing.Gbx"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.Gbx")
	require.NoError(t, os.WriteFile(bad, []byte("GBXT\x00\x00\x00\x00"), 0o644))
	_, err = gbx.ParseFile(bad)
	var modeErr *gbx.ModeError
	assert.ErrorAs(t, err, &modeErr)
	assert.ErrorIs(t, err, gbx.ErrModeNotSupported)
}

func TestParseFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := []string{
		saveMap(t, dir, "a.Gbx", gbx.CompressionNone),
		saveMap(t, dir, "b.Gbx", gbx.CompressionCompressed),
		saveMap(t, dir, "c.Gbx", gbx.CompressionNone),
	}
	readOpts := gbx.WithFileReadOptions(
		gbx.WithRegistry(testutil.NewRegistry()),
		gbx.WithCompressor(compress.NewZlib(zlib.BestSpeed)))

	got, err := gbx.ParseFiles(context.Background(), paths, gbx.WithFileConcurrency(2), readOpts)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, core.CompressionNone, got[0].Compression)
	assert.Equal(t, core.CompressionCompressed, got[1].Compression)
	assert.Equal(t, core.CompressionNone, got[2].Compression)

	_, err = gbx.ParseFiles(context.Background(), append(paths, filepath.Join(dir, "missing.Gbx")), readOpts)
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gbx.ParseFiles(ctx, paths, readOpts)
	assert.ErrorIs(t, err, context.Canceled)
}
