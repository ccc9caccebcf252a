package main

import (
	"fmt"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"os"
	"path/filepath"

	"github.com/meigma/gbx"
	"github.com/meigma/gbx/core"
)

// Classes and chunks of the synthetic catalog.
const (
	classMap   uint32 = 0x03043000
	classBlock uint32 = 0x0304E000

	chunkMapHeader uint32 = classMap | 0x008
	chunkMapInfo   uint32 = classMap | 0x002 | core.SkippableBit
	chunkMapBlocks uint32 = classMap | 0x003
	chunkBlock     uint32 = classBlock | 0x001
)

type mapData struct{}

type blockData struct{}

// newRegistry returns the catalog the profiler encodes and decodes with.
func newRegistry() *core.Registry {
	reg := core.NewRegistry()
	reg.RegisterClass(core.Class{ID: classMap, Name: "Map", New: func() any { return &mapData{} }})
	reg.RegisterClass(core.Class{ID: classBlock, Name: "Block", New: func() any { return &blockData{} }})
	reg.RegisterChunk(chunkMapHeader, func() core.Chunk { return &headerChunk{} })
	reg.RegisterChunk(chunkMapInfo, func() core.Chunk { return &infoChunk{} })
	reg.RegisterChunk(chunkMapBlocks, func() core.Chunk { return &blocksChunk{} })
	reg.RegisterChunk(chunkBlock, func() core.Chunk { return &blockChunk{} })
	return reg
}

// headerChunk is the map's header user data.
type headerChunk struct {
	v    int32
	uid  string
	laps uint32
}

func (c *headerChunk) ID() uint32         { return chunkMapHeader }
func (c *headerChunk) Version() int32     { return c.v }
func (c *headerChunk) SetVersion(v int32) { c.v = v }

func (c *headerChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	if c.uid, err = r.ReadIDString(); err != nil {
		return err
	}
	c.laps, err = r.ReadUint32()
	return err
}

func (c *headerChunk) Write(_ *core.Node, w *core.Writer) error {
	if err := w.WriteIDString(c.uid); err != nil {
		return err
	}
	return w.WriteUint32(c.laps)
}

// infoChunk is skippable, so it goes through the length-prefixed path.
type infoChunk struct {
	ident core.Ident
	size  core.Int3
}

func (c *infoChunk) ID() uint32 { return chunkMapInfo }

func (c *infoChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	if c.ident, err = r.ReadIdent(); err != nil {
		return err
	}
	c.size, err = r.ReadInt3()
	return err
}

func (c *infoChunk) Write(_ *core.Node, w *core.Writer) error {
	if err := w.WriteIdent(c.ident); err != nil {
		return err
	}
	return w.WriteInt3(c.size)
}

type blocksChunk struct {
	blocks []core.NodeRef
}

func (c *blocksChunk) ID() uint32 { return chunkMapBlocks }

func (c *blocksChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	c.blocks, err = r.ReadNodeRefs()
	return err
}

func (c *blocksChunk) Write(_ *core.Node, w *core.Writer) error {
	return w.WriteNodeRefs(c.blocks)
}

type blockChunk struct {
	name  string
	coord core.Int3
	next  core.NodeRef
}

func (c *blockChunk) ID() uint32 { return chunkBlock }

func (c *blockChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	if c.name, err = r.ReadIDString(); err != nil {
		return err
	}
	if c.coord, err = r.ReadInt3(); err != nil {
		return err
	}
	c.next, err = r.ReadNodeRef()
	return err
}

func (c *blockChunk) Write(_ *core.Node, w *core.Writer) error {
	if err := w.WriteIDString(c.name); err != nil {
		return err
	}
	if err := w.WriteInt3(c.coord); err != nil {
		return err
	}
	return w.WriteNodeRef(c.next)
}

func newBlock(name string, coord core.Int3) (*core.Node, *blockChunk) {
	c := &blockChunk{name: name, coord: coord}
	n := core.NewNode(classBlock, &blockData{})
	n.AddChunk(c)
	return n, c
}

// blockNames is small on purpose: repeated names hit the identifier table.
var blockNames = []string{
	"StadiumRoadMain", "StadiumRoadCurve", "StadiumPlatform", "StadiumDecoWall",
	"StadiumGrass", "StadiumCheckpoint", "StadiumStart", "StadiumFinish",
}

// synthMap builds a map with blocks nodes chained into a cycle and refs
// entries in the reference table. Every fourth slot of the blocks array
// points at a reference, when there are any.
func synthMap(blocks, refs int, baseURL string, seed int64) *core.Gbx {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // intentional for reproducible benchmarks

	external := make([]*core.ExternalRef, refs)
	for i := range external {
		name := refName(i)
		loc := core.Locator{Version: 1, Path: name}
		if baseURL != "" {
			loc.URL = baseURL + "/" + name
		}
		external[i] = &core.ExternalRef{Index: int32(i), ClassID: classBlock, Locator: loc} //nolint:gosec // bounded by flag
	}

	nodes := make([]*core.Node, blocks)
	chunks := make([]*blockChunk, blocks)
	for i := range nodes {
		coord := core.Int3{X: rng.Int31n(48), Y: rng.Int31n(40), Z: rng.Int31n(48)}
		nodes[i], chunks[i] = newBlock(blockNames[rng.Intn(len(blockNames))], coord)
	}
	for i, c := range chunks {
		c.next = core.Ref(nodes[(i+1)%len(nodes)])
	}

	slots := make([]core.NodeRef, 0, blocks+blocks/4+1)
	for i, n := range nodes {
		slots = append(slots, core.Ref(n))
		if refs > 0 && i%4 == 3 {
			slots = append(slots, core.NodeRef{External: external[(i/4)%refs]})
		}
	}
	slots = append(slots, core.NodeRef{})

	uid := fmt.Sprintf("synth-%d", seed)
	m := core.NewNode(classMap, &mapData{})
	m.AddChunk(&infoChunk{
		ident: core.Ident{ID: uid, Collection: core.StringID("Stadium"), Author: "profiler"},
		size:  core.Int3{X: 48, Y: 40, Z: 48},
	})
	m.AddChunk(&blocksChunk{blocks: slots})

	g := core.New(m, core.CompressionNone)
	g.Header.UserData = []core.HeaderChunk{
		{ID: chunkMapHeader, Value: &headerChunk{v: 1, uid: uid, laps: 1}},
	}
	g.Refs = external
	return g
}

func refName(i int) string {
	return fmt.Sprintf("Blocks/Ref%04d.Block.Gbx", i)
}

// writeRefFiles saves one block container per reference under dir and
// returns their encoded bytes keyed by reference path.
func writeRefFiles(dir string, refs int, comp core.Compressor, compression core.Compression) (map[string][]byte, error) {
	out := make(map[string][]byte, refs)
	for i := range refs {
		name := refName(i)
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
			return nil, err
		}
		block, _ := newBlock(blockNames[i%len(blockNames)], core.Int3{X: int32(i)}) //nolint:gosec // bounded by flag
		g := core.New(block, compression)
		if err := gbx.SaveFile(path, g, core.WithWriteCompressor(comp)); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path) //nolint:gosec // profiler-owned path
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}
