package testutil

import (
	"time"

	"github.com/meigma/gbx/core"
)

// Class IDs of the test catalog. Map derives from Base; Block is standalone.
const (
	ClassBase  uint32 = 0x07001000
	ClassMap   uint32 = 0x03043000
	ClassBlock uint32 = 0x0304E000

	// ClassLegacyMap is an alias of ClassMap.
	ClassLegacyMap uint32 = 0x24003000
)

// Chunk IDs of the test catalog.
const (
	ChunkBaseLabel uint32 = ClassBase | 0x001
	ChunkMapInfo   uint32 = ClassMap | 0x002
	ChunkMapBlocks uint32 = ClassMap | 0x003
	ChunkMapExtra  uint32 = ClassMap | 0x004 | core.SkippableBit
	ChunkMapScoped uint32 = ClassMap | 0x005 | core.SkippableBit
	ChunkMapRaw    uint32 = ClassMap | 0x006 | core.SkippableBit
	ChunkMapHeader uint32 = ClassMap | 0x008
	ChunkBlock     uint32 = ClassBlock | 0x001
)

// MapData is the Data of a Map node.
type MapData struct{}

// BlockData is the Data of a Block node.
type BlockData struct{}

// NewRegistry returns a registry holding the test catalog.
func NewRegistry() *core.Registry {
	reg := core.NewRegistry()
	reg.RegisterClass(core.Class{ID: ClassBase, Name: "Base"})
	reg.RegisterClass(core.Class{ID: ClassMap, Name: "Map", Parent: ClassBase, New: func() any { return &MapData{} }})
	reg.RegisterClass(core.Class{ID: ClassBlock, Name: "Block", New: func() any { return &BlockData{} }})
	reg.Alias(ClassLegacyMap, ClassMap)

	reg.RegisterChunk(ChunkBaseLabel, func() core.Chunk { return &LabelChunk{} })
	reg.RegisterChunk(ChunkMapInfo, func() core.Chunk { return &InfoChunk{} })
	reg.RegisterChunk(ChunkMapBlocks, func() core.Chunk { return &BlocksChunk{} })
	reg.RegisterChunk(ChunkMapExtra, func() core.Chunk { return &ExtraChunk{} })
	reg.RegisterChunk(ChunkMapScoped, func() core.Chunk { return &ScopedChunk{} })
	reg.RegisterRawChunk(ChunkMapRaw)
	reg.RegisterChunk(ChunkMapHeader, func() core.Chunk { return &HeaderInfoChunk{} })
	reg.RegisterChunk(ChunkBlock, func() core.Chunk { return &BlockChunk{} })
	return reg
}

// LabelChunk is inherited by Map from Base.
type LabelChunk struct {
	Label string
}

func (c *LabelChunk) ID() uint32 { return ChunkBaseLabel }

func (c *LabelChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	c.Label, err = r.ReadString()
	return err
}

func (c *LabelChunk) Write(_ *core.Node, w *core.Writer) error {
	return w.WriteString(c.Label)
}

// InfoChunk is a versioned chunk exercising identifiers and primitives.
type InfoChunk struct {
	V        int32
	Ident    core.Ident
	Name     string
	Time     time.Duration
	Valid    bool
	Size     core.Int3
	Position core.Vec3
}

func (c *InfoChunk) ID() uint32         { return ChunkMapInfo }
func (c *InfoChunk) Version() int32     { return c.V }
func (c *InfoChunk) SetVersion(v int32) { c.V = v }

func (c *InfoChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	if c.Ident, err = r.ReadIdent(); err != nil {
		return err
	}
	if c.Name, err = r.ReadString(); err != nil {
		return err
	}
	if c.Time, err = r.ReadTimeInt32(); err != nil {
		return err
	}
	if c.Valid, err = r.ReadBool(); err != nil {
		return err
	}
	if c.Size, err = r.ReadInt3(); err != nil {
		return err
	}
	c.Position, err = r.ReadVec3()
	return err
}

func (c *InfoChunk) Write(_ *core.Node, w *core.Writer) error {
	if err := w.WriteIdent(c.Ident); err != nil {
		return err
	}
	if err := w.WriteString(c.Name); err != nil {
		return err
	}
	if err := w.WriteTimeInt32(c.Time); err != nil {
		return err
	}
	if err := w.WriteBool(c.Valid); err != nil {
		return err
	}
	if err := w.WriteInt3(c.Size); err != nil {
		return err
	}
	return w.WriteVec3(c.Position)
}

// BlocksChunk holds an array of node references.
type BlocksChunk struct {
	Blocks []core.NodeRef
}

func (c *BlocksChunk) ID() uint32 { return ChunkMapBlocks }

func (c *BlocksChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	c.Blocks, err = r.ReadNodeRefs()
	return err
}

func (c *BlocksChunk) Write(_ *core.Node, w *core.Writer) error {
	return w.WriteNodeRefs(c.Blocks)
}

// ExtraChunk is a known skippable chunk.
type ExtraChunk struct {
	Flags uint32
	Tint  core.Byte3
}

func (c *ExtraChunk) ID() uint32 { return ChunkMapExtra }

func (c *ExtraChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	if c.Flags, err = r.ReadUint32(); err != nil {
		return err
	}
	c.Tint, err = r.ReadByte3()
	return err
}

func (c *ExtraChunk) Write(_ *core.Node, w *core.Writer) error {
	if err := w.WriteUint32(c.Flags); err != nil {
		return err
	}
	return w.WriteByte3(c.Tint)
}

// ScopedChunk stores identifiers inside an encapsulated sub-stream.
type ScopedChunk struct {
	Names []string
}

func (c *ScopedChunk) ID() uint32 { return ChunkMapScoped }

func (c *ScopedChunk) Read(_ *core.Node, r *core.Reader) error {
	return r.ReadEncapsulation(func(r *core.Reader) (err error) {
		c.Names, err = core.ReadArray(r, (*core.Reader).ReadIDString)
		return err
	})
}

func (c *ScopedChunk) Write(_ *core.Node, w *core.Writer) error {
	return w.WriteEncapsulation(func(w *core.Writer) error {
		return core.WriteArray(w, c.Names, (*core.Writer).WriteIDString)
	})
}

// HeaderInfoChunk is a header user data chunk.
type HeaderInfoChunk struct {
	V    int32
	UID  string
	Laps uint32
}

func (c *HeaderInfoChunk) ID() uint32         { return ChunkMapHeader }
func (c *HeaderInfoChunk) Version() int32     { return c.V }
func (c *HeaderInfoChunk) SetVersion(v int32) { c.V = v }

func (c *HeaderInfoChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	if c.UID, err = r.ReadIDString(); err != nil {
		return err
	}
	c.Laps, err = r.ReadUint32()
	return err
}

func (c *HeaderInfoChunk) Write(_ *core.Node, w *core.Writer) error {
	if err := w.WriteIDString(c.UID); err != nil {
		return err
	}
	return w.WriteUint32(c.Laps)
}

// BlockChunk gives a block a name, a coordinate and a link to another block.
type BlockChunk struct {
	Name  string
	Coord core.Int3
	Next  core.NodeRef
}

func (c *BlockChunk) ID() uint32 { return ChunkBlock }

func (c *BlockChunk) Read(_ *core.Node, r *core.Reader) (err error) {
	if c.Name, err = r.ReadIDString(); err != nil {
		return err
	}
	if c.Coord, err = r.ReadInt3(); err != nil {
		return err
	}
	c.Next, err = r.ReadNodeRef()
	return err
}

func (c *BlockChunk) Write(_ *core.Node, w *core.Writer) error {
	if err := w.WriteIDString(c.Name); err != nil {
		return err
	}
	if err := w.WriteInt3(c.Coord); err != nil {
		return err
	}
	return w.WriteNodeRef(c.Next)
}

// NewBlock returns a block node with its chunk.
func NewBlock(name string, coord core.Int3) *core.Node {
	n := core.NewNode(ClassBlock, &BlockData{})
	n.AddChunk(&BlockChunk{Name: name, Coord: coord})
	return n
}

// Link points a's BlockChunk at b.
func Link(a, b *core.Node) {
	c, _ := a.Chunk(ChunkBlock)
	c.(*BlockChunk).Next = core.Ref(b)
}

// NewMap returns a map node whose two blocks reference each other.
func NewMap() *core.Node {
	a := NewBlock("StadiumRoadMain", core.Int3{X: 16, Y: 9, Z: 16})
	b := NewBlock("StadiumRoadCurve", core.Int3{X: 17, Y: 9, Z: 16})
	Link(a, b)
	Link(b, a)

	m := core.NewNode(ClassMap, &MapData{})
	m.AddChunk(&LabelChunk{Label: "base"})
	m.AddChunk(&InfoChunk{
		V:        2,
		Ident:    core.Ident{ID: "uid-123", Collection: core.StringID("Stadium"), Author: "nadeo"},
		Name:     "A01-Race",
		Time:     42 * time.Second,
		Valid:    true,
		Size:     core.Int3{X: 48, Y: 40, Z: 48},
		Position: core.Vec3{X: 1.5, Y: -2, Z: 3.25},
	})
	m.AddChunk(&BlocksChunk{Blocks: []core.NodeRef{core.Ref(a), core.Ref(b), {}}})
	m.AddChunk(&ExtraChunk{Flags: 7, Tint: core.Byte3{X: 1, Y: 2, Z: 3}})
	m.AddChunk(&ScopedChunk{Names: []string{"Stadium", "Valley", "Stadium"}})
	return m
}
