package core

// Node is a decoded instance in the object graph.
//
// A node owns its chunks. Other nodes may reference it; references share the
// same *Node, so a graph read from a container can contain cycles.
type Node struct {
	// ClassID identifies the node's class.
	ClassID uint32

	// Chunks holds the node's chunks in stream order. Writing emits them in
	// this order.
	Chunks []Chunk

	// Data is the class-specific state supplied by the NodeFactory. It is nil
	// for placeholders of unknown classes.
	Data any
}

// NewNode returns an empty node of the given class.
func NewNode(classID uint32, data any) *Node {
	return &Node{ClassID: classID, Data: data}
}

// Chunk returns the first chunk with the given ID.
func (n *Node) Chunk(id uint32) (Chunk, bool) {
	for _, c := range n.Chunks {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// AddChunk appends c, replacing an existing chunk with the same ID in place.
func (n *Node) AddChunk(c Chunk) {
	for i, existing := range n.Chunks {
		if existing.ID() == c.ID() {
			n.Chunks[i] = c
			return
		}
	}
	n.Chunks = append(n.Chunks, c)
}

// RemoveChunk removes the chunk with the given ID and reports whether it existed.
func (n *Node) RemoveChunk(id uint32) bool {
	for i, c := range n.Chunks {
		if c.ID() == id {
			n.Chunks = append(n.Chunks[:i], n.Chunks[i+1:]...)
			return true
		}
	}
	return false
}

// Chunk is a self-identified fragment of a node's serialized data.
type Chunk interface {
	ID() uint32
}

// ChunkReader decodes a chunk's fields.
type ChunkReader interface {
	Chunk
	Read(n *Node, r *Reader) error
}

// ChunkWriter encodes a chunk's fields.
type ChunkWriter interface {
	Chunk
	Write(n *Node, w *Writer) error
}

// Versioned is implemented by chunks whose payload starts with an int32
// version. The dispatcher reads and writes the version; Read and Write see
// it already set.
type Versioned interface {
	Version() int32
	SetVersion(v int32)
}

// RawChunk is a chunk kept as opaque bytes. It is written back exactly as read.
type RawChunk struct {
	ChunkID uint32
	Data    []byte
}

// ID implements Chunk.
func (c *RawChunk) ID() uint32 { return c.ChunkID }

// ChunkFactory creates an empty chunk ready to be read.
type ChunkFactory func() Chunk

// NodeFactory creates empty, type-correct nodes by class ID.
type NodeFactory interface {
	NewNode(classID uint32) (*Node, error)
}

// ChunkRegistry looks up chunk factories.
//
// LookupChunk returns the factory for chunkID when the chunk is valid for
// nodes of classID, including chunks inherited from base classes. A found
// entry with a nil factory means the chunk is known but kept raw.
type ChunkRegistry interface {
	LookupChunk(classID, chunkID uint32) (ChunkFactory, bool)
}
