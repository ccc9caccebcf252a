package core

import (
	"sync"
	"sync/atomic"
)

// maxClassDepth bounds parent chain walks so a malformed catalog cannot loop.
const maxClassDepth = 64

// Class describes a node class known to a Registry.
type Class struct {
	ID uint32

	// Name is informational.
	Name string

	// Parent is the base class ID, or 0 for a root class. Chunks registered
	// for a base class are accepted on nodes of derived classes.
	Parent uint32

	// New returns the class-specific Data of a fresh node. It may be nil.
	New func() any
}

// Registry is a map-based NodeFactory and ChunkRegistry.
//
// Registration is expected to happen before parsing starts. Lookups are safe
// for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	classes map[uint32]Class
	chunks  map[uint32]ChunkFactory
	aliases map[uint32]uint32
}

// Interface compliance.
var (
	_ NodeFactory   = (*Registry)(nil)
	_ ChunkRegistry = (*Registry)(nil)
)

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[uint32]Class),
		chunks:  make(map[uint32]ChunkFactory),
		aliases: make(map[uint32]uint32),
	}
}

// RegisterClass adds or replaces a class.
func (r *Registry) RegisterClass(c Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[c.ID] = c
}

// RegisterChunk registers the factory for a chunk ID. The skippable bit is
// ignored when matching.
func (r *Registry) RegisterChunk(chunkID uint32, f ChunkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[chunkID&^SkippableBit] = f
}

// RegisterRawChunk marks a chunk as known but stored as opaque bytes.
func (r *Registry) RegisterRawChunk(chunkID uint32) {
	r.RegisterChunk(chunkID, nil)
}

// Alias maps a legacy class ID to its current ID. Nodes and chunks of the
// legacy class are decoded as the current class.
func (r *Registry) Alias(legacyID, currentID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[legacyID] = currentID
}

// Resolve returns the current class ID for id, following aliases.
func (r *Registry) Resolve(id uint32) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(id)
}

func (r *Registry) resolveLocked(id uint32) uint32 {
	for range maxClassDepth {
		next, ok := r.aliases[id]
		if !ok {
			return id
		}
		id = next
	}
	return id
}

// Class returns the class registered for id.
func (r *Registry) Class(id uint32) (Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[r.resolveLocked(id)]
	return c, ok
}

// NewNode implements NodeFactory.
func (r *Registry) NewNode(classID uint32) (*Node, error) {
	r.mu.RLock()
	id := r.resolveLocked(classID)
	c, ok := r.classes[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownClassError{ClassID: classID}
	}
	var data any
	if c.New != nil {
		data = c.New()
	}
	return NewNode(id, data), nil
}

// LookupChunk implements ChunkRegistry.
func (r *Registry) LookupChunk(classID, chunkID uint32) (ChunkFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	family := r.resolveLocked(ChunkClass(chunkID))
	key := family | chunkID&0xFFF

	f, ok := r.chunks[key]
	if !ok {
		return nil, false
	}

	cur := r.resolveLocked(classID)
	for range maxClassDepth {
		if cur == family {
			return f, true
		}
		c, known := r.classes[cur]
		if !known || c.Parent == 0 {
			return nil, false
		}
		cur = r.resolveLocked(c.Parent)
	}
	return nil, false
}

var (
	installedRegistry atomic.Pointer[Registry]
	emptyRegistry     = NewRegistry()
)

// SetRegistry installs the process-wide Registry used when no registry
// option is given. It is meant to be called once at start-up.
func SetRegistry(r *Registry) {
	installedRegistry.Store(r)
}

// DefaultRegistry returns the installed Registry, or an empty one.
func DefaultRegistry() *Registry {
	if r := installedRegistry.Load(); r != nil {
		return r
	}
	return emptyRegistry
}
