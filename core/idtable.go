package core

const (
	idTagMask   uint32 = 0xC0000000
	idTagLocal  uint32 = 0x40000000
	idTagAdd    uint32 = 0x80000000
	idIndexMask uint32 = 0x0FFFFFFF
)

// isStringIndex reports whether an identifier index refers to the string table.
func isStringIndex(index uint32) bool {
	tag := index & idTagMask
	return tag == idTagLocal || tag == idTagAdd
}

// idTable is the identifier state of one scope.
type idTable struct {
	versionSet bool
	version    int32
	strings    map[uint32]string // read side: key -> string
	keys       map[string]uint32 // write side: string -> key
}

func newIDTable() *idTable {
	return &idTable{}
}

// define registers s under the key a reader derives from a fresh string
// index: the raw index plus the table size plus one.
func (t *idTable) define(index uint32, s string) uint32 {
	if t.strings == nil {
		t.strings = make(map[uint32]string)
	}
	key := index + uint32(len(t.strings)) + 1 //nolint:gosec // table size is bounded by stream length
	t.strings[key] = s
	return key
}

// intern returns the key of s on the write side and whether s was new.
// New strings get the key a reader will assign when it sees them inline.
func (t *idTable) intern(s string) (uint32, bool) {
	if key, ok := t.keys[s]; ok {
		return key, false
	}
	if t.keys == nil {
		t.keys = make(map[string]uint32)
	}
	key := idTagLocal + uint32(len(t.keys)) + 1 //nolint:gosec // table size is bounded by stream length
	t.keys[s] = key
	return key, true
}

func (t *idTable) lookup(key uint32) (string, bool) {
	s, ok := t.strings[key]
	return s, ok
}

func (t *idTable) reset() {
	t.versionSet = false
	t.version = 0
	t.strings = nil
	t.keys = nil
}

// clone copies the table so a child reader can inherit it without sharing.
func (t *idTable) clone() *idTable {
	c := &idTable{versionSet: t.versionSet, version: t.version}
	if t.strings != nil {
		c.strings = make(map[uint32]string, len(t.strings))
		for k, v := range t.strings {
			c.strings[k] = v
		}
	}
	if t.keys != nil {
		c.keys = make(map[string]uint32, len(t.keys))
		for k, v := range t.keys {
			c.keys[k] = v
		}
	}
	return c
}

// idScopes is a stack of identifier tables. Entering an encapsulated scope
// pushes a fresh table; leaving pops it, restoring the parent untouched.
type idScopes struct {
	stack []*idTable
}

func newIDScopes() *idScopes {
	return &idScopes{stack: []*idTable{newIDTable()}}
}

func (s *idScopes) top() *idTable {
	return s.stack[len(s.stack)-1]
}

func (s *idScopes) push() {
	s.stack = append(s.stack, newIDTable())
}

func (s *idScopes) pop() {
	if len(s.stack) > 1 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *idScopes) depth() int {
	return len(s.stack)
}

// inherit returns a stack whose root is a copy of the current table.
func (s *idScopes) inherit() *idScopes {
	return &idScopes{stack: []*idTable{s.top().clone()}}
}
