package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadID_InlineThenLookup(t *testing.T) {
	t.Parallel()

	// version, inline "Stadium", then the slot it was stored at.
	data := le(int32(3), uint32(0x40000000), int32(7), "Stadium", uint32(0x40000001))
	r := newTestReader(data)

	first, err := r.ReadIDString()
	require.NoError(t, err)
	assert.Equal(t, "Stadium", first)

	second, err := r.ReadIDString()
	require.NoError(t, err)
	assert.Equal(t, "Stadium", second)

	version, ok := r.IDVersion()
	assert.True(t, ok)
	assert.Equal(t, int32(3), version)

	_, err = r.ReadByte()
	assert.Error(t, err, "lookup must not consume a string from the stream")
}

func TestReadID_AddNameTag(t *testing.T) {
	t.Parallel()

	data := le(int32(3), uint32(0x80000000), int32(3), "abc", uint32(0x80000001))
	r := newTestReader(data)

	a, err := r.ReadIDString()
	require.NoError(t, err)
	b, err := r.ReadIDString()
	require.NoError(t, err)
	assert.Equal(t, "abc", a)
	assert.Equal(t, "abc", b)
}

func TestReadID_Numeric(t *testing.T) {
	t.Parallel()

	r := newTestReader(le(int32(3), uint32(26), uint32(26)))
	id, err := r.ReadID()
	require.NoError(t, err)
	assert.False(t, id.IsString())
	n, ok := id.Number()
	assert.True(t, ok)
	assert.Equal(t, uint32(26), n)
	assert.Equal(t, "26", id.String())

	_, err = r.ReadIDString()
	assert.ErrorIs(t, err, ErrIDNotString)
}

func TestReadID_Empty(t *testing.T) {
	t.Parallel()

	r := newTestReader(le(int32(3), EmptyIDIndex))
	s, err := r.ReadIDString()
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestReadID_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"old version", le(int32(2), uint32(1)), ErrUnsupportedVersion},
		{"undefined slot", le(int32(3), uint32(0x40000005)), ErrInvalidIndex},
		{"truncated inline", le(int32(3), uint32(0x40000000), int32(10), "abc"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := newTestReader(tt.data).ReadIDString()
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestReadID_VersionReadOncePerScope(t *testing.T) {
	t.Parallel()

	data := le(int32(3), uint32(1), uint32(2))
	r := newTestReader(data)
	for _, want := range []uint32{1, 2} {
		id, err := r.ReadID()
		require.NoError(t, err)
		n, _ := id.Number()
		assert.Equal(t, want, n)
	}

	r = newTestReader(le(int32(3), uint32(1), int32(3), uint32(2)))
	_, err := r.ReadID()
	require.NoError(t, err)
	r.ResetIDState()
	_, ok := r.IDVersion()
	assert.False(t, ok)
	id, err := r.ReadID()
	require.NoError(t, err)
	n, _ := id.Number()
	assert.Equal(t, uint32(2), n)
}

func TestIDTable_Monotonic(t *testing.T) {
	t.Parallel()

	names := []string{"Stadium", "Valley", "Canyon", "Lagoon", "Coast"}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, s := range names {
		require.NoError(t, w.WriteIDString(s))
	}

	r := newTestReader(buf.Bytes())
	var keys []uint32
	for _, s := range names {
		got, err := r.ReadIDString()
		require.NoError(t, err)
		assert.Equal(t, s, got)
		keys = append(keys, keyOf(r.ids.top(), s))
	}
	for i := 1; i < len(keys); i++ {
		assert.Greater(t, keys[i], keys[i-1])
	}

	// Every key resolves on its own.
	for i, key := range keys {
		s, ok := r.ids.top().lookup(key)
		require.True(t, ok)
		assert.Equal(t, names[i], s)
	}
}

func TestIDTable_ScopeIsolation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteIDString("outer"))
	require.NoError(t, w.WriteEncapsulation(func(w *Writer) error {
		if err := w.WriteIDString("inner"); err != nil {
			return err
		}
		if err := w.WriteIDString("outer"); err != nil {
			return err
		}
		return w.WriteIDString("inner")
	}))
	require.NoError(t, w.WriteIDString("outer"))
	require.NoError(t, w.WriteIDString("inner"))

	r := newTestReader(buf.Bytes())
	s, err := r.ReadIDString()
	require.NoError(t, err)
	assert.Equal(t, "outer", s)

	var inner []string
	require.NoError(t, r.ReadEncapsulation(func(r *Reader) error {
		assert.Equal(t, 2, r.ids.depth())
		for range 3 {
			s, err := r.ReadIDString()
			if err != nil {
				return err
			}
			inner = append(inner, s)
		}
		return nil
	}))
	assert.Equal(t, []string{"inner", "outer", "inner"}, inner)
	assert.Equal(t, 1, r.ids.depth())

	// The parent table still holds only its own entry.
	s, err = r.ReadIDString()
	require.NoError(t, err)
	assert.Equal(t, "outer", s)
	_, ok := r.ids.top().lookup(0x40000002)
	assert.False(t, ok, "child slots must not leak into the parent")

	s, err = r.ReadIDString()
	require.NoError(t, err)
	assert.Equal(t, "inner", s)
}

func TestIDTable_ChildSlotNotResolvableAfterScope(t *testing.T) {
	t.Parallel()

	// Parent has no entries; the child defines slot 0x40000001 and then the
	// parent refers to it.
	data := le(
		int32(4+4+4+5),
		int32(3), uint32(0x40000000), int32(5), "child",
		int32(3), uint32(0x40000001),
	)
	r := newTestReader(data)
	require.NoError(t, r.ReadEncapsulation(func(r *Reader) error {
		_, err := r.ReadIDString()
		return err
	}))
	_, err := r.ReadIDString()
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestIDTable_Clone(t *testing.T) {
	t.Parallel()

	src := newIDTable()
	src.versionSet, src.version = true, 3
	key := src.define(idTagLocal, "a")
	src.intern("b")

	c := src.clone()
	c.define(idTagLocal, "z")

	s, ok := c.lookup(key)
	assert.True(t, ok)
	assert.Equal(t, "a", s)
	assert.Len(t, src.strings, 1)
	assert.Len(t, c.strings, 2)
	assert.True(t, c.versionSet)
}

func TestIDScopes_PopKeepsRoot(t *testing.T) {
	t.Parallel()

	s := newIDScopes()
	root := s.top()
	s.pop()
	assert.Same(t, root, s.top())
	s.push()
	assert.NotSame(t, root, s.top())
	s.pop()
	assert.Same(t, root, s.top())
}

func keyOf(t *idTable, s string) uint32 {
	for k, v := range t.strings {
		if v == s {
			return k
		}
	}
	return 0
}
