package core

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_PrimitivesRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteByte(0xAB))
	require.NoError(t, w.WriteInt8(-2))
	require.NoError(t, w.WriteUint16(0xBEEF))
	require.NoError(t, w.WriteInt16(-3))
	require.NoError(t, w.WriteUint32(0xDEADBEEF))
	require.NoError(t, w.WriteInt32(-4))
	require.NoError(t, w.WriteUint64(math.MaxUint64))
	require.NoError(t, w.WriteInt64(math.MinInt64))
	require.NoError(t, w.WriteFloat32(-0.25))
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteBoolByte(false))
	require.NoError(t, w.WriteInt2(Int2{1, -1}))
	require.NoError(t, w.WriteVec4(Vec4{1, 2, 3, 4}))
	require.NoError(t, w.WriteVec2(Vec2{5, 6}))
	require.NoError(t, w.WriteString("hello"))
	require.NoError(t, w.WriteStringByte("abc"))
	require.NoError(t, w.WriteData([]byte{9, 9}))
	require.NoError(t, w.WriteTimeInt32(3*time.Second))
	require.NoError(t, w.WriteTimeSingle(1500*time.Millisecond))
	require.NoError(t, w.WriteTimeOfDay(86399*time.Second, true))
	require.NoError(t, w.WriteTimeOfDay(0, false))

	r := newTestReader(buf.Bytes())
	b, _ := r.ReadByte()
	assert.Equal(t, byte(0xAB), b)
	i8, _ := r.ReadInt8()
	assert.Equal(t, int8(-2), i8)
	u16, _ := r.ReadUint16()
	assert.Equal(t, uint16(0xBEEF), u16)
	i16, _ := r.ReadInt16()
	assert.Equal(t, int16(-3), i16)
	u32, _ := r.ReadUint32()
	assert.Equal(t, uint32(0xDEADBEEF), u32)
	i32, _ := r.ReadInt32()
	assert.Equal(t, int32(-4), i32)
	u64, _ := r.ReadUint64()
	assert.Equal(t, uint64(math.MaxUint64), u64)
	i64, _ := r.ReadInt64()
	assert.Equal(t, int64(math.MinInt64), i64)
	f, _ := r.ReadFloat32()
	assert.Equal(t, float32(-0.25), f)
	bv, _ := r.ReadBool()
	assert.True(t, bv)
	bb, _ := r.ReadBoolByte()
	assert.False(t, bb)
	i2, _ := r.ReadInt2()
	assert.Equal(t, Int2{1, -1}, i2)
	v4, _ := r.ReadVec4()
	assert.Equal(t, Vec4{1, 2, 3, 4}, v4)
	v2, _ := r.ReadVec2()
	assert.Equal(t, Vec2{5, 6}, v2)
	s, _ := r.ReadString()
	assert.Equal(t, "hello", s)
	s, _ = r.ReadStringByte()
	assert.Equal(t, "abc", s)
	d, _ := r.ReadData()
	assert.Equal(t, []byte{9, 9}, d)
	dur, _ := r.ReadTimeInt32()
	assert.Equal(t, 3*time.Second, dur)
	dur, _ = r.ReadTimeSingle()
	assert.Equal(t, 1500*time.Millisecond, dur)
	tod, ok, err := r.ReadTimeOfDay()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 86399*time.Second, tod)
	_, ok, err = r.ReadTimeOfDay()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.ReadByte()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriter_RangeChecks(t *testing.T) {
	t.Parallel()

	w := NewWriter(io.Discard)
	assert.ErrorIs(t, w.WriteStringByte(strings.Repeat("x", 256)), ErrRange)
	assert.ErrorIs(t, w.WriteTimeInt32(time.Duration(math.MaxInt64)), ErrRange)
	assert.ErrorIs(t, w.WriteTimeOfDay(-time.Second, true), ErrRange)
	assert.ErrorIs(t, w.WriteTimeOfDay(25*time.Hour, true), ErrRange)
	assert.ErrorIs(t, w.WriteID(NumberID(0x40000001)), ErrRange)
}

func TestWriter_ModeGate(t *testing.T) {
	t.Parallel()

	w := NewWriter(io.Discard)
	w.mode = FormatText
	assert.ErrorIs(t, w.WriteUint32(1), ErrModeNotSupported)
	assert.ErrorIs(t, w.WriteBytes(nil), ErrModeNotSupported)
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

type failWriter struct{ err error }

func (f failWriter) Write([]byte) (int, error) {
	return 0, f.err
}

func TestWriter_PropagatesWriteErrors(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, NewWriter(shortWriter{}).WriteUint32(1), io.ErrShortWrite)

	boom := errors.New("boom")
	assert.ErrorIs(t, NewWriter(failWriter{boom}).WriteString("x"), boom)
}

func TestWriteArray(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, WriteArray(w, []Vec3{{1, 2, 3}, {4, 5, 6}}, (*Writer).WriteVec3))

	got, err := ReadArray(newTestReader(buf.Bytes()), (*Reader).ReadVec3)
	require.NoError(t, err)
	assert.Equal(t, []Vec3{{1, 2, 3}, {4, 5, 6}}, got)
}
