package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"
)

// writeSession is the state shared by a Writer and the writers derived from
// it for buffered chunk payloads and encapsulations.
type writeSession struct {
	cfg      *writeConfig
	nodes    map[*Node]int32
	reserved map[int32]bool
	next     int32
	count    int32
	root     *Node
	depth    int
}

func newWriteSession(cfg *writeConfig) *writeSession {
	return &writeSession{
		cfg:      cfg,
		nodes:    make(map[*Node]int32),
		reserved: make(map[int32]bool),
	}
}

// reserve marks an index as owned by a reference table entry.
func (s *writeSession) reserve(index int32) {
	s.reserved[index] = true
	s.grow(index)
}

func (s *writeSession) grow(index int32) {
	if index+1 > s.count {
		s.count = index + 1
	}
}

// assign returns the next free node index.
func (s *writeSession) assign(n *Node) int32 {
	for s.reserved[s.next] {
		s.next++
	}
	index := s.next
	s.next++
	s.nodes[n] = index
	s.grow(index)
	return index
}

// Writer encodes primitive values, identifiers, node references and chunk
// streams in the binary container format.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	w    io.Writer
	mode Format
	tmp  [8]byte
	ids  *idScopes
	sess *writeSession
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer, opts ...WriteOption) *Writer {
	return &Writer{
		w:    w,
		mode: FormatBinary,
		ids:  newIDScopes(),
		sess: newWriteSession(newWriteConfig(opts)),
	}
}

// derive returns a writer over dst sharing the session and identifier scope.
func (w *Writer) derive(dst io.Writer) *Writer {
	return &Writer{w: dst, mode: w.mode, ids: w.ids, sess: w.sess}
}

func (w *Writer) log() *slog.Logger {
	return w.sess.cfg.logger
}

func (w *Writer) put(b []byte) error {
	if w.mode != FormatBinary {
		return &ModeError{Mode: w.mode}
	}
	n, err := w.w.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// WriteByte writes one byte.
func (w *Writer) WriteByte(v byte) error {
	w.tmp[0] = v
	return w.put(w.tmp[:1])
}

// WriteInt8 writes a signed byte.
func (w *Writer) WriteInt8(v int8) error {
	return w.WriteByte(byte(v))
}

// WriteUint16 writes a little-endian uint16.
func (w *Writer) WriteUint16(v uint16) error {
	binary.LittleEndian.PutUint16(w.tmp[:2], v)
	return w.put(w.tmp[:2])
}

// WriteInt16 writes a little-endian int16.
func (w *Writer) WriteInt16(v int16) error {
	return w.WriteUint16(uint16(v)) //nolint:gosec // two's complement reinterpretation
}

// WriteUint32 writes a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(w.tmp[:4], v)
	return w.put(w.tmp[:4])
}

// WriteInt32 writes a little-endian int32.
func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v)) //nolint:gosec // two's complement reinterpretation
}

// WriteUint64 writes a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(w.tmp[:8], v)
	return w.put(w.tmp[:8])
}

// WriteInt64 writes a little-endian int64.
func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v)) //nolint:gosec // two's complement reinterpretation
}

// WriteFloat32 writes an IEEE-754 single.
func (w *Writer) WriteFloat32(v float32) error {
	return w.WriteUint32(math.Float32bits(v))
}

// WriteBool writes a boolean as a uint32.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteUint32(1)
	}
	return w.WriteUint32(0)
}

// WriteBoolByte writes a boolean as a single byte.
func (w *Writer) WriteBoolByte(v bool) error {
	if v {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

// WriteInt2 writes two int32 values.
func (w *Writer) WriteInt2(v Int2) error {
	if err := w.WriteInt32(v.X); err != nil {
		return err
	}
	return w.WriteInt32(v.Y)
}

// WriteInt3 writes three int32 values.
func (w *Writer) WriteInt3(v Int3) error {
	if err := w.WriteInt32(v.X); err != nil {
		return err
	}
	if err := w.WriteInt32(v.Y); err != nil {
		return err
	}
	return w.WriteInt32(v.Z)
}

// WriteByte3 writes three bytes.
func (w *Writer) WriteByte3(v Byte3) error {
	return w.put([]byte{v.X, v.Y, v.Z})
}

// WriteVec2 writes two floats.
func (w *Writer) WriteVec2(v Vec2) error {
	if err := w.WriteFloat32(v.X); err != nil {
		return err
	}
	return w.WriteFloat32(v.Y)
}

// WriteVec3 writes three floats.
func (w *Writer) WriteVec3(v Vec3) error {
	if err := w.WriteFloat32(v.X); err != nil {
		return err
	}
	if err := w.WriteFloat32(v.Y); err != nil {
		return err
	}
	return w.WriteFloat32(v.Z)
}

// WriteVec4 writes four floats.
func (w *Writer) WriteVec4(v Vec4) error {
	if err := w.WriteFloat32(v.X); err != nil {
		return err
	}
	if err := w.WriteFloat32(v.Y); err != nil {
		return err
	}
	if err := w.WriteFloat32(v.Z); err != nil {
		return err
	}
	return w.WriteFloat32(v.W)
}

// WriteBytes writes b verbatim.
func (w *Writer) WriteBytes(b []byte) error {
	if len(b) == 0 {
		if w.mode != FormatBinary {
			return &ModeError{Mode: w.mode}
		}
		return nil
	}
	return w.put(b)
}

// WriteData writes an int32 length-prefixed blob.
func (w *Writer) WriteData(b []byte) error {
	if err := checkLength(int64(len(b))); err != nil {
		return err
	}
	if err := w.WriteInt32(int32(len(b))); err != nil { //nolint:gosec // checked against MaxDataSize
		return err
	}
	return w.WriteBytes(b)
}

// WriteString writes an int32 length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) error {
	return w.WriteData([]byte(s))
}

// WriteStringByte writes a string with a one-byte length prefix.
func (w *Writer) WriteStringByte(s string) error {
	if len(s) > math.MaxUint8 {
		return &RangeError{What: "byte-prefixed string length", Value: int64(len(s))}
	}
	if err := w.WriteByte(byte(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}

// WriteTimeInt32 writes a duration as int32 milliseconds.
func (w *Writer) WriteTimeInt32(d time.Duration) error {
	ms := d.Milliseconds()
	if ms < math.MinInt32 || ms > math.MaxInt32 {
		return &RangeError{What: "time in milliseconds", Value: ms}
	}
	return w.WriteInt32(int32(ms))
}

// WriteTimeSingle writes a duration as float32 seconds.
func (w *Writer) WriteTimeSingle(d time.Duration) error {
	return w.WriteFloat32(float32(d.Seconds()))
}

// WriteTimeOfDay writes a time of day as a fraction of a day. ok=false
// writes the unset marker.
func (w *Writer) WriteTimeOfDay(tod time.Duration, ok bool) error {
	if !ok {
		return w.WriteUint32(unsetTimeOfDay)
	}
	const maxSeconds = 24*60*60 - 1
	secs := math.Round(tod.Seconds())
	if secs < 0 || secs > maxSeconds {
		return &RangeError{What: "time of day in seconds", Value: int64(secs)}
	}
	return w.WriteUint32(uint32(math.Round(secs / maxSeconds * dayTicks)))
}

// WriteLocator writes an external file locator.
func (w *Writer) WriteLocator(l Locator) error {
	if err := w.WriteByte(l.Version); err != nil {
		return err
	}
	if l.Version >= 3 {
		sum := make([]byte, checksumSize)
		copy(sum, l.Checksum)
		if err := w.WriteBytes(sum); err != nil {
			return err
		}
	}
	if err := w.WriteString(l.Path); err != nil {
		return err
	}
	if (len(l.Path) > 0 && l.Version >= 1) || l.Version >= 3 {
		return w.WriteString(l.URL)
	}
	return nil
}

// WriteArray writes an int32 element count followed by each element.
func WriteArray[T any](w *Writer, items []T, write func(*Writer, T) error) error {
	if err := checkLength(int64(len(items))); err != nil {
		return err
	}
	if err := w.WriteInt32(int32(len(items))); err != nil { //nolint:gosec // checked against MaxDataSize
		return err
	}
	for i, v := range items {
		if err := write(w, v); err != nil {
			return fmt.Errorf("gbx: array element %d: %w", i, err)
		}
	}
	return nil
}

// WriteID writes an identifier through the current scope's lookback table.
func (w *Writer) WriteID(id ID) error {
	if id.IsString() {
		return w.WriteIDString(id.String())
	}
	n, _ := id.Number()
	if isStringIndex(n) && n != EmptyIDIndex {
		return &RangeError{What: "numeric identifier", Value: int64(n)}
	}
	return w.writeIDIndex(n)
}

// WriteIDString writes a string identifier. The first occurrence in a scope
// is written inline; later occurrences write its lookback index.
func (w *Writer) WriteIDString(s string) error {
	if s == "" {
		return w.writeIDIndex(EmptyIDIndex)
	}
	key, isNew := w.ids.top().intern(s)
	if !isNew {
		return w.writeIDIndex(key)
	}
	if err := w.writeIDIndex(idTagLocal); err != nil {
		return err
	}
	return w.WriteString(s)
}

// WriteIdent writes an identifier triple.
func (w *Writer) WriteIdent(id Ident) error {
	if err := w.WriteIDString(id.ID); err != nil {
		return err
	}
	if err := w.WriteID(id.Collection); err != nil {
		return err
	}
	return w.WriteIDString(id.Author)
}

func (w *Writer) writeIDIndex(index uint32) error {
	t := w.ids.top()
	if !t.versionSet {
		if err := w.WriteInt32(IDVersion); err != nil {
			return err
		}
		t.version = IDVersion
		t.versionSet = true
	}
	return w.WriteUint32(index)
}

// ResetIDState clears the current scope's ID table.
func (w *Writer) ResetIDState() {
	w.ids.top().reset()
}

// Encapsulate runs fn in a nested identifier scope.
func (w *Writer) Encapsulate(fn func(*Writer) error) error {
	w.ids.push()
	defer w.ids.pop()
	return fn(w)
}

// WriteEncapsulation encodes fn's output in a nested identifier scope and
// writes it framed by its int32 size.
func (w *Writer) WriteEncapsulation(fn func(*Writer) error) error {
	var buf bytes.Buffer
	if err := w.derive(&buf).Encapsulate(fn); err != nil {
		return err
	}
	return w.WriteData(buf.Bytes())
}
