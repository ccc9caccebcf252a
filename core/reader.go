package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/meigma/gbx/core/internal/sizing"
)

const (
	// maxCachedStringLength is the longest string eligible for the
	// previous-string cache; shorter strings are decoded from a scratch buffer.
	maxCachedStringLength = 2048

	// directReadLimit is the largest blob allocated up front. Longer blobs
	// grow as bytes actually arrive, so a lying length costs nothing.
	directReadLimit = 64 << 10

	// preallocLimit caps the capacity reserved for decoded arrays.
	preallocLimit = 4096

	// dayTicks is the encoded value of the last second of a day.
	dayTicks = math.MaxUint16

	// unsetTimeOfDay marks a time of day that was never set.
	unsetTimeOfDay = math.MaxUint32
)

// readSession is the state shared by a Reader and all readers derived from
// it for chunk payloads, encapsulations and decompressed bodies.
type readSession struct {
	cfg       *readConfig
	nodes     map[int32]*Node
	nodeCount int32
	refs      map[int32]*ExternalRef
	depth     int
}

func newReadSession(cfg *readConfig) *readSession {
	return &readSession{
		cfg:   cfg,
		nodes: make(map[int32]*Node),
	}
}

// Reader decodes primitive values, identifiers, node references and chunk
// streams from a binary container stream.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	r       io.Reader
	mode    Format
	tmp     [8]byte
	scratch []byte
	prev    string
	ids     *idScopes
	sess    *readSession
}

// NewReader returns a Reader over r. Options configure the format mode,
// boolean strictness, string caching and the class and chunk catalogs used
// for node references.
func NewReader(r io.Reader, opts ...ReadOption) *Reader {
	cfg := newReadConfig(opts)
	return &Reader{
		r:    r,
		mode: cfg.mode,
		ids:  newIDScopes(),
		sess: newReadSession(cfg),
	}
}

// derive returns a reader over src sharing the session and identifier scope.
func (r *Reader) derive(src io.Reader) *Reader {
	return &Reader{r: src, mode: r.mode, ids: r.ids, sess: r.sess}
}

// Mode returns the reader's format mode.
func (r *Reader) Mode() Format { return r.mode }

func (r *Reader) log() *slog.Logger {
	return r.sess.cfg.logger
}

func (r *Reader) check() error {
	if r.mode != FormatBinary {
		return &ModeError{Mode: r.mode}
	}
	return nil
}

func (r *Reader) fill(n int) ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	b := r.tmp[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, unexpectedEOF(err)
	}
	return b, nil
}

// ReadByte reads one byte.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt8 reads a signed byte.
func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.ReadByte()
	return int8(b), err //nolint:gosec // two's complement reinterpretation
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadInt16 reads a little-endian int16.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err //nolint:gosec // two's complement reinterpretation
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt32 reads a little-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err //nolint:gosec // two's complement reinterpretation
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.fill(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadInt64 reads a little-endian int64.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err //nolint:gosec // two's complement reinterpretation
}

// ReadFloat32 reads an IEEE-754 single.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadBool reads a boolean stored as a uint32.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return false, err
	}
	return r.boolean(int64(v))
}

// ReadBoolByte reads a boolean stored as a single byte.
func (r *Reader) ReadBoolByte() (bool, error) {
	v, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return r.boolean(int64(v))
}

func (r *Reader) boolean(v int64) (bool, error) {
	if r.sess.cfg.strictBooleans && v > 1 {
		return false, &RangeError{What: "boolean", Value: v}
	}
	return v != 0, nil
}

// ReadInt2 reads two int32 values.
func (r *Reader) ReadInt2() (Int2, error) {
	var v Int2
	var err error
	if v.X, err = r.ReadInt32(); err != nil {
		return Int2{}, err
	}
	if v.Y, err = r.ReadInt32(); err != nil {
		return Int2{}, err
	}
	return v, nil
}

// ReadInt3 reads three int32 values.
func (r *Reader) ReadInt3() (Int3, error) {
	var v Int3
	var err error
	if v.X, err = r.ReadInt32(); err != nil {
		return Int3{}, err
	}
	if v.Y, err = r.ReadInt32(); err != nil {
		return Int3{}, err
	}
	if v.Z, err = r.ReadInt32(); err != nil {
		return Int3{}, err
	}
	return v, nil
}

// ReadByte3 reads three bytes.
func (r *Reader) ReadByte3() (Byte3, error) {
	b, err := r.fill(3)
	if err != nil {
		return Byte3{}, err
	}
	return Byte3{X: b[0], Y: b[1], Z: b[2]}, nil
}

// ReadVec2 reads two floats.
func (r *Reader) ReadVec2() (Vec2, error) {
	var v Vec2
	var err error
	if v.X, err = r.ReadFloat32(); err != nil {
		return Vec2{}, err
	}
	if v.Y, err = r.ReadFloat32(); err != nil {
		return Vec2{}, err
	}
	return v, nil
}

// ReadVec3 reads three floats.
func (r *Reader) ReadVec3() (Vec3, error) {
	var v Vec3
	var err error
	if v.X, err = r.ReadFloat32(); err != nil {
		return Vec3{}, err
	}
	if v.Y, err = r.ReadFloat32(); err != nil {
		return Vec3{}, err
	}
	if v.Z, err = r.ReadFloat32(); err != nil {
		return Vec3{}, err
	}
	return v, nil
}

// ReadVec4 reads four floats.
func (r *Reader) ReadVec4() (Vec4, error) {
	var v Vec4
	var err error
	if v.X, err = r.ReadFloat32(); err != nil {
		return Vec4{}, err
	}
	if v.Y, err = r.ReadFloat32(); err != nil {
		return Vec4{}, err
	}
	if v.Z, err = r.ReadFloat32(); err != nil {
		return Vec4{}, err
	}
	if v.W, err = r.ReadFloat32(); err != nil {
		return Vec4{}, err
	}
	return v, nil
}

// checkLength validates a declared length before anything is allocated.
func checkLength(n int64) error {
	if n < 0 {
		return &RangeError{What: "length", Value: n}
	}
	if !sizing.Within(n, MaxDataSize) {
		return lengthLimit(n, MaxDataSize)
	}
	return nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := checkLength(int64(n)); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	if n <= directReadLimit {
		b := make([]byte, n)
		if _, err := io.ReadFull(r.r, b); err != nil {
			return nil, unexpectedEOF(err)
		}
		return b, nil
	}
	var buf bytes.Buffer
	got, err := io.CopyN(&buf, r.r, int64(n))
	if err != nil {
		if got < int64(n) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadData reads an int32 length-prefixed blob.
func (r *Reader) ReadData() ([]byte, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// SkipBytes discards exactly n bytes.
func (r *Reader) SkipBytes(n int) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := checkLength(int64(n)); err != nil {
		return err
	}
	got, err := io.CopyN(io.Discard, r.r, int64(n))
	if got < int64(n) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ReadToEnd reads the rest of the stream. limit caps the accepted size;
// 0 or above MaxDataSize applies MaxDataSize.
func (r *Reader) ReadToEnd(limit int64) ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxDataSize {
		limit = MaxDataSize
	}
	data, err := sizing.ReadAllWithLimit(r.r, uint64(limit), lengthLimit(limit+1, limit)) //nolint:gosec // limit is positive
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadString reads an int32 length-prefixed UTF-8 string. The length counts bytes.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	return r.ReadStringN(int(n))
}

// ReadStringByte reads a string with a one-byte length prefix.
func (r *Reader) ReadStringByte() (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	return r.ReadStringN(int(n))
}

// ReadStringN reads a string of exactly n bytes.
func (r *Reader) ReadStringN(n int) (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	if err := checkLength(int64(n)); err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if n > maxCachedStringLength {
		b, err := r.ReadBytes(n)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	if r.scratch == nil {
		r.scratch = make([]byte, maxCachedStringLength)
	}
	b := r.scratch[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		return "", unexpectedEOF(err)
	}
	if !r.sess.cfg.stringCache {
		return string(b), nil
	}
	if r.prev == string(b) {
		return r.prev, nil
	}
	r.prev = string(b)
	return r.prev, nil
}

// ReadTimeInt32 reads a duration stored as int32 milliseconds.
func (r *Reader) ReadTimeInt32() (time.Duration, error) {
	v, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Millisecond, nil
}

// ReadTimeSingle reads a duration stored as float32 seconds.
func (r *Reader) ReadTimeSingle() (time.Duration, error) {
	v, err := r.ReadFloat32()
	if err != nil {
		return 0, err
	}
	return time.Duration(float64(v) * float64(time.Second)), nil
}

// ReadTimeOfDay reads a time of day stored as a fraction of a day in
// [0, 65535]. ok is false when the value is unset.
func (r *Reader) ReadTimeOfDay() (tod time.Duration, ok bool, err error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, false, err
	}
	if v == unsetTimeOfDay {
		return 0, false, nil
	}
	if v > dayTicks {
		return 0, false, &RangeError{What: "time of day", Value: int64(v)}
	}
	const maxSeconds = 24*60*60 - 1
	secs := math.Round(float64(v) / dayTicks * maxSeconds)
	return time.Duration(secs) * time.Second, true, nil
}

// ReadLocator reads an external file locator.
func (r *Reader) ReadLocator() (Locator, error) {
	var l Locator
	var err error
	if l.Version, err = r.ReadByte(); err != nil {
		return Locator{}, err
	}
	if l.Version >= 3 {
		if l.Checksum, err = r.ReadBytes(checksumSize); err != nil {
			return Locator{}, err
		}
	}
	if l.Path, err = r.ReadString(); err != nil {
		return Locator{}, err
	}
	if (len(l.Path) > 0 && l.Version >= 1) || l.Version >= 3 {
		if l.URL, err = r.ReadString(); err != nil {
			return Locator{}, err
		}
	}
	return l, nil
}

// ReadArray reads an int32 element count followed by that many elements
// decoded by read. The count is validated before anything is allocated.
func ReadArray[T any](r *Reader, read func(*Reader) (T, error)) ([]T, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	return ReadArrayN(r, int(n), read)
}

// ReadArrayN reads exactly n elements decoded by read.
func ReadArrayN[T any](r *Reader, n int, read func(*Reader) (T, error)) ([]T, error) {
	if err := checkLength(int64(n)); err != nil {
		return nil, err
	}
	out := make([]T, 0, sizing.Prealloc(n, preallocLimit))
	for i := range n {
		v, err := read(r)
		if err != nil {
			return nil, fmt.Errorf("gbx: array element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadID reads an identifier from the current scope's lookback table.
func (r *Reader) ReadID() (ID, error) {
	index, err := r.readIDIndex()
	if err != nil {
		return ID{}, err
	}
	if index == EmptyIDIndex {
		return StringID(""), nil
	}
	if !isStringIndex(index) {
		return NumberID(index), nil
	}
	s, err := r.resolveID(index)
	if err != nil {
		return ID{}, err
	}
	return StringID(s), nil
}

// ReadIDString reads an identifier that must be a string.
func (r *Reader) ReadIDString() (string, error) {
	index, err := r.readIDIndex()
	if err != nil {
		return "", err
	}
	if index == EmptyIDIndex {
		return "", nil
	}
	if !isStringIndex(index) {
		return "", fmt.Errorf("%w: 0x%08X", ErrIDNotString, index)
	}
	return r.resolveID(index)
}

// ReadIdent reads an identifier triple.
func (r *Reader) ReadIdent() (Ident, error) {
	var id Ident
	var err error
	if id.ID, err = r.ReadIDString(); err != nil {
		return Ident{}, err
	}
	if id.Collection, err = r.ReadID(); err != nil {
		return Ident{}, err
	}
	if id.Author, err = r.ReadIDString(); err != nil {
		return Ident{}, err
	}
	return id, nil
}

func (r *Reader) readIDIndex() (uint32, error) {
	t := r.ids.top()
	if !t.versionSet {
		v, err := r.ReadInt32()
		if err != nil {
			return 0, err
		}
		if v < MinIDVersion {
			return 0, &VersionError{What: "id table", Version: v}
		}
		t.version = v
		t.versionSet = true
	}
	return r.ReadUint32()
}

func (r *Reader) resolveID(index uint32) (string, error) {
	t := r.ids.top()
	if index&idIndexMask != 0 {
		s, ok := t.lookup(index)
		if !ok {
			return "", &InvalidIndexError{What: "identifier", Index: index}
		}
		return s, nil
	}
	s, err := r.ReadString()
	if err != nil {
		return "", err
	}
	// Local names and added names are registered the same way.
	t.define(index, s)
	return s, nil
}

// IDVersion returns the current scope's ID table version and whether it
// has been read yet.
func (r *Reader) IDVersion() (int32, bool) {
	t := r.ids.top()
	return t.version, t.versionSet
}

// ResetIDState clears the current scope's ID table version and strings.
func (r *Reader) ResetIDState() {
	r.ids.top().reset()
}

// Encapsulate runs fn in a nested identifier scope. Identifiers defined by
// fn are discarded when it returns and the enclosing table is restored.
func (r *Reader) Encapsulate(fn func(*Reader) error) error {
	r.ids.push()
	defer r.ids.pop()
	return fn(r)
}

// ReadEncapsulation reads an int32 size-framed sub-stream and decodes it with
// fn in a nested identifier scope.
func (r *Reader) ReadEncapsulation(fn func(*Reader) error) error {
	data, err := r.ReadData()
	if err != nil {
		return err
	}
	src := bytes.NewReader(data)
	if err := r.derive(src).Encapsulate(fn); err != nil {
		return err
	}
	if left := src.Len(); left > 0 {
		r.log().Debug("encapsulation not fully consumed", "remaining", left)
	}
	return nil
}
