package core

import (
	"bytes"
	"fmt"
	"io"
)

// Header is the uncompressed front of a container. It can be parsed, edited
// and written without touching the body.
type Header struct {
	Format  Format
	ClassID uint32

	// UserData holds the header-only chunks in stream order.
	UserData []HeaderChunk
}

// HeaderChunk is one user data entry.
type HeaderChunk struct {
	ID uint32

	// Data is the payload as stored.
	Data []byte

	// Value is the decoded chunk when the chunk registry knows the ID for
	// the header class, and nil otherwise. When set, writing re-encodes it.
	Value Chunk
}

// Chunk returns the user data entry with the given ID.
func (h *Header) Chunk(id uint32) (*HeaderChunk, bool) {
	for i := range h.UserData {
		if h.UserData[i].ID == id {
			return &h.UserData[i], true
		}
	}
	return nil, false
}

// ParseHeader reads a container header from r and stops after the user data
// terminator. Header errors are never contained.
func ParseHeader(r io.Reader, opts ...ReadOption) (*Header, error) {
	return NewReader(r, opts...).ReadHeader()
}

// ReadHeader reads a container header.
func (r *Reader) ReadHeader() (*Header, error) {
	magic, err := r.ReadBytes(len(Magic))
	if err != nil {
		return nil, fmt.Errorf("gbx: read magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, magic)
	}

	mode, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("gbx: read format: %w", err)
	}
	h := &Header{Format: Format(mode)}
	if h.Format != FormatBinary {
		return nil, &ModeError{Mode: h.Format}
	}

	if h.ClassID, err = r.ReadUint32(); err != nil {
		return nil, fmt.Errorf("gbx: read class id: %w", err)
	}

	// Header chunks are decoded against a scratch node of the header class.
	owner := NewNode(h.ClassID, nil)
	for {
		id, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("gbx: read user data: %w", err)
		}
		if id == ChunkEnd {
			return h, nil
		}
		data, err := r.ReadData()
		if err != nil {
			return nil, fmt.Errorf("gbx: read user data 0x%08X: %w", id, err)
		}
		hc := HeaderChunk{ID: id, Data: data}
		if hc.Value, err = r.decodeHeaderChunk(owner, id, data); err != nil {
			return nil, &ChunkError{Op: "read header", ClassID: h.ClassID, ChunkID: id, Err: err}
		}
		h.UserData = append(h.UserData, hc)
	}
}

// decodeHeaderChunk decodes a user data payload in its own identifier scope.
func (r *Reader) decodeHeaderChunk(owner *Node, id uint32, data []byte) (Chunk, error) {
	factory, ok := r.sess.cfg.chunks.LookupChunk(owner.ClassID, id)
	if !ok || factory == nil {
		return nil, nil
	}
	c := factory()
	if c == nil {
		return nil, errNilChunk
	}
	cr, ok := c.(ChunkReader)
	if !ok {
		return nil, nil
	}
	sub := &Reader{r: bytes.NewReader(data), mode: r.mode, ids: newIDScopes(), sess: r.sess}
	if err := sub.decodeChunk(owner, cr); err != nil {
		return nil, err
	}
	return c, nil
}

// WriteHeader writes h to w.
func WriteHeader(w io.Writer, h *Header, opts ...WriteOption) error {
	return NewWriter(w, opts...).WriteHeader(h)
}

// WriteHeader writes a container header.
func (w *Writer) WriteHeader(h *Header) error {
	format := h.Format
	if format == 0 {
		format = FormatBinary
	}
	if format != FormatBinary {
		return &ModeError{Mode: format}
	}
	if err := w.WriteBytes([]byte(Magic)); err != nil {
		return err
	}
	if err := w.WriteByte(byte(format)); err != nil {
		return err
	}
	if err := w.WriteUint32(h.ClassID); err != nil {
		return err
	}

	owner := NewNode(h.ClassID, nil)
	for _, hc := range h.UserData {
		if hc.ID == ChunkEnd {
			return &RangeError{What: "user data chunk id", Value: int64(hc.ID)}
		}
		data, err := w.encodeHeaderChunk(owner, hc)
		if err != nil {
			return &ChunkError{Op: "write header", ClassID: h.ClassID, ChunkID: hc.ID, Err: err}
		}
		if err := w.WriteUint32(hc.ID); err != nil {
			return err
		}
		if err := w.WriteData(data); err != nil {
			return err
		}
	}
	return w.WriteUint32(ChunkEnd)
}

func (w *Writer) encodeHeaderChunk(owner *Node, hc HeaderChunk) ([]byte, error) {
	cw, ok := hc.Value.(ChunkWriter)
	if !ok {
		return hc.Data, nil
	}
	var buf bytes.Buffer
	sub := &Writer{w: &buf, mode: w.mode, ids: newIDScopes(), sess: w.sess}
	if err := sub.encodeChunk(owner, cw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
