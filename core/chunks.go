package core

import (
	"bytes"
	"errors"
	"fmt"
)

var errNilChunk = errors.New("gbx: chunk factory returned nil")

// ReadChunks reads n's chunk stream up to and including the end marker and
// appends the decoded chunks to n in stream order.
func (r *Reader) ReadChunks(n *Node) error {
	for {
		id, err := r.ReadUint32()
		if err != nil {
			return err
		}
		if id == ChunkEnd {
			return nil
		}
		if err := r.readChunk(n, id); err != nil {
			return chunkErr("read", n.ClassID, id, err)
		}
	}
}

// chunkErr wraps err in a *ChunkError. A *NestingError is passed through
// unchanged.
func chunkErr(op string, classID, chunkID uint32, err error) error {
	var nest *NestingError
	if errors.As(err, &nest) {
		return nest
	}
	return &ChunkError{Op: op, ClassID: classID, ChunkID: chunkID, Err: err}
}

func (r *Reader) readChunk(n *Node, id uint32) error {
	skippable := IsSkippable(id)

	factory, found := r.sess.cfg.chunks.LookupChunk(n.ClassID, id)
	if !found || factory == nil {
		if !skippable {
			return &UnsupportedChunkError{ClassID: n.ClassID, ChunkID: id}
		}
		return r.readRawChunk(n, id)
	}

	c := factory()
	if c == nil {
		return errNilChunk
	}
	cr, ok := c.(ChunkReader)
	if !ok {
		if !skippable {
			return &UnsupportedChunkError{ClassID: n.ClassID, ChunkID: id}
		}
		return r.readRawChunk(n, id)
	}

	if !skippable {
		if err := r.decodeChunk(n, cr); err != nil {
			return err
		}
		n.Chunks = append(n.Chunks, c)
		return nil
	}

	data, err := r.ReadData()
	if err != nil {
		return err
	}
	src := bytes.NewReader(data)
	if err := r.derive(src).decodeChunk(n, cr); err != nil {
		return err
	}
	if left := src.Len(); left > 0 {
		r.log().Debug("skippable chunk not fully consumed",
			"class", fmt.Sprintf("0x%08X", n.ClassID),
			"chunk", fmt.Sprintf("0x%08X", id),
			"remaining", left)
	}
	n.Chunks = append(n.Chunks, c)
	return nil
}

func (r *Reader) readRawChunk(n *Node, id uint32) error {
	data, err := r.ReadData()
	if err != nil {
		return err
	}
	r.log().Debug("chunk kept raw",
		"class", fmt.Sprintf("0x%08X", n.ClassID),
		"chunk", fmt.Sprintf("0x%08X", id),
		"size", len(data))
	n.Chunks = append(n.Chunks, &RawChunk{ChunkID: id, Data: data})
	return nil
}

func (r *Reader) decodeChunk(n *Node, c ChunkReader) error {
	if v, ok := c.(Versioned); ok {
		version, err := r.ReadInt32()
		if err != nil {
			return err
		}
		v.SetVersion(version)
	}
	return c.Read(n, r)
}

// WriteChunks writes n's chunks in order followed by the end marker.
func (w *Writer) WriteChunks(n *Node) error {
	for _, c := range n.Chunks {
		if err := w.writeChunk(n, c); err != nil {
			return chunkErr("write", n.ClassID, c.ID(), err)
		}
	}
	return w.WriteUint32(ChunkEnd)
}

func (w *Writer) writeChunk(n *Node, c Chunk) error {
	id := c.ID()
	skippable := IsSkippable(id)

	if raw, ok := c.(*RawChunk); ok {
		if !skippable {
			return &UnsupportedChunkError{ClassID: n.ClassID, ChunkID: id}
		}
		if err := w.WriteUint32(id); err != nil {
			return err
		}
		return w.WriteData(raw.Data)
	}

	cw, ok := c.(ChunkWriter)
	if !ok {
		return fmt.Errorf("%w: chunk 0x%08X cannot be written", ErrUnsupportedChunk, id)
	}
	if err := w.WriteUint32(id); err != nil {
		return err
	}
	if !skippable {
		return w.encodeChunk(n, cw)
	}

	var buf bytes.Buffer
	if err := w.derive(&buf).encodeChunk(n, cw); err != nil {
		return err
	}
	return w.WriteData(buf.Bytes())
}

func (w *Writer) encodeChunk(n *Node, c ChunkWriter) error {
	if v, ok := c.(Versioned); ok {
		if err := w.WriteInt32(v.Version()); err != nil {
			return err
		}
	}
	return c.Write(n, w)
}
