package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// Gbx is a parsed container.
//
// Node holds the decoded graph once the body has been decoded. In raw-body
// mode, or when decoding stopped because no Compressor was installed, Node is
// nil and Body.Raw holds the stored body; Decode finishes the job.
type Gbx struct {
	Header *Header

	// Compression is the body compression used when writing. It starts as the
	// compression of the parsed file.
	Compression Compression

	// NodeCount is the number of node lookback slots declared by the file.
	NodeCount int32

	// Refs is the reference table.
	Refs []*ExternalRef

	Body *Body
	Node *Node

	opts []ReadOption
	ids  *idScopes
}

// New returns an empty container for a root node, ready to be written.
func New(root *Node, compression Compression) *Gbx {
	return &Gbx{
		Header:      &Header{Format: FormatBinary, ClassID: root.ClassID},
		Compression: compression,
		Body:        &Body{Compression: compression},
		Node:        root,
	}
}

// Parse reads a complete container from r.
func Parse(r io.Reader, opts ...ReadOption) (*Gbx, error) {
	return ParseContext(context.Background(), r, opts...)
}

// ParseContext reads a complete container from r, checking ctx before every
// read from the stream. A cancelled parse returns ctx's error and any graph
// built so far must not be reused.
//
// When the body is compressed and no Compressor is available, the returned
// container holds the header, reference table and raw body together with
// ErrNoCompressor; install a Compressor and call Decode to continue.
func ParseContext(ctx context.Context, r io.Reader, opts ...ReadOption) (*Gbx, error) {
	cfg := newReadConfig(opts)
	if cfg.rawBody && cfg.node != nil {
		return nil, ErrRawBodyNode
	}

	rd := &Reader{
		r:    newContextReader(ctx, r),
		mode: FormatBinary,
		ids:  newIDScopes(),
		sess: newReadSession(cfg),
	}

	hdr, err := rd.ReadHeader()
	if err != nil {
		return nil, err
	}
	g := &Gbx{Header: hdr, opts: opts}

	flag, err := rd.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("gbx: read compression: %w", err)
	}
	g.Compression = Compression(flag)
	if g.Compression != CompressionNone && g.Compression != CompressionCompressed {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidCompression, flag)
	}

	if g.NodeCount, err = rd.ReadInt32(); err != nil {
		return nil, fmt.Errorf("gbx: read node count: %w", err)
	}
	if err := checkLength(int64(g.NodeCount)); err != nil {
		return nil, fmt.Errorf("gbx: node count: %w", err)
	}
	if g.Refs, err = rd.ReadRefTable(); err != nil {
		return nil, fmt.Errorf("gbx: read reference table: %w", err)
	}
	for _, ref := range g.Refs {
		if g.NodeCount > 0 && ref.Index >= g.NodeCount {
			return nil, &InvalidIndexError{What: "reference table", Index: uint32(ref.Index)} //nolint:gosec // non-negative
		}
	}

	if g.Body, err = rd.ReadBody(g.Compression); err != nil {
		return nil, err
	}
	g.ids = rd.ids.inherit()

	if cfg.rawBody {
		return g, nil
	}
	if err := g.decode(ctx, cfg); err != nil {
		return g, err
	}
	return g, nil
}

// Decode decodes a raw body into the node graph. Options override those the
// container was parsed with. A compressed body uses the Compressor installed
// now, so a parse that failed with ErrNoCompressor can be retried.
func (g *Gbx) Decode(opts ...ReadOption) error {
	return g.DecodeContext(context.Background(), opts...)
}

// DecodeContext is Decode with cancellation.
func (g *Gbx) DecodeContext(ctx context.Context, opts ...ReadOption) error {
	cfg := g.decodeConfig(opts)
	return g.decode(ctx, cfg)
}

func (g *Gbx) decodeConfig(opts []ReadOption) *readConfig {
	all := make([]ReadOption, 0, len(g.opts)+len(opts))
	all = append(all, g.opts...)
	all = append(all, opts...)
	return newReadConfig(all)
}

func (g *Gbx) decode(ctx context.Context, cfg *readConfig) error {
	if g.Body == nil || g.Body.Raw == nil {
		return ErrNoBody
	}
	plain, err := g.Body.Decompress(cfg.compressor)
	if err != nil {
		return err
	}

	root := cfg.node
	if root != nil {
		root.ClassID = g.Header.ClassID
	} else {
		root, err = newReadSession(cfg).newNode(g.Header.ClassID)
		if err != nil {
			return err
		}
	}

	sess := newReadSession(cfg)
	sess.nodeCount = g.NodeCount
	sess.refs = make(map[int32]*ExternalRef, len(g.Refs))
	for _, ref := range g.Refs {
		sess.refs[ref.Index] = ref
	}

	ids := newIDScopes()
	if g.ids != nil {
		ids = g.ids.inherit()
	}
	src := bytes.NewReader(plain)
	br := &Reader{
		r:    newContextReader(ctx, src),
		mode: FormatBinary,
		ids:  ids,
		sess: sess,
	}

	g.Body.Err = nil
	if err := br.ReadChunks(root); err != nil {
		if !cfg.containErrors || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		g.Node = root
		g.Body.Err = err
		cfg.logger.Warn("body decode failed, graph is partial",
			"class", fmt.Sprintf("0x%08X", root.ClassID),
			"error", err)
		return nil
	}
	g.Node = root
	if left := src.Len(); left > 0 {
		cfg.logger.Debug("body not fully consumed", "remaining", left)
	}
	if !cfg.retainRawBody {
		g.Body.Raw = nil
	}
	return nil
}

// Write encodes the container to w. A decoded graph is re-encoded; a raw
// body is re-emitted as stored, or recompressed when Compression changed.
func (g *Gbx) Write(w io.Writer, opts ...WriteOption) error {
	_, err := g.write(w, newWriteConfig(opts))
	return err
}

// WriteTo implements io.WriterTo using the installed Compressor.
func (g *Gbx) WriteTo(w io.Writer) (int64, error) {
	return g.write(w, newWriteConfig(nil))
}

func (g *Gbx) write(w io.Writer, cfg *writeConfig) (int64, error) {
	if g.Header == nil {
		return 0, ErrNoHeader
	}
	if g.Body != nil && g.Body.Err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPartialBody, g.Body.Err)
	}
	compression := g.Compression
	if compression == 0 {
		compression = CompressionNone
	}

	var (
		plain     []byte
		encode    bool
		nodeCount int32
		err       error
	)
	switch {
	case g.Node != nil:
		if plain, nodeCount, err = g.encodeBody(cfg); err != nil {
			return 0, err
		}
		encode = true
	case g.Body != nil && g.Body.Raw != nil:
		nodeCount = g.NodeCount
		if g.Body.Compression != compression {
			if plain, err = g.Body.Decompress(cfg.compressor); err != nil {
				return 0, err
			}
			encode = true
		}
	default:
		return 0, ErrNoBody
	}

	cw := &countingWriter{w: w}
	out := &Writer{w: cw, mode: FormatBinary, ids: newIDScopes(), sess: newWriteSession(cfg)}
	if err := out.WriteHeader(g.Header); err != nil {
		return cw.n, err
	}
	if err := out.WriteByte(byte(compression)); err != nil {
		return cw.n, err
	}
	if err := out.WriteInt32(nodeCount); err != nil {
		return cw.n, err
	}
	if err := out.WriteRefTable(g.Refs); err != nil {
		return cw.n, err
	}

	switch {
	case encode:
		err = out.WriteBody(compression, plain)
	case compression == CompressionCompressed:
		err = out.writeStoredBody(g.Body.UncompressedSize, g.Body.Raw)
	default:
		err = out.WriteBytes(g.Body.Raw)
	}
	return cw.n, err
}

// encodeBody encodes the graph rooted at g.Node and returns the plain body
// and the number of node slots it uses, including reference table slots.
func (g *Gbx) encodeBody(cfg *writeConfig) ([]byte, int32, error) {
	sess := newWriteSession(cfg)
	sess.root = g.Node
	for _, ref := range g.Refs {
		sess.reserve(ref.Index)
	}
	var buf bytes.Buffer
	bw := &Writer{w: &buf, mode: FormatBinary, ids: newIDScopes(), sess: sess}
	if err := bw.WriteChunks(g.Node); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), sess.count, nil
}
