package core

import (
	"errors"
	"fmt"
)

// ExternalRef is a reference table entry: a node that lives in another file.
// The codec records the locator; loading the file is left to the caller
// (see package resolve).
type ExternalRef struct {
	// Index is the node lookback index the body uses to refer to this entry.
	Index   int32
	ClassID uint32
	Locator Locator
}

// NodeRef is a node reference field. The zero value is the null reference.
// At most one of Node and External is set.
type NodeRef struct {
	Node     *Node
	External *ExternalRef
}

// Ref returns a reference to an in-body node. A nil node gives the null reference.
func Ref(n *Node) NodeRef {
	return NodeRef{Node: n}
}

// IsNull reports whether the reference points nowhere.
func (ref NodeRef) IsNull() bool {
	return ref.Node == nil && ref.External == nil
}

// ReadNodeRef reads a node reference.
//
// A new node is registered at its lookback index before its chunks are
// read, so nodes referenced again while it is being decoded (including by
// itself) resolve to the same instance. New nodes nested more than
// MaxNodeDepth levels deep fail with a *NestingError.
func (r *Reader) ReadNodeRef() (NodeRef, error) {
	index, err := r.ReadInt32()
	if err != nil {
		return NodeRef{}, err
	}
	if index == NullIndex {
		return NodeRef{}, nil
	}

	s := r.sess
	if index < 0 || (s.nodeCount > 0 && index >= s.nodeCount) {
		return NodeRef{}, &InvalidIndexError{What: "node", Index: uint32(index)} //nolint:gosec // reported as raw bits
	}
	if ext, ok := s.refs[index]; ok {
		return NodeRef{External: ext}, nil
	}
	if n, ok := s.nodes[index]; ok {
		return NodeRef{Node: n}, nil
	}

	if s.depth >= MaxNodeDepth {
		return NodeRef{}, &NestingError{Index: index, Limit: MaxNodeDepth}
	}
	classID, err := r.ReadUint32()
	if err != nil {
		return NodeRef{}, err
	}
	n, err := s.newNode(classID)
	if err != nil {
		return NodeRef{}, err
	}
	s.nodes[index] = n

	s.depth++
	err = r.ReadChunks(n)
	s.depth--
	if err != nil {
		return NodeRef{Node: n}, wrapNodeErr(index, n.ClassID, err)
	}
	return NodeRef{Node: n}, nil
}

// wrapNodeErr adds the node's index and class to err. A nesting failure is
// passed through unchanged so the error does not grow with every level.
func wrapNodeErr(index int32, classID uint32, err error) error {
	var nest *NestingError
	if errors.As(err, &nest) {
		return nest
	}
	return fmt.Errorf("gbx: node %d (class 0x%08X): %w", index, classID, err)
}

// ReadNode reads a node reference that must point into the body.
func (r *Reader) ReadNode() (*Node, error) {
	ref, err := r.ReadNodeRef()
	if err != nil {
		return nil, err
	}
	if ref.External != nil {
		return nil, fmt.Errorf("%w: index %d (%s)", ErrExternalRef, ref.External.Index, ref.External.Locator.Path)
	}
	return ref.Node, nil
}

// ReadNodeRefs reads an int32 count followed by that many node references.
func (r *Reader) ReadNodeRefs() ([]NodeRef, error) {
	return ReadArray(r, (*Reader).ReadNodeRef)
}

func (s *readSession) newNode(classID uint32) (*Node, error) {
	n, err := s.cfg.nodes.NewNode(classID)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, ErrUnknownClass) && s.cfg.unknownClasses {
		s.cfg.logger.Debug("unknown class kept as placeholder", "class", fmt.Sprintf("0x%08X", classID))
		return NewNode(classID, nil), nil
	}
	return nil, err
}

// WriteNodeRef writes a node reference. A node is written in full at its
// first reference and by index afterwards.
//
// The body root has no index, so a reference to it fails with
// ErrRootReference. Inline nodes nested past MaxNodeDepth fail with a
// *NestingError, as they would on read.
func (w *Writer) WriteNodeRef(ref NodeRef) error {
	if ref.External != nil {
		return w.WriteInt32(ref.External.Index)
	}
	if ref.Node == nil {
		return w.WriteInt32(NullIndex)
	}
	s := w.sess
	if ref.Node == s.root {
		return fmt.Errorf("%w (class 0x%08X)", ErrRootReference, ref.Node.ClassID)
	}
	if index, ok := s.nodes[ref.Node]; ok {
		return w.WriteInt32(index)
	}

	index := s.assign(ref.Node)
	if s.depth >= MaxNodeDepth {
		return &NestingError{Index: index, Limit: MaxNodeDepth}
	}
	if err := w.WriteInt32(index); err != nil {
		return err
	}
	if err := w.WriteUint32(ref.Node.ClassID); err != nil {
		return err
	}
	s.depth++
	err := w.WriteChunks(ref.Node)
	s.depth--
	if err != nil {
		return wrapNodeErr(index, ref.Node.ClassID, err)
	}
	return nil
}

// WriteNode writes a reference to an in-body node, or null when n is nil.
func (w *Writer) WriteNode(n *Node) error {
	return w.WriteNodeRef(Ref(n))
}

// WriteNodeRefs writes an int32 count followed by the references.
func (w *Writer) WriteNodeRefs(refs []NodeRef) error {
	return WriteArray(w, refs, (*Writer).WriteNodeRef)
}
