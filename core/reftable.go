package core

import (
	"github.com/meigma/gbx/core/internal/sizing"
)

// ReadRefTable reads the reference table: an int32 count followed by
// {int32 node index, uint32 class ID, locator} entries.
func (r *Reader) ReadRefTable() ([]*ExternalRef, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if err := checkLength(int64(n)); err != nil {
		return nil, err
	}

	refs := make([]*ExternalRef, 0, sizing.Prealloc(int(n), preallocLimit))
	seen := make(map[int32]bool, sizing.Prealloc(int(n), preallocLimit))
	for range n {
		var ref ExternalRef
		if ref.Index, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		if ref.Index < 0 || seen[ref.Index] {
			return nil, &InvalidIndexError{What: "reference table", Index: uint32(ref.Index)} //nolint:gosec // reported as raw bits
		}
		seen[ref.Index] = true
		if ref.ClassID, err = r.ReadUint32(); err != nil {
			return nil, err
		}
		if ref.Locator, err = r.ReadLocator(); err != nil {
			return nil, err
		}
		refs = append(refs, &ref)
	}
	return refs, nil
}

// WriteRefTable writes the reference table.
func (w *Writer) WriteRefTable(refs []*ExternalRef) error {
	if err := checkLength(int64(len(refs))); err != nil {
		return err
	}
	if err := w.WriteInt32(int32(len(refs))); err != nil { //nolint:gosec // checked against MaxDataSize
		return err
	}
	seen := make(map[int32]bool, len(refs))
	for _, ref := range refs {
		if ref.Index < 0 || seen[ref.Index] {
			return &InvalidIndexError{What: "reference table", Index: uint32(ref.Index)} //nolint:gosec // reported as raw bits
		}
		seen[ref.Index] = true
		if err := w.WriteInt32(ref.Index); err != nil {
			return err
		}
		if err := w.WriteUint32(ref.ClassID); err != nil {
			return err
		}
		if err := w.WriteLocator(ref.Locator); err != nil {
			return err
		}
	}
	return nil
}
