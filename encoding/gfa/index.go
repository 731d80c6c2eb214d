package gfa

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// The index file is the 8-byte magic, a little-endian uint64 entry count,
// then (id uint64, offset int64) pairs in segment id order.
var indexMagic = [8]byte{'P', 'G', 'R', 'G', 'F', 'A', 'I', 1}

// WriteIndex writes the segment offset table returned by WriteMapGraph.
func WriteIndex(w io.Writer, entries []IndexEntry) error {
	if _, err := w.Write(indexMagic[:]); err != nil {
		return errors.Wrap(err, "gfa: write index magic")
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(entries))); err != nil {
		return errors.Wrap(err, "gfa: write index count")
	}
	for _, e := range entries {
		if err := binary.Write(w, binary.LittleEndian, e.ID); err != nil {
			return errors.Wrap(err, "gfa: write index entry")
		}
		if err := binary.Write(w, binary.LittleEndian, e.Offset); err != nil {
			return errors.Wrap(err, "gfa: write index entry")
		}
	}
	return nil
}

// ReadIndex reads an index written by WriteIndex, verifying the magic.
func ReadIndex(r io.Reader) ([]IndexEntry, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errors.Wrap(err, "gfa: read index magic")
	}
	if !bytes.Equal(magic[:], indexMagic[:]) {
		return nil, errors.Errorf("gfa: bad index magic %q", magic[:])
	}
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, errors.Wrap(err, "gfa: read index count")
	}
	entries := make([]IndexEntry, n)
	for i := range entries {
		if err := binary.Read(r, binary.LittleEndian, &entries[i].ID); err != nil {
			return nil, errors.Wrap(err, "gfa: read index entry")
		}
		if err := binary.Read(r, binary.LittleEndian, &entries[i].Offset); err != nil {
			return nil, errors.Wrap(err, "gfa: read index entry")
		}
	}
	return entries, nil
}
