// Package pdb persists a principal bundle decomposition as a single recordio
// file. The file carries the sampled contigs (bases zstd-compressed), the
// projected segments, and the anchor table as streamed records; the trailer
// holds the sampling parameters, the bundle table, the anchor-to-bundle map,
// and a content checksum. Reloading reconstructs everything needed to re-emit
// the BED and summary outputs byte for byte, or to re-project new contigs
// against the persisted bundles.
package pdb

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"

	"github.com/cschin/pgr-tk/pbundle"
	"github.com/cschin/pgr-tk/seqdb"
	"github.com/cschin/pgr-tk/shimmer"
)

const (
	// <versionHeaderKey, version> is stored as a recordio header.
	versionHeaderKey = "pgrpdb"
	version          = "PDB_GO_V1"

	// Anchor records are chunked so a single record never grows unbounded.
	anchorsPerRecord = 4096
)

// The checksum key is fixed; the hash guards against corruption, not
// tampering.
var checksumKey = []byte("pgr-tk principal bundle archive!")

// SeqInfo is one persisted contig.
type SeqInfo struct {
	ID     uint32
	Name   string
	Source string
	// SeqZ is the zstd-compressed base sequence.
	SeqZ []byte
	// Length is the uncompressed sequence length.
	Length uint32
}

// PairOccs is one anchor with its occurrence list.
type PairOccs struct {
	Pair seqdb.Pair
	Occs []seqdb.Occ
}

// record is the gob envelope of one recordio record. Exactly one field is
// non-nil.
type record struct {
	Contig  *contigRecord
	Anchors []PairOccs
}

type contigRecord struct {
	Seq      SeqInfo
	Segments []pbundle.Segment
}

// trailer closes the file. Checksum covers every record payload in order.
type trailer struct {
	Spec       shimmer.Spec
	SeqOpts    seqdb.Opts
	Opts       pbundle.Options
	Bundles    []pbundle.Bundle
	VertexPos  map[seqdb.Pair]pbundle.BundlePos
	NumContigs int
	Checksum   uint64
}

var (
	zstdEnc, _ = zstd.NewWriter(nil)
	zstdDec, _ = zstd.NewReader(nil)
)

func encode(v interface{}) ([]byte, error) {
	b := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(b).Encode(v); err != nil {
		return nil, errors.Wrap(err, "pdb: gob encode")
	}
	return b.Bytes(), nil
}

// Write persists db, its decomposition, and the projected segments to path.
func Write(ctx context.Context, path string, db *seqdb.DB, d *pbundle.Decomposition, segs []pbundle.Segment) (err error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "pdb: create %s", path)
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "pdb: close %s", path)
		}
	}()
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(versionHeaderKey, version)
	w.AddHeader(recordio.KeyTrailer, true)

	h, err := highwayhash.New64(checksumKey)
	if err != nil {
		return errors.Wrap(err, "pdb: checksum init")
	}
	append1 := func(rec record) error {
		b, err := encode(rec)
		if err != nil {
			return err
		}
		h.Write(b)
		w.Append(b)
		return nil
	}

	bySeq := map[uint32][]pbundle.Segment{}
	for _, s := range segs {
		bySeq[s.SeqID] = append(bySeq[s.SeqID], s)
	}
	for sid := 0; sid < db.NumSeqs(); sid++ {
		s := db.Seq(uint32(sid))
		rec := record{Contig: &contigRecord{
			Seq: SeqInfo{
				ID:     s.ID,
				Name:   s.Name,
				Source: s.Source,
				SeqZ:   zstdEnc.EncodeAll(s.Seq, nil),
				Length: uint32(len(s.Seq)),
			},
			Segments: bySeq[s.ID],
		}}
		if err := append1(rec); err != nil {
			return err
		}
	}
	var batch []PairOccs
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := append1(record{Anchors: batch})
		batch = nil
		return err
	}
	var rangeErr error
	db.RangePairs(func(p seqdb.Pair, occs []seqdb.Occ) bool {
		batch = append(batch, PairOccs{Pair: p, Occs: occs})
		if len(batch) >= anchorsPerRecord {
			if rangeErr = flush(); rangeErr != nil {
				return false
			}
		}
		return true
	})
	if rangeErr != nil {
		return rangeErr
	}
	if err := flush(); err != nil {
		return err
	}

	tb, err := encode(trailer{
		Spec:       db.Spec,
		SeqOpts:    db.Opts,
		Opts:       d.Opts,
		Bundles:    d.Bundles,
		VertexPos:  d.VertexPos,
		NumContigs: db.NumSeqs(),
		Checksum:   h.Sum64(),
	})
	if err != nil {
		return err
	}
	w.SetTrailer(tb)
	if err := w.Finish(); err != nil {
		return errors.Wrapf(err, "pdb: finish %s", path)
	}
	return nil
}

// Archive is a fully loaded decomposition file.
type Archive struct {
	Spec     shimmer.Spec
	SeqOpts  seqdb.Opts
	Decomp   *pbundle.Decomposition
	Seqs     []SeqInfo
	Segments []pbundle.Segment
	Anchors  []PairOccs
}

// Read loads path, verifying the version header and the content checksum.
func Read(ctx context.Context, path string) (a *Archive, err error) {
	recordiozstd.Init()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "pdb: open %s", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "pdb: close %s", path)
		}
	}()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	found := false
	for _, kv := range r.Header() {
		if kv.Key == versionHeaderKey {
			if v, _ := kv.Value.(string); v != version {
				return nil, errors.Errorf("pdb: %s: version %q, want %q", path, kv.Value, version)
			}
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Errorf("pdb: %s: missing %s header", path, versionHeaderKey)
	}

	a = &Archive{}
	h, err := highwayhash.New64(checksumKey)
	if err != nil {
		return nil, errors.Wrap(err, "pdb: checksum init")
	}
	for r.Scan() {
		b := r.Get().([]byte)
		h.Write(b)
		var rec record
		if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&rec); err != nil {
			return nil, errors.Wrapf(err, "pdb: %s: decode record", path)
		}
		switch {
		case rec.Contig != nil:
			a.Seqs = append(a.Seqs, rec.Contig.Seq)
			a.Segments = append(a.Segments, rec.Contig.Segments...)
		default:
			a.Anchors = append(a.Anchors, rec.Anchors...)
		}
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrapf(err, "pdb: %s: scan", path)
	}

	var t trailer
	if err := gob.NewDecoder(bytes.NewReader(r.Trailer())).Decode(&t); err != nil {
		return nil, errors.Wrapf(err, "pdb: %s: decode trailer", path)
	}
	if t.Checksum != h.Sum64() {
		return nil, errors.Errorf("pdb: %s: checksum mismatch", path)
	}
	if t.NumContigs != len(a.Seqs) {
		return nil, errors.Errorf("pdb: %s: %d contigs, trailer says %d",
			path, len(a.Seqs), t.NumContigs)
	}
	a.Spec = t.Spec
	a.SeqOpts = t.SeqOpts
	a.Decomp = &pbundle.Decomposition{
		Spec:      t.Spec,
		Opts:      t.Opts,
		Bundles:   t.Bundles,
		VertexPos: t.VertexPos,
	}
	if a.Decomp.VertexPos == nil {
		a.Decomp.VertexPos = map[seqdb.Pair]pbundle.BundlePos{}
	}
	return a, nil
}

// Seq decompresses one persisted contig's bases.
func (s *SeqInfo) Seq() ([]byte, error) {
	b, err := zstdDec.DecodeAll(s.SeqZ, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "pdb: decompress %s", s.Name)
	}
	if uint32(len(b)) != s.Length {
		return nil, errors.Errorf("pdb: %s: %d bases, expected %d", s.Name, len(b), s.Length)
	}
	return b, nil
}

// DB rebuilds an indexed sequence database from the archived contigs. The
// anchor table is recomputed from the bases, so lookups behave exactly as in
// the database that was persisted.
func (a *Archive) DB() (*seqdb.DB, error) {
	db, err := seqdb.New(a.Spec, a.SeqOpts)
	if err != nil {
		return nil, err
	}
	for i := range a.Seqs {
		s := &a.Seqs[i]
		seq, err := s.Seq()
		if err != nil {
			return nil, err
		}
		if _, err := db.Add(s.Name, s.Source, seq); err != nil {
			return nil, err
		}
	}
	if err := db.Index(); err != nil {
		return nil, err
	}
	return db, nil
}
