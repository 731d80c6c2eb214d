// Package gfa writes the MAP graph in GFA 1.1 interchange form, plus a small
// binary offset index that lets viewers seek straight to a segment line.
// Segments are canonical anchor pairs, links carry the anchor orientation and
// the shared k-mer overlap, and one W line per contig records its anchor walk.
package gfa

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/cschin/pgr-tk/mapgraph"
	"github.com/cschin/pgr-tk/pbundle"
	"github.com/cschin/pgr-tk/seqdb"
)

// IndexEntry maps one segment id to the byte offset of its S line.
type IndexEntry struct {
	ID     uint64
	Offset int64
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteMapGraph writes the full MAP graph of db, keeping anchors with at
// least minCov occurrences. It returns the segment offset table for
// WriteIndex.
func WriteMapGraph(w io.Writer, db *seqdb.DB, minCov int) ([]IndexEntry, error) {
	edges := mapgraph.BuildAdjList(db, minCov)
	return writeGraph(w, db, edges, true)
}

// WritePrincipalMapGraph writes the MAP graph restricted to anchors that
// belong to a principal bundle of d.
func WritePrincipalMapGraph(w io.Writer, db *seqdb.DB, d *pbundle.Decomposition) ([]IndexEntry, error) {
	var edges []mapgraph.Edge
	for _, e := range mapgraph.BuildAdjList(db, d.Opts.MinCov) {
		if _, ok := d.VertexPos[e.From.Pair]; !ok {
			continue
		}
		if _, ok := d.VertexPos[e.To.Pair]; !ok {
			continue
		}
		edges = append(edges, e)
	}
	return writeGraph(w, db, edges, false)
}

func writeGraph(w io.Writer, db *seqdb.DB, edges []mapgraph.Edge, walks bool) ([]IndexEntry, error) {
	cw := &countingWriter{w: w}
	if _, err := fmt.Fprintf(cw, "H\tVN:Z:1.1\n"); err != nil {
		return nil, errors.Wrap(err, "gfa: write header")
	}

	// Segment ids in first-seen edge order, which follows contig order and is
	// therefore stable across runs.
	sid := map[seqdb.Pair]uint64{}
	var pairs []seqdb.Pair
	segID := func(p seqdb.Pair) uint64 {
		if id, ok := sid[p]; ok {
			return id
		}
		id := uint64(len(pairs))
		sid[p] = id
		pairs = append(pairs, p)
		return id
	}
	for _, e := range edges {
		segID(e.From.Pair)
		segID(e.To.Pair)
	}

	k := uint32(db.Spec.K)
	var entries []IndexEntry
	for id, p := range pairs {
		occs := db.Lookup(p)
		length := k
		if len(occs) > 0 {
			length = occs[0].End - occs[0].Bgn + k
		}
		entries = append(entries, IndexEntry{ID: uint64(id), Offset: cw.n})
		if _, err := fmt.Fprintf(cw, "S\t%d\t*\tLN:i:%d\n", id, length); err != nil {
			return nil, errors.Wrap(err, "gfa: write segment")
		}
	}

	g := mapgraph.New(edges)
	sign := func(o uint8) byte {
		if o == 0 {
			return '+'
		}
		return '-'
	}
	type link struct {
		a, b   uint64
		oa, ob uint8
	}
	emitted := map[link]bool{}
	for _, e := range edges {
		l := link{a: segID(e.From.Pair), oa: e.From.Orient, b: segID(e.To.Pair), ob: e.To.Orient}
		// A link and its reverse complement are the same GFA link.
		rc := link{a: l.b, oa: 1 - l.ob, b: l.a, ob: 1 - l.oa}
		if emitted[l] || emitted[rc] {
			continue
		}
		emitted[l] = true
		va, _ := g.ID(e.From)
		vb, _ := g.ID(e.To)
		_, err := fmt.Fprintf(cw, "L\t%d\t%c\t%d\t%c\t%dM\tSC:i:%d\n",
			l.a, sign(l.oa), l.b, sign(l.ob), k, g.Score(va, vb))
		if err != nil {
			return nil, errors.Wrap(err, "gfa: write link")
		}
	}

	if walks {
		for i := 0; i < db.NumSeqs(); i++ {
			s := db.Seq(uint32(i))
			var b strings.Builder
			for _, sp := range db.Path(uint32(i)) {
				id, ok := sid[sp.Pair]
				if !ok {
					continue
				}
				if sp.Orient == 0 {
					b.WriteByte('>')
				} else {
					b.WriteByte('<')
				}
				fmt.Fprintf(&b, "%d", id)
			}
			if b.Len() == 0 {
				continue
			}
			_, err := fmt.Fprintf(cw, "W\t%s\t0\t%s\t0\t%d\t%s\n",
				s.Name, s.Name, len(s.Seq), b.String())
			if err != nil {
				return nil, errors.Wrap(err, "gfa: write walk")
			}
		}
	}
	return entries, nil
}
