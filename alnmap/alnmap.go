// Package alnmap maps query contigs onto an indexed target collection and
// classifies the structural differences. Shared anchors are chained into
// candidate alignments, each alignment is tiled into match blocks refined by
// an opaque base-level aligner, and walks over the target and query
// coordinates emit gap, duplication, overlap and SV-candidate records.
package alnmap

import (
	"sort"

	"github.com/grailbio/base/traverse"

	"github.com/cschin/pgr-tk/seqdb"
	"github.com/cschin/pgr-tk/shimmer"
)

// Options control chaining and boundary refinement.
type Options struct {
	// MaxGap splits a chain when the query or target jumps farther.
	MaxGap uint32
	// MaxAlnSize is the largest block handed to the aligner when the two
	// sides differ in length; larger blocks fail as length-difference.
	MaxAlnSize int
	// MinChainLen drops chains with fewer anchors.
	MinChainLen int
	// Aligner refines block boundaries. Defaults to LevenshteinAligner.
	Aligner Aligner
}

// DefaultOptions mirrors the assembly-to-reference mapping defaults.
var DefaultOptions = Options{
	MaxGap:      100000,
	MaxAlnSize:  1 << 10,
	MinChainLen: 3,
}

func (o Options) withDefaults() Options {
	if o.MaxGap == 0 {
		o.MaxGap = DefaultOptions.MaxGap
	}
	if o.MaxAlnSize == 0 {
		o.MaxAlnSize = DefaultOptions.MaxAlnSize
	}
	if o.MinChainLen == 0 {
		o.MinChainLen = DefaultOptions.MinChainLen
	}
	if o.Aligner == nil {
		o.Aligner = LevenshteinAligner
	}
	return o
}

// Query is one assembly contig to map against the target.
type Query struct {
	Name string
	Seq  []byte
}

// MatchBlock is one aligned region pair. Orient is the alignment-local
// orientation: 1 when the query was reverse complemented for this block.
type MatchBlock struct {
	TID, TS, TE uint32
	QID, QS, QE uint32
	Orient      uint8
}

// SvCnd is a block that failed refinement inside an otherwise consistent
// alignment. CtgOrient is the whole contig's dominant orientation.
type SvCnd struct {
	Block     MatchBlock
	Diff      DiffType
	CtgOrient uint8
}

// Alignment is one chained query-vs-target alignment: its overall extent,
// the blocks that refined cleanly, and the SV candidates.
type Alignment struct {
	Overall   MatchBlock
	QLen      uint32
	CtgOrient uint8
	Matches   []MatchBlock
	SvCnds    []SvCnd
}

// Classify maps every query against the target index and returns the
// classified records. Queries sharing no anchors with the target yield no
// alignments and no records.
func Classify(target *seqdb.DB, queries []Query, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	perQuery := make([][]Alignment, len(queries))
	err := traverse.Each(len(queries), func(qi int) error {
		alns, err := alignQuery(target, uint32(qi), queries[qi], opts)
		if err != nil {
			return err
		}
		perQuery[qi] = alns
		return nil
	})
	if err != nil {
		return nil, err
	}
	var alns []Alignment
	for _, a := range perQuery {
		alns = append(alns, a...)
	}
	return collate(target, queries, alns), nil
}

func alignQuery(target *seqdb.DB, qid uint32, q Query, opts Options) ([]Alignment, error) {
	spec := target.Spec
	k := spec.K
	qpath := seqdb.PairPath(shimmer.Minimizers(q.Seq, spec), spec)
	byTid := collectSegs(target, qpath)

	tids := make([]uint32, 0, len(byTid))
	for tid := range byTid {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })

	var alns []Alignment
	for _, tid := range tids {
		var chains [][]alnSeg
		for _, c := range splitChains(byTid[tid], opts.MaxGap) {
			if len(c) >= opts.MinChainLen {
				chains = append(chains, c)
			}
		}
		if len(chains) == 0 {
			continue
		}
		var fwdW, revW int
		for _, c := range chains {
			for _, s := range c {
				w := int(s.qe - s.qs)
				if s.qo == s.to {
					fwdW += w
				} else {
					revW += w
				}
			}
		}
		ctgOrient := uint8(1)
		if fwdW > revW {
			ctgOrient = 0
		}
		for _, chain := range chains {
			orient := chainOrient(chain)
			var spans []span
			if orient == 0 {
				spans = filterAln(chain)
			} else {
				spans = filterAlnRev(chain)
			}
			aln := Alignment{QLen: uint32(len(q.Seq)), CtgOrient: ctgOrient}
			var blocks []MatchBlock
			for _, sp := range spans {
				// The span starts at the end of its opening k-mer; pull
				// both sides back one k-mer so the block begins on a
				// matched base.
				rec := MatchBlock{
					TID: tid, TS: sp.ts - k, TE: sp.te,
					QID: qid, QS: sp.qs - k, QE: sp.qe,
					Orient: orient,
				}
				tseq, err := target.SubSeq(rec.TID, rec.TS, rec.TE)
				if err != nil {
					return nil, err
				}
				qseq := q.Seq[rec.QS:rec.QE]
				if orient == 1 {
					qseq = shimmer.ReverseComplement(qseq)
				}
				if diff := classifyBlock(tseq, qseq, opts); diff == DiffAligned {
					aln.Matches = append(aln.Matches, rec)
				} else {
					aln.SvCnds = append(aln.SvCnds, SvCnd{
						Block: rec, Diff: diff, CtgOrient: ctgOrient,
					})
				}
				blocks = append(blocks, rec)
			}
			first, last := blocks[0], blocks[len(blocks)-1]
			aln.Overall = MatchBlock{
				TID: tid, TS: first.TS, TE: last.TE,
				QID: qid, QS: first.QS, QE: last.QE,
				Orient: orient,
			}
			if orient == 1 {
				// The query runs backwards: its extent is bounded by the
				// last block's start and the first block's end.
				aln.Overall.QS = last.QS
				aln.Overall.QE = first.QE
			}
			alns = append(alns, aln)
		}
	}
	return alns, nil
}
