package alnmap

import (
	"fmt"
	"sort"

	"github.com/cschin/pgr-tk/seqdb"
)

// BedRecord is one 4-column BED row with a colon-delimited annotation.
type BedRecord struct {
	Name     string
	Bgn, End uint32
	Annot    string
}

// CtgMapRec summarizes one alignment block for the contig map output.
type CtgMapRec struct {
	TName       string
	TS, TE      uint32
	QName       string
	QS, QE      uint32
	QLen        uint32
	Orient      uint8
	CtgOrient   uint8
	TDup, TOvlp bool
	QDup, QOvlp bool
}

// Result holds every record family one classification pass produces.
type Result struct {
	Alignments []Alignment
	// SvCndBed holds target-relative records: TG/TD/TO walk rows and the
	// SVC/SVC_D/SVC_O candidates.
	SvCndBed []BedRecord
	// CtgSvBed holds the query-relative QG/QD/QO walk rows.
	CtgSvBed []BedRecord
	CtgMap   []CtgMapRec
}

type blockInfo struct {
	block     MatchBlock
	qlen      uint32
	ctgOrient uint8
}

func sortBed(recs []BedRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Bgn != b.Bgn {
			return a.Bgn < b.Bgn
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Annot < b.Annot
	})
}

func collate(target *seqdb.DB, queries []Query, alns []Alignment) *Result {
	res := &Result{Alignments: alns}
	// Unaligned slack at a sequence boundary below one sampling window is
	// anchor-resolution noise, not a gap.
	resolution := target.Spec.W + target.Spec.K

	byTid := map[uint32][]blockInfo{}
	byQid := map[uint32][]blockInfo{}
	for _, a := range alns {
		bi := blockInfo{block: a.Overall, qlen: a.QLen, ctgOrient: a.CtgOrient}
		byTid[a.Overall.TID] = append(byTid[a.Overall.TID], bi)
		byQid[a.Overall.QID] = append(byQid[a.Overall.QID], bi)
	}
	tids := sortedKeys(byTid)
	qids := sortedKeys(byQid)

	// Walk each target contig left to right. A block starting past the
	// consumed frontier opens a gap, a block fully behind it is a
	// duplication, a block straddling it is an overlap.
	dupBlocks := map[MatchBlock]bool{}
	ovlpBlocks := map[MatchBlock]bool{}
	dupIvals := map[uint32]*ivSet{}
	ovlpIvals := map[uint32]*ivSet{}
	var targetRows []BedRecord
	for _, tid := range tids {
		blocks := byTid[tid]
		sort.SliceStable(blocks, func(i, j int) bool {
			return blocks[i].block.TS < blocks[j].block.TS
		})
		tName := target.Seq(tid).Name
		cte := uint32(0)
		cCtg := "BGN"
		for _, bi := range blocks {
			mb := bi.block
			next := queries[mb.QID].Name
			switch {
			case mb.TS > cte:
				if !(cCtg == "BGN" && mb.TS-cte <= resolution) {
					targetRows = append(targetRows, BedRecord{
						Name: tName, Bgn: cte, End: mb.TS,
						Annot: fmt.Sprintf("TG:%s>%s:%d:%d:%d:%d:%d",
							cCtg, next, mb.QS, mb.QE, bi.qlen, mb.Orient, bi.ctgOrient),
					})
				}
				cCtg = next
				cte = mb.TE
			case mb.TE <= cte:
				dupBlocks[mb] = true
				if dupIvals[tid] == nil {
					dupIvals[tid] = &ivSet{}
				}
				dupIvals[tid].add(mb.TS, mb.TE)
				targetRows = append(targetRows, BedRecord{
					Name: tName, Bgn: mb.TS, End: mb.TE,
					Annot: fmt.Sprintf("TD:%s>%s:%d:%d:%d:%d:%d",
						cCtg, next, mb.QS, mb.QE, bi.qlen, mb.Orient, bi.ctgOrient),
				})
			default:
				if mb.TS < cte {
					ovlpBlocks[mb] = true
					if ovlpIvals[tid] == nil {
						ovlpIvals[tid] = &ivSet{}
					}
					ovlpIvals[tid].add(mb.TS, cte)
					targetRows = append(targetRows, BedRecord{
						Name: tName, Bgn: mb.TS, End: cte,
						Annot: fmt.Sprintf("TO:%s>%s:%d:%d:%d:%d:%d",
							cCtg, next, mb.QS, mb.QE, bi.qlen, mb.Orient, bi.ctgOrient),
					})
				}
				cCtg = next
				cte = mb.TE
			}
		}
		if tLen := uint32(len(target.Seq(tid).Seq)); cte < tLen && tLen-cte > resolution {
			targetRows = append(targetRows, BedRecord{
				Name: tName, Bgn: cte, End: tLen,
				Annot: fmt.Sprintf("TG:%s>END", cCtg),
			})
		}
	}

	// The same walk along each query contig.
	qDupBlocks := map[MatchBlock]bool{}
	qOvlpBlocks := map[MatchBlock]bool{}
	for _, qid := range qids {
		blocks := byQid[qid]
		sort.SliceStable(blocks, func(i, j int) bool {
			return blocks[i].block.QS < blocks[j].block.QS
		})
		qName := queries[qid].Name
		cqe := uint32(0)
		cTarget := "BGN"
		var qlen uint32
		for _, bi := range blocks {
			mb := bi.block
			qlen = bi.qlen
			next := target.Seq(mb.TID).Name
			switch {
			case mb.QS > cqe:
				if !(cTarget == "BGN" && mb.QS-cqe <= resolution) {
					res.CtgSvBed = append(res.CtgSvBed, BedRecord{
						Name: qName, Bgn: cqe, End: mb.QS,
						Annot: fmt.Sprintf("QG:%s>%s:%d:%d:%d:%d:%d",
							cTarget, next, mb.TS, mb.TE, bi.qlen, mb.Orient, bi.ctgOrient),
					})
				}
				cTarget = next
				cqe = mb.QE
			case mb.QE <= cqe:
				qDupBlocks[mb] = true
				res.CtgSvBed = append(res.CtgSvBed, BedRecord{
					Name: qName, Bgn: mb.QS, End: mb.QE,
					Annot: fmt.Sprintf("QD:%s>%s:%d:%d:%d:%d:%d",
						cTarget, next, mb.TS, mb.TE, bi.qlen, mb.Orient, bi.ctgOrient),
				})
			default:
				if mb.QS < cqe {
					qOvlpBlocks[mb] = true
					res.CtgSvBed = append(res.CtgSvBed, BedRecord{
						Name: qName, Bgn: mb.QS, End: cqe,
						Annot: fmt.Sprintf("QO:%s>%s:%d:%d:%d:%d:%d",
							cTarget, next, mb.TS, mb.TE, bi.qlen, mb.Orient, bi.ctgOrient),
					})
				}
				cTarget = next
				cqe = mb.QE
			}
		}
		if cqe < qlen && qlen-cqe > resolution {
			res.CtgSvBed = append(res.CtgSvBed, BedRecord{
				Name: qName, Bgn: cqe, End: qlen,
				Annot: fmt.Sprintf("QG:%s>END", cTarget),
			})
		}
	}

	// SV candidates, tagged by whether they fall in a duplicated or
	// overlapped target region. Coordinates shift to 1-based so a callable
	// matched base precedes each candidate.
	var svRows []BedRecord
	var svs []SvCnd
	for _, a := range alns {
		svs = append(svs, a.SvCnds...)
	}
	sort.SliceStable(svs, func(i, j int) bool {
		a, b := svs[i].Block, svs[j].Block
		if a.TID != b.TID {
			return a.TID < b.TID
		}
		if a.TS != b.TS {
			return a.TS < b.TS
		}
		if a.TE != b.TE {
			return a.TE < b.TE
		}
		if a.QID != b.QID {
			return a.QID < b.QID
		}
		return a.QS < b.QS
	})
	for _, sv := range svs {
		mb := sv.Block
		ts, te := mb.TS+1, mb.TE+1
		svcType := "SVC"
		if dupIvals[mb.TID].overlaps(ts, te) {
			svcType = "SVC_D"
		} else if ovlpIvals[mb.TID].overlaps(ts, te) {
			svcType = "SVC_O"
		}
		svRows = append(svRows, BedRecord{
			Name: target.Seq(mb.TID).Name, Bgn: ts, End: te,
			Annot: fmt.Sprintf("%s:%s:%d-%d:%d:%d:%c",
				svcType, queries[mb.QID].Name, mb.QS+1, mb.QE+1,
				mb.Orient, sv.CtgOrient, byte(sv.Diff)),
		})
	}
	res.SvCndBed = append(append(res.SvCndBed, svRows...), targetRows...)
	sortBed(res.SvCndBed)
	sortBed(res.CtgSvBed)

	// Contig map: one row per overall block, in target order, with the
	// duplication/overlap flags from both walks.
	for _, tid := range tids {
		for _, bi := range byTid[tid] {
			mb := bi.block
			res.CtgMap = append(res.CtgMap, CtgMapRec{
				TName: target.Seq(mb.TID).Name, TS: mb.TS, TE: mb.TE,
				QName: queries[mb.QID].Name, QS: mb.QS, QE: mb.QE,
				QLen: bi.qlen, Orient: mb.Orient, CtgOrient: bi.ctgOrient,
				TDup: dupBlocks[mb], TOvlp: ovlpBlocks[mb],
				QDup: qDupBlocks[mb], QOvlp: qOvlpBlocks[mb],
			})
		}
	}
	return res
}

func sortedKeys(m map[uint32][]blockInfo) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
