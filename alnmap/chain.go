package alnmap

import (
	"sort"

	"github.com/cschin/pgr-tk/seqdb"
)

// alnSeg is one anchor shared between a query and a target contig, with the
// orientation each side observed.
type alnSeg struct {
	qs, qe uint32
	qo     uint8
	ts, te uint32
	to     uint8
}

// collectSegs looks every query anchor up in the target index and groups the
// hits by target contig.
func collectSegs(target *seqdb.DB, qpath []seqdb.SeqPair) map[uint32][]alnSeg {
	byTid := map[uint32][]alnSeg{}
	for _, sp := range qpath {
		for _, occ := range target.Lookup(sp.Pair) {
			byTid[occ.SeqID] = append(byTid[occ.SeqID], alnSeg{
				qs: sp.Bgn, qe: sp.End, qo: sp.Orient,
				ts: occ.Bgn, te: occ.End, to: occ.Orient,
			})
		}
	}
	return byTid
}

// chainable reports whether s can extend a chain ending at p. The query must
// not jump farther than maxGap, and the target must advance in the direction
// the segment's orientation implies.
func chainable(p, s alnSeg, maxGap uint32) bool {
	if s.qs > p.qe && s.qs-p.qe > maxGap {
		return false
	}
	if s.qo == s.to {
		// Forward: target coordinates advance with the query.
		return s.ts >= p.ts && (s.ts <= p.te || s.ts-p.te <= maxGap)
	}
	// Reverse: target coordinates retreat as the query advances.
	return s.ts <= p.ts && (s.te >= p.ts || p.ts-s.te <= maxGap)
}

// splitChains orders the segments along the query and greedily assigns each
// to the first open chain it can extend, opening a new chain otherwise. An
// anchor hitting several target loci therefore seeds one chain per locus
// instead of shattering a single chain.
func splitChains(segs []alnSeg, maxGap uint32) [][]alnSeg {
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].qs != segs[j].qs {
			return segs[i].qs < segs[j].qs
		}
		return segs[i].ts < segs[j].ts
	})
	var chains [][]alnSeg
	for _, s := range segs {
		placed := false
		for ci := range chains {
			if chainable(chains[ci][len(chains[ci])-1], s, maxGap) {
				chains[ci] = append(chains[ci], s)
				placed = true
				break
			}
		}
		if !placed {
			chains = append(chains, []alnSeg{s})
		}
	}
	return chains
}

// chainOrient returns the chain's dominant relative orientation, weighting
// each segment by its query span. Ties go to reverse, matching the walk that
// consumes the result.
func chainOrient(chain []alnSeg) uint8 {
	var fwd, rev int
	for _, s := range chain {
		w := int(s.qe - s.qs)
		if s.qo == s.to {
			fwd += w
		} else {
			rev += w
		}
	}
	if fwd > rev {
		return 0
	}
	return 1
}

type span struct {
	ts, te uint32
	qs, qe uint32
}

// filterAln reduces a forward chain to monotonically advancing blocks. Each
// block's target range starts where the previous one ended, so the block set
// tiles the chained region without overlap.
func filterAln(chain []alnSeg) []span {
	lastTS, lastTE := chain[0].ts, chain[0].te
	lastQS, lastQE := chain[0].qs, chain[0].qe
	rtn := []span{{ts: lastTS, te: lastTE, qs: lastQS, qe: lastQE}}
	for _, s := range chain {
		if s.te < s.ts || s.qo != s.to {
			continue
		}
		if s.ts > lastTE {
			lastTS = lastTE
			lastTE = s.te
			lastQS = lastQE
			lastQE = s.qe
			if lastTS == lastTE {
				continue
			}
			rtn = append(rtn, span{ts: lastTS, te: lastTE, qs: lastQS, qe: lastQE})
		}
	}
	return rtn
}

// filterAlnRev is the reverse-orientation analogue: the query runs backwards
// against the target, so the chain is walked from its query end.
func filterAlnRev(chain []alnSeg) []span {
	rev := make([]alnSeg, len(chain))
	for i, s := range chain {
		rev[len(chain)-1-i] = s
	}
	lastTS, lastTE := rev[0].ts, rev[0].te
	lastQS, lastQE := rev[0].qs, rev[0].qe
	rtn := []span{{ts: lastTS, te: lastTE, qs: lastQS, qe: lastQE}}
	for _, s := range rev {
		if s.te < s.ts || s.qo == s.to {
			continue
		}
		if s.ts >= lastTE {
			lastTS = lastTE
			lastTE = s.te
			lastQE = lastQS
			lastQS = s.qs
			if lastTS == lastTE {
				continue
			}
			rtn = append(rtn, span{ts: lastTS, te: lastTE, qs: lastQS, qe: lastQE})
		}
	}
	return rtn
}
