package alnmap

import (
	"bytes"

	"github.com/antzucaro/matchr"
)

// DiffType labels why a block failed boundary refinement. Refined blocks that
// align carry no label.
type DiffType byte

const (
	DiffAligned        DiffType = 0
	DiffFailAln        DiffType = 'A'
	DiffFailEndMatch   DiffType = 'E'
	DiffFailShortSeq   DiffType = 'S'
	DiffFailLengthDiff DiffType = 'L'
)

// Aligner is the opaque base-level aligner used to refine block boundaries.
// It reports whether the two sequences align within its tolerance.
type Aligner func(target, query []byte) bool

// LevenshteinAligner accepts a block when its edit distance stays under a
// quarter of the longer sequence.
func LevenshteinAligner(target, query []byte) bool {
	d := matchr.Levenshtein(string(target), string(query))
	n := len(target)
	if len(query) > n {
		n = len(query)
	}
	return d*4 <= n
}

const endMatchLen = 16

// classifyBlock refines one match block. Blocks too short to judge, blocks
// whose 16-base flanks disagree, and blocks with a large length difference
// are SV candidates; the rest go to the aligner.
func classifyBlock(tseq, qseq []byte, opts Options) DiffType {
	if len(tseq) <= endMatchLen || len(qseq) <= endMatchLen {
		return DiffFailShortSeq
	}
	if !bytes.Equal(tseq[:endMatchLen], qseq[:endMatchLen]) ||
		!bytes.Equal(tseq[len(tseq)-endMatchLen:], qseq[len(qseq)-endMatchLen:]) {
		return DiffFailEndMatch
	}
	lenDiff := len(tseq) - len(qseq)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff >= 128 {
		if len(tseq) < opts.MaxAlnSize && len(qseq) < opts.MaxAlnSize {
			if opts.Aligner(tseq, qseq) {
				return DiffAligned
			}
			return DiffFailAln
		}
		return DiffFailLengthDiff
	}
	if opts.Aligner(tseq, qseq) {
		return DiffAligned
	}
	return DiffFailAln
}
