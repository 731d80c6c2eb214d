// Package shimmer computes sparse hierarchical minimizers (SHIMMERs) over DNA
// sequences. A SHIMMER is a window minimizer of strand-canonical k-mer hashes,
// optionally thinned by a modulo-based reduction pass. The resulting anchors
// are sparse, deterministic for a given parameter set, and symmetric under
// reverse complement, which makes them usable as graph vertices shared across
// haplotypes.
package shimmer

import (
	"encoding/binary"

	"blainsmith.com/go/seahash"
	farm "github.com/dgryski/go-farm"
	"github.com/pkg/errors"
)

const invalidBaseBits = uint8(255)

var (
	asciiTo2Bit   [256]uint8
	asciiToRC2Bit [256]uint8
)

func init() {
	for i := range asciiTo2Bit {
		asciiTo2Bit[i] = invalidBaseBits
		asciiToRC2Bit[i] = invalidBaseBits
	}
	asciiTo2Bit['A'], asciiToRC2Bit['A'] = 0, 3
	asciiTo2Bit['a'], asciiToRC2Bit['a'] = 0, 3
	asciiTo2Bit['C'], asciiToRC2Bit['C'] = 1, 2
	asciiTo2Bit['c'], asciiToRC2Bit['c'] = 1, 2
	asciiTo2Bit['G'], asciiToRC2Bit['G'] = 2, 1
	asciiTo2Bit['g'], asciiToRC2Bit['g'] = 2, 1
	asciiTo2Bit['T'], asciiToRC2Bit['T'] = 3, 0
	asciiTo2Bit['t'], asciiToRC2Bit['t'] = 3, 0
}

// Spec holds the sampling parameters. Two sequence databases are only
// comparable when they were built with identical Specs, so Spec is persisted
// alongside every index artifact.
type Spec struct {
	// K is the k-mer length, in [4, 32]. Odd values avoid palindromic k-mers
	// that hash identically on both strands.
	K uint32
	// W is the minimizer window size, counted in k-mer start positions.
	W uint32
	// R is the reduction factor. Only minimizers whose secondary hash is
	// 0 mod R survive the reduction pass. R=1 keeps every window minimizer.
	R uint32
	// MinSpan is the minimum distance between the start positions of two
	// consecutive retained minimizers. 0 disables the filter.
	MinSpan uint32
}

// DefaultSpec mirrors the parameters used for human pangenome indexing.
var DefaultSpec = Spec{
	K:       31, // -k
	W:       48, // -w
	R:       4,  // -r
	MinSpan: 12, // --min-span
}

// Validate checks the parameter ranges.
func (s Spec) Validate() error {
	if s.K < 4 || s.K > 32 {
		return errors.Errorf("shimmer: k must be in [4, 32], got %d", s.K)
	}
	if s.W < 2 {
		return errors.Errorf("shimmer: w must be >= 2, got %d", s.W)
	}
	if s.R < 1 {
		return errors.Errorf("shimmer: r must be >= 1, got %d", s.R)
	}
	return nil
}

// Minimizer is one retained anchor. Pos is the 0-based start of the k-mer in
// the forward sequence. Orient is 0 when the forward-strand k-mer won the
// canonical comparison and 1 when the reverse complement did.
type Minimizer struct {
	Hash   uint64
	Pos    uint32
	Orient uint8
}

// End returns the exclusive end coordinate of the k-mer.
func (m Minimizer) End(spec Spec) uint32 { return m.Pos + spec.K }

func hashKmer(km uint64) uint64 {
	return farm.Hash64WithSeed(nil, km)
}

func reductionHash(h uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], h)
	return seahash.Sum64(b[:])
}

// Minimizers samples the sequence and returns the retained minimizers in
// ascending position order. Bases other than ACGT (either case) interrupt the
// k-mer stream; no k-mer spanning such a base is considered. Sequences shorter
// than K+W-1 yield no minimizers.
func Minimizers(seq []byte, spec Spec) []Minimizer {
	if err := spec.Validate(); err != nil {
		return nil
	}
	k := int(spec.K)
	w := int(spec.W)
	if len(seq) < k+w-1 {
		return nil
	}
	mask := ^(^uint64(0) << uint(2*k))
	rcShift := uint(2 * (k - 1))

	var fwd, rc uint64
	valid := 0 // consecutive valid bases ending at the current position

	// Monotonic deque of window-minimum candidates, hashes non-decreasing
	// from front to back. Ties keep the leftmost occurrence at the front.
	var deque []Minimizer
	var wins []Minimizer

	for i := 0; i < len(seq); i++ {
		b := asciiTo2Bit[seq[i]]
		if b == invalidBaseBits {
			valid = 0
			fwd, rc = 0, 0
		} else {
			fwd = ((fwd << 2) | uint64(b)) & mask
			rc = (rc >> 2) | (uint64(asciiToRC2Bit[seq[i]]) << rcShift)
			valid++
		}
		p := i - k + 1 // start of the k-mer ending at i
		if p < 0 {
			continue
		}
		if valid >= k {
			m := Minimizer{Pos: uint32(p)}
			hf, hr := hashKmer(fwd), hashKmer(rc)
			if hr < hf {
				m.Hash, m.Orient = hr, 1
			} else {
				m.Hash = hf
			}
			for len(deque) > 0 && deque[len(deque)-1].Hash > m.Hash {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, m)
		}
		// Expire candidates that fell out of the window [p-w+1, p].
		for len(deque) > 0 && int(deque[0].Pos) < p-w+1 {
			deque = deque[1:]
		}
		if p >= w-1 && len(deque) > 0 {
			m := deque[0]
			if n := len(wins); n == 0 || wins[n-1].Pos != m.Pos {
				wins = append(wins, m)
			}
		}
	}
	return reduce(wins, spec)
}

// reduce applies the modulo-R thinning pass and the MinSpan spacing filter.
// The first and last window minimizers always survive so that the anchor set
// brackets the sequence.
func reduce(wins []Minimizer, spec Spec) []Minimizer {
	if len(wins) == 0 {
		return nil
	}
	var kept []Minimizer
	if spec.R <= 1 {
		kept = wins
	} else {
		r := uint64(spec.R)
		for i, m := range wins {
			if i == 0 || i == len(wins)-1 || reductionHash(m.Hash)%r == 0 {
				kept = append(kept, m)
			}
		}
	}
	if spec.MinSpan == 0 {
		return kept
	}
	out := kept[:1]
	for _, m := range kept[1:] {
		if m.Pos-out[len(out)-1].Pos >= spec.MinSpan {
			out = append(out, m)
		}
	}
	return out
}

// ReverseComplement returns the reverse complement of seq. Bases outside ACGT
// map to 'N'.
func ReverseComplement(seq []byte) []byte {
	out := make([]byte, len(seq))
	for i, b := range seq {
		var c byte
		switch asciiToRC2Bit[b] {
		case 0:
			c = 'A'
		case 1:
			c = 'C'
		case 2:
			c = 'G'
		case 3:
			c = 'T'
		default:
			c = 'N'
		}
		out[len(seq)-1-i] = c
	}
	return out
}
