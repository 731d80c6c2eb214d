// Package seqdb maintains an in-memory collection of contigs together with a
// SHIMMER anchor-pair index. Each contig is sampled into minimizers, and every
// consecutive minimizer pair becomes an anchor keyed by the canonical hash
// pair. The index maps each anchor to all of its occurrences across the
// collection, which is the substrate for the MAP graph and for alignment
// candidate lookup.
package seqdb

import (
	"io"
	"runtime"

	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"

	"github.com/cschin/pgr-tk/shimmer"
)

// Pair is the canonical key of an anchor: the two minimizer hashes ordered so
// that H0 <= H1.
type Pair struct {
	H0, H1 uint64
}

// Occ is one occurrence of an anchor on a contig. Bgn and End are the
// exclusive end coordinates of the two k-mers, so the occurrence spans
// [Bgn-K, End) of the contig. Orient is 0 when the hashes appeared in
// canonical order along the contig and 1 when they were flipped.
type Occ struct {
	SeqID  uint32
	Bgn    uint32
	End    uint32
	Orient uint8
}

// SeqPair is one anchor along a contig's pair path, in contig order.
type SeqPair struct {
	Pair   Pair
	Bgn    uint32
	End    uint32
	Orient uint8
}

// Sequence is one contig in the database.
type Sequence struct {
	ID     uint32
	Name   string
	Source string
	Seq    []byte
}

// Opts control index construction.
type Opts struct {
	// MaxPairOcc excludes any anchor with more occurrences than this from
	// lookups. Such anchors come from high-copy repeats and would blow up
	// downstream chaining. 0 means no ceiling.
	MaxPairOcc int
	// Parallelism bounds the number of contigs sampled concurrently during
	// Index. 0 means GOMAXPROCS.
	Parallelism int
}

// DefaultOpts is used when a zero Opts is given.
var DefaultOpts = Opts{
	MaxPairOcc:  0,
	Parallelism: 0,
}

const nShard = 64

type pairShard struct {
	occs map[Pair][]Occ
}

// DB is the sequence database. Construction is Add then Index; lookups are
// read-only and safe for concurrent use after Index returns.
type DB struct {
	Spec shimmer.Spec
	Opts Opts

	seqs   []Sequence
	byName map[string]uint32

	paths    [][]SeqPair // per-contig pair paths, parallel to seqs
	shards   [nShard]pairShard
	excluded map[Pair]bool
}

// New returns an empty database for the given sampling parameters.
func New(spec shimmer.Spec, opts Opts) (*DB, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	db := &DB{
		Spec:     spec,
		Opts:     opts,
		byName:   map[string]uint32{},
		excluded: map[Pair]bool{},
	}
	for i := range db.shards {
		db.shards[i].occs = map[Pair][]Occ{}
	}
	return db, nil
}

// Add appends a contig. The sequence is retained by reference. Names must be
// unique within the database. Call Index after the last Add.
func (db *DB) Add(name, source string, seq []byte) (uint32, error) {
	if name == "" {
		return 0, errors.New("seqdb: empty sequence name")
	}
	if _, ok := db.byName[name]; ok {
		return 0, errors.Errorf("seqdb: duplicate sequence name %q", name)
	}
	id := uint32(len(db.seqs))
	db.seqs = append(db.seqs, Sequence{ID: id, Name: name, Source: source, Seq: seq})
	db.byName[name] = id
	return id, nil
}

// Index samples every contig and (re)builds the anchor-pair index. Sampling
// runs in parallel; insertion is sequential in contig order so the occurrence
// lists are deterministic.
func (db *DB) Index() error {
	mins := make([][]shimmer.Minimizer, len(db.seqs))
	parallelism := db.Opts.Parallelism
	err := traverse.Each(parallelism, func(job int) error {
		for i := job; i < len(db.seqs); i += parallelism {
			mins[i] = shimmer.Minimizers(db.seqs[i].Seq, db.Spec)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := range db.shards {
		db.shards[i].occs = map[Pair][]Occ{}
	}
	db.excluded = map[Pair]bool{}
	db.paths = make([][]SeqPair, len(db.seqs))
	for sid := range db.seqs {
		path := PairPath(mins[sid], db.Spec)
		db.paths[sid] = path
		for _, sp := range path {
			sh := &db.shards[shardOf(sp.Pair)]
			sh.occs[sp.Pair] = append(sh.occs[sp.Pair], Occ{
				SeqID:  uint32(sid),
				Bgn:    sp.Bgn,
				End:    sp.End,
				Orient: sp.Orient,
			})
		}
	}
	if max := db.Opts.MaxPairOcc; max > 0 {
		for i := range db.shards {
			for p, occs := range db.shards[i].occs {
				if len(occs) > max {
					db.excluded[p] = true
				}
			}
		}
	}
	return nil
}

func shardOf(p Pair) int {
	return int((p.H0 ^ p.H1) % nShard)
}

// PairPath converts a contig's minimizer list into its anchor path. Each
// consecutive minimizer pair yields one anchor whose span runs from the end
// of the first k-mer to the end of the second.
func PairPath(mins []shimmer.Minimizer, spec shimmer.Spec) []SeqPair {
	if len(mins) < 2 {
		return nil
	}
	path := make([]SeqPair, 0, len(mins)-1)
	for i := 1; i < len(mins); i++ {
		m0, m1 := mins[i-1], mins[i]
		sp := SeqPair{
			Pair: Pair{H0: m0.Hash, H1: m1.Hash},
			Bgn:  m0.End(spec),
			End:  m1.End(spec),
		}
		if sp.Pair.H0 > sp.Pair.H1 {
			sp.Pair.H0, sp.Pair.H1 = sp.Pair.H1, sp.Pair.H0
			sp.Orient = 1
		}
		path = append(path, sp)
	}
	return path
}

// NumSeqs returns the number of contigs.
func (db *DB) NumSeqs() int { return len(db.seqs) }

// Seq returns the contig with the given id.
func (db *DB) Seq(id uint32) *Sequence { return &db.seqs[id] }

// SeqByName returns the contig id for a name.
func (db *DB) SeqByName(name string) (uint32, bool) {
	id, ok := db.byName[name]
	return id, ok
}

// SubSeq returns seq[b:e] of a contig.
func (db *DB) SubSeq(id, b, e uint32) ([]byte, error) {
	if int(id) >= len(db.seqs) {
		return nil, errors.Errorf("seqdb: no sequence with id %d", id)
	}
	s := db.seqs[id].Seq
	if b > e || int(e) > len(s) {
		return nil, errors.Errorf("seqdb: invalid range [%d, %d) for %s (len %d)",
			b, e, db.seqs[id].Name, len(s))
	}
	return s[b:e], nil
}

// Path returns the contig's anchor path in contig order.
func (db *DB) Path(id uint32) []SeqPair { return db.paths[id] }

// Lookup returns the occurrence list for an anchor, or nil if the anchor is
// unknown or excluded by the occurrence ceiling.
func (db *DB) Lookup(p Pair) []Occ {
	if db.excluded[p] {
		return nil
	}
	return db.shards[shardOf(p)].occs[p]
}

// Count returns the raw occurrence count of an anchor, excluded or not.
func (db *DB) Count(p Pair) int {
	return len(db.shards[shardOf(p)].occs[p])
}

// Excluded reports whether an anchor was suppressed by the occurrence
// ceiling.
func (db *DB) Excluded(p Pair) bool { return db.excluded[p] }

// RangePairs calls f for every indexed anchor that is not excluded.
// Iteration order is unspecified. f returning false stops the iteration.
func (db *DB) RangePairs(f func(p Pair, occs []Occ) bool) {
	for i := range db.shards {
		for p, occs := range db.shards[i].occs {
			if db.excluded[p] {
				continue
			}
			if !f(p, occs) {
				return
			}
		}
	}
}

// WriteSeqIndex writes the contig table as TSV: id, name, length, source.
func (db *DB) WriteSeqIndex(w io.Writer) error {
	tw := tsv.NewWriter(w)
	for _, s := range db.seqs {
		tw.WriteUint32(s.ID)
		tw.WriteString(s.Name)
		tw.WriteUint32(uint32(len(s.Seq)))
		tw.WriteString(s.Source)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}
