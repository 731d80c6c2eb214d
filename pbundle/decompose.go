package pbundle

import (
	"sort"

	"github.com/cschin/pgr-tk/seqdb"
)

// Segment is the projection of one bundle traversal onto a contig.
// [Bgn, End) is 0-based half open on the contig; BPosBgn/BPosEnd are the
// bundle-internal vertex indices at the two ends of the traversal.
type Segment struct {
	SeqID            uint32
	Bgn, End         uint32
	Bundle           int32
	Size             uint32
	Dir              uint8
	BPosBgn, BPosEnd uint32
	Repeat           bool
}

type smp struct {
	sp  seqdb.SeqPair
	bp  BundlePos
	dir uint8
}

// continues reports whether s extends the traversal ending at prev: same
// bundle, same direction, and bundle position moving the right way.
func continues(prev, s smp) bool {
	if s.bp.Bundle != prev.bp.Bundle || s.dir != prev.dir {
		return false
	}
	if s.dir == 0 {
		return s.bp.Pos > prev.bp.Pos
	}
	return s.bp.Pos < prev.bp.Pos
}

// Decompose projects every contig of db onto the bundle table, returning
// segments sorted by (contig name, start). It also fills the Size attribute
// of the bundle table from the projected traversal counts.
func (d *Decomposition) Decompose(db *seqdb.DB) []Segment {
	k := d.Spec.K
	var all []Segment
	for sid := 0; sid < db.NumSeqs(); sid++ {
		sid := uint32(sid)
		var smps []smp
		for _, sp := range db.Path(sid) {
			bp, ok := d.VertexPos[sp.Pair]
			if !ok {
				continue
			}
			s := smp{sp: sp, bp: bp}
			if sp.Orient != bp.Orient {
				s.dir = 1
			}
			smps = append(smps, s)
		}
		var parts [][]smp
		var cur []smp
		for _, s := range smps {
			if len(cur) > 0 && !continues(cur[len(cur)-1], s) {
				parts = append(parts, cur)
				cur = nil
			}
			cur = append(cur, s)
		}
		if len(cur) > 0 {
			parts = append(parts, cur)
		}

		segBgn := func(p []smp) uint32 {
			// The anchor span starts at the end of its first k-mer; the
			// covered sequence starts one k-mer earlier.
			return p[0].sp.Bgn - k
		}
		segEnd := func(p []smp) uint32 { return p[len(p)-1].sp.End }

		var kept [][]smp
		for _, p := range parts {
			if int(segEnd(p)-segBgn(p)) > d.Opts.BundleLengthCutoff {
				kept = append(kept, p)
			}
		}
		var merged [][]smp
		for _, p := range kept {
			if len(merged) > 0 {
				q := merged[len(merged)-1]
				gap := int(segBgn(p)) - int(segEnd(q))
				if gap < d.Opts.BundleMergeDistance &&
					continues(q[len(q)-1], p[0]) {
					merged[len(merged)-1] = append(q, p...)
					continue
				}
			}
			merged = append(merged, p)
		}

		var segs []Segment
		for _, p := range merged {
			first, last := p[0], p[len(p)-1]
			seg := Segment{
				SeqID:   sid,
				Bgn:     segBgn(p),
				End:     segEnd(p),
				Bundle:  first.bp.Bundle,
				Dir:     first.dir,
				BPosBgn: first.bp.Pos,
				BPosEnd: last.bp.Pos,
			}
			// Consecutive anchor spans share a k-mer; clamp so segments on
			// one contig never overlap.
			if n := len(segs); n > 0 && seg.Bgn < segs[n-1].End {
				seg.Bgn = segs[n-1].End
			}
			if seg.Bgn >= seg.End {
				continue
			}
			segs = append(segs, seg)
		}

		perBundle := map[int32]int{}
		for _, s := range segs {
			perBundle[s.Bundle]++
		}
		for i := range segs {
			segs[i].Repeat = perBundle[segs[i].Bundle] > d.Opts.RepeatThreshold
		}
		all = append(all, segs...)
	}

	size := map[int32]uint32{}
	for _, s := range all {
		size[s.Bundle]++
	}
	for i := range all {
		all[i].Size = size[all[i].Bundle]
	}
	for i := range d.Bundles {
		d.Bundles[i].Size = size[d.Bundles[i].ID]
	}

	sort.SliceStable(all, func(i, j int) bool {
		ni, nj := db.Seq(all[i].SeqID).Name, db.Seq(all[j].SeqID).Name
		if ni != nj {
			return ni < nj
		}
		return all[i].Bgn < all[j].Bgn
	})
	return all
}
