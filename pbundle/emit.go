package pbundle

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/cschin/pgr-tk/seqdb"
)

// WriteBED writes the per-segment decomposition as BED. cmdline, when
// non-empty, is recorded in a comment header so runs are reproducible from
// their outputs.
func WriteBED(w io.Writer, db *seqdb.DB, segs []Segment, cmdline string) error {
	if cmdline != "" {
		if _, err := fmt.Fprintf(w, "# cmd: %s\n", cmdline); err != nil {
			return err
		}
	}
	for _, s := range segs {
		flag := "U"
		if s.Repeat {
			flag = "R"
		}
		_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%d:%d:%d:%d:%d:%s\n",
			db.Seq(s.SeqID).Name, s.Bgn, s.End,
			s.Bundle, s.Size, s.Dir, s.BPosBgn, s.BPosEnd, flag)
		if err != nil {
			return err
		}
	}
	return nil
}

const summaryHeader = "#ctg length " +
	"repeat_bundle_count repeat_bundle_sum repeat_bundle_percentage " +
	"repeat_bundle_mean repeat_bundle_min repeat_bundle_max " +
	"non_repeat_bundle_count non_repeat_bundle_sum non_repeat_bundle_percentage " +
	"non_repeat_bundle_mean non_repeat_bundle_min non_repeat_bundle_max " +
	"total_bundle_count total_bundle_coverage_percentage"

func fmtF32(x float32) string {
	return strconv.FormatFloat(float64(x), 'g', -1, 32)
}

type classStats struct {
	lens []uint32
	sum  uint64
}

func (c *classStats) add(n uint32) {
	c.lens = append(c.lens, n)
	c.sum += uint64(n)
}

// fields appends count, sum, percentage, mean, min, max. Classes with no
// segments report NA for the order statistics.
func (c *classStats) fields(ctgLen int, out []string) []string {
	out = append(out,
		strconv.Itoa(len(c.lens)),
		strconv.FormatUint(c.sum, 10),
		fmtF32(100*float32(c.sum)/float32(ctgLen)))
	if len(c.lens) == 0 {
		return append(out, "NA", "NA", "NA")
	}
	mn, mx := c.lens[0], c.lens[0]
	for _, n := range c.lens[1:] {
		if n < mn {
			mn = n
		}
		if n > mx {
			mx = n
		}
	}
	return append(out,
		fmtF32(float32(c.sum)/float32(len(c.lens))),
		strconv.FormatUint(uint64(mn), 10),
		strconv.FormatUint(uint64(mx), 10))
}

// WriteSummary writes the per-contig aggregate statistics. Every contig of
// db gets a row, including contigs with no projected segments. All sums are
// computed from the same segment lengths WriteBED emits, so the two outputs
// always reconcile.
func WriteSummary(w io.Writer, db *seqdb.DB, segs []Segment) error {
	if _, err := fmt.Fprintln(w, summaryHeader); err != nil {
		return err
	}
	byCtg := map[uint32][]Segment{}
	for _, s := range segs {
		byCtg[s.SeqID] = append(byCtg[s.SeqID], s)
	}
	names := make([]uint32, 0, db.NumSeqs())
	for sid := 0; sid < db.NumSeqs(); sid++ {
		names = append(names, uint32(sid))
	}
	sort.Slice(names, func(i, j int) bool {
		return db.Seq(names[i]).Name < db.Seq(names[j]).Name
	})
	for _, sid := range names {
		seq := db.Seq(sid)
		ctgLen := len(seq.Seq)
		var rep, non classStats
		for _, s := range byCtg[sid] {
			if s.Repeat {
				rep.add(s.End - s.Bgn)
			} else {
				non.add(s.End - s.Bgn)
			}
		}
		fields := []string{seq.Name, strconv.Itoa(ctgLen)}
		fields = rep.fields(ctgLen, fields)
		fields = non.fields(ctgLen, fields)
		fields = append(fields,
			strconv.Itoa(len(rep.lens)+len(non.lens)),
			fmtF32(100*float32(rep.sum+non.sum)/float32(ctgLen)))
		for i, f := range fields {
			if i > 0 {
				if _, err := io.WriteString(w, " "); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, f); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
