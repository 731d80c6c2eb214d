package alnmap

import (
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
)

func utoa(v uint32) string { return strconv.FormatUint(uint64(v), 10) }

// WriteBed writes 4-column BED rows: name, start, end, annotation.
func WriteBed(w io.Writer, recs []BedRecord) error {
	tw := tsv.NewWriter(w)
	for _, r := range recs {
		tw.WriteString(r.Name)
		tw.WriteUint32(r.Bgn)
		tw.WriteUint32(r.End)
		tw.WriteString(r.Annot)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func b2i(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// WriteCtgMap writes the contig map as BED-like rows with a colon-delimited
// detail column.
func WriteCtgMap(w io.Writer, recs []CtgMapRec) error {
	tw := tsv.NewWriter(w)
	for _, r := range recs {
		tw.WriteString(r.TName)
		tw.WriteUint32(r.TS)
		tw.WriteUint32(r.TE)
		tw.WriteString(ctgMapDetail(r))
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func ctgMapDetail(r CtgMapRec) string {
	const sep = ":"
	return r.QName + sep +
		utoa(r.QS) + sep + utoa(r.QE) + sep + utoa(r.QLen) + sep +
		utoa(uint32(r.Orient)) + sep + utoa(uint32(r.CtgOrient)) + sep +
		utoa(b2i(r.TDup)) + sep + utoa(b2i(r.TOvlp)) + sep +
		utoa(b2i(r.QDup)) + sep + utoa(b2i(r.QOvlp))
}
