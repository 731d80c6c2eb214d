package alnmap

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"

	"github.com/cschin/pgr-tk/seqdb"
	"github.com/cschin/pgr-tk/shimmer"
)

var testSpec = shimmer.Spec{K: 15, W: 16, R: 1, MinSpan: 0}

func randomSeq(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	const bases = "ACGT"
	s := make([]byte, n)
	for i := range s {
		s[i] = bases[r.Intn(4)]
	}
	return s
}

func buildTarget(t *testing.T, names []string, seqs ...[]byte) *seqdb.DB {
	t.Helper()
	db, err := seqdb.New(testSpec, seqdb.DefaultOpts)
	require.NoError(t, err)
	for i, s := range seqs {
		_, err := db.Add(names[i], "ref.fa", s)
		require.NoError(t, err)
	}
	require.NoError(t, db.Index())
	return db
}

func countAnnot(recs []BedRecord, prefix string) int {
	n := 0
	for _, r := range recs {
		if strings.HasPrefix(r.Annot, prefix) {
			n++
		}
	}
	return n
}

func TestCleanAlignmentEmitsNoRecords(t *testing.T) {
	ref := randomSeq(20000, 1)
	db := buildTarget(t, []string{"chr1"}, ref)
	opts := Options{MaxGap: 500}
	res, err := Classify(db, []Query{{Name: "qry1", Seq: append([]byte(nil), ref...)}}, opts)
	require.NoError(t, err)

	require.NotEmpty(t, res.Alignments)
	expect.EQ(t, len(res.SvCndBed), 0)
	expect.EQ(t, len(res.CtgSvBed), 0)
	require.Equal(t, 1, len(res.CtgMap))
	rec := res.CtgMap[0]
	expect.EQ(t, rec.TName, "chr1")
	expect.EQ(t, rec.QName, "qry1")
	expect.EQ(t, rec.Orient, uint8(0))
	expect.False(t, rec.TDup || rec.TOvlp || rec.QDup || rec.QOvlp)
}

func TestReverseComplementQuery(t *testing.T) {
	ref := randomSeq(20000, 2)
	db := buildTarget(t, []string{"chr1"}, ref)
	opts := Options{MaxGap: 500}
	qry := shimmer.ReverseComplement(ref)
	res, err := Classify(db, []Query{{Name: "qry1", Seq: qry}}, opts)
	require.NoError(t, err)

	expect.EQ(t, len(res.SvCndBed), 0)
	expect.EQ(t, len(res.CtgSvBed), 0)
	require.Equal(t, 1, len(res.CtgMap))
	expect.EQ(t, res.CtgMap[0].Orient, uint8(1))
	expect.EQ(t, res.CtgMap[0].CtgOrient, uint8(1))
}

func TestInsertionEmitsQueryGap(t *testing.T) {
	ref := randomSeq(20000, 3)
	var qry []byte
	qry = append(qry, ref[:10000]...)
	qry = append(qry, randomSeq(2000, 4)...)
	qry = append(qry, ref[10000:]...)
	db := buildTarget(t, []string{"chr1"}, ref)
	res, err := Classify(db, []Query{{Name: "qry1", Seq: qry}}, Options{MaxGap: 500})
	require.NoError(t, err)

	var gaps []BedRecord
	for _, r := range res.CtgSvBed {
		if strings.HasPrefix(r.Annot, "QG:") {
			gaps = append(gaps, r)
		}
	}
	require.Equal(t, 1, len(gaps))
	gapLen := gaps[0].End - gaps[0].Bgn
	expect.True(t, gapLen > 1800 && gapLen < 2200, "gap length %d", gapLen)
	expect.EQ(t, countAnnot(res.CtgSvBed, "QD:"), 0)
	expect.EQ(t, countAnnot(res.SvCndBed, "TD:"), 0)
	// The insertion itself aligns nowhere, so no SV candidate either.
	expect.EQ(t, countAnnot(res.SvCndBed, "SVC"), 0)
}

func TestDuplicatedQuerySegment(t *testing.T) {
	// The target carries segment S twice; the query carries it once. The
	// query copy aligns to both loci, so the second alignment consumes an
	// already consumed query interval.
	segA := randomSeq(6000, 5)
	segS := randomSeq(1500, 6)
	segB := randomSeq(6000, 7)
	segC := randomSeq(6000, 8)
	var ref []byte
	ref = append(ref, segA...)
	ref = append(ref, segS...)
	ref = append(ref, segB...)
	ref = append(ref, segS...)
	ref = append(ref, segC...)
	var qry []byte
	qry = append(qry, segA...)
	qry = append(qry, segS...)
	qry = append(qry, segB...)

	db := buildTarget(t, []string{"chr1"}, ref)
	res, err := Classify(db, []Query{{Name: "qry1", Seq: qry}}, Options{MaxGap: 500})
	require.NoError(t, err)

	var dups []BedRecord
	for _, r := range res.CtgSvBed {
		if strings.HasPrefix(r.Annot, "QD:") {
			dups = append(dups, r)
		}
	}
	require.Equal(t, 1, len(dups))
	dupLen := dups[0].End - dups[0].Bgn
	expect.True(t, dupLen > 1300 && dupLen < 1700, "dup length %d", dupLen)
	// The second S locus and the C tail are genuinely unaligned target
	// sequence, so the walk reports a trailing target gap.
	expect.True(t, countAnnot(res.SvCndBed, "TG:") >= 1)
}

func TestScrambledRegionBecomesSvCandidate(t *testing.T) {
	ref := randomSeq(20000, 9)
	qry := append([]byte(nil), ref...)
	copy(qry[9000:9600], randomSeq(600, 10))
	db := buildTarget(t, []string{"chr1"}, ref)
	res, err := Classify(db, []Query{{Name: "qry1", Seq: qry}}, Options{MaxGap: 2000})
	require.NoError(t, err)

	var svcs []BedRecord
	for _, r := range res.SvCndBed {
		if strings.HasPrefix(r.Annot, "SVC") {
			svcs = append(svcs, r)
		}
	}
	require.Equal(t, 1, len(svcs))
	expect.True(t, strings.HasPrefix(svcs[0].Annot, "SVC:"))
	expect.True(t, strings.HasSuffix(svcs[0].Annot, ":A"))
	// The discordant block brackets the scrambled region.
	expect.True(t, svcs[0].Bgn < 9000)
	expect.True(t, svcs[0].End > 9600)
}

func TestOverlappingTargetAlignments(t *testing.T) {
	// The query repeats a 1kb stretch of the target, so the second chain
	// starts behind the first chain's consumed target frontier.
	ref := randomSeq(20000, 13)
	var qry []byte
	qry = append(qry, ref[:11000]...)
	qry = append(qry, ref[10000:]...)
	db := buildTarget(t, []string{"chr1"}, ref)
	res, err := Classify(db, []Query{{Name: "qry1", Seq: qry}}, Options{MaxGap: 500})
	require.NoError(t, err)

	var ovlps []BedRecord
	for _, r := range res.SvCndBed {
		if strings.HasPrefix(r.Annot, "TO:") {
			ovlps = append(ovlps, r)
		}
	}
	require.Equal(t, 1, len(ovlps))
	ovlpLen := ovlps[0].End - ovlps[0].Bgn
	expect.True(t, ovlpLen > 800 && ovlpLen < 1200, "overlap length %d", ovlpLen)
	expect.EQ(t, countAnnot(res.SvCndBed, "TD:"), 0)
}

func TestOverlappingQueryAlignments(t *testing.T) {
	// The mirror case: the target repeats the stretch, so the second chain
	// re-consumes part of the query interval.
	base := randomSeq(20000, 14)
	var ref []byte
	ref = append(ref, base[:11000]...)
	ref = append(ref, base[10000:]...)
	db := buildTarget(t, []string{"chr1"}, ref)
	res, err := Classify(db, []Query{{Name: "qry1", Seq: base}}, Options{MaxGap: 500})
	require.NoError(t, err)

	var ovlps []BedRecord
	for _, r := range res.CtgSvBed {
		if strings.HasPrefix(r.Annot, "QO:") {
			ovlps = append(ovlps, r)
		}
	}
	require.Equal(t, 1, len(ovlps))
	ovlpLen := ovlps[0].End - ovlps[0].Bgn
	expect.True(t, ovlpLen > 800 && ovlpLen < 1200, "overlap length %d", ovlpLen)
	expect.EQ(t, countAnnot(res.CtgSvBed, "QD:"), 0)
}

func TestSvCandidateInDuplicatedRegionIsTagged(t *testing.T) {
	// The query re-aligns a copy of t[5000:8000) whose interior is scrambled.
	// The copy's block is a duplication on the target walk, so the discordant
	// block inside it must come out as SVC_D rather than SVC.
	ref := randomSeq(20000, 15)
	cp := append([]byte(nil), ref[5000:8000]...)
	copy(cp[1000:1600], randomSeq(600, 16))
	qry := append(append([]byte(nil), ref...), cp...)
	db := buildTarget(t, []string{"chr1"}, ref)
	res, err := Classify(db, []Query{{Name: "qry1", Seq: qry}}, Options{MaxGap: 2000})
	require.NoError(t, err)

	expect.True(t, countAnnot(res.SvCndBed, "TD:") >= 1)
	var tagged []BedRecord
	for _, r := range res.SvCndBed {
		if strings.HasPrefix(r.Annot, "SVC_D:") {
			tagged = append(tagged, r)
		}
	}
	require.Equal(t, 1, len(tagged))
	expect.True(t, strings.HasSuffix(tagged[0].Annot, ":A"))
	// The candidate sits inside the duplicated target interval.
	expect.True(t, tagged[0].Bgn > 5000 && tagged[0].End < 8000)
	expect.EQ(t, countAnnot(res.SvCndBed, "SVC:"), 0)
}

func TestFilterAlnMonotonic(t *testing.T) {
	chain := []alnSeg{
		{qs: 100, qe: 130, qo: 0, ts: 100, te: 130, to: 0},
		{qs: 130, qe: 160, qo: 0, ts: 130, te: 160, to: 0},
		{qs: 160, qe: 190, qo: 0, ts: 160, te: 190, to: 0},
	}
	spans := filterAln(chain)
	require.Equal(t, 3, len(spans))
	for i := 1; i < len(spans); i++ {
		expect.EQ(t, spans[i].ts, spans[i-1].te)
		expect.EQ(t, spans[i].qs, spans[i-1].qe)
	}
}

func TestClassifyBlock(t *testing.T) {
	opts := DefaultOptions.withDefaults()
	a := randomSeq(400, 11)
	expect.EQ(t, classifyBlock(a, a, opts), DiffAligned)
	expect.EQ(t, classifyBlock(a[:10], a[:10], opts), DiffFailShortSeq)

	b := append([]byte(nil), a...)
	copy(b[:16], "AAAAAAAAAAAAAAAA")
	if !bytes.Equal(a[:16], b[:16]) {
		expect.EQ(t, classifyBlock(a, b, opts), DiffFailEndMatch)
	}

	// Same flanks, grossly different interior length, too big to align.
	var c []byte
	c = append(c, a...)
	c = append(c, randomSeq(2000, 12)...)
	c = append(c, a[len(a)-16:]...)
	d := append(append([]byte(nil), a...), a[len(a)-16:]...)
	expect.EQ(t, classifyBlock(d, c, opts), DiffFailLengthDiff)
}

func TestWriteBed(t *testing.T) {
	var buf bytes.Buffer
	recs := []BedRecord{
		{Name: "chr1", Bgn: 10, End: 20, Annot: "TG:BGN>qry1:1:2:3:0:0"},
	}
	require.NoError(t, WriteBed(&buf, recs))
	expect.EQ(t, buf.String(), "chr1\t10\t20\tTG:BGN>qry1:1:2:3:0:0\n")
}
