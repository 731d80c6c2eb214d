package seqdb

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"

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

func TestAddRejectsDuplicates(t *testing.T) {
	db, err := New(testSpec, DefaultOpts)
	require.NoError(t, err)
	_, err = db.Add("ctg1", "a.fa", randomSeq(100, 1))
	expect.NoError(t, err)
	_, err = db.Add("ctg1", "b.fa", randomSeq(100, 2))
	expect.NotNil(t, err)
	_, err = db.Add("", "b.fa", randomSeq(100, 2))
	expect.NotNil(t, err)
}

func TestIndexPairPath(t *testing.T) {
	db, err := New(testSpec, DefaultOpts)
	require.NoError(t, err)
	seq := randomSeq(5000, 3)
	id, err := db.Add("ctg1", "test.fa", seq)
	require.NoError(t, err)
	require.NoError(t, db.Index())

	path := db.Path(id)
	require.NotEmpty(t, path)
	for i, sp := range path {
		expect.True(t, sp.Pair.H0 <= sp.Pair.H1)
		expect.True(t, sp.Bgn < sp.End)
		if i > 0 {
			expect.EQ(t, sp.Bgn, path[i-1].End)
		}
	}
	// Every path anchor is findable in the index with matching coordinates.
	for _, sp := range path {
		occs := db.Lookup(sp.Pair)
		found := false
		for _, o := range occs {
			if o.SeqID == id && o.Bgn == sp.Bgn && o.End == sp.End && o.Orient == sp.Orient {
				found = true
			}
		}
		expect.True(t, found)
	}
}

func TestIndexTwoIdenticalContigs(t *testing.T) {
	db, err := New(testSpec, DefaultOpts)
	require.NoError(t, err)
	seq := randomSeq(8000, 4)
	_, err = db.Add("ctg1", "test.fa", seq)
	require.NoError(t, err)
	_, err = db.Add("ctg2", "test.fa", append([]byte(nil), seq...))
	require.NoError(t, err)
	require.NoError(t, db.Index())

	n := 0
	db.RangePairs(func(p Pair, occs []Occ) bool {
		expect.EQ(t, len(occs), 2)
		expect.EQ(t, occs[0].SeqID, uint32(0))
		expect.EQ(t, occs[1].SeqID, uint32(1))
		expect.EQ(t, occs[0].Bgn, occs[1].Bgn)
		n++
		return true
	})
	expect.True(t, n > 0)
}

func TestOccurrenceCeiling(t *testing.T) {
	db, err := New(testSpec, Opts{MaxPairOcc: 1})
	require.NoError(t, err)
	seq := randomSeq(8000, 5)
	_, err = db.Add("ctg1", "test.fa", seq)
	require.NoError(t, err)
	_, err = db.Add("ctg2", "test.fa", append([]byte(nil), seq...))
	require.NoError(t, err)
	require.NoError(t, db.Index())

	path := db.Path(0)
	require.NotEmpty(t, path)
	for _, sp := range path {
		expect.True(t, db.Excluded(sp.Pair))
		expect.EQ(t, len(db.Lookup(sp.Pair)), 0)
		expect.EQ(t, db.Count(sp.Pair), 2)
	}
	db.RangePairs(func(Pair, []Occ) bool {
		t.Error("excluded anchors must not be visited")
		return false
	})
}

func TestSubSeq(t *testing.T) {
	db, err := New(testSpec, DefaultOpts)
	require.NoError(t, err)
	seq := []byte("ACGTACGTAC")
	id, err := db.Add("ctg1", "test.fa", seq)
	require.NoError(t, err)

	got, err := db.SubSeq(id, 2, 6)
	require.NoError(t, err)
	expect.EQ(t, got, []byte("GTAC"))
	_, err = db.SubSeq(id, 6, 2)
	expect.NotNil(t, err)
	_, err = db.SubSeq(id, 0, 100)
	expect.NotNil(t, err)
	_, err = db.SubSeq(99, 0, 1)
	expect.NotNil(t, err)
}

func TestWriteSeqIndex(t *testing.T) {
	db, err := New(testSpec, DefaultOpts)
	require.NoError(t, err)
	_, err = db.Add("ctg1", "a.fa", []byte("ACGT"))
	require.NoError(t, err)
	_, err = db.Add("ctg2", "b.fa", []byte("ACGTACGT"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, db.WriteSeqIndex(&buf))
	expect.EQ(t, buf.String(), "0\tctg1\t4\ta.fa\n1\tctg2\t8\tb.fa\n")
}
