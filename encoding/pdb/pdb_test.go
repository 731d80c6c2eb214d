package pdb

import (
	"bytes"
	"context"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"

	"github.com/cschin/pgr-tk/pbundle"
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

func buildDecomposition(t *testing.T) (*seqdb.DB, *pbundle.Decomposition, []pbundle.Segment) {
	t.Helper()
	db, err := seqdb.New(testSpec, seqdb.DefaultOpts)
	require.NoError(t, err)
	seq := randomSeq(10000, 3)
	_, err = db.Add("ctg1", "a.fa", seq)
	require.NoError(t, err)
	_, err = db.Add("ctg2", "a.fa", append([]byte(nil), seq...))
	require.NoError(t, err)
	require.NoError(t, db.Index())
	d := pbundle.Extract(db, pbundle.DefaultOptions)
	segs := d.Decompose(db)
	require.NotEmpty(t, segs)
	return db, d, segs
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, d, segs := buildDecomposition(t)
	path := filepath.Join(t.TempDir(), "test.pdb")
	require.NoError(t, Write(ctx, path, db, d, segs))

	a, err := Read(ctx, path)
	require.NoError(t, err)
	expect.EQ(t, a.Spec, testSpec)
	expect.EQ(t, a.Decomp.Opts, d.Opts)
	expect.EQ(t, len(a.Decomp.Bundles), len(d.Bundles))
	expect.EQ(t, len(a.Decomp.VertexPos), len(d.VertexPos))
	expect.EQ(t, a.Segments, segs)
	require.Equal(t, 2, len(a.Seqs))

	seq0, err := a.Seqs[0].Seq()
	require.NoError(t, err)
	expect.EQ(t, seq0, db.Seq(0).Seq)

	// The archive must reproduce the original text outputs byte for byte.
	var wantBED, gotBED bytes.Buffer
	require.NoError(t, pbundle.WriteBED(&wantBED, db, segs, ""))
	db2, err := a.DB()
	require.NoError(t, err)
	require.NoError(t, pbundle.WriteBED(&gotBED, db2, a.Segments, ""))
	expect.EQ(t, gotBED.String(), wantBED.String())

	var wantSum, gotSum bytes.Buffer
	require.NoError(t, pbundle.WriteSummary(&wantSum, db, segs))
	require.NoError(t, pbundle.WriteSummary(&gotSum, db2, a.Segments))
	expect.EQ(t, gotSum.String(), wantSum.String())
}

func TestAnchorsMatchIndex(t *testing.T) {
	ctx := context.Background()
	db, d, segs := buildDecomposition(t)
	path := filepath.Join(t.TempDir(), "test.pdb")
	require.NoError(t, Write(ctx, path, db, d, segs))
	a, err := Read(ctx, path)
	require.NoError(t, err)

	require.NotEmpty(t, a.Anchors)
	for _, po := range a.Anchors {
		expect.EQ(t, po.Occs, db.Lookup(po.Pair))
	}
}

func TestCorruptFileIsRejected(t *testing.T) {
	ctx := context.Background()
	db, d, segs := buildDecomposition(t)
	path := filepath.Join(t.TempDir(), "test.pdb")
	require.NoError(t, Write(ctx, path, db, d, segs))

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xff
	bad := filepath.Join(t.TempDir(), "bad.pdb")
	require.NoError(t, ioutil.WriteFile(bad, data, 0644))
	_, err = Read(ctx, bad)
	expect.NotNil(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Read(context.Background(), filepath.Join(t.TempDir(), "nope.pdb"))
	expect.NotNil(t, err)
}
