package gfa

import (
	"bytes"
	"math/rand"
	"strconv"
	"strings"
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

func buildDB(t *testing.T) *seqdb.DB {
	t.Helper()
	db, err := seqdb.New(testSpec, seqdb.DefaultOpts)
	require.NoError(t, err)
	seq := randomSeq(5000, 42)
	_, err = db.Add("ctg1", "a.fa", seq)
	require.NoError(t, err)
	_, err = db.Add("ctg2", "a.fa", append([]byte(nil), seq...))
	require.NoError(t, err)
	require.NoError(t, db.Index())
	return db
}

func TestWriteMapGraph(t *testing.T) {
	db := buildDB(t)
	var buf bytes.Buffer
	entries, err := WriteMapGraph(&buf, db, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	expect.EQ(t, lines[0], "H\tVN:Z:1.1")
	var nS, nL, nW int
	for _, l := range lines[1:] {
		f := strings.Split(l, "\t")
		switch f[0] {
		case "S":
			expect.EQ(t, len(f), 4)
			expect.EQ(t, f[2], "*")
			expect.True(t, strings.HasPrefix(f[3], "LN:i:"))
			nS++
		case "L":
			expect.EQ(t, len(f), 7)
			expect.EQ(t, f[5], "15M")
			// Both contigs traverse every adjacency.
			expect.EQ(t, f[6], "SC:i:2")
			nL++
		case "W":
			expect.EQ(t, len(f), 7)
			expect.EQ(t, f[5], "5000")
			nW++
		default:
			t.Fatalf("unexpected line %q", l)
		}
	}
	expect.EQ(t, nS, len(entries))
	expect.True(t, nL > 0)
	expect.EQ(t, nW, 2)
}

func TestIndexOffsetsPointAtSegments(t *testing.T) {
	db := buildDB(t)
	var buf bytes.Buffer
	entries, err := WriteMapGraph(&buf, db, 0)
	require.NoError(t, err)
	data := buf.Bytes()
	for _, e := range entries {
		line := data[e.Offset:]
		prefix := "S\t" + strconv.FormatUint(e.ID, 10) + "\t"
		expect.True(t, bytes.HasPrefix(line, []byte(prefix)), "entry %d", e.ID)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	entries := []IndexEntry{{ID: 0, Offset: 9}, {ID: 1, Offset: 37}, {ID: 7, Offset: 1024}}
	var buf bytes.Buffer
	require.NoError(t, WriteIndex(&buf, entries))
	got, err := ReadIndex(&buf)
	require.NoError(t, err)
	expect.EQ(t, got, entries)

	_, err = ReadIndex(bytes.NewReader([]byte("not an index file")))
	expect.NotNil(t, err)
}

func TestPrincipalIndexOffsetsPointAtSegments(t *testing.T) {
	db := buildDB(t)
	d := pbundle.Extract(db, pbundle.DefaultOptions)
	require.NotEmpty(t, d.Bundles)

	var buf bytes.Buffer
	entries, err := WritePrincipalMapGraph(&buf, db, d)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	data := buf.Bytes()
	for _, e := range entries {
		line := data[e.Offset:]
		prefix := "S\t" + strconv.FormatUint(e.ID, 10) + "\t"
		expect.True(t, bytes.HasPrefix(line, []byte(prefix)), "entry %d", e.ID)
	}

	var idx bytes.Buffer
	require.NoError(t, WriteIndex(&idx, entries))
	got, err := ReadIndex(&idx)
	require.NoError(t, err)
	expect.EQ(t, got, entries)
}

func TestPrincipalGraphIsSubset(t *testing.T) {
	db := buildDB(t)
	d := pbundle.Extract(db, pbundle.DefaultOptions)
	require.NotEmpty(t, d.Bundles)

	var full, principal bytes.Buffer
	fullEntries, err := WriteMapGraph(&full, db, 0)
	require.NoError(t, err)
	prinEntries, err := WritePrincipalMapGraph(&principal, db, d)
	require.NoError(t, err)
	expect.LE(t, len(prinEntries), len(fullEntries))
	expect.True(t, !strings.Contains(principal.String(), "\nW\t"))
}
