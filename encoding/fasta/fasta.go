// Package fasta reads FASTA-formatted sequence files. A file holds named
// sequences whose bases may be wrapped over multiple lines:
//
// >ctg1
// ACGTAC
// GAGGAC
// >ctg2
// ACGT
//
// The sequence name is the text after '>' up to the first space; anything
// after the space is dropped.
package fasta

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

const maxLineSize = 1024 * 1024 * 64

// Record is one named sequence.
type Record struct {
	Name string
	Seq  []byte
}

// Read parses every record from r into memory. Bases are kept as raw bytes,
// uppercased so downstream k-mer packing sees a single alphabet.
func Read(r io.Reader) ([]Record, error) {
	var recs []Record
	var cur *Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == ';' {
			continue
		}
		if line[0] == '>' {
			name := line[1:]
			if i := bytes.IndexByte(name, ' '); i >= 0 {
				name = name[:i]
			}
			if len(name) == 0 {
				return nil, errors.New("fasta: record with empty name")
			}
			recs = append(recs, Record{Name: string(name)})
			cur = &recs[len(recs)-1]
			continue
		}
		if cur == nil {
			return nil, errors.New("fasta: sequence data before first header")
		}
		cur.Seq = append(cur.Seq, bytes.ToUpper(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "fasta: read")
	}
	return recs, nil
}

// ReadFile reads every record from path, transparently decompressing
// .gz/.bz2/.zst inputs based on the file name.
func ReadFile(ctx context.Context, path string) ([]Record, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "fasta: open %s", path)
	}
	var r io.Reader = in.Reader(ctx)
	if u, ok := compress.NewReaderPath(r, in.Name()); ok {
		r = u
	}
	recs, err := Read(r)
	if cerr := in.Close(ctx); cerr != nil && err == nil {
		err = errors.Wrapf(cerr, "fasta: close %s", path)
	}
	return recs, err
}
