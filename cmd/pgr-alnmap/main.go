// Command pgr-alnmap maps assembly contigs onto an indexed target collection
// and classifies the structural differences between the two.
//
// Usage:
//
//	pgr-alnmap [flags] <target-fasta> <query-fasta> <output-prefix>
//
// Outputs <prefix>.svcnd.bed (target-relative SV candidates and gap,
// duplication and overlap records), <prefix>.ctgsv.bed (query-relative
// records) and <prefix>.ctgmap.bed (one row per alignment block).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/cschin/pgr-tk/alnmap"
	"github.com/cschin/pgr-tk/encoding/fasta"
	"github.com/cschin/pgr-tk/seqdb"
	"github.com/cschin/pgr-tk/shimmer"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: pgr-alnmap [flags] <target-fasta> <query-fasta> <output-prefix>

Maps the query contigs onto the target and classifies structural differences.
Flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	k := flag.Uint("k", uint(shimmer.DefaultSpec.K), "minimizer k-mer size")
	w := flag.Uint("w", uint(shimmer.DefaultSpec.W), "minimizer window size")
	r := flag.Uint("r", uint(shimmer.DefaultSpec.R), "minimizer reduction factor")
	minSpan := flag.Uint("min-span", uint(shimmer.DefaultSpec.MinSpan),
		"minimum span between adjacent minimizers")
	maxGap := flag.Uint("max-gap", uint(alnmap.DefaultOptions.MaxGap),
		"maximum unanchored gap inside one alignment chain")
	maxAlnSize := flag.Int("max-aln-size", alnmap.DefaultOptions.MaxAlnSize,
		"largest length-discordant block handed to the base-level aligner")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()
	if flag.NArg() != 3 {
		usage()
	}
	targetPath, queryPath, prefix := flag.Arg(0), flag.Arg(1), flag.Arg(2)
	spec := shimmer.Spec{
		K: uint32(*k), W: uint32(*w), R: uint32(*r), MinSpan: uint32(*minSpan),
	}

	target, err := seqdb.New(spec, seqdb.DefaultOpts)
	if err != nil {
		log.Panicf("invalid sampling parameters: %v", err)
	}
	trecs, err := fasta.ReadFile(ctx, targetPath)
	if err != nil {
		log.Panicf("read %s: %v", targetPath, err)
	}
	for _, rec := range trecs {
		if _, err := target.Add(rec.Name, targetPath, rec.Seq); err != nil {
			log.Panicf("add %s: %v", rec.Name, err)
		}
	}
	if err := target.Index(); err != nil {
		log.Panicf("index %s: %v", targetPath, err)
	}
	log.Printf("indexed %d target contigs", target.NumSeqs())

	qrecs, err := fasta.ReadFile(ctx, queryPath)
	if err != nil {
		log.Panicf("read %s: %v", queryPath, err)
	}
	queries := make([]alnmap.Query, len(qrecs))
	for i, rec := range qrecs {
		queries[i] = alnmap.Query{Name: rec.Name, Seq: rec.Seq}
	}

	opts := alnmap.Options{MaxGap: uint32(*maxGap), MaxAlnSize: *maxAlnSize}
	res, err := alnmap.Classify(target, queries, opts)
	if err != nil {
		log.Panicf("classify %s: %v", queryPath, err)
	}
	log.Printf("classified %d queries: %d alignments, %d target records, %d query records",
		len(queries), len(res.Alignments), len(res.SvCndBed), len(res.CtgSvBed))

	writeTo(ctx, prefix+".svcnd.bed", func(w *bufio.Writer) error {
		return alnmap.WriteBed(w, res.SvCndBed)
	})
	writeTo(ctx, prefix+".ctgsv.bed", func(w *bufio.Writer) error {
		return alnmap.WriteBed(w, res.CtgSvBed)
	})
	writeTo(ctx, prefix+".ctgmap.bed", func(w *bufio.Writer) error {
		return alnmap.WriteCtgMap(w, res.CtgMap)
	})
}

func writeTo(ctx context.Context, path string, f func(w *bufio.Writer) error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panicf("create %s: %v", path, err)
	}
	w := bufio.NewWriter(out.Writer(ctx))
	if err := f(w); err != nil {
		log.Panicf("write %s: %v", path, err)
	}
	if err := w.Flush(); err != nil {
		log.Panicf("flush %s: %v", path, err)
	}
	if err := out.Close(ctx); err != nil {
		log.Panicf("close %s: %v", path, err)
	}
}
