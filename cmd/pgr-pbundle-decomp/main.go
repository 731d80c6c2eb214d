// Command pgr-pbundle-decomp builds the MAP graph of a contig collection,
// extracts its principal bundles, and writes the per-contig bundle
// decomposition plus the graph and persistence artifacts.
//
// Usage:
//
//	pgr-pbundle-decomp [flags] <fasta> <output-prefix>
//
// Outputs <prefix>.bed, <prefix>.ctg.summary.tsv, <prefix>.midx,
// <prefix>.mapg.gfa, <prefix>.mapg.idx, <prefix>.pmapg.gfa,
// <prefix>.pmapg.idx and <prefix>.pdb.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/cschin/pgr-tk/encoding/fasta"
	"github.com/cschin/pgr-tk/encoding/gfa"
	"github.com/cschin/pgr-tk/encoding/pdb"
	"github.com/cschin/pgr-tk/pbundle"
	"github.com/cschin/pgr-tk/seqdb"
	"github.com/cschin/pgr-tk/shimmer"
)

type decompFlags struct {
	spec            shimmer.Spec
	maxPairCount    int
	includePath     string
	decompFastxPath string
	pdbInputPath    string
	opts            pbundle.Options
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: pgr-pbundle-decomp [flags] <fasta> <output-prefix>

Builds the principal bundle decomposition of the input contigs.
Flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flags := decompFlags{spec: shimmer.DefaultSpec, opts: pbundle.DefaultOptions}
	k := flag.Uint("k", uint(shimmer.DefaultSpec.K), "minimizer k-mer size")
	w := flag.Uint("w", uint(shimmer.DefaultSpec.W), "minimizer window size")
	r := flag.Uint("r", uint(shimmer.DefaultSpec.R), "minimizer reduction factor")
	minSpan := flag.Uint("min-span", uint(shimmer.DefaultSpec.MinSpan),
		"minimum span between adjacent minimizers")
	flag.IntVar(&flags.maxPairCount, "max-pair-count", 0,
		"exclude anchors with more occurrences than this (0 = no limit)")
	flag.IntVar(&flags.opts.MinCov, "min-cov", pbundle.DefaultOptions.MinCov,
		"minimum anchor coverage kept in the MAP graph")
	flag.IntVar(&flags.opts.MinBranchSize, "min-branch-size", pbundle.DefaultOptions.MinBranchSize,
		"minimum traversal branch length kept as principal")
	flag.IntVar(&flags.opts.BundleLengthCutoff, "bundle-length-cutoff", pbundle.DefaultOptions.BundleLengthCutoff,
		"drop projected segments spanning this many bases or fewer")
	flag.IntVar(&flags.opts.BundleMergeDistance, "bundle-merge-distance", pbundle.DefaultOptions.BundleMergeDistance,
		"merge same-bundle segments separated by less than this many bases")
	flag.IntVar(&flags.opts.RepeatThreshold, "repeat-threshold", pbundle.DefaultOptions.RepeatThreshold,
		"per-contig traversal count above which a bundle is a repeat")
	flag.StringVar(&flags.includePath, "include", "",
		"file listing contig names to index, one per line")
	flag.StringVar(&flags.decompFastxPath, "decomp-fastx", "",
		"decompose the contigs in this file instead of the indexed ones")
	flag.StringVar(&flags.pdbInputPath, "pdb-input", "",
		"reuse the bundles from this .pdb file instead of recomputing them")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()
	flags.spec = shimmer.Spec{
		K: uint32(*k), W: uint32(*w), R: uint32(*r), MinSpan: uint32(*minSpan),
	}
	if flag.NArg() != 2 {
		usage()
	}
	fastxPath, prefix := flag.Arg(0), flag.Arg(1)
	cmdline := strings.Join(os.Args, " ")

	var db *seqdb.DB
	var decomp *pbundle.Decomposition
	if flags.pdbInputPath != "" {
		a, err := pdb.Read(ctx, flags.pdbInputPath)
		if err != nil {
			log.Panicf("read %s: %v", flags.pdbInputPath, err)
		}
		if db, err = a.DB(); err != nil {
			log.Panicf("rebuild database from %s: %v", flags.pdbInputPath, err)
		}
		decomp = a.Decomp
		log.Printf("loaded %d bundles from %s", len(decomp.Bundles), flags.pdbInputPath)
	} else {
		db = loadDB(ctx, fastxPath, flags)
		decomp = pbundle.Extract(db, flags.opts)
		log.Printf("extracted %d bundles from %d contigs", len(decomp.Bundles), db.NumSeqs())
	}

	ddb := db
	if flags.decompFastxPath != "" {
		ddb = loadDB(ctx, flags.decompFastxPath, flags)
	}
	segs := decomp.Decompose(ddb)
	log.Printf("projected %d segments", len(segs))

	writeTo(ctx, prefix+".bed", func(w *bufio.Writer) error {
		return pbundle.WriteBED(w, ddb, segs, cmdline)
	})
	writeTo(ctx, prefix+".ctg.summary.tsv", func(w *bufio.Writer) error {
		return pbundle.WriteSummary(w, ddb, segs)
	})
	writeTo(ctx, prefix+".midx", func(w *bufio.Writer) error {
		return db.WriteSeqIndex(w)
	})

	var entries []gfa.IndexEntry
	writeTo(ctx, prefix+".mapg.gfa", func(w *bufio.Writer) error {
		var err error
		entries, err = gfa.WriteMapGraph(w, db, flags.opts.MinCov)
		return err
	})
	writeTo(ctx, prefix+".mapg.idx", func(w *bufio.Writer) error {
		return gfa.WriteIndex(w, entries)
	})
	var prinEntries []gfa.IndexEntry
	writeTo(ctx, prefix+".pmapg.gfa", func(w *bufio.Writer) error {
		var err error
		prinEntries, err = gfa.WritePrincipalMapGraph(w, db, decomp)
		return err
	})
	writeTo(ctx, prefix+".pmapg.idx", func(w *bufio.Writer) error {
		return gfa.WriteIndex(w, prinEntries)
	})

	if err := pdb.Write(ctx, prefix+".pdb", db, decomp, segs); err != nil {
		log.Panicf("write %s.pdb: %v", prefix, err)
	}
}

func loadDB(ctx context.Context, path string, flags decompFlags) *seqdb.DB {
	recs, err := fasta.ReadFile(ctx, path)
	if err != nil {
		log.Panicf("read %s: %v", path, err)
	}
	include := readIncludeList(ctx, flags.includePath)
	db, err := seqdb.New(flags.spec, seqdb.Opts{MaxPairOcc: flags.maxPairCount})
	if err != nil {
		log.Panicf("invalid sampling parameters: %v", err)
	}
	n := 0
	for _, rec := range recs {
		if include != nil && !include[rec.Name] {
			continue
		}
		if _, err := db.Add(rec.Name, path, rec.Seq); err != nil {
			log.Panicf("add %s: %v", rec.Name, err)
		}
		n++
	}
	if n == 0 {
		log.Panicf("%s: no contigs to index", path)
	}
	if err := db.Index(); err != nil {
		log.Panicf("index %s: %v", path, err)
	}
	return db
}

func readIncludeList(ctx context.Context, path string) map[string]bool {
	if path == "" {
		return nil
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		log.Panicf("open %s: %v", path, err)
	}
	include := map[string]bool{}
	sc := bufio.NewScanner(in.Reader(ctx))
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name != "" {
			include[name] = true
		}
	}
	if err := sc.Err(); err != nil {
		log.Panicf("read %s: %v", path, err)
	}
	if err := in.Close(ctx); err != nil {
		log.Panicf("close %s: %v", path, err)
	}
	return include
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
