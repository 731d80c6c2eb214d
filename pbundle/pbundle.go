// Package pbundle decomposes a MAP graph into principal bundles: maximal
// collinear anchor runs shared across contigs. It assigns each bundle a
// stable id, projects bundle membership back onto contig coordinates, and
// emits the per-contig BED segments and summary statistics.
package pbundle

import (
	"sort"

	"github.com/cschin/pgr-tk/mapgraph"
	"github.com/cschin/pgr-tk/seqdb"
	"github.com/cschin/pgr-tk/shimmer"
)

// Options control bundle extraction and coordinate projection.
type Options struct {
	// MinCov drops anchors with fewer occurrences from the graph.
	MinCov int
	// MinBranchSize drops weighted-DFS paths with this many vertices or
	// fewer before bundle extraction.
	MinBranchSize int
	// BundleLengthCutoff drops projected segments spanning this many bases
	// or fewer.
	BundleLengthCutoff int
	// BundleMergeDistance merges adjacent same-bundle segments separated by
	// less than this many bases.
	BundleMergeDistance int
	// RepeatThreshold classifies a segment as repeat when its contig
	// traverses the same bundle more than this many times.
	RepeatThreshold int
}

// DefaultOptions mirrors the pangenome decomposition defaults.
var DefaultOptions = Options{
	MinCov:              0,
	MinBranchSize:       8,
	BundleLengthCutoff:  2500,
	BundleMergeDistance: 10000,
	RepeatThreshold:     1,
}

// Bundle is one principal bundle: an ordered vertex run with a canonical
// orientation given by the extraction walk.
type Bundle struct {
	ID       int32
	Vertices []mapgraph.Vertex
	// Size is the number of projected segments referencing this bundle,
	// counting every traversal (a contig crossing the bundle five times
	// contributes five). Filled by Decompose.
	Size uint32
}

// BundlePos locates an anchor inside a bundle.
type BundlePos struct {
	Bundle int32
	Orient uint8
	Pos    uint32
}

// Decomposition is the bundle table plus the anchor-to-bundle assignment.
type Decomposition struct {
	Spec      shimmer.Spec
	Opts      Options
	Bundles   []Bundle
	VertexPos map[seqdb.Pair]BundlePos
}

func vertexLess(a, b mapgraph.Vertex) bool {
	if a.Pair.H0 != b.Pair.H0 {
		return a.Pair.H0 < b.Pair.H0
	}
	if a.Pair.H1 != b.Pair.H1 {
		return a.Pair.H1 < b.Pair.H1
	}
	return a.Orient < b.Orient
}

// Extract builds the MAP graph from db and decomposes it into principal
// bundles. An empty or fully filtered graph yields an empty decomposition,
// not an error.
func Extract(db *seqdb.DB, opts Options) *Decomposition {
	d := &Decomposition{
		Spec:      db.Spec,
		Opts:      opts,
		VertexPos: map[seqdb.Pair]BundlePos{},
	}
	edges := mapgraph.BuildAdjList(db, opts.MinCov)
	if len(edges) == 0 {
		return d
	}
	g := mapgraph.New(edges)
	start, _ := g.ID(edges[0].From)
	order := g.WeightedDFS([]int32{start})

	// Split the traversal into simple paths and keep only vertices on paths
	// longer than MinBranchSize. Short spurs are sampling noise and would
	// fragment the principal vertex set.
	principal := map[seqdb.Pair]bool{}
	var path []mapgraph.Vertex
	flush := func() {
		if len(path) > opts.MinBranchSize {
			for _, v := range path {
				principal[v.Pair] = true
			}
		}
		path = path[:0]
	}
	var prev int32 = -1
	for _, n := range order {
		if n.Parent != prev {
			flush()
		}
		path = append(path, g.VertexAt(n.V))
		prev = n.V
	}
	flush()

	var filtered []mapgraph.Edge
	for _, e := range edges {
		if principal[e.From.Pair] && principal[e.To.Pair] {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		return d
	}
	g0 := mapgraph.New(filtered)

	// Branch points terminate bundles on both sides.
	terminal := map[seqdb.Pair]bool{}
	for i := 0; i < g0.NumVertices(); i++ {
		i := int32(i)
		if len(g0.Out(i)) > 1 || len(g0.In(i)) > 1 {
			terminal[g0.VertexAt(i).Pair] = true
		}
	}

	allIDs := make([]int32, g0.NumVertices())
	for i := range allIDs {
		allIDs[i] = int32(i)
	}
	sort.Slice(allIDs, func(i, j int) bool {
		return vertexLess(g0.VertexAt(allIDs[i]), g0.VertexAt(allIDs[j]))
	})

	visited := map[seqdb.Pair]bool{}
	var bundles [][]mapgraph.Vertex
	for {
		// Prefer an unvisited vertex with no live predecessor; in a pure
		// cycle fall back to the smallest unvisited vertex.
		var start int32 = -1
		for _, i := range allIDs {
			if visited[g0.VertexAt(i).Pair] {
				continue
			}
			live := 0
			for _, j := range g0.In(i) {
				if !visited[g0.VertexAt(j).Pair] {
					live++
				}
			}
			if live == 0 {
				start = i
				break
			}
		}
		if start == -1 {
			for _, i := range allIDs {
				if !visited[g0.VertexAt(i).Pair] {
					start = i
					break
				}
			}
		}
		if start == -1 {
			break
		}
		cur := start
		visited[g0.VertexAt(cur).Pair] = true
		verts := []mapgraph.Vertex{g0.VertexAt(cur)}
		for !terminal[g0.VertexAt(cur).Pair] || len(verts) == 1 {
			var nxt int32 = -1
			for _, j := range g0.Out(cur) {
				if !visited[g0.VertexAt(j).Pair] {
					nxt = j
					break
				}
			}
			if nxt == -1 {
				break
			}
			visited[g0.VertexAt(nxt).Pair] = true
			verts = append(verts, g0.VertexAt(nxt))
			cur = nxt
		}
		bundles = append(bundles, verts)
	}

	// Longest bundle gets id 0. Equal lengths order by vertex content so
	// ids never depend on extraction order.
	sort.SliceStable(bundles, func(i, j int) bool {
		a, b := bundles[i], bundles[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		for k := range a {
			if a[k] != b[k] {
				return vertexLess(a[k], b[k])
			}
		}
		return false
	})
	for id, verts := range bundles {
		d.Bundles = append(d.Bundles, Bundle{ID: int32(id), Vertices: verts})
		for pos, v := range verts {
			d.VertexPos[v.Pair] = BundlePos{
				Bundle: int32(id),
				Orient: v.Orient,
				Pos:    uint32(pos),
			}
		}
	}
	return d
}
