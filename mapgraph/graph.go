// Package mapgraph builds the minimizer anchor pair (MAP) graph from an
// indexed sequence database. Vertices are oriented anchors; edges connect
// anchors that are adjacent on some contig. Every edge carries its reverse
// complement mirror so both strands of the graph are always present.
package mapgraph

import (
	"sort"

	"github.com/cschin/pgr-tk/seqdb"
)

// Vertex is an anchor with a traversal orientation.
type Vertex struct {
	Pair   seqdb.Pair
	Orient uint8
}

// Flip returns the vertex on the opposite strand.
func (v Vertex) Flip() Vertex { return Vertex{Pair: v.Pair, Orient: 1 - v.Orient} }

func vertexLess(a, b Vertex) bool {
	if a.Pair.H0 != b.Pair.H0 {
		return a.Pair.H0 < b.Pair.H0
	}
	if a.Pair.H1 != b.Pair.H1 {
		return a.Pair.H1 < b.Pair.H1
	}
	return a.Orient < b.Orient
}

// Edge is one observed adjacency. The same vertex pair appears once per
// supporting contig traversal; multiplicity becomes the edge score.
type Edge struct {
	From, To Vertex
}

// BuildAdjList walks every contig's anchor path and emits an edge for each
// adjacent anchor pair, plus the reverse complement mirror edge. Anchors that
// are excluded by the occurrence ceiling or have fewer than minCov
// occurrences contribute no edges. Edges are emitted in contig order, so the
// first edge of the result is a deterministic traversal start.
func BuildAdjList(db *seqdb.DB, minCov int) []Edge {
	keep := func(p seqdb.Pair) bool {
		if db.Excluded(p) {
			return false
		}
		return db.Count(p) >= minCov
	}
	var edges []Edge
	for sid := 0; sid < db.NumSeqs(); sid++ {
		path := db.Path(uint32(sid))
		for i := 1; i < len(path); i++ {
			v, w := path[i-1], path[i]
			if v.End != w.Bgn {
				continue
			}
			if !keep(v.Pair) || !keep(w.Pair) {
				continue
			}
			fv := Vertex{Pair: v.Pair, Orient: v.Orient}
			fw := Vertex{Pair: w.Pair, Orient: w.Orient}
			edges = append(edges, Edge{From: fv, To: fw})
			edges = append(edges, Edge{From: fw.Flip(), To: fv.Flip()})
		}
	}
	return edges
}

// Graph is an immutable adjacency structure over oriented anchors. Neighbor
// lists are ordered by descending edge support, then by vertex order, which
// fixes the traversal preference of the weighted DFS.
type Graph struct {
	vertices []Vertex
	vid      map[Vertex]int32
	out      [][]int32
	in       [][]int32
	score    map[[2]int32]int
}

// New builds a graph from an edge list. Duplicate edges collapse into one
// adjacency with a higher score.
func New(edges []Edge) *Graph {
	g := &Graph{
		vid:   map[Vertex]int32{},
		score: map[[2]int32]int{},
	}
	add := func(v Vertex) int32 {
		if id, ok := g.vid[v]; ok {
			return id
		}
		id := int32(len(g.vertices))
		g.vertices = append(g.vertices, v)
		g.vid[v] = id
		return id
	}
	for _, e := range edges {
		a, b := add(e.From), add(e.To)
		g.score[[2]int32{a, b}]++
	}
	g.out = make([][]int32, len(g.vertices))
	g.in = make([][]int32, len(g.vertices))
	seen := map[[2]int32]bool{}
	for _, e := range edges {
		a, b := g.vid[e.From], g.vid[e.To]
		k := [2]int32{a, b}
		if seen[k] {
			continue
		}
		seen[k] = true
		g.out[a] = append(g.out[a], b)
		g.in[b] = append(g.in[b], a)
	}
	for a := range g.out {
		a := int32(a)
		sort.SliceStable(g.out[a], func(i, j int) bool {
			bi, bj := g.out[a][i], g.out[a][j]
			si, sj := g.score[[2]int32{a, bi}], g.score[[2]int32{a, bj}]
			if si != sj {
				return si > sj
			}
			return vertexLess(g.vertices[bi], g.vertices[bj])
		})
	}
	for b := range g.in {
		b := int32(b)
		sort.SliceStable(g.in[b], func(i, j int) bool {
			return vertexLess(g.vertices[g.in[b][i]], g.vertices[g.in[b][j]])
		})
	}
	return g
}

// NumVertices returns the vertex count (both orientations counted).
func (g *Graph) NumVertices() int { return len(g.vertices) }

// VertexAt returns the vertex with dense id i.
func (g *Graph) VertexAt(i int32) Vertex { return g.vertices[i] }

// ID returns the dense id of v.
func (g *Graph) ID(v Vertex) (int32, bool) {
	id, ok := g.vid[v]
	return id, ok
}

// Out returns the out-neighbors of i, best supported first.
func (g *Graph) Out(i int32) []int32 { return g.out[i] }

// In returns the in-neighbors of i.
func (g *Graph) In(i int32) []int32 { return g.in[i] }

// Score returns the support count of the edge a->b.
func (g *Graph) Score(a, b int32) int { return g.score[[2]int32{a, b}] }

// DFSNode is one step of a weighted depth-first traversal.
type DFSNode struct {
	V      int32
	Parent int32 // -1 at a traversal root
	IsLeaf bool  // no unvisited successor when the node was emitted
}

// WeightedDFS traverses the graph depth first, always preferring the
// unvisited out-neighbor with the highest edge support. Visiting a vertex
// retires both of its orientations, so each anchor is emitted at most once.
// The traversal restarts from the given starts in order, then from any
// remaining unvisited vertex, so disconnected components are all covered.
func (g *Graph) WeightedDFS(starts []int32) []DFSNode {
	visited := make([]bool, len(g.vertices))
	retire := func(i int32) {
		visited[i] = true
		if tw, ok := g.vid[g.vertices[i].Flip()]; ok {
			visited[tw] = true
		}
	}
	var order []DFSNode

	type frame struct{ v, parent int32 }
	runFrom := func(root int32) {
		if visited[root] {
			return
		}
		stack := []frame{{v: root, parent: -1}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[f.v] {
				continue
			}
			retire(f.v)
			var next []int32
			for _, w := range g.out[f.v] {
				if !visited[w] {
					next = append(next, w)
				}
			}
			order = append(order, DFSNode{
				V:      f.v,
				Parent: f.parent,
				IsLeaf: len(next) == 0,
			})
			// Push in reverse so the best supported successor pops first.
			for i := len(next) - 1; i >= 0; i-- {
				stack = append(stack, frame{v: next[i], parent: f.v})
			}
		}
	}
	for _, s := range starts {
		runFrom(s)
	}
	for i := range g.vertices {
		runFrom(int32(i))
	}
	return order
}
