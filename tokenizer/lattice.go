package tokenizer

import (
	"fmt"
	"slices"
)

// Lattice is a directed acyclic graph of candidate token spans over the rune
// positions of a single input. Position 0 is the begin node and position
// Len() is the end node.
type Lattice struct {
	size  int
	edges []latticeEdge

	// ends[i] lists edges ending at position i in insertion order
	ends [][]int
}

type latticeEdge struct {
	start, length int
	score         float64
	id            int32
}

func NewLattice(size int) *Lattice {
	return &Lattice{
		size:  size,
		edges: make([]latticeEdge, 0, size*2),
		ends:  make([][]int, size+1),
	}
}

// Len returns the number of rune positions covered by the lattice.
func (l *Lattice) Len() int {
	return l.size
}

// Insert records an edge from start to start+length.
func (l *Lattice) Insert(start, length int, score float64, id int32) {
	end := start + length
	if start < 0 || length <= 0 || end > l.size {
		panic(fmt.Sprintf("lattice: edge [%d, %d) outside [0, %d]", start, end, l.size))
	}

	l.ends[end] = append(l.ends[end], len(l.edges))
	l.edges = append(l.edges, latticeEdge{start: start, length: length, score: score, id: id})
}

// viterbi returns the best path from the begin node to the end node and its
// score. Among edges of equal score the one inserted first wins. It returns
// nil when the end node is unreachable.
func (l *Lattice) viterbi() ([]latticeEdge, float64) {
	if l.size == 0 {
		return nil, 0
	}

	best := make([]float64, l.size+1)
	back := make([]int, l.size+1)
	reached := make([]bool, l.size+1)
	reached[0] = true

	for end := 1; end <= l.size; end++ {
		for _, e := range l.ends[end] {
			edge := l.edges[e]
			if !reached[edge.start] {
				continue
			}

			score := best[edge.start] + edge.score
			if !reached[end] || score > best[end] {
				best[end] = score
				back[end] = e
				reached[end] = true
			}
		}
	}

	if !reached[l.size] {
		return nil, 0
	}

	var path []latticeEdge
	for pos := l.size; pos > 0; {
		edge := l.edges[back[pos]]
		path = append(path, edge)
		pos = edge.start
	}

	slices.Reverse(path)

	return path, best[l.size]
}

// Tokens returns the token ids along the best path, left to right.
func (l *Lattice) Tokens() []int32 {
	path, _ := l.viterbi()
	ids := make([]int32, len(path))
	for i, edge := range path {
		ids[i] = edge.id
	}
	return ids
}
