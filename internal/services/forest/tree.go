package forest

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
)

const leaf = -1

// Node is one entry of a flattened regression tree. Feature is -1 for leaves.
// Samples with x[Feature] <= Threshold go to Left.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree stored as a node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

type treeParams struct {
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
}

type treeBuilder struct {
	X      [][]float64
	y      []float64
	params treeParams
	nodes  []Node
	sorted []int
}

// buildTree grows a tree on a bootstrap sample drawn from rng.
func buildTree(X [][]float64, y []float64, p treeParams, rng *rand.Rand) Tree {
	n := len(X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	b := &treeBuilder{X: X, y: y, params: p, sorted: make([]int, n)}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leaf, Value: b.mean(idx)})

	if len(idx) < b.params.minSamplesSplit || (b.params.maxDepth > 0 && depth >= b.params.maxDepth) || b.pure(idx) {
		return id
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, s := range idx {
		if b.X[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: b.nodes[id].Value}
	return id
}

func (b *treeBuilder) mean(idx []int) float64 {
	sum := 0.0
	for _, s := range idx {
		sum += b.y[s]
	}
	return sum / float64(len(idx))
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, s := range idx[1:] {
		if b.y[s] != first {
			return false
		}
	}
	return true
}

// bestSplit scans every feature for the cut that maximises
// sumL^2/nL + sumR^2/nR, which is equivalent to minimising the summed squared error.
// Ties keep the earliest feature and the lowest threshold.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	minLeaf := max(b.params.minSamplesLeaf, 1)

	total := 0.0
	for _, s := range idx {
		total += b.y[s]
	}
	bestFeature, bestThreshold := -1, 0.0
	bestScore := math.Inf(-1)
	order := b.sorted[:n]

	for f := 0; f < len(b.X[idx[0]]); f++ {
		copy(order, idx)
		slices.SortFunc(order, func(a, c int) int {
			if d := cmp.Compare(b.X[a][f], b.X[c][f]); d != 0 {
				return d
			}
			return cmp.Compare(a, c)
		})

		sumL := 0.0
		for i := 0; i < n-1; i++ {
			sumL += b.y[order[i]]
			nL := i + 1
			nR := n - nL
			if nL < minLeaf {
				continue
			}
			if nR < minLeaf {
				break
			}
			lo, hi := b.X[order[i]][f], b.X[order[i+1]][f]
			if lo >= hi {
				continue
			}
			sumR := total - sumL
			score := sumL*sumL/float64(nL) + sumR*sumR/float64(nR)
			if score > bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
