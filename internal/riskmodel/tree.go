package riskmodel

import (
	"math/rand"
	"sort"

	"github.com/steelstack/millwatch/internal/features"
)

// treeNode is one node of a CART tree. Internal nodes route on
// feature <= threshold; leaves carry the positive-class fraction of the
// training samples that reached them.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	prob      float64
}

func (n *treeNode) isLeaf() bool { return n.left == nil }

func (n *treeNode) predict(v features.Vector) float64 {
	for !n.isLeaf() {
		if v[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.prob
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	mtry            int
}

// growTree builds a tree over rows[indices] by recursive greedy splitting on
// Gini impurity. Each split considers a random subset of mtry features. The
// rng is consumed sequentially, so identical inputs grow identical trees.
func growTree(rows []features.Vector, labels []int, indices []int, depth int, p treeParams, rng *rand.Rand) *treeNode {
	positives := 0
	for _, i := range indices {
		positives += labels[i]
	}
	prob := float64(positives) / float64(len(indices))

	if depth >= p.maxDepth || len(indices) < p.minSamplesSplit || positives == 0 || positives == len(indices) {
		return &treeNode{prob: prob}
	}

	feature, threshold, ok := bestSplit(rows, labels, indices, p.mtry, rng)
	if !ok {
		return &treeNode{prob: prob}
	}

	var left, right []int
	for _, i := range indices {
		if rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{prob: prob}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      growTree(rows, labels, left, depth+1, p, rng),
		right:     growTree(rows, labels, right, depth+1, p, rng),
	}
}

// bestSplit scans mtry randomly chosen features for the threshold with the
// lowest weighted Gini impurity. Ties keep the first candidate found, which
// pins tree shape for a given rng state.
func bestSplit(rows []features.Vector, labels []int, indices []int, mtry int, rng *rand.Rand) (int, float64, bool) {
	candidates := rng.Perm(features.Count)[:mtry]

	n := len(indices)
	order := make([]int, n)
	bestFeature, bestThreshold, bestScore, found := 0, 0.0, 0.0, false

	for _, f := range candidates {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool { return rows[order[a]][f] < rows[order[b]][f] })

		totalPos := 0
		for _, i := range order {
			totalPos += labels[i]
		}

		leftPos := 0
		for k := 1; k < n; k++ {
			leftPos += labels[order[k-1]]
			lo, hi := rows[order[k-1]][f], rows[order[k]][f]
			if lo == hi {
				continue
			}
			score := weightedGini(leftPos, k, totalPos-leftPos, n-k)
			if !found || score < bestScore {
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				bestScore = score
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

// weightedGini scores a candidate binary split by the size-weighted Gini
// impurity of its two sides.
func weightedGini(leftPos, leftN, rightPos, rightN int) float64 {
	return float64(leftN)*gini(leftPos, leftN) + float64(rightN)*gini(rightPos, rightN)
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}
