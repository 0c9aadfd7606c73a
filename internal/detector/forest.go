package detector

import (
	"errors"
	"math"
	"math/rand"
)

// ErrEmptyTrainingSet is returned when a forest is fitted with no samples.
var ErrEmptyTrainingSet = errors.New("empty training set")

// ForestOptions configures an isolation forest fit.
type ForestOptions struct {
	// Trees is the ensemble size.
	Trees int
	// Subsample caps how many window values each tree trains on.
	// Zero means min(256, len(values)).
	Subsample int
	// Seed makes fits deterministic for a given window.
	Seed int64
}

// Forest is a fitted isolation forest over one-dimensional latency values.
// Outliers are isolated by random splits in fewer steps than inliers, so a
// shorter average path length maps to a higher anomaly score.
type Forest struct {
	trees []*treeNode
	// norm is c(subsample), the expected path length used to normalise scores.
	norm float64
}

type treeNode struct {
	split       float64
	left, right *treeNode
	size        int
}

func (n *treeNode) leaf() bool { return n.left == nil }

// FitForest builds a forest from the supplied values. The fit is rebuilt
// wholesale each retrain cycle; the algorithm has no incremental form.
func FitForest(values []float64, opts ForestOptions) (*Forest, error) {
	if len(values) == 0 {
		return nil, ErrEmptyTrainingSet
	}

	trees := opts.Trees
	if trees <= 0 {
		trees = 100
	}
	sub := opts.Subsample
	if sub <= 0 || sub > len(values) {
		sub = len(values)
		if sub > 256 {
			sub = 256
		}
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	maxDepth := 0
	if sub > 1 {
		maxDepth = int(math.Ceil(math.Log2(float64(sub))))
	}

	forest := &Forest{
		trees: make([]*treeNode, 0, trees),
		norm:  avgPathLength(sub),
	}
	for i := 0; i < trees; i++ {
		sample := values
		if sub < len(values) {
			idx := rng.Perm(len(values))[:sub]
			sample = make([]float64, sub)
			for j, k := range idx {
				sample[j] = values[k]
			}
		}
		forest.trees = append(forest.trees, buildTree(sample, 0, maxDepth, rng))
	}
	return forest, nil
}

func buildTree(values []float64, depth, maxDepth int, rng *rand.Rand) *treeNode {
	if len(values) <= 1 || depth >= maxDepth {
		return &treeNode{size: len(values)}
	}

	lo, hi := minMax(values)
	if lo == hi {
		// Zero-variance node: nothing left to split on.
		return &treeNode{size: len(values)}
	}

	split := lo + rng.Float64()*(hi-lo)
	left := make([]float64, 0, len(values))
	right := make([]float64, 0, len(values))
	for _, v := range values {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{size: len(values)}
	}

	return &treeNode{
		split: split,
		left:  buildTree(left, depth+1, maxDepth, rng),
		right: buildTree(right, depth+1, maxDepth, rng),
		size:  len(values),
	}
}

// Score returns the anomaly score for v in (0, 1]; higher is more anomalous.
func (f *Forest) Score(v float64) float64 {
	if len(f.trees) == 0 || f.norm == 0 {
		return 0.5
	}

	total := 0.0
	for _, t := range f.trees {
		total += pathLength(t, v, 0)
	}
	avg := total / float64(len(f.trees))
	return math.Pow(2, -avg/f.norm)
}

// Scores evaluates every value against the fitted forest.
func (f *Forest) Scores(values []float64) []float64 {
	scores := make([]float64, len(values))
	for i, v := range values {
		scores[i] = f.Score(v)
	}
	return scores
}

func pathLength(n *treeNode, v float64, depth int) float64 {
	if n.leaf() {
		return float64(depth) + avgPathLength(n.size)
	}
	if v < n.split {
		return pathLength(n.left, v, depth+1)
	}
	return pathLength(n.right, v, depth+1)
}

const eulerMascheroni = 0.5772156649015329

// avgPathLength is c(n): the expected path length of an unsuccessful search
// in a binary search tree over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	harmonic := math.Log(float64(n-1)) + eulerMascheroni
	return 2*harmonic - 2*float64(n-1)/float64(n)
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
