package ml

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a fitted decision tree. Feature is -1 for leaves.
// Value holds the class probability distribution of the training samples
// that reached the node; Samples is their count, used as cover by the
// tree explainer.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
	Samples   float64   `json:"samples"`
}

// Leaf reports whether the node has no split.
func (n *Node) Leaf() bool {
	return n.Feature < 0
}

// DecisionTreeClassifier is a CART classifier with Gini impurity splits.
type DecisionTreeClassifier struct {
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	Classes         int    `json:"classes"`
	Features        int    `json:"features"`
	Nodes           []Node `json:"nodes"`

	// Per-split feature subsampling, set by the forest. 0 means all features.
	maxFeatures int
	rng         *rand.Rand
}

func NewDecisionTreeClassifier(maxDepth, minSamplesSplit int) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
	}
}

func (t *DecisionTreeClassifier) Kind() string    { return KindDecisionTree }
func (t *DecisionTreeClassifier) NumClasses() int { return t.Classes }

// Trees satisfies TreeEnsemble: a single tree is its own ensemble.
func (t *DecisionTreeClassifier) Trees() []*DecisionTreeClassifier {
	return []*DecisionTreeClassifier{t}
}

func (t *DecisionTreeClassifier) Fit(X *mat.Dense, y []float64) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return fmt.Errorf("cannot fit on empty matrix")
	}
	if rows != len(y) {
		return fmt.Errorf("label count %d does not match row count %d", len(y), rows)
	}

	t.Classes = classCount(y)
	t.Features = cols
	t.Nodes = t.Nodes[:0]

	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	t.build(X, y, indices, 0)

	return nil
}

// build grows a subtree over the given sample indices and returns its root
// node index.
func (t *DecisionTreeClassifier) build(X *mat.Dense, y []float64, indices []int, depth int) int {
	node := Node{
		Feature: -1,
		Value:   classDistribution(y, indices, t.Classes),
		Samples: float64(len(indices)),
	}
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, node)

	if depth >= t.MaxDepth || len(indices) < t.MinSamplesSplit || pure(y, indices) {
		return idx
	}

	feature, threshold, gain := t.bestSplit(X, y, indices)
	if gain <= 0 {
		return idx
	}

	var left, right []int
	for _, i := range indices {
		if X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return idx
	}

	leftIdx := t.build(X, y, left, depth+1)
	rightIdx := t.build(X, y, right, depth+1)

	t.Nodes[idx].Feature = feature
	t.Nodes[idx].Threshold = threshold
	t.Nodes[idx].Left = leftIdx
	t.Nodes[idx].Right = rightIdx

	return idx
}

// bestSplit searches the (possibly subsampled) features for the split with
// the largest Gini impurity decrease.
func (t *DecisionTreeClassifier) bestSplit(X *mat.Dense, y []float64, indices []int) (int, float64, float64) {
	features := t.candidateFeatures()
	parentImpurity := giniFromDistribution(classDistribution(y, indices, t.Classes))
	total := float64(len(indices))

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0

	sorted := make([]int, len(indices))
	leftCounts := make([]float64, t.Classes)
	rightCounts := make([]float64, t.Classes)

	for _, feature := range features {
		copy(sorted, indices)
		sort.Slice(sorted, func(a, b int) bool {
			return X.At(sorted[a], feature) < X.At(sorted[b], feature)
		})

		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = 0
		}
		for _, i := range sorted {
			rightCounts[int(y[i])]++
		}

		for pos := 0; pos < len(sorted)-1; pos++ {
			class := int(y[sorted[pos]])
			leftCounts[class]++
			rightCounts[class]--

			current := X.At(sorted[pos], feature)
			next := X.At(sorted[pos+1], feature)
			if current == next {
				continue
			}

			nLeft := float64(pos + 1)
			nRight := total - nLeft
			impurity := nLeft/total*giniFromCounts(leftCounts, nLeft) +
				nRight/total*giniFromCounts(rightCounts, nRight)
			gain := parentImpurity - impurity

			if gain > bestGain {
				bestFeature = feature
				bestThreshold = (current + next) / 2
				bestGain = gain
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

func (t *DecisionTreeClassifier) candidateFeatures() []int {
	all := make([]int, t.Features)
	for i := range all {
		all[i] = i
	}
	if t.maxFeatures <= 0 || t.maxFeatures >= t.Features || t.rng == nil {
		return all
	}
	t.rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	return all[:t.maxFeatures]
}

func (t *DecisionTreeClassifier) Predict(X *mat.Dense) []float64 {
	rows, _ := X.Dims()
	predictions := make([]float64, rows)
	for i := 0; i < rows; i++ {
		value := t.predictRow(X.RawRowView(i))
		predictions[i] = float64(argmax(value))
	}
	return predictions
}

func (t *DecisionTreeClassifier) PredictProba(X *mat.Dense) *mat.Dense {
	rows, _ := X.Dims()
	proba := mat.NewDense(rows, t.Classes, nil)
	for i := 0; i < rows; i++ {
		proba.SetRow(i, t.predictRow(X.RawRowView(i)))
	}
	return proba
}

// predictRow walks the tree to the leaf distribution for one sample.
func (t *DecisionTreeClassifier) predictRow(x []float64) []float64 {
	node := &t.Nodes[0]
	for !node.Leaf() {
		if x[node.Feature] <= node.Threshold {
			node = &t.Nodes[node.Left]
		} else {
			node = &t.Nodes[node.Right]
		}
	}
	return node.Value
}

// FeatureImportances returns normalized impurity-decrease importances.
func (t *DecisionTreeClassifier) FeatureImportances() []float64 {
	importances := make([]float64, t.Features)
	root := float64(t.Nodes[0].Samples)

	for i := range t.Nodes {
		node := &t.Nodes[i]
		if node.Leaf() {
			continue
		}
		left := &t.Nodes[node.Left]
		right := &t.Nodes[node.Right]
		decrease := node.Samples*giniFromDistribution(node.Value) -
			left.Samples*giniFromDistribution(left.Value) -
			right.Samples*giniFromDistribution(right.Value)
		importances[node.Feature] += decrease / root
	}

	normalize(importances)
	return importances
}

func classDistribution(y []float64, indices []int, classes int) []float64 {
	dist := make([]float64, classes)
	for _, i := range indices {
		dist[int(y[i])]++
	}
	for c := range dist {
		dist[c] /= float64(len(indices))
	}
	return dist
}

func pure(y []float64, indices []int) bool {
	for _, i := range indices[1:] {
		if y[i] != y[indices[0]] {
			return false
		}
	}
	return true
}

func giniFromDistribution(dist []float64) float64 {
	gini := 1.0
	for _, p := range dist {
		gini -= p * p
	}
	return gini
}

func giniFromCounts(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	gini := 1.0
	for _, count := range counts {
		p := count / total
		gini -= p * p
	}
	return gini
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func normalize(values []float64) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	if sum == 0 {
		return
	}
	for i := range values {
		values[i] /= sum
	}
}
