package shap

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/imishinist/mlflow-dashboard/internal/ml"
)

// TreeExplainer computes exact SHAP values for tree ensembles with the
// polynomial-time weighted-path algorithm. Ensemble values are the mean of
// the per-tree values, matching a probability-averaging forest.
type TreeExplainer struct {
	model ml.TreeEnsemble
}

func NewTreeExplainer(model ml.TreeEnsemble) *TreeExplainer {
	return &TreeExplainer{model: model}
}

// ShapValues returns one samples-by-features matrix per class.
func (e *TreeExplainer) ShapValues(X *mat.Dense) ([]*mat.Dense, error) {
	rows, features := X.Dims()
	classes := e.model.NumClasses()
	trees := e.model.Trees()
	if len(trees) == 0 {
		return nil, fmt.Errorf("model has no fitted trees")
	}

	values := make([]*mat.Dense, classes)
	for c := range values {
		values[c] = mat.NewDense(rows, features, nil)
	}

	phi := make([]float64, features)
	for i := 0; i < rows; i++ {
		x := X.RawRowView(i)
		for c := 0; c < classes; c++ {
			for j := range phi {
				phi[j] = 0
			}
			for _, tree := range trees {
				treePathDependent(tree, x, c, phi)
			}
			for j, v := range phi {
				values[c].Set(i, j, v/float64(len(trees)))
			}
		}
	}

	return values, nil
}

// pathElement is one entry of the unique feature path maintained during the
// tree traversal: the fractions of subsets that flow down when the feature
// is excluded (zero) or included (one), and the accumulated permutation
// weight.
type pathElement struct {
	feature      int
	zeroFraction float64
	oneFraction  float64
	weight       float64
}

// treePathDependent accumulates the SHAP values of a single tree for the
// probability of class c into phi.
func treePathDependent(tree *ml.DecisionTreeClassifier, x []float64, class int, phi []float64) {
	recurse(tree, x, class, phi, 0, nil, 1, 1, -1)
}

func recurse(tree *ml.DecisionTreeClassifier, x []float64, class int, phi []float64,
	nodeIdx int, path []pathElement, zeroFraction, oneFraction float64, feature int) {

	path = extendPath(path, zeroFraction, oneFraction, feature)
	node := &tree.Nodes[nodeIdx]

	if node.Leaf() {
		for i := 1; i < len(path); i++ {
			w := unwoundSum(path, i)
			phi[path[i].feature] += w * (path[i].oneFraction - path[i].zeroFraction) * node.Value[class]
		}
		return
	}

	hot, cold := node.Right, node.Left
	if x[node.Feature] <= node.Threshold {
		hot, cold = node.Left, node.Right
	}
	hotZero := tree.Nodes[hot].Samples / node.Samples
	coldZero := tree.Nodes[cold].Samples / node.Samples

	incomingZero, incomingOne := 1.0, 1.0
	// A split on a feature already on the path replaces the earlier entry.
	for k := 1; k < len(path); k++ {
		if path[k].feature == node.Feature {
			incomingZero = path[k].zeroFraction
			incomingOne = path[k].oneFraction
			path = unwindPath(path, k)
			break
		}
	}

	recurse(tree, x, class, phi, hot, path, hotZero*incomingZero, incomingOne, node.Feature)
	recurse(tree, x, class, phi, cold, path, coldZero*incomingZero, 0, node.Feature)
}

// extendPath grows a copy of the path by one element, updating the subset
// permutation weights.
func extendPath(path []pathElement, zeroFraction, oneFraction float64, feature int) []pathElement {
	depth := len(path)
	next := make([]pathElement, depth+1)
	copy(next, path)

	weight := 0.0
	if depth == 0 {
		weight = 1.0
	}
	next[depth] = pathElement{
		feature:      feature,
		zeroFraction: zeroFraction,
		oneFraction:  oneFraction,
		weight:       weight,
	}

	for i := depth - 1; i >= 0; i-- {
		next[i+1].weight += oneFraction * next[i].weight * float64(i+1) / float64(depth+1)
		next[i].weight = zeroFraction * next[i].weight * float64(depth-i) / float64(depth+1)
	}

	return next
}

// unwindPath removes the element at index from a copy of the path, undoing
// its contribution to the weights.
func unwindPath(path []pathElement, index int) []pathElement {
	depth := len(path) - 1
	next := make([]pathElement, len(path))
	copy(next, path)

	oneFraction := next[index].oneFraction
	zeroFraction := next[index].zeroFraction
	nextOnePortion := next[depth].weight

	for i := depth - 1; i >= 0; i-- {
		if oneFraction != 0 {
			tmp := next[i].weight
			next[i].weight = nextOnePortion * float64(depth+1) / (float64(i+1) * oneFraction)
			nextOnePortion = tmp - next[i].weight*zeroFraction*float64(depth-i)/float64(depth+1)
		} else {
			next[i].weight = next[i].weight * float64(depth+1) / (zeroFraction * float64(depth-i))
		}
	}

	for i := index; i < depth; i++ {
		next[i].feature = next[i+1].feature
		next[i].zeroFraction = next[i+1].zeroFraction
		next[i].oneFraction = next[i+1].oneFraction
	}

	return next[:depth]
}

// unwoundSum is the total permutation weight of the path with the element at
// index removed.
func unwoundSum(path []pathElement, index int) float64 {
	depth := len(path) - 1
	oneFraction := path[index].oneFraction
	zeroFraction := path[index].zeroFraction
	nextOnePortion := path[depth].weight

	total := 0.0
	if oneFraction != 0 {
		for i := depth - 1; i >= 0; i-- {
			tmp := nextOnePortion / (float64(i+1) * oneFraction)
			total += tmp
			nextOnePortion = path[i].weight - tmp*zeroFraction*float64(depth-i)
		}
	} else {
		for i := depth - 1; i >= 0; i-- {
			total += path[i].weight / (zeroFraction * float64(depth-i))
		}
	}

	return total * float64(depth+1)
}
