package shap

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/imishinist/mlflow-dashboard/internal/ml"
)

// maxEnumerateFeatures caps exact coalition enumeration. Above this width the
// coalition count dwarfs any sample budget and shifting by the feature count
// would overflow.
const maxEnumerateFeatures = 25

// KernelExplainer approximates SHAP values for arbitrary models by sampling
// feature coalitions against a background dataset and solving the Shapley
// kernel weighted regression. Slower than the tree explainer but works with
// any model, so it is the fallback.
type KernelExplainer struct {
	model      ml.Model
	background *mat.Dense
	samples    int
	rng        *rand.Rand
}

// NewKernelExplainer builds an explainer over a background sample. At most
// maxBackground rows of the provided data are kept.
func NewKernelExplainer(model ml.Model, background *mat.Dense, maxBackground, samples int, seed int64) *KernelExplainer {
	rows, cols := background.Dims()
	if rows > maxBackground {
		trimmed := mat.NewDense(maxBackground, cols, nil)
		for i := 0; i < maxBackground; i++ {
			trimmed.SetRow(i, background.RawRowView(i))
		}
		background = trimmed
	}

	return &KernelExplainer{
		model:      model,
		background: background,
		samples:    samples,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// ShapValues explains each row of X. The explainer works on the model's
// predicted label, so it returns a single matrix.
func (e *KernelExplainer) ShapValues(X *mat.Dense) ([]*mat.Dense, error) {
	rows, features := X.Dims()
	if features < 2 {
		return nil, fmt.Errorf("kernel explainer needs at least 2 features, got %d", features)
	}

	base := mean(e.model.Predict(e.background))

	values := mat.NewDense(rows, features, nil)
	for i := 0; i < rows; i++ {
		phi, err := e.explainRow(X.RawRowView(i), base)
		if err != nil {
			return nil, fmt.Errorf("failed to explain row %d: %w", i, err)
		}
		values.SetRow(i, phi)
	}

	return []*mat.Dense{values}, nil
}

func (e *KernelExplainer) explainRow(x []float64, base float64) ([]float64, error) {
	features := len(x)
	fx := e.predictSingle(x)

	coalitions, weights := e.sampleCoalitions(features)
	outputs := make([]float64, len(coalitions))
	for i, coalition := range coalitions {
		outputs[i] = e.coalitionValue(x, coalition)
	}

	return solveShapley(coalitions, weights, outputs, base, fx)
}

// sampleCoalitions picks the coalition z-vectors to evaluate. Small feature
// counts are enumerated exactly with kernel weights; larger ones are sampled
// from the kernel distribution with uniform weights.
func (e *KernelExplainer) sampleCoalitions(features int) ([][]bool, []float64) {
	if features <= maxEnumerateFeatures {
		total := (1 << features) - 2 // excludes the empty and full coalitions
		if total <= e.samples {
			return e.enumerateCoalitions(features, total)
		}
	}

	// Sampling sizes proportional to the kernel makes each draw equally
	// weighted in the regression.
	sizeWeights := make([]float64, features-1)
	sum := 0.0
	for s := 1; s < features; s++ {
		sizeWeights[s-1] = 1 / float64(s*(features-s))
		sum += sizeWeights[s-1]
	}

	coalitions := make([][]bool, e.samples)
	weights := make([]float64, e.samples)
	perm := make([]int, features)
	for i := range perm {
		perm[i] = i
	}

	for n := 0; n < e.samples; n++ {
		r := e.rng.Float64() * sum
		size := features - 1
		for s := 1; s < features; s++ {
			r -= sizeWeights[s-1]
			if r <= 0 {
				size = s
				break
			}
		}

		e.rng.Shuffle(features, func(i, j int) {
			perm[i], perm[j] = perm[j], perm[i]
		})
		coalition := make([]bool, features)
		for _, j := range perm[:size] {
			coalition[j] = true
		}
		coalitions[n] = coalition
		weights[n] = 1
	}

	return coalitions, weights
}

// enumerateCoalitions walks every proper non-empty coalition with its exact
// kernel weight. Only called for narrow inputs.
func (e *KernelExplainer) enumerateCoalitions(features, total int) ([][]bool, []float64) {
	coalitions := make([][]bool, 0, total)
	weights := make([]float64, 0, total)
	for bits := 1; bits < (1<<features)-1; bits++ {
		coalition := make([]bool, features)
		size := 0
		for j := 0; j < features; j++ {
			if bits&(1<<j) != 0 {
				coalition[j] = true
				size++
			}
		}
		coalitions = append(coalitions, coalition)
		weights = append(weights, kernelWeight(features, size))
	}
	return coalitions, weights
}

// coalitionValue averages the model output over the background rows with the
// coalition's features replaced by the instance values.
func (e *KernelExplainer) coalitionValue(x []float64, coalition []bool) float64 {
	rows, cols := e.background.Dims()
	synthetic := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		bg := e.background.RawRowView(i)
		for j := 0; j < cols; j++ {
			if coalition[j] {
				synthetic.Set(i, j, x[j])
			} else {
				synthetic.Set(i, j, bg[j])
			}
		}
	}
	return mean(e.model.Predict(synthetic))
}

func (e *KernelExplainer) predictSingle(x []float64) float64 {
	row := mat.NewDense(1, len(x), append([]float64(nil), x...))
	return e.model.Predict(row)[0]
}

// solveShapley solves the kernel-weighted regression with the efficiency
// constraint sum(phi) = fx - base eliminated through the last feature.
func solveShapley(coalitions [][]bool, weights, outputs []float64, base, fx float64) ([]float64, error) {
	n := len(coalitions)
	features := len(coalitions[0])
	reduced := features - 1

	A := mat.NewDense(n, reduced, nil)
	b := mat.NewVecDense(n, nil)
	for i, coalition := range coalitions {
		last := 0.0
		if coalition[features-1] {
			last = 1
		}
		for j := 0; j < reduced; j++ {
			z := 0.0
			if coalition[j] {
				z = 1
			}
			A.Set(i, j, z-last)
		}
		b.SetVec(i, outputs[i]-base-last*(fx-base))
	}

	// Weighted normal equations: (A^T W A) phi = A^T W b
	WA := mat.NewDense(n, reduced, nil)
	Wb := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < reduced; j++ {
			WA.Set(i, j, weights[i]*A.At(i, j))
		}
		Wb.SetVec(i, weights[i]*b.AtVec(i))
	}

	var ata mat.Dense
	ata.Mul(A.T(), WA)
	var atb mat.VecDense
	atb.MulVec(A.T(), Wb)

	var solution mat.VecDense
	if err := solution.SolveVec(&ata, &atb); err != nil {
		return nil, fmt.Errorf("shapley regression is singular: %w", err)
	}

	phi := make([]float64, features)
	sum := 0.0
	for j := 0; j < reduced; j++ {
		phi[j] = solution.AtVec(j)
		sum += phi[j]
	}
	phi[features-1] = fx - base - sum

	return phi, nil
}

func kernelWeight(features, size int) float64 {
	return float64(features-1) / (binomial(features, size) * float64(size*(features-size)))
}

func binomial(n, k int) float64 {
	if k > n-k {
		k = n - k
	}
	result := 1.0
	for i := 0; i < k; i++ {
		result = result * float64(n-i) / float64(i+1)
	}
	return result
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
