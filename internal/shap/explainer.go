// Package shap computes per-feature attribution scores for the dashboard's
// models: an exact explainer for tree ensembles and a sampling kernel
// explainer for everything else.
package shap

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/imishinist/mlflow-dashboard/internal/ml"
	"github.com/imishinist/mlflow-dashboard/internal/models"
)

// Explainer produces one samples-by-features SHAP value matrix per class.
type Explainer interface {
	ShapValues(X *mat.Dense) ([]*mat.Dense, error)
}

// Options tune the kernel explainer fallback.
type Options struct {
	BackgroundSamples int
	KernelSamples     int
	Seed              int64
}

// NewExplainer selects the exact tree explainer for tree models and the
// kernel explainer for everything else, with X as the kernel background.
func NewExplainer(model ml.Model, X *mat.Dense, opts Options) Explainer {
	if ensemble, ok := model.(ml.TreeEnsemble); ok {
		return NewTreeExplainer(ensemble)
	}
	return NewKernelExplainer(model, X, opts.BackgroundSamples, opts.KernelSamples, opts.Seed)
}

// Collapse averages per-class value matrices into a single matrix, the shape
// the dashboard reports for multiclass models.
func Collapse(values []*mat.Dense) *mat.Dense {
	if len(values) == 1 {
		return values[0]
	}

	rows, cols := values[0].Dims()
	out := mat.NewDense(rows, cols, nil)
	for _, class := range values {
		out.Add(out, class)
	}
	out.Scale(1/float64(len(values)), out)

	return out
}

// MeanAbsImportance ranks features by mean absolute SHAP value, descending.
// Ties keep column order.
func MeanAbsImportance(values *mat.Dense, features []string) []models.FeatureImportance {
	rows, cols := values.Dims()

	importance := make([]models.FeatureImportance, cols)
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			v := values.At(i, j)
			if v < 0 {
				v = -v
			}
			sum += v
		}
		importance[j] = models.FeatureImportance{
			Feature:    features[j],
			Importance: sum / float64(rows),
		}
	}

	sort.SliceStable(importance, func(a, b int) bool {
		return importance[a].Importance > importance[b].Importance
	})

	return importance
}
