package ml

// Evaluation holds classification quality metrics on a held-out set.
type Evaluation struct {
	Accuracy        float64 `json:"accuracy"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	F1              float64 `json:"f1"`
	ConfusionMatrix [][]int `json:"confusion_matrix"`
}

// Evaluate compares predictions against true labels. Precision, recall,
// and F1 are macro-averaged over classes.
func Evaluate(yTrue, yPred []float64, classes int) Evaluation {
	confusion := make([][]int, classes)
	for i := range confusion {
		confusion[i] = make([]int, classes)
	}

	correct := 0
	for i := range yTrue {
		actual, predicted := int(yTrue[i]), int(yPred[i])
		confusion[actual][predicted]++
		if actual == predicted {
			correct++
		}
	}

	var precisionSum, recallSum, f1Sum float64
	for c := 0; c < classes; c++ {
		tp := float64(confusion[c][c])
		var fp, fn float64
		for other := 0; other < classes; other++ {
			if other != c {
				fp += float64(confusion[other][c])
				fn += float64(confusion[c][other])
			}
		}

		var precision, recall float64
		if tp+fp > 0 {
			precision = tp / (tp + fp)
		}
		if tp+fn > 0 {
			recall = tp / (tp + fn)
		}
		var f1 float64
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}

		precisionSum += precision
		recallSum += recall
		f1Sum += f1
	}

	return Evaluation{
		Accuracy:        float64(correct) / float64(len(yTrue)),
		Precision:       precisionSum / float64(classes),
		Recall:          recallSum / float64(classes),
		F1:              f1Sum / float64(classes),
		ConfusionMatrix: confusion,
	}
}
