package ml

// Metrics summarises how well a weight vector fits a dataset. Precision and
// recall treat Positive as the relevant class.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Margin    float64 `json:"margin"`
}

// Evaluate classifies every point of ds with w and computes the margin.
func Evaluate(w []float64, ds *Dataset) (Metrics, error) {
	var m Metrics
	if ds.Len() == 0 {
		return m, nil
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, x := range ds.Points {
		label, err := Predict(w, x)
		if err != nil {
			return Metrics{}, err
		}
		want := ds.Labels[i]
		if label == want {
			correct++
		}
		if label == Positive {
			predictedPositive++
		}
		if want == Positive {
			actualPositive++
			if label == Positive {
				truePositive++
			}
		}
	}

	m.Accuracy = float64(correct) / float64(ds.Len())
	if predictedPositive > 0 {
		m.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		m.Recall = float64(truePositive) / float64(actualPositive)
	}

	margin, err := ds.Margin(w)
	if err != nil {
		return Metrics{}, err
	}
	m.Margin = margin
	return m, nil
}
