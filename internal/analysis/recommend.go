package analysis

import (
	"fmt"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// Family is a model family suggested for a prediction target.
type Family string

const (
	Classification Family = "classification"
	Regression     Family = "regression"
)

// Examples lists typical estimators for the family.
func (f Family) Examples() []string {
	if f == Classification {
		return []string{"RandomForest", "XGBoost"}
	}
	return []string{"Linear Regression", "XGBoost Regressor"}
}

// Recommendation is the outcome of the model-family heuristic.
type Recommendation struct {
	Target string       `json:"target"`
	Family Family       `json:"family"`
	Kind   dataset.Kind `json:"kind"`
	Unique int          `json:"unique"`
}

func (r Recommendation) String() string {
	label := "Classification"
	if r.Family == Regression {
		label = "Regression"
	}
	ex := r.Family.Examples()
	return fmt.Sprintf("Recommended Model: %s (e.g., %s, %s)", label, ex[0], ex[1])
}

// Recommend picks classification when the target is non-numeric or has
// exactly two distinct values, and regression otherwise. Missing values do
// not count as a distinct value.
func Recommend(ds *dataset.Dataset, target string) (Recommendation, error) {
	col, err := ds.Column(target)
	if err != nil {
		return Recommendation{}, err
	}
	rec := Recommendation{Target: col.Name, Kind: col.Kind, Unique: col.Unique()}
	if col.Kind != dataset.Numeric || rec.Unique == 2 {
		rec.Family = Classification
	} else {
		rec.Family = Regression
	}
	return rec, nil
}
