package risk

import (
	"fmt"

	"github.com/Dan9191/cashflow-risk/internal/models"
)

// VectorFromMap builds a feature vector from a name-keyed request.
// Every canonical feature must be present with a value; absent or null ones
// are reported together in a *SchemaError instead of being defaulted.
// Unknown keys are ignored.
func VectorFromMap(values map[string]*float64) (models.FeatureVector, error) {
	var vec models.FeatureVector
	var missing []string
	for i, name := range models.FeatureNames {
		v := values[name]
		if v == nil {
			missing = append(missing, name)
			continue
		}
		vec[i] = *v
	}
	if len(missing) > 0 {
		return models.FeatureVector{}, &SchemaError{Missing: missing}
	}
	return vec, nil
}

// checkFeatureOrder verifies a feature list matches the canonical order
func checkFeatureOrder(names []string) error {
	if len(names) != models.FeatureCount {
		return &SchemaError{Missing: missingFrom(names)}
	}
	for i, name := range models.FeatureNames {
		if names[i] != name {
			if m := missingFrom(names); len(m) > 0 {
				return &SchemaError{Missing: m}
			}
			return &orderError{index: i, got: names[i], want: name}
		}
	}
	return nil
}

func missingFrom(names []string) []string {
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	var missing []string
	for _, name := range models.FeatureNames {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

type orderError struct {
	index     int
	got, want string
}

func (e *orderError) Error() string {
	return fmt.Sprintf("feature %q at position %d, expected %q", e.got, e.index, e.want)
}
