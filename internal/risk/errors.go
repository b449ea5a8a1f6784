package risk

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientData is returned when a training set cannot support a two-class fit
	ErrInsufficientData = errors.New("insufficient training data")
	// ErrEmptyInput is returned when scoring is asked to score zero rows
	ErrEmptyInput = errors.New("no feature rows to score")
	// ErrModelNotLoaded is returned when no bundle has been published yet
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrInvalidBundle is returned when persisted model state cannot be used
	ErrInvalidBundle = errors.New("invalid model bundle")
)

// SchemaError reports feature columns a scoring request did not supply
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing features: %s", strings.Join(e.Missing, ", "))
}
